// Package player implements the playback-surface state machine spec §4.8
// routes to (play_master_call, play_recording, stop_playback, is_playing,
// playback_position, set_playback_volume). Actual audio output through a
// host device is an external collaborator (spec §1); this package tracks
// playback position and state so the engine can answer queries without
// owning a device, the same "track state, delegate output" split the
// teacher uses between its manager and its malgo/soundcard sources.
package player

import (
	"sync"
	"time"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

// Source identifies what is currently (or was last) playing.
type Source int

const (
	SourceNone Source = iota
	SourceMaster
	SourceRecording
)

// State is a point-in-time snapshot of playback (spec §6).
type State struct {
	Source   Source
	Playing  bool
	Position time.Duration
	Duration time.Duration
	Volume   float64
}

// clock abstracts wall time so tests can inject a fake; production uses
// realClock.
type clock interface{ now() time.Time }

type realClock struct{}

func (realClock) now() time.Time { return time.Now() }

// Player tracks one playback session's abstract state. It has no output
// sink: position advances from wall-clock elapsed time alone, which is
// sufficient for every engine-facing query this core exposes.
type Player struct {
	mu sync.Mutex

	clk clock

	source   Source
	duration time.Duration
	volume   float64

	playing   bool
	startedAt time.Time
	elapsed   time.Duration // position held at Stop; Play resets it to zero
}

// New constructs a Player at unity volume, stopped.
func New() *Player {
	return &Player{clk: realClock{}, volume: 1.0}
}

// Play begins playback of src (duration is the clip's total length, used
// to clamp reported position and to flag completion).
func (p *Player) Play(src Source, duration time.Duration) error {
	if src == SourceNone {
		return errors.WrapSentinel(errors.ErrInvalidParams, "player", "reason", "source_required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = src
	p.duration = duration
	p.elapsed = 0
	p.playing = true
	p.startedAt = p.clk.now()
	return nil
}

// Stop halts playback; State() afterwards reports Playing=false with the
// position held at its last value.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.elapsed = p.positionLocked()
		p.playing = false
	}
}

// IsPlaying reports whether playback is currently active.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SetVolume clamps vol into [0,1] and applies it immediately.
func (p *Player) SetVolume(vol float64) {
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	p.mu.Lock()
	p.volume = vol
	p.mu.Unlock()
}

// Position returns elapsed playback time, clamped to duration.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	pos := p.elapsed
	if p.playing {
		pos += p.clk.now().Sub(p.startedAt)
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
		if p.playing {
			p.playing = false
		}
	}
	return pos
}

// State returns a full snapshot for engine views.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Source:   p.source,
		Playing:  p.playing,
		Position: p.positionLocked(),
		Duration: p.duration,
		Volume:   p.volume,
	}
}

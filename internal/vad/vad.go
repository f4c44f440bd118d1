// Package vad implements the voice-activity detector (spec §4.2, component
// C2): a windowed energy gate with a state machine that prevents flicker
// between silence and voiced regions.
package vad

import (
	"time"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

// State is one of the four VAD states from spec §4.2.
type State int

const (
	Silence State = iota
	Candidate
	Voiced
	Hangover
)

func (s State) String() string {
	switch s {
	case Silence:
		return "silence"
	case Candidate:
		return "candidate"
	case Voiced:
		return "voiced"
	case Hangover:
		return "hangover"
	default:
		return "unknown"
	}
}

// Config holds the VAD's tunable thresholds and timers.
type Config struct {
	EnergyThreshold  float64
	WindowDuration   time.Duration
	MinSoundDuration time.Duration
	PreBuffer        time.Duration
	PostBuffer       time.Duration
}

// Result is the per-window classification emitted by Process.
type Result struct {
	IsActive           bool
	EnergyLevel        float64
	DurationInState    time.Duration
}

// Detector is a single session's VAD state machine. It is not safe for
// concurrent use; the engine serializes all mutation of a session's state
// (spec §5).
type Detector struct {
	cfg Config

	state             State
	sinceStateChange  time.Duration
	aboveThresholdDur time.Duration
	hangoverRemaining time.Duration
}

// New creates a Detector starting in Silence.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, state: Silence}
}

// State returns the current VAD state.
func (d *Detector) State() State {
	return d.state
}

// Reset returns the detector to Silence and zeroes all timers (spec §4.2).
func (d *Detector) Reset() {
	d.state = Silence
	d.sinceStateChange = 0
	d.aboveThresholdDur = 0
	d.hangoverRemaining = 0
}

// Process classifies one window of samples, advancing the state machine.
// An empty window is InvalidInput; otherwise the VAD cannot fail.
func (d *Detector) Process(window []float32) (Result, error) {
	if len(window) == 0 {
		return Result{}, errors.WrapSentinel(errors.ErrInvalidInput, "vad")
	}

	var sumSquares float64
	for _, s := range window {
		v := float64(s)
		sumSquares += v * v
	}
	energy := sumSquares / float64(len(window))
	above := energy > d.cfg.EnergyThreshold

	d.sinceStateChange += d.cfg.WindowDuration

	switch d.state {
	case Silence:
		if above {
			d.transition(Candidate)
			d.aboveThresholdDur = d.cfg.WindowDuration
		}

	case Candidate:
		if above {
			d.aboveThresholdDur += d.cfg.WindowDuration
			if d.aboveThresholdDur >= d.cfg.MinSoundDuration {
				d.transition(Voiced)
			}
		} else {
			d.transition(Silence)
			d.aboveThresholdDur = 0
		}

	case Voiced:
		if !above {
			d.transition(Hangover)
			d.hangoverRemaining = d.cfg.PostBuffer
		}

	case Hangover:
		if above {
			d.transition(Voiced)
			d.hangoverRemaining = 0
		} else {
			d.hangoverRemaining -= d.cfg.WindowDuration
			if d.hangoverRemaining <= 0 {
				d.transition(Silence)
			}
		}
	}

	isActive := d.state == Voiced || d.state == Hangover

	return Result{
		IsActive:        isActive,
		EnergyLevel:     energy,
		DurationInState: d.sinceStateChange,
	}, nil
}

func (d *Detector) transition(next State) {
	d.state = next
	d.sinceStateChange = 0
}

package engine

import (
	"time"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/player"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/session"
)

// StartRecording activates a session's raw-sample mirror (spec §4.8's
// recording surface). File-based capture is an external collaborator; this
// method takes no sink and starts the session's in-memory recorder with a
// nil writer, so samples are only buffered in memory.
func (e *Engine) StartRecording(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.Recorder().Start(nil)
	return nil
}

// StopRecording deactivates the mirror without discarding buffered
// samples.
func (e *Engine) StopRecording(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.Recorder().Stop()
	return nil
}

// IsRecording reports whether the session's mirror is active.
func (e *Engine) IsRecording(id session.ID) (bool, error) {
	s, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	s.Lock()
	defer s.Unlock()
	return s.Recorder().IsRecording(), nil
}

// SaveRecording drains and returns the mirrored samples accumulated since
// the last Start/Save (spec §4.8's save_recording). Writing the result to
// a file is the external collaborator's job (spec §1).
func (e *Engine) SaveRecording(id session.ID) ([]float32, error) {
	s, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	s.Lock()
	defer s.Unlock()
	return s.Recorder().Flush(), nil
}

// RecordedSampleSnapshot returns the most recent mirrored samples without
// consuming them -- the memory-buffer query spec §4.8 lists alongside
// start/stop/save.
func (e *Engine) RecordedSampleSnapshot(id session.ID) ([]float32, error) {
	s, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	s.Lock()
	defer s.Unlock()
	return s.Recorder().Snapshot(), nil
}

// PlayMasterCall starts the playback-state tracker against the session's
// loaded master call (spec §4.8). Actual audio output is external.
func (e *Engine) PlayMasterCall(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if !s.HasMaster() {
		return errors.WrapSentinel(errors.ErrNoMasterCall, "engine", "session_id", string(id))
	}
	duration := time.Duration(s.MasterData().DurationSecond * float64(time.Second))
	return s.Player().Play(player.SourceMaster, duration)
}

// PlayRecording starts the playback-state tracker against whatever the
// session's recording mirror currently holds.
func (e *Engine) PlayRecording(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	samples := s.Recorder().Snapshot()
	if len(samples) == 0 {
		return errors.WrapSentinel(errors.ErrInsufficientData, "engine", "reason", "nothing_recorded")
	}
	duration := time.Duration(float64(len(samples)) / float64(s.Config().SampleRateHz) * float64(time.Second))
	return s.Player().Play(player.SourceRecording, duration)
}

// StopPlayback halts playback-state tracking.
func (e *Engine) StopPlayback(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.Player().Stop()
	return nil
}

// IsPlaying reports whether playback is currently tracked as active.
func (e *Engine) IsPlaying(id session.ID) (bool, error) {
	s, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	s.Lock()
	defer s.Unlock()
	return s.Player().IsPlaying(), nil
}

// PlaybackPosition returns elapsed playback time, clamped to duration.
func (e *Engine) PlaybackPosition(id session.ID) (time.Duration, error) {
	s, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	s.Lock()
	defer s.Unlock()
	return s.Player().Position(), nil
}

// SetPlaybackVolume clamps and applies a playback volume in [0,1].
func (e *Engine) SetPlaybackVolume(id session.ID, volume float64) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.Player().SetVolume(volume)
	return nil
}

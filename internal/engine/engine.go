// Package engine implements the process-wide session registry and
// dispatcher (spec §4.8, component C8): the facade every external
// collaborator and the CLI call into. Its registry locking and
// startup/shutdown shape generalize a mutex-guarded per-stream manager
// from an audio-source registry to a call-analysis-session registry.
package engine

import (
	"sync"
	"time"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/bufferpool"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/dtw"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/level"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/logging"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mastercall"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mfcc"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/scorer"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/session"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/vad"
)

// Defaults bundles the process-wide default analyzer configs applied to
// every new session unless overridden (spec §6).
type Defaults struct {
	MFCC   mfcc.Config
	VAD    vad.Config
	DTW    dtw.Config
	Scorer scorer.Config
	Level  level.Config

	HopSize           int
	SlidingWindowSize int
	VADEnabledByDefault bool

	MasterCallsPath   string // directory of <id>.wav source files
	FeaturesPath      string // directory of cached <id>.mfc files
	MasterCacheTTL    time.Duration
}

// Engine is the process-wide facade: a readers-writer-guarded session
// registry plus shared collaborators (master-call cache, buffer pool).
type Engine struct {
	defaults Defaults

	mu       sync.RWMutex
	sessions map[session.ID]*session.Session

	masterCache *mastercall.Cache
	bufferPool  *bufferpool.Pool
}

// New constructs an Engine with process-wide defaults.
func New(defaults Defaults, pool *bufferpool.Pool) *Engine {
	ttl := defaults.MasterCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Engine{
		defaults:    defaults,
		sessions:    make(map[session.ID]*session.Session),
		masterCache: mastercall.NewCache(ttl, ttl),
		bufferPool:  pool,
	}
}

// BufferPool returns the shared spec §5 buffer pool handed to New, the
// same pool capture.Device checks out from on its producer thread, so
// callers (CLI entry points, diagnostics) can inspect BufferPool().Stats()
// without threading a second reference through their own plumbing.
func (e *Engine) BufferPool() *bufferpool.Pool { return e.bufferPool }

// CreateSession allocates a session with default config under the
// registry's exclusive lock (spec §4.8).
func (e *Engine) CreateSession(sampleRateHz int) (session.ID, error) {
	if sampleRateHz <= 0 {
		return "", errors.WrapSentinel(errors.ErrInvalidParams, "engine", "sample_rate_hz", sampleRateHz)
	}

	cfg := e.sessionConfig(sampleRateHz)
	id := session.NewID()
	s, err := session.New(id, cfg)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	logging.Info("session created", "session_id", string(id), "sample_rate_hz", sampleRateHz)
	return id, nil
}

func (e *Engine) sessionConfig(sampleRateHz int) session.Config {
	cfg := session.Config{
		SampleRateHz:      sampleRateHz,
		MFCC:              e.defaults.MFCC,
		VAD:               e.defaults.VAD,
		DTW:               e.defaults.DTW,
		Scorer:            e.defaults.Scorer,
		Level:             e.defaults.Level,
		HopSize:           e.defaults.HopSize,
		SlidingWindowSize: e.defaults.SlidingWindowSize,
		VADEnabled:        e.defaults.VADEnabledByDefault,
	}
	cfg.MFCC.SampleRateHz = sampleRateHz
	cfg.Level.SampleRateHz = sampleRateHz
	return cfg
}

// DestroySession removes and disposes a session. It first waits for any
// in-flight pipeline invocation to complete (spec §4.8.1 cancellation).
func (e *Engine) DestroySession(id session.ID) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if !ok {
		e.mu.Unlock()
		return errors.WrapSentinel(errors.ErrNotFound, "engine", "session_id", string(id))
	}
	delete(e.sessions, id)
	e.mu.Unlock()

	s.Drain()
	logging.Info("session destroyed", "session_id", string(id))
	return nil
}

// ActiveSessions returns a snapshot of live session ids under the shared
// lock.
func (e *Engine) ActiveSessions() []session.ID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]session.ID, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) lookup(id session.ID) (*session.Session, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.WrapSentinel(errors.ErrNotFound, "engine", "session_id", string(id))
	}
	return s, nil
}

// LoadMasterCall resolves name via the feature cache / source-audio
// loader and stores the resulting features and RMS in the session (spec
// §4.9).
func (e *Engine) LoadMasterCall(id session.ID, name string) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}

	data, err := e.resolveMaster(name, s)
	if err != nil {
		return errors.WrapSentinel(errors.ErrResourceUnavailable, "engine", "master_call", name)
	}

	s.Lock()
	s.SetMaster(name, data)
	s.Unlock()
	return nil
}

// UnloadMasterCall drops the session's master association.
func (e *Engine) UnloadMasterCall(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	s.UnloadMaster()
	s.Unlock()
	return nil
}

// CurrentMasterCall returns the logical name of the currently loaded
// master call, or "" if none.
func (e *Engine) CurrentMasterCall(id session.ID) (string, error) {
	s, err := e.lookup(id)
	if err != nil {
		return "", err
	}
	s.Lock()
	defer s.Unlock()
	return s.MasterName(), nil
}

// SimilarityScore returns the session's last composite score. No master
// call loaded yields NoMasterCall rather than a fabricated score (spec
// §4.8, invariant I3).
func (e *Engine) SimilarityScore(id session.ID) (scorer.Score, error) {
	s, err := e.lookup(id)
	if err != nil {
		return scorer.Score{}, err
	}
	s.Lock()
	defer s.Unlock()
	if !s.HasMaster() {
		return scorer.Score{}, errors.WrapSentinel(errors.ErrNoMasterCall, "engine", "session_id", string(id))
	}
	return s.LastSimilarity(), nil
}

// FeatureCount returns the number of feature frames recorded so far.
func (e *Engine) FeatureCount(id session.ID) (int, error) {
	s, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	s.Lock()
	defer s.Unlock()
	return s.FeatureCount(), nil
}

// MasterFeatureCount returns the loaded master call's frame count.
func (e *Engine) MasterFeatureCount(id session.ID) (int, error) {
	s, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	s.Lock()
	defer s.Unlock()
	if !s.HasMaster() {
		return 0, errors.WrapSentinel(errors.ErrNoMasterCall, "engine", "session_id", string(id))
	}
	return s.MasterData().NumFrames(), nil
}

// SetRealtimeScorerConfig replaces the session's scorer configuration.
func (e *Engine) SetRealtimeScorerConfig(id session.ID, cfg scorer.Config) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	*s.Scorer() = *scorer.New(cfg)
	return nil
}

// ConfigureVAD replaces the session's VAD configuration.
func (e *Engine) ConfigureVAD(id session.ID, cfg vad.Config) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	*s.VAD() = *vad.New(cfg)
	return nil
}

// EnableVAD turns VAD gating on for a session.
func (e *Engine) EnableVAD(id session.ID) error { return e.setVADEnabled(id, true) }

// DisableVAD turns VAD gating off for a session (every chunk is treated
// as active).
func (e *Engine) DisableVAD(id session.ID) error { return e.setVADEnabled(id, false) }

func (e *Engine) setVADEnabled(id session.ID, enabled bool) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.SetVADEnabled(enabled)
	return nil
}

// ConfigureDTW replaces the session's DTW configuration.
func (e *Engine) ConfigureDTW(id session.ID, cfg dtw.Config) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	*s.Aligner() = *dtw.New(cfg)
	return nil
}

// DTWWindowRatio adjusts only the Sakoe-Chiba window ratio in place,
// preserving the rest of the aligner's scratch state.
func (e *Engine) DTWWindowRatio(id session.ID, ratio float64) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.Aligner().SetWindowRatio(ratio)
	return nil
}

// FinalizeSessionAnalysis computes the final reported score, applying the
// configured fallback if the computed score falls below threshold (spec
// §4.8, §9).
func (e *Engine) FinalizeSessionAnalysis(id session.ID) (scorer.FinalizeResult, error) {
	s, err := e.lookup(id)
	if err != nil {
		return scorer.FinalizeResult{}, err
	}
	s.Lock()
	defer s.Unlock()
	return s.Scorer().Finalize(), nil
}

// ResetSessionScoring clears per-run analysis state but keeps the master
// (spec §4.6 reset).
func (e *Engine) ResetSessionScoring(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.Reset()
	return nil
}

// ResetSession clears per-run state and drops the master (spec §4.6
// reset_session).
func (e *Engine) ResetSession(id session.ID) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.ResetSession()
	return nil
}

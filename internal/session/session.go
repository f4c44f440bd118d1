// Package session implements per-session state (spec §4.7, component
// C7): the sample-carry buffer, feature sequence, analyzer instances, and
// master-call association owned by one concurrent call stream. A Session
// is mutated by exactly one goroutine at a time; the engine enforces that
// serialization (spec §5) by routing all work for one session through its
// Mutex.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/dtw"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/level"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mastercall"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mfcc"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/player"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/recorder"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/scorer"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/vad"
)

// ID identifies a session process-wide.
type ID string

// NewID mints a fresh session identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Config bundles every analyzer's construction parameters, all derived
// from a single sample rate plus the process-wide defaults (spec §6).
type Config struct {
	SampleRateHz int

	MFCC   mfcc.Config
	VAD    vad.Config
	DTW    dtw.Config
	Scorer scorer.Config
	Level  level.Config

	HopSize           int
	SlidingWindowSize int // max session_features frames compared against master (DTW cost bound)
	VADEnabled        bool

	RecordingMaxSamples int // capacity of the recording-surface mirror (spec §4.8)
}

// Session owns one call stream's full analyzer set and running state.
type Session struct {
	mu sync.Mutex

	ID        ID
	cfg       Config
	createdAt time.Time

	mfccExtractor *mfcc.Extractor
	vadDetector   *vad.Detector
	aligner       *dtw.Aligner
	levelMeter    *level.Meter
	scorerState   *scorer.Scorer

	vadEnabled bool

	carry []float32 // samples retained across chunk boundaries

	features        [][]float32
	framesObserved  uint64
	firstVoiceFrame int64 // -1 until set
	lastVoiceFrame  int64

	sumSquares  float64
	sampleCount uint64

	masterName   string
	masterData   *mastercall.Data
	hasMaster    bool

	lastSimilarity scorer.Score

	enhancedAnalyzersEnabled bool

	recorder *recorder.Recorder // recording surface (spec §4.8)
	player   *player.Player     // playback surface (spec §4.8)

	inflight sync.WaitGroup // tracks an in-progress pipeline call, for safe destroy
}

// New constructs a Session with all analyzers wired to cfg.
func New(id ID, cfg Config) (*Session, error) {
	if cfg.SampleRateHz <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidParams, "session", "sample_rate_hz", cfg.SampleRateHz)
	}

	mfccExtractor, err := mfcc.New(cfg.MFCC)
	if err != nil {
		return nil, err
	}
	levelMeter, err := level.New(cfg.Level, 0)
	if err != nil {
		return nil, err
	}

	recordingCap := cfg.RecordingMaxSamples
	if recordingCap <= 0 {
		recordingCap = cfg.SampleRateHz * 30 // default: 30s mirror
	}
	rec, err := recorder.New(recorder.Config{MaxSamples: recordingCap, Mode: recorder.ModeMemory})
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:              id,
		cfg:             cfg,
		createdAt:       time.Now(),
		mfccExtractor:   mfccExtractor,
		vadDetector:     vad.New(cfg.VAD),
		aligner:         dtw.New(cfg.DTW),
		levelMeter:      levelMeter,
		scorerState:     scorer.New(cfg.Scorer),
		vadEnabled:      cfg.VADEnabled,
		firstVoiceFrame: -1,
		lastVoiceFrame:  -1,
		recorder:        rec,
		player:          player.New(),
	}
	return s, nil
}

// Config returns the session's construction-time configuration.
func (s *Session) Config() Config { return s.cfg }

// Lock/Unlock expose the per-session exclusion the engine uses to
// serialize pipeline invocations (spec §5).
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// BeginPipeline and EndPipeline bracket a process_audio_chunk call so
// Drain (used by destroy_session) can wait for any in-flight invocation
// to complete before tearing the session down (spec §4.8.1 cancellation).
func (s *Session) BeginPipeline() { s.inflight.Add(1) }
func (s *Session) EndPipeline()   { s.inflight.Done() }

// Drain waits for any in-flight pipeline call to finish.
func (s *Session) Drain() { s.inflight.Wait() }

// SetEnhancedAnalyzersEnabled toggles whether enhanced (pitch/harmonic/
// tempo) analysis is considered active for this session's summary view.
// The analyzers themselves are out of scope (spec §6); this flag only
// controls what enhanced_analysis_summary reports.
func (s *Session) SetEnhancedAnalyzersEnabled(enabled bool) { s.enhancedAnalyzersEnabled = enabled }

// EnhancedAnalyzersEnabled reports the current flag set by
// SetEnhancedAnalyzersEnabled.
func (s *Session) EnhancedAnalyzersEnabled() bool { return s.enhancedAnalyzersEnabled }

// SetVADEnabled toggles VAD gating for subsequent chunks.
func (s *Session) SetVADEnabled(enabled bool) { s.vadEnabled = enabled }

// VADEnabled reports whether VAD gating is active.
func (s *Session) VADEnabled() bool { return s.vadEnabled }

// Carry returns (without clearing) the sample-carry buffer, used by the pipeline
// to retain samples straddling chunk boundaries.
func (s *Session) Carry() []float32 { return s.carry }

// SetCarry replaces the sample-carry buffer.
func (s *Session) SetCarry(samples []float32) { s.carry = samples }

// AppendFeature appends a frame's MFCC vector to the session's feature
// sequence and updates voice-frame bookkeeping.
func (s *Session) AppendFeature(vec []float32) {
	s.features = append(s.features, vec)
	s.framesObserved++
	idx := int64(len(s.features) - 1)
	if s.firstVoiceFrame < 0 {
		s.firstVoiceFrame = idx
	}
	s.lastVoiceFrame = idx
}

// Features returns the full session feature sequence.
func (s *Session) Features() [][]float32 { return s.features }

// SlidingFeatures returns the last up-to-W frames of the session feature
// sequence, bounding the DTW cost matrix as the session grows (spec
// §4.8.1 step 7, the pinned sliding-window policy).
func (s *Session) SlidingFeatures() [][]float32 {
	w := s.cfg.SlidingWindowSize
	if w <= 0 || len(s.features) <= w {
		return s.features
	}
	return s.features[len(s.features)-w:]
}

// FeatureCount returns the number of feature frames recorded so far.
func (s *Session) FeatureCount() int { return len(s.features) }

// AccumulateRMS folds a chunk's samples into the session-level running
// sum-of-squares (spec §4.8.1 step 3), used for finalize-time RMS.
func (s *Session) AccumulateRMS(samples []float32) {
	for _, v := range samples {
		s.sumSquares += float64(v) * float64(v)
	}
	s.sampleCount += uint64(len(samples))
}

// SessionRMS returns sqrt(mean(x^2)) over every sample seen so far, or 0
// if none.
func (s *Session) SessionRMS() float64 {
	if s.sampleCount == 0 {
		return 0
	}
	return sqrt(s.sumSquares / float64(s.sampleCount))
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// SessionDurationSeconds returns elapsed wall-clock time since creation,
// used as the numerator of the progress ratio.
func (s *Session) SessionDurationSeconds() float64 {
	return time.Since(s.createdAt).Seconds()
}

// SetMaster associates loaded master-call data with this session.
func (s *Session) SetMaster(name string, data *mastercall.Data) {
	s.masterName = name
	s.masterData = data
	s.hasMaster = true
	s.scorerState.SetMasterDuration(data.DurationSecond)
}

// UnloadMaster drops the session's master association.
func (s *Session) UnloadMaster() {
	s.masterName = ""
	s.masterData = nil
	s.hasMaster = false
}

// HasMaster reports whether a master call is currently loaded.
func (s *Session) HasMaster() bool { return s.hasMaster }

// MasterName returns the currently loaded master call's logical id.
func (s *Session) MasterName() string { return s.masterName }

// MasterData returns the currently loaded master's feature data, or nil.
func (s *Session) MasterData() *mastercall.Data { return s.masterData }

// MFCC returns the session's MFCC extractor.
func (s *Session) MFCC() *mfcc.Extractor { return s.mfccExtractor }

// VAD returns the session's VAD detector.
func (s *Session) VAD() *vad.Detector { return s.vadDetector }

// Aligner returns the session's DTW aligner.
func (s *Session) Aligner() *dtw.Aligner { return s.aligner }

// Level returns the session's level meter.
func (s *Session) Level() *level.Meter { return s.levelMeter }

// Scorer returns the session's scorer state.
func (s *Session) Scorer() *scorer.Scorer { return s.scorerState }

// LastSimilarity returns the most recently computed composite score.
func (s *Session) LastSimilarity() scorer.Score { return s.lastSimilarity }

// SetLastSimilarity records the most recently computed composite score.
func (s *Session) SetLastSimilarity(score scorer.Score) { s.lastSimilarity = score }

// FramesObserved returns the total number of MFCC frames appended.
func (s *Session) FramesObserved() uint64 { return s.framesObserved }

// VoiceFrameRange returns the first/last voiced-frame indices, or
// (-1,-1) if none have been observed yet.
func (s *Session) VoiceFrameRange() (first, last int64) {
	return s.firstVoiceFrame, s.lastVoiceFrame
}

// Reset clears per-run analysis state but keeps the master association
// (spec §4.6's reset semantics, applied at the session level).
func (s *Session) Reset() {
	s.features = nil
	s.framesObserved = 0
	s.firstVoiceFrame = -1
	s.lastVoiceFrame = -1
	s.sumSquares = 0
	s.sampleCount = 0
	s.carry = nil
	s.lastSimilarity = scorer.Score{}
	s.scorerState.Reset()
}

// ResetSession clears per-run state and also drops the master (spec
// §4.6's reset_session semantics).
func (s *Session) ResetSession() {
	s.Reset()
	s.UnloadMaster()
}

// Recorder returns the session's recording-surface mirror (spec §4.8).
func (s *Session) Recorder() *recorder.Recorder { return s.recorder }

// Player returns the session's playback-surface state tracker (spec §4.8).
func (s *Session) Player() *player.Player { return s.player }

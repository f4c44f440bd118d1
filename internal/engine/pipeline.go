package engine

import (
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/logging"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/session"
)

// ProcessAudioChunk is the main pipeline entry point (spec §4.8.1): level
// metering, VAD gating, framing, MFCC extraction, and DTW/scorer update.
// Empty samples is a no-op success. Processing for one session is
// strictly sequential; Session.Lock enforces that no two callers mutate
// the same session concurrently (spec §5).
func (e *Engine) ProcessAudioChunk(id session.ID, samples []float32) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	s.BeginPipeline()
	defer s.EndPipeline()

	s.Lock()
	defer s.Unlock()

	s.Level().Process(samples)
	s.AccumulateRMS(samples)
	s.Recorder().Write(samples)

	windows := e.classifyWindows(s, samples)

	cfg := s.Config()
	frameSize := cfg.MFCC.FrameSize
	hop := cfg.HopSize
	if hop <= 0 {
		hop = frameSize / 2
	}

	for _, w := range windows {
		if !w.active {
			continue
		}
		e.extractFramesFromWindow(s, w.samples, frameSize, hop)
	}

	if s.HasMaster() && s.FeatureCount() > 0 {
		e.updateScore(s)
	}

	return nil
}

type window struct {
	samples []float32
	active  bool
}

// classifyWindows runs VAD (if enabled) over the whole chunk and returns a
// single window covering it, tagged active/inactive; a VAD error marks it
// inactive. When VAD is disabled, the whole chunk is a single active
// window (spec §4.8.1 step 4).
func (e *Engine) classifyWindows(s *session.Session, samples []float32) []window {
	if !s.VADEnabled() {
		return []window{{samples: samples, active: true}}
	}

	result, err := s.VAD().Process(samples)
	if err != nil {
		logging.Warn("vad classification failed", "session_id", string(s.ID), "error", err)
		return []window{{samples: samples, active: false}}
	}
	return []window{{samples: samples, active: result.IsActive}}
}

// extractFramesFromWindow forms frames at hop H from the session's
// sample-carry buffer (spec §4.8.1 step 5), extracting MFCC per frame.
// Non-finite or otherwise failed frames are logged and skipped without
// propagating (spec §7 local-recovery policy); the chunk still returns
// Ok to the caller.
func (e *Engine) extractFramesFromWindow(s *session.Session, samples []float32, frameSize, hop int) {
	buffer := append(s.Carry(), samples...)

	offset := 0
	for offset+frameSize <= len(buffer) {
		frame := buffer[offset : offset+frameSize]
		vec, err := s.MFCC().Extract(frame)
		if err != nil {
			logging.Warn("mfcc frame extraction failed", "session_id", string(s.ID), "error", err)
		} else {
			s.AppendFeature(vec)
		}
		offset += hop
	}

	s.SetCarry(append([]float32(nil), buffer[offset:]...))
}

// updateScore computes DTW distance between the session's sliding
// feature window and the full master sequence, then blends subscores via
// the scorer (spec §4.8.1 step 7).
func (e *Engine) updateScore(s *session.Session) {
	master := s.MasterData()
	sliding := s.SlidingFeatures()

	dist := s.Aligner().Compare(sliding, master.Features)

	score := s.Scorer().Update(
		dist,
		s.SessionRMS(),
		master.RMSEstimate,
		s.FeatureCount(),
		master.NumFrames(),
		int(s.FramesObserved()),
		s.SessionDurationSeconds(),
	)
	s.SetLastSimilarity(score)
}

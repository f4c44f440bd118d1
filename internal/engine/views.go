package engine

import (
	"math"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/scorer"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/session"
)

// CoachingFeedback is the view returned by coaching_feedback (spec §6).
type CoachingFeedback struct {
	Quality        string
	Recommendation string
	IsImproving    bool
}

// SimilarityScoresSnapshot is the view returned by
// similarity_scores_snapshot (spec §6).
type SimilarityScoresSnapshot struct {
	Current       scorer.Score
	Trending      float64
	Peak          float64
	Progress      float64
	IsReliable    bool
	IsMatch       bool
}

// WaveformOverlayPoint is one downsampled entry in a waveform overlay
// (spec §6's waveform_overlay_data).
type WaveformOverlayPoint struct {
	Sample   float32
	PeakHold float32
	RMS      float32
}

// EnhancedAnalysisSummary aggregates the optional pitch/harmonic/tempo
// confidences (spec §6). Enhanced analyzers are out of scope for this
// engine; the fields are always zero-valued here and exposed only so the
// view shape matches what a caller expects when enhanced analyzers are
// layered on top.
type EnhancedAnalysisSummary struct {
	Enabled            bool
	PitchConfidence    float64
	HarmonicConfidence float64
	TempoConfidence    float64
}

// SetEnhancedAnalyzersEnabled toggles whether enhanced_analysis_summary
// reports itself as enabled.
func (e *Engine) SetEnhancedAnalyzersEnabled(id session.ID, enabled bool) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.SetEnhancedAnalyzersEnabled(enabled)
	return nil
}

// EnhancedAnalysisSummary returns the session's enhanced-analyzer view.
func (e *Engine) EnhancedAnalysisSummary(id session.ID) (EnhancedAnalysisSummary, error) {
	s, err := e.lookup(id)
	if err != nil {
		return EnhancedAnalysisSummary{}, err
	}
	s.Lock()
	defer s.Unlock()
	return EnhancedAnalysisSummary{Enabled: s.EnhancedAnalyzersEnabled()}, nil
}

// CoachingFeedback assembles the qualitative coaching view (spec §6).
func (e *Engine) CoachingFeedback(id session.ID) (CoachingFeedback, error) {
	s, err := e.lookup(id)
	if err != nil {
		return CoachingFeedback{}, err
	}
	s.Lock()
	defer s.Unlock()

	if !s.HasMaster() {
		return CoachingFeedback{}, errors.WrapSentinel(errors.ErrNoMasterCall, "engine", "session_id", string(id))
	}

	fb := s.Scorer().Feedback()
	return CoachingFeedback{
		Quality:        fb.QualityAssessment,
		Recommendation: fb.Recommendation,
		IsImproving:    fb.IsImproving,
	}, nil
}

// RealtimeSimilarityState returns the current composite score plus the
// reliability/match flags, the minimal live view a UI polls every chunk.
func (e *Engine) RealtimeSimilarityState(id session.ID) (scorer.Score, error) {
	return e.SimilarityScore(id)
}

// SimilarityScoresSnapshot assembles current/trending/peak/progress and
// flags (spec §6).
func (e *Engine) SimilarityScoresSnapshot(id session.ID) (SimilarityScoresSnapshot, error) {
	s, err := e.lookup(id)
	if err != nil {
		return SimilarityScoresSnapshot{}, err
	}
	s.Lock()
	defer s.Unlock()

	if !s.HasMaster() {
		return SimilarityScoresSnapshot{}, errors.WrapSentinel(errors.ErrNoMasterCall, "engine", "session_id", string(id))
	}

	fb := s.Scorer().Feedback()
	current := s.LastSimilarity()
	return SimilarityScoresSnapshot{
		Current:    current,
		Trending:   fb.Trending.Overall,
		Peak:       fb.Peak.Overall,
		Progress:   fb.ProgressRatio,
		IsReliable: current.IsReliable,
		IsMatch:    current.IsMatch,
	}, nil
}

// WaveformOverlayData downsamples the session's bounded recording ring to
// at most maxPoints entries (spec §6). The overlay derives from whatever
// has been captured via the recording surface; an empty recording yields
// an empty slice rather than an error.
func (e *Engine) WaveformOverlayData(id session.ID, maxPoints int) ([]WaveformOverlayPoint, error) {
	s, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	if maxPoints <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidParams, "engine", "max_points", maxPoints)
	}

	s.Lock()
	recorded := s.Recorder().Snapshot()
	s.Unlock()

	if len(recorded) == 0 {
		return nil, nil
	}

	bucket := len(recorded) / maxPoints
	if bucket < 1 {
		bucket = 1
	}

	var points []WaveformOverlayPoint
	for start := 0; start < len(recorded); start += bucket {
		end := start + bucket
		if end > len(recorded) {
			end = len(recorded)
		}
		var sumSquares float64
		var peak float32
		for _, v := range recorded[start:end] {
			av := v
			if av < 0 {
				av = -av
			}
			if av > peak {
				peak = av
			}
			sumSquares += float64(v) * float64(v)
		}
		rms := float32(0)
		if n := end - start; n > 0 {
			rms = float32(math.Sqrt(sumSquares / float64(n)))
		}
		points = append(points, WaveformOverlayPoint{
			Sample:   recorded[start],
			PeakHold: peak,
			RMS:      rms,
		})
		if len(points) >= maxPoints {
			break
		}
	}
	return points, nil
}

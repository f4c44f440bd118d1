// Package scorer implements the realtime composite scorer (spec §4.6,
// component C6): blends MFCC-DTW similarity with volume, timing, and pitch
// subscores into a confidence-weighted overall score with trend and peak
// tracking. The subscore formulas are grounded on the original
// RealtimeScorer.cpp.
package scorer

import (
	"math"
	"time"
)

// Config holds the scorer's weights and thresholds (spec §4.6 / §6).
type Config struct {
	WeightMFCC              float64
	WeightVolume            float64
	WeightTiming            float64
	WeightPitch             float64
	ConfidenceThreshold     float64
	MinScoreForMatch        float64
	DTWDistanceScaling      float64
	MinSamplesForConfidence int
	ScoringHistorySize      int
	VolumeTolerance         float64

	// FinalizeFallbackThreshold is the minimum acceptable reported score
	// when finalize_session_analysis is called (spec §9's pinned Open
	// Question): if the computed score is below this, the fallback value
	// is substituted and FinalizeFallbackUsed is set.
	FinalizeFallbackThreshold float64
}

// Score is the composite similarity result for one update (spec §6's
// similarity_score / similarity_scores_snapshot field list).
type Score struct {
	Overall         float64
	MFCC            float64
	Volume          float64
	Timing          float64
	Pitch           float64
	Confidence      float64
	IsReliable      bool
	IsMatch         bool
	SamplesAnalyzed int
	Timestamp       time.Time
}

// Feedback is the qualitative view assembled for a UI dashboard (spec §6's
// coaching_feedback fields, plus trend/peak/progress).
type Feedback struct {
	Current            Score
	Trending           Score
	Peak               Score
	ProgressRatio      float64
	QualityAssessment  string
	Recommendation     string
	IsImproving        bool
}

// FinalizeResult is returned by Finalize.
type FinalizeResult struct {
	Score               Score
	FinalizeFallbackUsed bool
}

// Scorer accumulates scoring history for one session. It is not safe for
// concurrent use; the engine serializes per-session mutation (spec §5).
type Scorer struct {
	cfg Config

	history []Score // most recent first, bounded to cfg.ScoringHistorySize
	current Score
	peak    Score

	masterDurationSeconds float64
	sessionDurationSeconds float64
}

// New creates a Scorer for one session.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// SetMasterDuration records the master call's duration for progress
// tracking (spec §4.6's Progress formula).
func (s *Scorer) SetMasterDuration(seconds float64) {
	s.masterDurationSeconds = seconds
}

// Update computes a new composite Score from the current subscore inputs
// and appends it to the trend history.
func (s *Scorer) Update(dtwDistance float64, sessionRMS, masterRMS float64, sessionFeatureCount, masterFeatureCount int, samplesAnalyzed int, sessionDurationSeconds float64) Score {
	s.sessionDurationSeconds = sessionDurationSeconds

	score := Score{
		SamplesAnalyzed: samplesAnalyzed,
		Timestamp:       time.Now(),
	}

	score.MFCC = s.mfccSubscore(dtwDistance)
	score.Volume = s.volumeSubscore(sessionRMS, masterRMS)
	score.Timing = s.timingSubscore(sessionFeatureCount, masterFeatureCount)
	score.Pitch = 0.5 // neutral until pitch analysis is implemented, spec §4.6

	score.Overall = s.cfg.WeightMFCC*score.MFCC +
		s.cfg.WeightVolume*score.Volume +
		s.cfg.WeightTiming*score.Timing +
		s.cfg.WeightPitch*score.Pitch

	signalQuality := clamp01(10 * sessionRMS)
	score.Confidence = s.confidence(samplesAnalyzed, signalQuality)
	score.IsReliable = score.Confidence >= s.cfg.ConfidenceThreshold
	score.IsMatch = score.Overall >= s.cfg.MinScoreForMatch

	s.current = score
	if score.Overall > s.peak.Overall {
		s.peak = score
	}

	s.history = append([]Score{score}, s.history...)
	limit := s.cfg.ScoringHistorySize
	if limit <= 0 {
		limit = 50
	}
	if len(s.history) > limit {
		s.history = s.history[:limit]
	}

	return score
}

// mfccSubscore implements s_mfcc = max(0, 1/(1+k*dtw_distance)).
func (s *Scorer) mfccSubscore(dtwDistance float64) float64 {
	k := s.cfg.DTWDistanceScaling
	if k == 0 {
		k = 10
	}
	v := 1 / (1 + k*dtwDistance)
	return math.Max(0, v)
}

// volumeSubscore implements the tolerance/exponential-decay split from
// spec §4.6.
func (s *Scorer) volumeSubscore(sessionRMS, masterRMS float64) float64 {
	if masterRMS <= 0 {
		return 0
	}
	tolerance := s.cfg.VolumeTolerance
	if tolerance <= 0 {
		tolerance = 0.3
	}
	ratio := sessionRMS / masterRMS
	d := math.Abs(1 - ratio)
	if d <= tolerance {
		return 1 - d/tolerance
	}
	return math.Exp(-2 * (d - tolerance))
}

// timingSubscore implements the length-ratio proxy.
func (s *Scorer) timingSubscore(sessionLen, masterLen int) float64 {
	if sessionLen == 0 && masterLen == 0 {
		return 0.5
	}
	if masterLen == 0 {
		return 0.5
	}
	ratio := float64(sessionLen) / float64(masterLen)
	return clamp01(1 - math.Abs(1-ratio))
}

// confidence implements conf = sqrt(clamp(samples/min,0,1) * clamp(quality,0,1)).
func (s *Scorer) confidence(samplesAnalyzed int, signalQuality float64) float64 {
	minSamples := s.cfg.MinSamplesForConfidence
	if minSamples <= 0 {
		minSamples = 1
	}
	quantity := clamp01(float64(samplesAnalyzed) / float64(minSamples))
	quality := clamp01(signalQuality)
	return math.Sqrt(quantity * quality)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Current returns the last computed score.
func (s *Scorer) Current() Score { return s.current }

// Peak returns the highest overall score seen since the last Reset.
func (s *Scorer) Peak() Score { return s.peak }

// History returns a snapshot of the scoring history, most recent first.
func (s *Scorer) History(maxCount int) []Score {
	n := len(s.history)
	if maxCount > 0 && maxCount < n {
		n = maxCount
	}
	out := make([]Score, n)
	copy(out, s.history)
	return out
}

// ProgressRatio implements min(1, session_duration/master_duration).
func (s *Scorer) ProgressRatio() float64 {
	if s.masterDurationSeconds <= 0 {
		return 0
	}
	return math.Min(1, s.sessionDurationSeconds/s.masterDurationSeconds)
}

// IsTrendingUp compares the mean of the 3 most recent scores to the mean
// of the 3 before that, true when the recent mean exceeds the older by at
// least 10%.
func (s *Scorer) IsTrendingUp() bool {
	if len(s.history) < 6 {
		return false
	}
	recentCount := min(3, len(s.history))
	olderCount := min(3, len(s.history)-recentCount)
	if olderCount == 0 {
		return false
	}

	var recentSum, olderSum float64
	for i := 0; i < recentCount; i++ {
		recentSum += s.history[i].Overall
	}
	recentAvg := recentSum / float64(recentCount)

	for i := recentCount; i < recentCount+olderCount; i++ {
		olderSum += s.history[i].Overall
	}
	olderAvg := olderSum / float64(olderCount)

	return recentAvg >= olderAvg*1.1
}

// Feedback assembles the realtime coaching view (spec §6 coaching_feedback
// + trend fields).
func (s *Scorer) Feedback() Feedback {
	trendCount := min(5, len(s.history))
	trending := s.current
	if trendCount > 0 {
		var sum float64
		for i := 0; i < trendCount; i++ {
			sum += s.history[i].Overall
		}
		trending.Overall = sum / float64(trendCount)
	}

	fb := Feedback{
		Current:       s.current,
		Trending:      trending,
		Peak:          s.peak,
		ProgressRatio: s.ProgressRatio(),
		IsImproving:   s.IsTrendingUp(),
	}

	fb.QualityAssessment, fb.Recommendation = s.assessment(s.current)
	return fb
}

// assessment implements the piecewise feedback strings and recommendation
// logic of spec §4.6.
func (s *Scorer) assessment(score Score) (quality, recommendation string) {
	switch {
	case score.Overall >= 0.020:
		quality = "Excellent match"
	case score.Overall >= 0.010:
		quality = "Very good"
	case score.Overall >= 0.005:
		quality = "Good"
	case score.Overall >= 0.002:
		quality = "Fair"
	default:
		quality = "Needs improvement"
	}

	if score.Overall >= s.cfg.MinScoreForMatch {
		switch {
		case score.MFCC < score.Volume:
			recommendation = "Good volume matching! Focus on call pattern and timing."
		case score.Volume < score.MFCC:
			recommendation = "Good call pattern! Adjust your volume level."
		default:
			recommendation = "Excellent technique! Keep it consistent."
		}
	} else {
		switch {
		case score.MFCC < 0.002:
			recommendation = "Focus on matching the call pattern and pitch contour."
		case score.Volume < 0.5:
			recommendation = "Adjust your volume to better match the master call."
		default:
			recommendation = "Work on timing and overall consistency."
		}
	}
	return quality, recommendation
}

// Reset clears per-run state (history, current, peak) but keeps
// per-session config; Finalize/Engine handle keeping or dropping the
// master separately (spec §4.6).
func (s *Scorer) Reset() {
	s.history = nil
	s.current = Score{}
	s.peak = Score{}
	s.sessionDurationSeconds = 0
}

// Finalize computes the final reported score, substituting
// FinalizeFallbackThreshold when the computed overall is lower (spec §9 /
// §8 scenario 6).
func (s *Scorer) Finalize() FinalizeResult {
	result := FinalizeResult{Score: s.current}
	if s.current.Overall < s.cfg.FinalizeFallbackThreshold {
		result.Score.Overall = s.cfg.FinalizeFallbackThreshold
		result.FinalizeFallbackUsed = true
	}
	return result
}

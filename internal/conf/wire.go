package conf

import (
	"time"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/bufferpool"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/dtw"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/engine"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/level"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mfcc"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/scorer"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/vad"
)

// EngineDefaults translates the loaded viper settings into the native
// Config types the analyzer packages expect, the seam between the
// config layer and the engine facade (spec §6).
func (s *Settings) EngineDefaults() engine.Defaults {
	return engine.Defaults{
		MFCC: mfcc.Config{
			SampleRateHz:    s.SampleRateHz,
			FrameSize:       s.MFCC.FrameSize,
			NumFilters:      s.MFCC.NumFilters,
			NumCoefficients: s.MFCC.NumCoefficients,
			LowFreq:         s.MFCC.LowFreq,
			HighFreq:        s.MFCC.HighFreq,
		},
		VAD: vad.Config{
			EnergyThreshold:  s.VAD.EnergyThreshold,
			// the *_ms keys hold plain millisecond counts, decoded as raw
			// nanosecond Durations, so scale them here
			WindowDuration:   s.VAD.WindowDuration * time.Millisecond,
			MinSoundDuration: s.VAD.MinSoundDuration * time.Millisecond,
			PreBuffer:        s.VAD.PreBuffer * time.Millisecond,
			PostBuffer:       s.VAD.PostBuffer * time.Millisecond,
		},
		DTW: dtw.Config{
			WindowRatio:       s.DTW.WindowRatio,
			UseWindow:         s.DTW.UseWindow,
			DistanceWeight:    s.DTW.DistanceWeight,
			NormalizeDistance: s.DTW.NormalizeDistance,
			EnableSIMD:        s.DTW.EnableSIMD,
		},
		Scorer: scorer.Config{
			WeightMFCC:                s.Scorer.WeightMFCC,
			WeightVolume:              s.Scorer.WeightVolume,
			WeightTiming:              s.Scorer.WeightTiming,
			WeightPitch:               s.Scorer.WeightPitch,
			ConfidenceThreshold:       s.Scorer.ConfidenceThreshold,
			MinScoreForMatch:          s.Scorer.MinScoreForMatch,
			DTWDistanceScaling:        s.Scorer.DTWDistanceScaling,
			MinSamplesForConfidence:   s.Scorer.MinSamplesForConfidence,
			ScoringHistorySize:        s.Scorer.ScoringHistorySize,
			VolumeTolerance:           s.Scorer.VolumeTolerance,
			FinalizeFallbackThreshold: s.Scorer.FinalizeFallbackThreshold,
		},
		Level: level.Config{
			SampleRateHz:      s.SampleRateHz,
			AttackTimeMs:      s.Level.AttackTimeMs,
			ReleaseTimeMs:     s.Level.ReleaseTimeMs,
			PeakAttackTimeMs:  s.Level.PeakAttackTimeMs,
			PeakReleaseTimeMs: s.Level.PeakReleaseTimeMs,
			FloorDb:           s.Level.FloorDb,
			CeilingDb:         s.Level.CeilingDb,
		},
		HopSize:             s.MFCC.HopSize,
		SlidingWindowSize:   s.DTW.MaxCompareFrames,
		VADEnabledByDefault: s.VAD.Enabled,
		MasterCallsPath:     s.Storage.MasterCallsPath,
		FeaturesPath:        s.Storage.FeaturesPath,
	}
}

// BufferPoolConfig translates the loaded viper settings into the pool's
// native config type.
func (s *Settings) BufferPoolConfig() bufferpool.Config {
	return bufferpool.Config{
		PoolSize:       s.BufferPool.PoolSize,
		BufferSize:     s.BufferPool.BufferSizeBytes / 4, // samples, not bytes
		Alignment:      s.BufferPool.Alignment,
		AcquireTimeout: s.BufferPool.AcquireTimeout,
	}
}

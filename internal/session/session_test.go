package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/dtw"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/level"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mastercall"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mfcc"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/scorer"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/vad"
)

func testConfig() Config {
	return Config{
		SampleRateHz: 44100,
		MFCC: mfcc.Config{
			SampleRateHz:    44100,
			FrameSize:       512,
			NumFilters:      26,
			NumCoefficients: 13,
		},
		VAD: vad.Config{
			EnergyThreshold: 0.01,
		},
		DTW: dtw.Config{
			WindowRatio:       0.1,
			UseWindow:         true,
			DistanceWeight:    1.0,
			NormalizeDistance: true,
		},
		Scorer: scorer.Config{
			WeightMFCC:              0.5,
			WeightVolume:            0.2,
			WeightTiming:            0.2,
			WeightPitch:             0.1,
			ConfidenceThreshold:     0.7,
			MinScoreForMatch:        0.005,
			DTWDistanceScaling:      10,
			MinSamplesForConfidence: 5,
			ScoringHistorySize:      50,
			VolumeTolerance:         0.3,
		},
		Level: level.Config{
			SampleRateHz:      44100,
			AttackTimeMs:      10,
			ReleaseTimeMs:     100,
			PeakAttackTimeMs:  5,
			PeakReleaseTimeMs: 200,
			FloorDb:           -60,
			CeilingDb:         0,
		},
		HopSize:           256,
		SlidingWindowSize: 100,
		VADEnabled:        true,
	}
}

func TestNewRejectsInvalidSampleRate(t *testing.T) {
	cfg := testConfig()
	cfg.SampleRateHz = 0
	_, err := New(NewID(), cfg)
	require.Error(t, err)
}

func TestNewWiresAllAnalyzers(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)

	assert.NotNil(t, s.MFCC())
	assert.NotNil(t, s.VAD())
	assert.NotNil(t, s.Aligner())
	assert.NotNil(t, s.Level())
	assert.NotNil(t, s.Scorer())
}

func TestCarryRoundTrip(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)

	assert.Empty(t, s.Carry())
	s.SetCarry([]float32{1, 2, 3})
	assert.Equal(t, []float32{1, 2, 3}, s.Carry())
}

func TestAppendFeatureTracksVoiceFrameRange(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)

	first, last := s.VoiceFrameRange()
	assert.Equal(t, int64(-1), first)
	assert.Equal(t, int64(-1), last)

	s.AppendFeature(make([]float32, 13))
	s.AppendFeature(make([]float32, 13))

	first, last = s.VoiceFrameRange()
	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(1), last)
	assert.Equal(t, 2, s.FeatureCount())
	assert.EqualValues(t, 2, s.FramesObserved())
}

func TestSlidingFeaturesBoundsToWindow(t *testing.T) {
	cfg := testConfig()
	cfg.SlidingWindowSize = 3
	s, err := New(NewID(), cfg)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		s.AppendFeature(make([]float32, 13))
	}

	assert.Len(t, s.SlidingFeatures(), 3)
	assert.Len(t, s.Features(), 10)
}

func TestAccumulateRMSComputesRootMeanSquare(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)

	s.AccumulateRMS([]float32{1, -1, 1, -1})
	assert.InDelta(t, 1.0, s.SessionRMS(), 1e-9)
}

func TestSessionRMSZeroWithoutSamples(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.SessionRMS())
}

func TestSetAndUnloadMaster(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)
	assert.False(t, s.HasMaster())

	data := &mastercall.Data{Features: [][]float32{{1, 2}}, DurationSecond: 1.5}
	s.SetMaster("turkey_call", data)
	assert.True(t, s.HasMaster())
	assert.Equal(t, "turkey_call", s.MasterName())

	s.UnloadMaster()
	assert.False(t, s.HasMaster())
	assert.Nil(t, s.MasterData())
}

func TestResetKeepsMasterButClearsFeatures(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)

	s.SetMaster("x", &mastercall.Data{Features: [][]float32{{1}}})
	s.AppendFeature(make([]float32, 13))
	s.AccumulateRMS([]float32{1, 1})

	s.Reset()

	assert.Equal(t, 0, s.FeatureCount())
	assert.Equal(t, 0.0, s.SessionRMS())
	assert.True(t, s.HasMaster())
}

func TestResetSessionAlsoDropsMaster(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)

	s.SetMaster("x", &mastercall.Data{Features: [][]float32{{1}}})
	s.ResetSession()

	assert.False(t, s.HasMaster())
}

func TestBeginEndPipelineDrainBlocksUntilComplete(t *testing.T) {
	s, err := New(NewID(), testConfig())
	require.NoError(t, err)

	s.BeginPipeline()
	done := make(chan struct{})
	go func() {
		s.Drain()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Drain returned before EndPipeline")
	default:
	}

	s.EndPipeline()
	<-done
}

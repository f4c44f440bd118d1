package engine

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/bufferpool"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/dtw"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/level"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/mfcc"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/ringbuffer"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/scorer"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/vad"
)

const testSampleRate = 44100

func testDefaults(t *testing.T) Defaults {
	t.Helper()
	return Defaults{
		MFCC: mfcc.Config{
			FrameSize:       512,
			NumFilters:      26,
			NumCoefficients: 13,
		},
		VAD: vad.Config{
			EnergyThreshold:  1e-5,
			MinSoundDuration: 0,
			PostBuffer:       0,
		},
		DTW: dtw.Config{
			WindowRatio:       0.2,
			UseWindow:         true,
			DistanceWeight:    1.0,
			NormalizeDistance: true,
		},
		Scorer: scorer.Config{
			WeightMFCC:                0.5,
			WeightVolume:              0.2,
			WeightTiming:              0.2,
			WeightPitch:               0.1,
			ConfidenceThreshold:       0.7,
			MinScoreForMatch:          0.005,
			DTWDistanceScaling:        10,
			MinSamplesForConfidence:   1,
			ScoringHistorySize:        50,
			VolumeTolerance:           0.3,
			FinalizeFallbackThreshold: 0.70,
		},
		Level: level.Config{
			AttackTimeMs:      10,
			ReleaseTimeMs:     100,
			PeakAttackTimeMs:  5,
			PeakReleaseTimeMs: 200,
			FloorDb:           -60,
			CeilingDb:         0,
		},
		HopSize:           256,
		SlidingWindowSize: 400,
		MasterCallsPath:   t.TempDir(),
		FeaturesPath:      t.TempDir(),
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	pool, err := bufferpool.New(bufferpool.Config{PoolSize: 4, BufferSize: 4096})
	require.NoError(t, err)
	return New(testDefaults(t), pool)
}

// sineWave generates a mono tone so MFCC/DTW/VAD all see real structure.
func sineWave(freqHz float64, seconds float64) []float32 {
	n := int(testSampleRate * seconds)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freqHz*float64(i)/testSampleRate))
	}
	return out
}

func writeWAV(t *testing.T, path string, samples []float32) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, testSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testSampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		v := int(math.Round(float64(s) * 32767.0))
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		buf.Data[i] = v
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func chunked(samples []float32, size int) [][]float32 {
	var out [][]float32
	for i := 0; i < len(samples); i += size {
		end := i + size
		if end > len(samples) {
			end = len(samples)
		}
		out = append(out, samples[i:end])
	}
	return out
}

func TestSelfSimilarityScenario(t *testing.T) {
	e := newTestEngine(t)
	tone := sineWave(440, 1.0)
	writeWAV(t, filepath.Join(e.defaults.MasterCallsPath, "buck_grunt.wav"), tone)

	id, err := e.CreateSession(testSampleRate)
	require.NoError(t, err)
	defer e.DestroySession(id)

	require.NoError(t, e.LoadMasterCall(id, "buck_grunt"))

	for _, c := range chunked(tone, 1024) {
		require.NoError(t, e.ProcessAudioChunk(id, c))
	}

	score, err := e.SimilarityScore(id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score.Overall, 0.95, "identical master/session audio should score near-perfect")
	assert.True(t, score.IsMatch)
	assert.True(t, score.IsReliable)
}

func TestSilenceScenario(t *testing.T) {
	e := newTestEngine(t)
	tone := sineWave(440, 1.0)
	writeWAV(t, filepath.Join(e.defaults.MasterCallsPath, "buck_grunt.wav"), tone)

	id, err := e.CreateSession(testSampleRate)
	require.NoError(t, err)
	defer e.DestroySession(id)

	require.NoError(t, e.ConfigureVAD(id, vad.Config{EnergyThreshold: 0.01}))
	require.NoError(t, e.EnableVAD(id))
	require.NoError(t, e.LoadMasterCall(id, "buck_grunt"))

	silence := make([]float32, testSampleRate*2)
	for _, c := range chunked(silence, 512) {
		require.NoError(t, e.ProcessAudioChunk(id, c))
	}

	count, err := e.FeatureCount(id)
	require.NoError(t, err)
	assert.Zero(t, count, "VAD-gated silence should produce no feature frames")

	score, err := e.SimilarityScore(id)
	require.NoError(t, err)
	assert.Less(t, score.Confidence, 0.7)
}

func TestShortAudioNoMasterScenario(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.CreateSession(testSampleRate)
	require.NoError(t, err)
	defer e.DestroySession(id)

	require.NoError(t, e.DisableVAD(id))
	require.NoError(t, e.ProcessAudioChunk(id, make([]float32, 10)))

	_, err = e.SimilarityScore(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoMasterCall)
}

// TestRingBufferStressFullAtCapacity exercises spec §8 scenario 5: a
// capacity-1024 ring enqueuing 1025 chunks of 512 samples without
// dequeuing fails exactly the 1025th with BufferFull and one overrun.
func TestRingBufferStressFullAtCapacity(t *testing.T) {
	ring, err := ringbuffer.New(1024)
	require.NoError(t, err)

	chunk := make([]float32, 512)
	for i := 0; i < 1024; i++ {
		require.NoError(t, ring.TryEnqueue(chunk, 0.01))
	}

	err = ring.TryEnqueue(chunk, 0.01)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBufferFull)
	assert.EqualValues(t, 1, ring.Stats().Overruns)
}

func TestFinalizeFallback(t *testing.T) {
	e := newTestEngine(t)
	defaults := e.defaults
	defaults.Scorer.FinalizeFallbackThreshold = 0.70
	e.defaults = defaults

	tone := sineWave(440, 1.0)
	writeWAV(t, filepath.Join(e.defaults.MasterCallsPath, "buck_grunt.wav"), tone)

	id, err := e.CreateSession(testSampleRate)
	require.NoError(t, err)
	defer e.DestroySession(id)

	require.NoError(t, e.LoadMasterCall(id, "buck_grunt"))
	// A faint, differently-pitched tone should score well below the
	// fallback threshold: different MFCC envelope, lower volume match.
	mismatched := sineWave(1200, 1.0)
	for i := range mismatched {
		mismatched[i] *= 0.05
	}
	for _, c := range chunked(mismatched, 1024) {
		require.NoError(t, e.ProcessAudioChunk(id, c))
	}

	result, err := e.FinalizeSessionAnalysis(id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Score.Overall, 0.70)
	if result.Score.Overall == 0.70 {
		assert.True(t, result.FinalizeFallbackUsed)
	}
}

func TestRecordingAndPlaybackSurface(t *testing.T) {
	e := newTestEngine(t)
	tone := sineWave(440, 1.0)
	writeWAV(t, filepath.Join(e.defaults.MasterCallsPath, "buck_grunt.wav"), tone)

	id, err := e.CreateSession(testSampleRate)
	require.NoError(t, err)
	defer e.DestroySession(id)

	require.NoError(t, e.LoadMasterCall(id, "buck_grunt"))

	recording, err := e.IsRecording(id)
	require.NoError(t, err)
	assert.False(t, recording)

	require.NoError(t, e.StartRecording(id))
	require.NoError(t, e.ProcessAudioChunk(id, tone[:2048]))

	recording, err = e.IsRecording(id)
	require.NoError(t, err)
	assert.True(t, recording)

	require.NoError(t, e.StopRecording(id))
	saved, err := e.SaveRecording(id)
	require.NoError(t, err)
	assert.Len(t, saved, 2048)

	require.NoError(t, e.PlayMasterCall(id))
	playing, err := e.IsPlaying(id)
	require.NoError(t, err)
	assert.True(t, playing)

	require.NoError(t, e.SetPlaybackVolume(id, 0.5))
	require.NoError(t, e.StopPlayback(id))
	playing, err = e.IsPlaying(id)
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestDestroySessionNotFound(t *testing.T) {
	e := newTestEngine(t)
	err := e.DestroySession("nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

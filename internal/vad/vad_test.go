package vad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{
		EnergyThreshold:  0.01,
		WindowDuration:   20 * time.Millisecond,
		MinSoundDuration: 40 * time.Millisecond,
		PreBuffer:        100 * time.Millisecond,
		PostBuffer:       60 * time.Millisecond,
	}
}

func loudWindow() []float32 {
	w := make([]float32, 32)
	for i := range w {
		w[i] = 0.5
	}
	return w
}

func quietWindow() []float32 {
	return make([]float32, 32)
}

func TestEmptyWindowIsInvalid(t *testing.T) {
	d := New(defaultConfig())
	_, err := d.Process(nil)
	require.Error(t, err)
}

func TestSilenceToVoicedToHangoverToSilence(t *testing.T) {
	d := New(defaultConfig())
	assert.Equal(t, Silence, d.State())

	t.Run("silence to candidate", func(t *testing.T) {
		res, err := d.Process(loudWindow())
		require.NoError(t, err)
		assert.Equal(t, Candidate, d.State())
		assert.False(t, res.IsActive)
	})

	t.Run("candidate to voiced after min duration", func(t *testing.T) {
		_, err := d.Process(loudWindow())
		require.NoError(t, err)
		assert.Equal(t, Voiced, d.State())
	})

	t.Run("voiced to hangover on quiet window", func(t *testing.T) {
		res, err := d.Process(quietWindow())
		require.NoError(t, err)
		assert.Equal(t, Hangover, d.State())
		assert.True(t, res.IsActive)
	})

	t.Run("hangover back to voiced if energy returns", func(t *testing.T) {
		_, err := d.Process(loudWindow())
		require.NoError(t, err)
		assert.Equal(t, Voiced, d.State())
	})
}

func TestHangoverExpiresToSilence(t *testing.T) {
	d := New(defaultConfig())
	_, _ = d.Process(loudWindow())
	_, _ = d.Process(loudWindow()) // now Voiced
	require.Equal(t, Voiced, d.State())

	_, _ = d.Process(quietWindow()) // Hangover, timer = 60ms
	require.Equal(t, Hangover, d.State())

	// PostBuffer is 60ms, window is 20ms: 3 more quiet windows exhaust it.
	_, _ = d.Process(quietWindow())
	_, _ = d.Process(quietWindow())
	_, err := d.Process(quietWindow())
	require.NoError(t, err)
	assert.Equal(t, Silence, d.State())
}

func TestCandidateDropsBackToSilence(t *testing.T) {
	d := New(defaultConfig())
	_, _ = d.Process(loudWindow())
	assert.Equal(t, Candidate, d.State())

	_, _ = d.Process(quietWindow())
	assert.Equal(t, Silence, d.State())
}

func TestResetZeroesState(t *testing.T) {
	d := New(defaultConfig())
	_, _ = d.Process(loudWindow())
	_, _ = d.Process(loudWindow())
	require.Equal(t, Voiced, d.State())

	d.Reset()
	assert.Equal(t, Silence, d.State())
}

func TestEntirelySilentInputNeverActivates(t *testing.T) {
	d := New(defaultConfig())
	for range 20 {
		res, err := d.Process(quietWindow())
		require.NoError(t, err)
		assert.False(t, res.IsActive)
	}
	assert.Equal(t, Silence, d.State())
}

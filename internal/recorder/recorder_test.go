package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsZeroCapacity(t *testing.T) {
	_, err := New(Config{MaxSamples: 0})
	require.Error(t, err)
}

func TestInactiveByDefault(t *testing.T) {
	r, err := New(Config{MaxSamples: 128})
	require.NoError(t, err)
	assert.False(t, r.IsRecording())

	r.Write([]float32{1, 2, 3})
	assert.Empty(t, r.Snapshot(), "writes while inactive must be dropped")
}

func TestStartWriteSnapshotFlush(t *testing.T) {
	r, err := New(Config{MaxSamples: 8})
	require.NoError(t, err)

	r.Start(nil)
	assert.True(t, r.IsRecording())

	samples := []float32{0.1, 0.2, 0.3, 0.4}
	r.Write(samples)

	snap := r.Snapshot()
	assert.Equal(t, samples, snap)

	flushed := r.Flush()
	require.Len(t, flushed, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], flushed[i], 1e-6)
	}

	// Flush drains the save-path ring but not the overlay snapshot.
	assert.Equal(t, samples, r.Snapshot())
	assert.Empty(t, r.Flush())
}

func TestStopPreservesBufferedSamples(t *testing.T) {
	r, err := New(Config{MaxSamples: 8})
	require.NoError(t, err)

	r.Start(nil)
	r.Write([]float32{1, 2})
	r.Stop()
	assert.False(t, r.IsRecording())

	assert.Equal(t, []float32{1, 2}, r.Flush())
}

func TestOverlayBoundedToCapacity(t *testing.T) {
	r, err := New(Config{MaxSamples: 4})
	require.NoError(t, err)
	r.Start(nil)

	for i := 0; i < 10; i++ {
		r.Write([]float32{float32(i)})
	}

	snap := r.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, []float32{6, 7, 8, 9}, snap)
}

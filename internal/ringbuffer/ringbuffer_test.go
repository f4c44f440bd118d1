package ringbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	t.Run("odd capacity", func(t *testing.T) {
		_, err := New(3)
		require.Error(t, err)
	})
	t.Run("too small", func(t *testing.T) {
		_, err := New(1)
		require.Error(t, err)
	})
	t.Run("valid capacity", func(t *testing.T) {
		rb, err := New(1024)
		require.NoError(t, err)
		assert.Equal(t, 1024, rb.Capacity())
	})
}

func TestEnqueueDequeueOrder(t *testing.T) {
	rb, err := New(8)
	require.NoError(t, err)

	for i := range 4 {
		samples := make([]float32, 4)
		for j := range samples {
			samples[j] = float32(i)
		}
		require.NoError(t, rb.TryEnqueue(samples, 0.001))
	}

	for i := range 4 {
		chunk, err := rb.TryDequeue()
		require.NoError(t, err)
		assert.Equal(t, uint64(i), chunk.FrameIndex)
		assert.Equal(t, float32(i), chunk.Samples[0])
	}

	_, err = rb.TryDequeue()
	assert.Error(t, err)
}

func TestRingBufferStress(t *testing.T) {
	// Mirrors spec §8 scenario 5: capacity 1024, enqueue 1025 chunks
	// without dequeuing; the 1025th fails BufferFull, overruns == 1.
	rb, err := New(1024)
	require.NoError(t, err)

	samples := make([]float32, 512)
	for i := range 1024 {
		require.NoError(t, rb.TryEnqueue(samples, 0.001), "enqueue %d", i)
	}

	err = rb.TryEnqueue(samples, 0.001)
	require.Error(t, err)
	assert.Equal(t, uint64(1), rb.Stats().Overruns)

	for i := range 1024 {
		chunk, err := rb.TryDequeue()
		require.NoError(t, err)
		assert.Equal(t, uint64(i), chunk.FrameIndex)
	}
}

func TestTryEnqueueInvalidSize(t *testing.T) {
	rb, err := New(4)
	require.NoError(t, err)

	oversized := make([]float32, ChunkMax+1)
	err = rb.TryEnqueue(oversized, 0.001)
	assert.Error(t, err)
}

func TestWaitForDataTimesOut(t *testing.T) {
	rb, err := New(4)
	require.NoError(t, err)

	start := time.Now()
	ok := rb.WaitForData(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitForDataSignaled(t *testing.T) {
	rb, err := New(4)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = rb.TryEnqueue([]float32{1, 2, 3}, 0.001)
		close(done)
	}()

	ok := rb.WaitForData(500 * time.Millisecond)
	assert.True(t, ok)
	<-done
}

func TestOccupancyInvariant(t *testing.T) {
	rb, err := New(16)
	require.NoError(t, err)

	for i := range 10 {
		require.NoError(t, rb.TryEnqueue([]float32{float32(i)}, 0.001))
		assert.LessOrEqual(t, rb.Occupancy(), rb.Capacity())
	}
}

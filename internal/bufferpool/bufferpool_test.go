package bufferpool

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

func testConfig() Config {
	return Config{PoolSize: 2, BufferSize: 16, AcquireTimeout: 50 * time.Millisecond}
}

func TestNewRejectsZeroSizes(t *testing.T) {
	_, err := New(Config{PoolSize: 0, BufferSize: 16})
	require.Error(t, err)

	_, err = New(Config{PoolSize: 2, BufferSize: 0})
	require.Error(t, err)
}

func TestAcquireReturnsUsableBuffer(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, h.Data(), 16)
	assert.Equal(t, 1, p.cfg.PoolSize-p.Available())
}

func TestReleaseReturnsBufferToPool(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h.Release()

	assert.Equal(t, p.cfg.PoolSize, p.Available())
}

func TestDoubleReleaseIsSafe(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h.Release()
	h.Release()

	assert.Equal(t, p.cfg.PoolSize, p.Available())
}

func TestDataAfterReleaseIsNil(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h.Release()

	assert.Nil(t, h.Data())
}

func TestAcquireExhaustionTimesOut(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)

	h1.Release()
	h2.Release()
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		h3, err := p.Acquire(context.Background())
		if err == nil {
			h3.Release()
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	h1.Release()
	h2.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestPeakUsageTracksMaxConcurrentCheckout(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	stats := p.Stats()
	assert.EqualValues(t, 2, stats.PeakUsage)

	h1.Release()
	h2.Release()

	stats = p.Stats()
	assert.EqualValues(t, 2, stats.PeakUsage)
}

func TestResetStatsClearsAllocationCountersNotPeak(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	_, _ = p.Acquire(context.Background()) // fills pool
	_, _ = p.Acquire(context.Background()) // fails, increments failed_allocations

	p.ResetStats()
	stats := p.Stats()
	assert.EqualValues(t, 0, stats.TotalAllocations)
	assert.EqualValues(t, 0, stats.FailedAllocations)
	assert.EqualValues(t, 2, stats.PeakUsage) // re-based to the two buffers still held

	h.Release()
}

func TestTryAcquireNeverBlocks(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h1, err := p.TryAcquire()
	require.NoError(t, err)
	h2, err := p.TryAcquire()
	require.NoError(t, err)

	_, err = p.TryAcquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPoolExhausted)

	h1.Release()
	h2.Release()
}

func TestTryAcquireSucceedsAfterRelease(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	h, err := p.TryAcquire()
	require.NoError(t, err)
	h.Release()

	h2, err := p.TryAcquire()
	require.NoError(t, err)
	assert.Len(t, h2.Data(), 16)
	h2.Release()
}

func TestNewRejectsInvalidAlignment(t *testing.T) {
	_, err := New(Config{PoolSize: 2, BufferSize: 16, Alignment: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidAlignment)

	_, err = New(Config{PoolSize: 2, BufferSize: 16, Alignment: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidAlignment)
}

func TestAlignedBuffersStartOnBoundary(t *testing.T) {
	p, err := New(Config{PoolSize: 4, BufferSize: 16, Alignment: 64})
	require.NoError(t, err)

	for _, buf := range p.buffers {
		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Zero(t, addr%64, "buffer should start on a 64-byte boundary")
	}
}

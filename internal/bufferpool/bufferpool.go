// Package bufferpool implements the fixed-size audio buffer pool (spec
// §5, component supporting C1/C8): a semaphore-gated pool of
// pre-allocated float32 buffers handed out as move-only handles. The
// acquire/release protocol and statistics are grounded on the original
// AudioBufferPool.cpp.
package bufferpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sync/semaphore"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

const float32Size = int(unsafe.Sizeof(float32(0)))

// Config controls pool sizing (spec §6).
type Config struct {
	PoolSize       int
	BufferSize     int // samples per buffer, not bytes
	Alignment      int // bytes; power of two, >= 4. Zero means unaligned.
	AcquireTimeout time.Duration
}

// Stats mirrors the original's BufferPoolStats.
type Stats struct {
	TotalBuffers      int
	AvailableBuffers  int
	PeakUsage         int64
	TotalAllocations  int64
	FailedAllocations int64
}

// Pool hands out BufferHandles backed by one of PoolSize pre-allocated
// buffers, each BufferSize float32s long. Acquire blocks (up to
// AcquireTimeout) when all buffers are checked out.
type Pool struct {
	cfg Config
	sem *semaphore.Weighted

	mu      sync.Mutex
	buffers [][]float32
	inUse   []bool

	totalAllocations  atomic.Int64
	failedAllocations atomic.Int64
	peakUsage         atomic.Int64
	currentUsage      atomic.Int64
}

// New validates cfg and pre-allocates every buffer upfront.
func New(cfg Config) (*Pool, error) {
	if cfg.PoolSize <= 0 || cfg.BufferSize <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidConfig, "bufferpool", "reason", "pool_size_or_buffer_size_zero")
	}
	if cfg.Alignment != 0 && (cfg.Alignment < float32Size || cfg.Alignment&(cfg.Alignment-1) != 0) {
		return nil, errors.WrapSentinel(errors.ErrInvalidAlignment, "bufferpool", "alignment", cfg.Alignment)
	}

	p := &Pool{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.PoolSize)),
		buffers: make([][]float32, cfg.PoolSize),
		inUse:   make([]bool, cfg.PoolSize),
	}
	for i := range p.buffers {
		p.buffers[i] = newAlignedFloat32Slice(cfg.BufferSize, cfg.Alignment)
	}
	return p, nil
}

// newAlignedFloat32Slice returns a float32 slice of length n whose backing
// array starts at an address divisible by alignBytes (spec §5's "fixed set
// of aligned buffers", §6's "alignment (power of two, >= size of one
// sample)"). alignBytes == 0 skips alignment and returns a plain make().
//
// Go's allocator gives no alignment guarantee beyond the type's own
// (4 bytes for float32), so satisfying a caller-requested alignment larger
// than that means over-allocating and slicing to the first aligned
// element - the standard technique absent a platform-specific aligned
// allocator in the dependency pack.
func newAlignedFloat32Slice(n, alignBytes int) []float32 {
	if alignBytes <= float32Size {
		return make([]float32, n)
	}

	pad := alignBytes/float32Size - 1
	raw := make([]float32, n+pad)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	if rem := addr % uintptr(alignBytes); rem != 0 {
		offset := int((uintptr(alignBytes) - rem) / uintptr(float32Size))
		return raw[offset : offset+n : offset+n]
	}
	return raw[:n:n]
}

// BufferHandle is a move-only-in-spirit checkout of one pool buffer.
// Callers must call Release exactly once; a zero-value handle's Release
// is a no-op. Go has no compiler-enforced move semantics, so Handle
// guards against double-release with an atomic flag rather than
// modeling the original's destructive-move BufferHandle.
type BufferHandle struct {
	pool      *Pool
	index     int
	released  atomic.Bool
	data      []float32
}

// Data returns the handle's underlying buffer. Calling it on an already
// released handle returns nil.
func (h *BufferHandle) Data() []float32 {
	if h == nil || h.released.Load() {
		return nil
	}
	return h.data
}

// Release returns the buffer to the pool. Safe to call more than once;
// only the first call has effect.
func (h *BufferHandle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.pool.markAvailable(h.index)
}

// Acquire blocks until a buffer is available or cfg.AcquireTimeout
// elapses, matching the original's acquire() -> tryAcquireFor(timeout).
func (p *Pool) Acquire(ctx context.Context) (*BufferHandle, error) {
	timeout := p.cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return p.tryAcquireFor(ctx, timeout)
}

func (p *Pool) tryAcquireFor(ctx context.Context, timeout time.Duration) (*BufferHandle, error) {
	p.totalAllocations.Add(1)

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		p.failedAllocations.Add(1)
		return nil, errors.WrapSentinel(errors.ErrPoolExhausted, "bufferpool", "timeout", timeout)
	}

	return p.checkout()
}

// TryAcquire is the non-blocking counterpart to Acquire: it never
// suspends the calling goroutine, so it's the variant a real-time audio
// callback uses (spec §4.1/§9's "callback must stay allocation-light and
// never block" posture also applies to buffer-pool checkout on that
// thread, not just the ring buffer). Returns ErrPoolExhausted immediately
// if every buffer is currently checked out.
func (p *Pool) TryAcquire() (*BufferHandle, error) {
	p.totalAllocations.Add(1)

	if !p.sem.TryAcquire(1) {
		p.failedAllocations.Add(1)
		return nil, errors.WrapSentinel(errors.ErrPoolExhausted, "bufferpool", "reason", "non_blocking_acquire_would_block")
	}

	return p.checkout()
}

// checkout finds a free slot, updates usage/peak counters, and builds
// the handle. Callers must already hold the semaphore permit.
func (p *Pool) checkout() (*BufferHandle, error) {
	index, ok := p.findAvailableBuffer()
	if !ok {
		p.sem.Release(1)
		p.failedAllocations.Add(1)
		return nil, errors.WrapSentinel(errors.ErrAllocationFailed, "bufferpool", "reason", "no_free_slot_despite_semaphore")
	}

	current := p.currentUsage.Add(1)
	for {
		peak := p.peakUsage.Load()
		if current <= peak || p.peakUsage.CompareAndSwap(peak, current) {
			break
		}
	}

	return &BufferHandle{pool: p, index: index, data: p.buffers[index]}, nil
}

func (p *Pool) findAvailableBuffer() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, used := range p.inUse {
		if !used {
			p.inUse[i] = true
			return i, true
		}
	}
	return 0, false
}

func (p *Pool) markAvailable(index int) {
	p.mu.Lock()
	if index >= 0 && index < len(p.inUse) {
		p.inUse[index] = false
	}
	p.mu.Unlock()

	p.currentUsage.Add(-1)
	p.sem.Release(1)
}

// Stats returns a snapshot of pool usage counters.
func (p *Pool) Stats() Stats {
	return Stats{
		TotalBuffers:      p.cfg.PoolSize,
		AvailableBuffers:  p.Available(),
		PeakUsage:         p.peakUsage.Load(),
		TotalAllocations:  p.totalAllocations.Load(),
		FailedAllocations: p.failedAllocations.Load(),
	}
}

// Available returns the number of buffers currently checked in.
func (p *Pool) Available() int {
	inUse := p.currentUsage.Load()
	return p.cfg.PoolSize - int(inUse)
}

// ResetStats clears allocation counters and re-bases peak usage at the
// current in-use count, matching the original's resetStats.
func (p *Pool) ResetStats() {
	p.totalAllocations.Store(0)
	p.failedAllocations.Store(0)
	p.peakUsage.Store(p.currentUsage.Load())
}

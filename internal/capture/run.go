package capture

import (
	"context"
	"time"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/ringbuffer"
)

// Runner is the consumer half of the producer/consumer split (spec §5):
// it drains a ring buffer on its own goroutine and hands each chunk to a
// session via ProcessFn, one at a time, honoring the ring buffer's
// wait_for_data cooperative-suspension contract (spec §4.1) instead of
// busy-polling.
type Runner struct {
	ring       *ringbuffer.RingBuffer
	process    ProcessFn
	waitPeriod time.Duration
}

// ProcessFn hands one dequeued chunk's samples to a session's pipeline.
type ProcessFn func(samples []float32) error

// NewRunner constructs a Runner. waitPeriod bounds how long each
// WaitForData call blocks before re-checking ctx.Done(); it does not
// bound end-to-end latency, since a signaled dequeue returns immediately.
func NewRunner(ring *ringbuffer.RingBuffer, process ProcessFn, waitPeriod time.Duration) *Runner {
	if waitPeriod <= 0 {
		waitPeriod = 100 * time.Millisecond
	}
	return &Runner{ring: ring, process: process, waitPeriod: waitPeriod}
}

// Run drains ring until ctx is canceled, calling process for every chunk
// in FIFO order (spec §5's "Producer-consumer ordering through the ring
// buffer is FIFO and total within a session").
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !r.ring.WaitForData(r.waitPeriod) {
			continue
		}

		for {
			chunk, err := r.ring.TryDequeue()
			if err != nil {
				break // BufferEmpty: drained for now
			}
			if procErr := r.process(chunk.Samples[:chunk.Len]); procErr != nil {
				return procErr
			}
		}
	}
}

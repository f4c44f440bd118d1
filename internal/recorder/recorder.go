// Package recorder implements the recording surface spec §4.8 routes to:
// start/stop/save/query calls over a raw-sample mirror. File-based
// recording is an external collaborator (spec §1's "debug/log sinks"
// exclusion extends to on-disk capture); this package owns only the
// in-memory mirror, plus an optional streaming sink for a hybrid mode.
//
// The raw-sample FIFO is built on smallnest/ringbuffer for byte-oriented
// audio mirrors; float32 samples are written through as their 4-byte
// little-endian encoding.
package recorder

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

// Mode selects where recorded samples go once active.
type Mode int

const (
	// ModeMemory mirrors samples only into the in-memory ring (spec §3's
	// "inactive by default; when active, mirrors raw samples to a memory
	// buffer").
	ModeMemory Mode = iota
	// ModeHybrid also forwards every chunk to an external streaming
	// sink (e.g. a file writer), without the sink's own flush/close
	// semantics belonging to this package (spec §1 exclusion).
	ModeHybrid
)

// Config controls the in-memory mirror's capacity.
type Config struct {
	MaxSamples int  // ring capacity in float32 samples
	Mode       Mode
}

// Recorder mirrors raw samples for a session's recording surface
// (spec §4.8's start_recording/stop_recording/save_recording/
// is_recording/memory-buffer queries).
type Recorder struct {
	mu sync.Mutex

	cfg    Config
	active bool

	ring *ringbuffer.RingBuffer // byte-encoded float32 samples, drained by Save/Flush

	overlay    []float32 // bounded most-recent-samples view for waveform overlay queries
	overlayCap int

	sink io.Writer // optional external streaming collaborator (ModeHybrid)
}

const bytesPerSample = 4

// New constructs a Recorder. cfg.MaxSamples must be positive.
func New(cfg Config) (*Recorder, error) {
	if cfg.MaxSamples <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidConfig, "recorder", "reason", "max_samples_must_be_positive")
	}
	return &Recorder{
		cfg:        cfg,
		ring:       ringbuffer.New(cfg.MaxSamples * bytesPerSample),
		overlayCap: cfg.MaxSamples,
	}, nil
}

// Start activates the mirror. sink may be nil (memory-only); it is used
// only when cfg.Mode is ModeHybrid.
func (r *Recorder) Start(sink io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.sink = sink
	r.ring.Reset()
	r.overlay = r.overlay[:0]
}

// Stop deactivates the mirror; already-buffered samples remain available
// to Flush/Snapshot until the next Start.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}

// IsRecording reports whether the mirror is currently active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Write mirrors a chunk of samples while active; a no-op while inactive.
// Ring overflow (more samples than cfg.MaxSamples since the last drain)
// silently drops the oldest unread bytes rather than blocking, matching
// the non-blocking posture of the rest of the real-time path.
func (r *Recorder) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || len(samples) == 0 {
		return
	}

	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(s))
	}
	if _, err := r.ring.TryWrite(buf); err != nil {
		// Ring full: drop the oldest bytes to make room, best-effort.
		_, _ = r.ring.TryRead(make([]byte, len(buf)))
		_, _ = r.ring.TryWrite(buf)
	}

	r.overlay = append(r.overlay, samples...)
	if over := len(r.overlay) - r.overlayCap; over > 0 {
		r.overlay = append([]float32(nil), r.overlay[over:]...)
	}

	if r.cfg.Mode == ModeHybrid && r.sink != nil {
		_, _ = r.sink.Write(buf)
	}
}

// Snapshot returns the most recent (up to cfg.MaxSamples) mirrored
// samples without consuming them, for waveform-overlay queries
// (spec §6's waveform_overlay_data).
func (r *Recorder) Snapshot() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, len(r.overlay))
	copy(out, r.overlay)
	return out
}

// Flush drains and returns every byte-encoded sample currently in the
// ring, decoded back to float32, for save_recording. Draining empties
// the ring; Snapshot's overlay view is unaffected.
func (r *Recorder) Flush() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.ring.Length()
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	read, _ := r.ring.Read(buf)
	buf = buf[:read]

	out := make([]float32, len(buf)/bytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerSample:]))
	}
	return out
}

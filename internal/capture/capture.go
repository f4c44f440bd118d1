// Package capture implements the device-capture external collaborator
// (spec §1, §6): the only thing the core specifies about device capture
// is its interface (push chunks of samples into a session). This package
// wraps github.com/gen2brain/malgo with the usual init-context,
// open-capture-device, run-data-callback sequence, feeding decoded
// chunks straight into this engine's own ringbuffer.RingBuffer (C1), the
// real producer side the rest of the core is built to consume from (see
// Runner in run.go for the matching consumer loop).
package capture

import (
	"encoding/binary"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/bufferpool"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/logging"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/ringbuffer"
)

// Config selects the device and format to capture.
type Config struct {
	DeviceName      string // "" or "default" selects the system default
	SampleRateHz    int
	VoicedThreshold float32 // forwarded to RingBuffer.TryEnqueue's coarse voiced flag
}

// Device captures from a host audio device into a ring buffer, the
// producer half of spec §5's "producer (audio-source thread) that calls
// process_audio_chunk / enqueue" role.
type Device struct {
	cfg  Config
	ring *ringbuffer.RingBuffer
	pool *bufferpool.Pool

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	running atomic.Bool
	mu      sync.Mutex
}

// New constructs a Device that will feed ring on Start. pool is the spec
// §5 buffer pool the data callback checks out from instead of allocating;
// it may be nil, in which case the callback falls back to a fresh
// allocation per frame (useful for tests that don't care about the
// real-time allocation posture).
func New(cfg Config, ring *ringbuffer.RingBuffer, pool *bufferpool.Pool) (*Device, error) {
	if cfg.SampleRateHz <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidParams, "capture", "sample_rate_hz", cfg.SampleRateHz)
	}
	if ring == nil {
		return nil, errors.WrapSentinel(errors.ErrInvalidParams, "capture", "reason", "ring_buffer_required")
	}
	return &Device{cfg: cfg, ring: ring, pool: pool}, nil
}

func backendsForPlatform() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa, malgo.BackendPulseAudio}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return []malgo.Backend{malgo.BackendNull}
	}
}

// Start opens the device and begins pushing chunks into the ring buffer.
// The malgo data callback must stay allocation-light and never block, so
// it only converts bytes to float32 and calls TryEnqueue -- overruns are
// surfaced through the ring buffer's own stats, never blocking the
// capture thread (spec §4.1's "fail, do not overwrite" policy).
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.WrapSentinel(errors.ErrInvalidParams, "capture", "reason", "already_running")
	}

	ctx, err := malgo.InitContext(backendsForPlatform(), malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.WrapSentinel(errors.ErrInitFailed, "capture", "stage", "init_context")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(d.cfg.SampleRateHz)
	deviceConfig.PeriodSizeInMilliseconds = 32

	onRecvFrames := func(_, input []byte, frameCount uint32) {
		if !d.running.Load() || len(input) == 0 {
			return
		}
		n := len(input) / 4
		if n > ringbuffer.ChunkMax {
			n = ringbuffer.ChunkMax
		}

		// Prefer the spec §5 buffer pool over a fresh make() on every
		// callback: TryAcquire never blocks the audio thread, and
		// TryEnqueue copies into its own ring slot, so the handle can be
		// released as soon as the enqueue returns.
		if d.pool != nil {
			h, err := d.pool.TryAcquire()
			if err == nil {
				dst := h.Data()
				if len(dst) < n {
					n = len(dst)
				}
				decodeFloat32Into(dst[:n], input[:n*4])
				if err := d.ring.TryEnqueue(dst[:n], d.cfg.VoicedThreshold); err != nil {
					logging.Warn("capture ring buffer overrun", "error", err)
				}
				h.Release()
				return
			}
			logging.Warn("capture buffer pool exhausted, falling back to allocation", "error", err)
		}

		samples := bytesToFloat32(input[:n*4])
		if err := d.ring.TryEnqueue(samples, d.cfg.VoicedThreshold); err != nil {
			logging.Warn("capture ring buffer overrun", "error", err)
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		return errors.WrapSentinel(errors.ErrInitFailed, "capture", "stage", "init_device")
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		return errors.WrapSentinel(errors.ErrInitFailed, "capture", "stage", "start_device")
	}

	d.ctx = ctx
	d.device = device
	d.running.Store(true)
	return nil
}

// Stop halts capture and releases the device/context.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	if d.device != nil {
		_ = d.device.Stop()
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx = nil
	}
	return nil
}

// IsRunning reports whether the device is actively capturing.
func (d *Device) IsRunning() bool { return d.running.Load() }

func bytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	decodeFloat32Into(out, b)
	return out
}

// decodeFloat32Into decodes len(dst) little-endian float32 samples from b
// into dst, the allocation-free path used when a pooled buffer backs dst.
func decodeFloat32Into(dst []float32, b []byte) {
	for i := range dst {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		dst[i] = math.Float32frombits(bits)
	}
}

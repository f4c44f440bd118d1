// Package mastercall implements the master-call feature cache (spec §4.9,
// component C9): a binary `.mfc` codec for precomputed MFCC feature
// matrices, plus an in-process cache of loaded master calls keyed by file
// path. The binary layout and duration/RMS estimation are grounded on the
// original RealtimeScorer.cpp's setMasterCall.
package mastercall

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

// defaultHopFrameSamples mirrors the original's 512-sample hop-based frame
// rate approximation; used only as a fallback when a caller passes
// hopSize <= 0, since the session's actual configured hop (spec §3's
// default of 256) is what every real call site supplies.
const defaultHopFrameSamples = 512

// Data holds a loaded master call's feature matrix and derived summary
// statistics (spec §4.9).
type Data struct {
	Features       [][]float32 // [frame][coefficient]
	DurationSecond float64
	RMSEstimate    float64
}

// NumFrames returns the number of feature frames.
func (d *Data) NumFrames() int {
	if d == nil {
		return 0
	}
	return len(d.Features)
}

// NumCoefficients returns the coefficient count of the first frame, or 0
// for an empty feature set.
func (d *Data) NumCoefficients() int {
	if d == nil || len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0])
}

// Encode writes Data to w in the .mfc binary layout: little-endian
// uint32 frame_count, uint32 coefficient_count, then frame_count rows of
// coefficient_count float32 values.
func Encode(w io.Writer, d *Data) error {
	numFrames := d.NumFrames()
	numCoeffs := d.NumCoefficients()

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(numFrames)); err != nil {
		return errors.WrapSentinel(errors.ErrProcessingFailed, "mastercall", "stage", "write_frame_count")
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(numCoeffs)); err != nil {
		return errors.WrapSentinel(errors.ErrProcessingFailed, "mastercall", "stage", "write_coeff_count")
	}
	for _, frame := range d.Features {
		if err := binary.Write(bw, binary.LittleEndian, frame); err != nil {
			return errors.WrapSentinel(errors.ErrProcessingFailed, "mastercall", "stage", "write_frame_data")
		}
	}
	return bw.Flush()
}

// Decode reads the .mfc binary layout from r and derives duration/RMS
// estimates, matching setMasterCall's sample-rate-based frame-rate
// approximation exactly. hopSize is the session's configured MFCC hop in
// samples (spec §3); hopSize <= 0 falls back to defaultHopFrameSamples.
func Decode(r io.Reader, sampleRateHz, hopSize int) (*Data, error) {
	br := bufio.NewReader(r)

	var numFrames, numCoeffs uint32
	if err := binary.Read(br, binary.LittleEndian, &numFrames); err != nil {
		return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "mastercall", "stage", "read_frame_count")
	}
	if err := binary.Read(br, binary.LittleEndian, &numCoeffs); err != nil {
		return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "mastercall", "stage", "read_coeff_count")
	}
	if numFrames == 0 || numCoeffs == 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidInput, "mastercall", "reason", "empty_feature_set")
	}

	features := make([][]float32, numFrames)
	var energySum float64
	for i := range features {
		frame := make([]float32, numCoeffs)
		if err := binary.Read(br, binary.LittleEndian, frame); err != nil {
			return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "mastercall", "stage", "read_frame_data")
		}
		features[i] = frame
		energySum += float64(frame[0])
	}

	frameRateMs := float64(effectiveHop(hopSize)) / float64(sampleRateHz) * 1000.0
	duration := float64(numFrames) * frameRateMs / 1000.0
	rms := energySum / float64(numFrames)

	return &Data{
		Features:       features,
		DurationSecond: duration,
		RMSEstimate:    rms,
	}, nil
}

// Cache holds decoded master calls keyed by file path, avoiding repeated
// disk reads and MFCC extraction for frequently-used calls (spec §9's
// "cache precomputed feature sets" decision).
type Cache struct {
	inner *gocache.Cache
}

// NewCache creates a Cache with the given expiration and cleanup cadence.
func NewCache(expiration, cleanupInterval time.Duration) *Cache {
	return &Cache{inner: gocache.New(expiration, cleanupInterval)}
}

// Get returns a cached Data for path, if present and unexpired.
func (c *Cache) Get(path string) (*Data, bool) {
	v, ok := c.inner.Get(path)
	if !ok {
		return nil, false
	}
	data, ok := v.(*Data)
	return data, ok
}

// Load decodes path (a .mfc file) if not already cached, and caches the
// result for subsequent lookups. hopSize is the session's configured MFCC
// hop in samples, passed through to Decode's duration estimate.
func (c *Cache) Load(path string, sampleRateHz, hopSize int) (*Data, error) {
	if data, ok := c.Get(path); ok {
		return data, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapSentinel(errors.ErrNotFound, "mastercall", "path", path)
	}
	defer f.Close()

	data, err := Decode(f, sampleRateHz, hopSize)
	if err != nil {
		return nil, err
	}

	c.inner.SetDefault(path, data)
	return data, nil
}

// Store saves a decoded Data into the cache under path, bypassing disk
// decode (used when a master call was just extracted from its source .wav
// rather than loaded from an existing .mfc file).
func (c *Cache) Store(path string, data *Data) {
	c.inner.SetDefault(path, data)
}

// Invalidate removes path's cached entry, if any.
func (c *Cache) Invalidate(path string) {
	c.inner.Delete(path)
}

// Count returns the number of cached entries.
func (c *Cache) Count() int {
	return c.inner.ItemCount()
}

// FromFeatures builds a Data from a freshly-extracted feature matrix (e.g.
// after MFCC-extracting a recorded .wav master call). rms is the true
// loudness computed over the raw samples per spec §4.9 ("averaging
// per-sample squares over the entire master and taking the square root");
// callers that only have the feature matrix (no raw samples, e.g. a
// decoded .mfc cache entry) fall back to Decode's coefficient-energy
// approximation instead.
// hopSize is the session's configured MFCC hop in samples (spec §3);
// hopSize <= 0 falls back to defaultHopFrameSamples.
func FromFeatures(features [][]float32, sampleRateHz int, rms float64, hopSize int) *Data {
	if len(features) == 0 {
		return &Data{}
	}

	frameRateMs := float64(effectiveHop(hopSize)) / float64(sampleRateHz) * 1000.0
	duration := float64(len(features)) * frameRateMs / 1000.0

	return &Data{
		Features:       features,
		DurationSecond: duration,
		RMSEstimate:    rms,
	}
}

func effectiveHop(hopSize int) int {
	if hopSize <= 0 {
		return defaultHopFrameSamples
	}
	return hopSize
}

// RMSOf computes sqrt(mean(x^2)) over raw samples, the exact formula spec
// §4.9 specifies for master-call loudness.
func RMSOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, v := range samples {
		sumSquares += float64(v) * float64(v)
	}
	mean := sumSquares / float64(len(samples))
	if mean <= 0 {
		return 0
	}
	return math.Sqrt(mean)
}

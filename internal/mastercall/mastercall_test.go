package mastercall

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() *Data {
	return &Data{
		Features: [][]float32{
			{1.0, 0.1, 0.2},
			{1.2, 0.15, 0.25},
			{0.9, 0.05, 0.3},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleData()))

	decoded, err := Decode(&buf, 44100, 256)
	require.NoError(t, err)
	require.Len(t, decoded.Features, 3)
	assert.Equal(t, []float32{1.0, 0.1, 0.2}, decoded.Features[0])
	assert.Greater(t, decoded.DurationSecond, 0.0)
}

func TestDecodeRejectsEmptyFrameCount(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0}) // numFrames = 0
	buf.Write([]byte{13, 0, 0, 0})
	_, err := Decode(&buf, 44100, 256)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleData()))
	truncated := buf.Bytes()[:buf.Len()-4]
	_, err := Decode(bytes.NewReader(truncated), 44100, 256)
	require.Error(t, err)
}

func TestRMSEstimateIsMeanOfFirstCoefficient(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleData()))
	decoded, err := Decode(&buf, 44100, 256)
	require.NoError(t, err)

	expected := (1.0 + 1.2 + 0.9) / 3.0
	assert.InDelta(t, expected, decoded.RMSEstimate, 1e-6)
}

func TestCacheLoadReadsFileOnceAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mfc")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Encode(f, sampleData()))
	require.NoError(t, f.Close())

	c := NewCache(time.Minute, time.Minute)
	data1, err := c.Load(path, 44100, 256)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count())

	// remove underlying file; cached load must still succeed
	require.NoError(t, os.Remove(path))
	data2, err := c.Load(path, 44100, 256)
	require.NoError(t, err)
	assert.Same(t, data1, data2)
}

func TestCacheLoadMissingFileIsNotFound(t *testing.T) {
	c := NewCache(time.Minute, time.Minute)
	_, err := c.Load("/no/such/path.mfc", 44100, 256)
	require.Error(t, err)
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mfc")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Encode(f, sampleData()))
	require.NoError(t, f.Close())

	c := NewCache(time.Minute, time.Minute)
	_, err = c.Load(path, 44100, 256)
	require.NoError(t, err)

	c.Invalidate(path)
	assert.Equal(t, 0, c.Count())
}

func TestFromFeaturesEmptyIsZeroValue(t *testing.T) {
	d := FromFeatures(nil, 44100, 0, 256)
	assert.Equal(t, 0, d.NumFrames())
	assert.Equal(t, 0.0, d.DurationSecond)
}

func TestFromFeaturesMatchesDecodeDuration(t *testing.T) {
	features := sampleData().Features
	d := FromFeatures(features, 44100, 0.42, 256)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Data{Features: features}))
	decoded, err := Decode(&buf, 44100, 256)
	require.NoError(t, err)

	assert.InDelta(t, decoded.DurationSecond, d.DurationSecond, 1e-9)
	assert.Equal(t, 0.42, d.RMSEstimate)
}

func TestFromFeaturesDurationScalesWithHop(t *testing.T) {
	features := sampleData().Features
	small := FromFeatures(features, 44100, 0, 128)
	large := FromFeatures(features, 44100, 0, 512)

	assert.InDelta(t, small.DurationSecond*4, large.DurationSecond, 1e-9)
}

func TestFromFeaturesFallsBackToDefaultHop(t *testing.T) {
	features := sampleData().Features
	withDefault := FromFeatures(features, 44100, 0, 0)
	explicit := FromFeatures(features, 44100, 0, defaultHopFrameSamples)

	assert.InDelta(t, explicit.DurationSecond, withDefault.DurationSecond, 1e-9)
}

func TestRMSOf(t *testing.T) {
	assert.Equal(t, 0.0, RMSOf(nil))
	samples := []float32{1, -1, 1, -1}
	assert.InDelta(t, 1.0, RMSOf(samples), 1e-9)
}

package wavsource

import (
	"bytes"
	"os"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, sampleRate, channels, numFrames int) *bytes.Reader {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "test-*.wav")
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, numFrames*channels)
	for i := range data {
		data[i] = 1000
	}
	buf := &audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())

	raw, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestDecodeMonoFile(t *testing.T) {
	r := writeTestWAV(t, 44100, 1, 100)
	audioData, err := Decode(r)
	require.NoError(t, err)

	assert.Equal(t, 1, audioData.Channels)
	assert.Equal(t, 44100, audioData.SampleRate)
	assert.Len(t, audioData.Samples, 100)
	assert.InDelta(t, 1000.0/32768.0, audioData.Samples[0], 1e-6)
}

func TestDecodeStereoFileAveragesChannels(t *testing.T) {
	r := writeTestWAV(t, 44100, 2, 50)
	audioData, err := Decode(r)
	require.NoError(t, err)

	assert.Equal(t, 2, audioData.Channels)
	assert.Len(t, audioData.Samples, 50)
}

func TestDecodeRejectsInvalidFile(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a wav file at all")))
	require.Error(t, err)
}

// Package wavsource decodes WAV files into mono float32 PCM (spec §6's
// WAV source contract), multi-channel input averaged to mono at load
// time, generalized from a fixed 48kHz/3-second-chunk reader to an
// arbitrary sample-rate, whole-file reader via go-audio/wav.
package wavsource

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

// Audio is a decoded WAV file's contents (spec §6: "given a path, return
// {samples[], channels, sample_rate}, or a failure").
type Audio struct {
	Samples    []float32 // mono, averaged across channels
	Channels   int
	SampleRate int
}

const readChunkFrames = 4096

// Decode reads a WAV stream and returns its mono float32 samples.
func Decode(r io.ReadSeeker) (*Audio, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "wavsource", "reason", "invalid_wav_file")
	}

	channels := int(decoder.NumChans)
	if channels <= 0 {
		channels = 1
	}

	var divisor float32
	switch decoder.BitDepth {
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "wavsource", "bit_depth", decoder.BitDepth)
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, readChunkFrames*channels),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
	}

	var mono []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "wavsource", "stage", "pcm_read")
		}
		if n == 0 {
			break
		}

		for i := 0; i < n; i += channels {
			var sum float32
			count := 0
			for c := 0; c < channels && i+c < n; c++ {
				sum += float32(buf.Data[i+c]) / divisor
				count++
			}
			if count > 0 {
				mono = append(mono, sum/float32(count))
			}
		}
	}

	return &Audio{
		Samples:    mono,
		Channels:   channels,
		SampleRate: int(decoder.SampleRate),
	}, nil
}

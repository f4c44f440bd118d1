// Package mfcc implements the MFCC extractor (spec §4.3, component C3):
// frame -> windowed FFT magnitude -> mel filter bank -> log -> DCT ->
// cepstral vector. The filterbank/DCT construction and epsilon guards are
// grounded on the original MFCCProcessor.cpp; the FFT itself is provided
// by gonum's real-FFT implementation rather than a hand-rolled transform.
package mfcc

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

// melEnergyEpsilon guards the log of the mel energies (spec §4.3 step 5).
const melEnergyEpsilon = 1e-10

// filterSlopeEpsilon guards the triangular filter's slope denominators so a
// degenerate (coincident-edge) filter contributes zero instead of dividing
// by zero, matching MFCCProcessor.cpp's 1e-6f guard.
const filterSlopeEpsilon = 1e-6

// Config holds the extractor's construction-time parameters (spec §6).
type Config struct {
	SampleRateHz    int
	FrameSize       int // N, power of two
	NumFilters      int // F
	NumCoefficients int // K
	LowFreq         float64
	HighFreq        float64 // 0 => Nyquist
}

// Extractor maps frames of N samples to K-dimensional cepstral vectors. It
// is not safe for concurrent use: Extract reuses the extractor's scratch
// buffers. A single Extractor is owned by one session per spec §4.7.
type Extractor struct {
	cfg Config

	window     []float64
	melFilters [][]float64 // [NumFilters][FrameSize/2+1]
	dctMatrix  [][]float64 // [NumCoefficients][NumFilters]

	fft *fourier.FFT

	powerSpectrum []float64
	melEnergies   []float64
	windowed      []float64
}

// New validates cfg and precomputes the Hamming window, mel filter bank,
// and DCT-II matrix.
func New(cfg Config) (*Extractor, error) {
	if cfg.SampleRateHz <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidConfig, "mfcc", "sample_rate_hz", cfg.SampleRateHz)
	}
	if cfg.FrameSize <= 0 || cfg.FrameSize&(cfg.FrameSize-1) != 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidConfig, "mfcc", "frame_size", cfg.FrameSize)
	}
	if cfg.NumFilters <= 0 || cfg.NumCoefficients <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidConfig, "mfcc", "num_filters_or_coefficients", nil)
	}

	nyquist := float64(cfg.SampleRateHz) / 2
	if cfg.HighFreq <= 0 {
		cfg.HighFreq = nyquist
	} else if cfg.HighFreq > nyquist {
		cfg.HighFreq = nyquist
	}

	e := &Extractor{cfg: cfg}
	e.buildWindow()
	e.buildMelFilterBank()
	e.buildDCTMatrix()

	e.fft = fourier.NewFFT(cfg.FrameSize)
	numBins := cfg.FrameSize/2 + 1
	e.powerSpectrum = make([]float64, numBins)
	e.melEnergies = make([]float64, cfg.NumFilters)
	e.windowed = make([]float64, cfg.FrameSize)

	return e, nil
}

// buildWindow precomputes the Hamming window:
// w[n] = 0.54 - 0.46*cos(2*pi*n/(N-1)).
func (e *Extractor) buildWindow() {
	n := e.cfg.FrameSize
	e.window = make([]float64, n)
	for i := 0; i < n; i++ {
		e.window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
}

func freqToMel(f float64) float64 {
	return 2595 * math.Log10(1+f/700)
}

func melToFreq(m float64) float64 {
	return 700 * (math.Pow(10, m/2595) - 1)
}

// buildMelFilterBank builds F triangular filters over the N/2+1 FFT bins,
// edges placed at F+2 equally spaced mel points between low_hz and high_hz.
func (e *Extractor) buildMelFilterBank() {
	n := e.cfg.FrameSize
	f := e.cfg.NumFilters
	numBins := n/2 + 1

	lowMel := freqToMel(e.cfg.LowFreq)
	highMel := freqToMel(e.cfg.HighFreq)

	melPoints := make([]float64, f+2)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*(highMel-lowMel)/float64(f+1)
	}

	binIndices := make([]int, f+2)
	for i, mel := range melPoints {
		hz := melToFreq(mel)
		bin := int(hz * float64(n) / float64(e.cfg.SampleRateHz))
		if bin < 0 {
			bin = 0
		}
		if bin > numBins-1 {
			bin = numBins - 1
		}
		binIndices[i] = bin
	}

	e.melFilters = make([][]float64, f)
	for j := 0; j < f; j++ {
		filter := make([]float64, numBins)
		left, center, right := binIndices[j], binIndices[j+1], binIndices[j+2]

		leftSlopeDenom := float64(center - left)
		rightSlopeDenom := float64(right - center)

		for bin := left; bin < center; bin++ {
			if math.Abs(leftSlopeDenom) < filterSlopeEpsilon {
				continue
			}
			filter[bin] = float64(bin-left) / leftSlopeDenom
		}
		for bin := center; bin < right; bin++ {
			if math.Abs(rightSlopeDenom) < filterSlopeEpsilon {
				continue
			}
			filter[bin] = float64(right-bin) / rightSlopeDenom
		}

		e.melFilters[j] = filter
	}
}

// buildDCTMatrix builds the K x F DCT-II matrix:
// D[k][j] = cos(pi*k*(j+0.5)/F) * alpha(k), alpha(0) = sqrt(1/F),
// alpha(k>0) = sqrt(2/F).
func (e *Extractor) buildDCTMatrix() {
	k := e.cfg.NumCoefficients
	f := e.cfg.NumFilters

	scale0 := math.Sqrt(1 / float64(f))
	scaleN := math.Sqrt(2 / float64(f))

	e.dctMatrix = make([][]float64, k)
	for i := 0; i < k; i++ {
		row := make([]float64, f)
		alpha := scaleN
		if i == 0 {
			alpha = scale0
		}
		for j := 0; j < f; j++ {
			row[j] = math.Cos(math.Pi*float64(i)*(float64(j)+0.5)/float64(f)) * alpha
		}
		e.dctMatrix[i] = row
	}
}

// Config returns the extractor's construction-time configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract runs the per-frame pipeline of spec §4.3 on exactly FrameSize
// samples, returning the K-dimensional cepstral vector.
func (e *Extractor) Extract(frame []float32) ([]float32, error) {
	if len(frame) != e.cfg.FrameSize {
		return nil, errors.WrapSentinel(errors.ErrInvalidInput, "mfcc", "frame_len", len(frame))
	}
	for _, s := range frame {
		if !isFiniteF32(s) {
			return nil, errors.WrapSentinel(errors.ErrInvalidInput, "mfcc", "reason", "non_finite_sample")
		}
	}

	for i, s := range frame {
		e.windowed[i] = float64(s) * e.window[i]
	}

	spectrum := e.fft.Coefficients(nil, e.windowed)

	for i, c := range spectrum {
		re := real(c)
		im := imag(c)
		p := re*re + im*im
		if !isFiniteF64(p) {
			return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "mfcc", "reason", "non_finite_power_spectrum")
		}
		e.powerSpectrum[i] = p
	}

	for j, filter := range e.melFilters {
		var energy float64
		for i, p := range e.powerSpectrum {
			energy += filter[i] * p
		}
		m := math.Log(energy + melEnergyEpsilon)
		if !isFiniteF64(m) {
			return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "mfcc", "reason", "non_finite_mel_energy")
		}
		e.melEnergies[j] = m
	}

	out := make([]float32, e.cfg.NumCoefficients)
	for k, row := range e.dctMatrix {
		var c float64
		for j, d := range row {
			c += d * e.melEnergies[j]
		}
		if !isFiniteF64(c) {
			return nil, errors.WrapSentinel(errors.ErrProcessingFailed, "mfcc", "reason", "non_finite_coefficient")
		}
		out[k] = float32(c)
	}

	return out, nil
}

// ExtractFromBuffer produces a matrix of cepstral vectors for every offset
// 0, hop, 2*hop, ... as long as offset+FrameSize <= len(buffer). An empty
// buffer is InvalidInput. The first per-frame error short-circuits and is
// returned, matching the original extractFeaturesFromBuffer.
func (e *Extractor) ExtractFromBuffer(buffer []float32, hop int) ([][]float32, error) {
	if len(buffer) == 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidInput, "mfcc", "reason", "empty_buffer")
	}

	var frames [][]float32
	for offset := 0; offset+e.cfg.FrameSize <= len(buffer); offset += hop {
		vec, err := e.Extract(buffer[offset : offset+e.cfg.FrameSize])
		if err != nil {
			return nil, err
		}
		frames = append(frames, vec)
	}
	return frames, nil
}

func isFiniteF32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isFiniteF64(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

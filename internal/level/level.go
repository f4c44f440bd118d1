// Package level implements the smoothed RMS/peak level meter (spec §4.5,
// component C5), grounded on the original AudioLevelProcessor's one-pole
// attack/release smoothing and linear-to-dB conversion.
package level

import (
	"math"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/errors"
)

// Config holds the meter's time constants and dB range.
type Config struct {
	SampleRateHz     int
	AttackTimeMs     float64
	ReleaseTimeMs    float64
	PeakAttackTimeMs float64
	PeakReleaseTimeMs float64
	FloorDb          float64
	CeilingDb        float64
}

// Measurement is one chunk's smoothed level reading.
type Measurement struct {
	RMSLinear  float32
	RMSDb      float32
	PeakLinear float32
	PeakDb     float32
}

// Meter tracks smoothed RMS and peak across successive chunks for one
// session.
type Meter struct {
	cfg Config

	rmsAttackCoeff  float64
	rmsReleaseCoeff float64
	peakAttackCoeff float64
	peakReleaseCoeff float64

	currentRMS  float64
	currentPeak float64

	history []Measurement
	maxHistory int
}

// New builds a Meter and precomputes its smoothing coefficients.
func New(cfg Config, maxHistory int) (*Meter, error) {
	if cfg.SampleRateHz <= 0 {
		return nil, errors.WrapSentinel(errors.ErrInvalidConfig, "level", "sample_rate_hz", cfg.SampleRateHz)
	}
	m := &Meter{cfg: cfg, maxHistory: maxHistory}
	m.recalculateCoefficients()
	return m, nil
}

// recalculateCoefficients implements
// alpha = 1 - exp(-1 / (tau_ms * sample_rate_hz / 1000)), clamped to
// [0.001, 1.0], exactly as in the original AudioLevelProcessor.
func (m *Meter) recalculateCoefficients() {
	sampleRateMs := float64(m.cfg.SampleRateHz) / 1000.0

	m.rmsAttackCoeff = clampCoeff(1 - math.Exp(-1/(m.cfg.AttackTimeMs*sampleRateMs)))
	m.rmsReleaseCoeff = clampCoeff(1 - math.Exp(-1/(m.cfg.ReleaseTimeMs*sampleRateMs)))
	m.peakAttackCoeff = clampCoeff(1 - math.Exp(-1/(m.cfg.PeakAttackTimeMs*sampleRateMs)))
	m.peakReleaseCoeff = clampCoeff(1 - math.Exp(-1/(m.cfg.PeakReleaseTimeMs*sampleRateMs)))
}

func clampCoeff(c float64) float64 {
	if c < 0.001 {
		return 0.001
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

// UpdateConfig changes the time constants and recomputes coefficients.
func (m *Meter) UpdateConfig(cfg Config) {
	m.cfg = cfg
	m.recalculateCoefficients()
}

// Process computes RMS and peak for one chunk and applies one-pole
// attack/release smoothing: y <- y + alpha*(x - y), choosing the attack
// coefficient when the instantaneous value exceeds the stored one.
func (m *Meter) Process(samples []float32) Measurement {
	var sumSquares float64
	var peak float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}

	rms := 0.0
	if len(samples) > 0 {
		rms = math.Sqrt(sumSquares / float64(len(samples)))
	}

	rmsCoeff := m.rmsReleaseCoeff
	if rms > m.currentRMS {
		rmsCoeff = m.rmsAttackCoeff
	}
	peakCoeff := m.peakReleaseCoeff
	if peak > m.currentPeak {
		peakCoeff = m.peakAttackCoeff
	}

	m.currentRMS += rmsCoeff * (rms - m.currentRMS)
	m.currentPeak += peakCoeff * (peak - m.currentPeak)

	meas := Measurement{
		RMSLinear:  float32(m.currentRMS),
		RMSDb:      float32(LinearToDb(m.currentRMS, m.cfg.FloorDb, m.cfg.CeilingDb)),
		PeakLinear: float32(m.currentPeak),
		PeakDb:     float32(LinearToDb(m.currentPeak, m.cfg.FloorDb, m.cfg.CeilingDb)),
	}

	m.history = append(m.history, meas)
	if m.maxHistory > 0 && len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}

	return meas
}

// LinearToDb converts a linear amplitude to dB, clamped to [floorDb,
// ceilingDb], per spec §4.5: db = clamp(20*log10(max(linear, eps)), ...)
// with eps = 10^(floorDb/20).
func LinearToDb(linear, floorDb, ceilingDb float64) float64 {
	eps := math.Pow(10, floorDb/20)
	safe := linear
	if safe < eps {
		safe = eps
	}
	db := 20 * math.Log10(safe)
	if db < floorDb {
		return floorDb
	}
	if db > ceilingDb {
		return ceilingDb
	}
	return db
}

// Current returns the last smoothed measurement without recomputation.
func (m *Meter) Current() Measurement {
	return Measurement{
		RMSLinear:  float32(m.currentRMS),
		RMSDb:      float32(LinearToDb(m.currentRMS, m.cfg.FloorDb, m.cfg.CeilingDb)),
		PeakLinear: float32(m.currentPeak),
		PeakDb:     float32(LinearToDb(m.currentPeak, m.cfg.FloorDb, m.cfg.CeilingDb)),
	}
}

// History returns a bounded snapshot of recent measurements.
func (m *Meter) History() []Measurement {
	out := make([]Measurement, len(m.history))
	copy(out, m.history)
	return out
}

// Reset zeroes the smoothed state and clears history.
func (m *Meter) Reset() {
	m.currentRMS = 0
	m.currentPeak = 0
	m.history = nil
}

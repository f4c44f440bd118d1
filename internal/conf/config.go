// Package conf loads engine configuration from an embedded YAML default,
// an optional user file, and environment overrides through a layered
// viper setup.
package conf

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var defaultConfigYAML []byte

// MFCCConfig mirrors spec §6's MFCC configuration block.
type MFCCConfig struct {
	FrameSize        int     `mapstructure:"frame_size" yaml:"frame_size"`
	HopSize          int     `mapstructure:"hop_size" yaml:"hop_size"`
	NumCoefficients  int     `mapstructure:"num_coefficients" yaml:"num_coefficients"`
	NumFilters       int     `mapstructure:"num_filters" yaml:"num_filters"`
	LowFreq          float64 `mapstructure:"low_freq" yaml:"low_freq"`
	HighFreq         float64 `mapstructure:"high_freq" yaml:"high_freq"` // 0 => Nyquist
}

// VADConfig mirrors spec §4.2 / §6.
type VADConfig struct {
	Enabled            bool          `mapstructure:"enabled" yaml:"enabled"`
	EnergyThreshold    float64       `mapstructure:"energy_threshold" yaml:"energy_threshold"`
	WindowDuration     time.Duration `mapstructure:"window_duration_ms" yaml:"window_duration_ms"`
	MinSoundDuration   time.Duration `mapstructure:"min_sound_duration_ms" yaml:"min_sound_duration_ms"`
	PreBuffer          time.Duration `mapstructure:"pre_buffer_ms" yaml:"pre_buffer_ms"`
	PostBuffer         time.Duration `mapstructure:"post_buffer_ms" yaml:"post_buffer_ms"`
}

// DTWConfig mirrors spec §4.4 / §6.
type DTWConfig struct {
	WindowRatio       float64 `mapstructure:"window_ratio" yaml:"window_ratio"`
	UseWindow         bool    `mapstructure:"use_window" yaml:"use_window"`
	NormalizeDistance bool    `mapstructure:"normalize_distance" yaml:"normalize_distance"`
	DistanceWeight    float64 `mapstructure:"distance_weight" yaml:"distance_weight"`
	EnableSIMD        bool    `mapstructure:"enable_simd" yaml:"enable_simd"`
	MaxCompareFrames  int     `mapstructure:"max_compare_frames" yaml:"max_compare_frames"`
}

// ScorerConfig mirrors spec §4.6 / §6.
type ScorerConfig struct {
	WeightMFCC               float64 `mapstructure:"w_mfcc" yaml:"w_mfcc"`
	WeightVolume              float64 `mapstructure:"w_volume" yaml:"w_volume"`
	WeightTiming              float64 `mapstructure:"w_timing" yaml:"w_timing"`
	WeightPitch               float64 `mapstructure:"w_pitch" yaml:"w_pitch"`
	ConfidenceThreshold       float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	MinScoreForMatch          float64 `mapstructure:"min_score_for_match" yaml:"min_score_for_match"`
	DTWDistanceScaling        float64 `mapstructure:"dtw_distance_scaling" yaml:"dtw_distance_scaling"`
	MinSamplesForConfidence   int     `mapstructure:"min_samples_for_confidence" yaml:"min_samples_for_confidence"`
	ScoringHistorySize        int     `mapstructure:"scoring_history_size" yaml:"scoring_history_size"`
	VolumeTolerance           float64 `mapstructure:"volume_tolerance" yaml:"volume_tolerance"`
	FinalizeFallbackThreshold float64 `mapstructure:"finalize_fallback_threshold" yaml:"finalize_fallback_threshold"`
}

// BufferPoolConfig mirrors spec §5 / §6.
type BufferPoolConfig struct {
	PoolSize        int           `mapstructure:"pool_size" yaml:"pool_size"`
	BufferSizeBytes int           `mapstructure:"buffer_size_bytes" yaml:"buffer_size_bytes"`
	Alignment       int           `mapstructure:"alignment" yaml:"alignment"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// RingBufferConfig mirrors spec §4.1 / §6.
type RingBufferConfig struct {
	Capacity            int           `mapstructure:"capacity" yaml:"capacity"`
	EnableBackpressure  bool          `mapstructure:"enable_backpressure" yaml:"enable_backpressure"`
	BackpressureTimeout time.Duration `mapstructure:"backpressure_timeout" yaml:"backpressure_timeout"`
	HighWater           float64       `mapstructure:"high_water" yaml:"high_water"`
	LowWater            float64       `mapstructure:"low_water" yaml:"low_water"`
}

// LevelConfig mirrors spec §4.5.
type LevelConfig struct {
	AttackTimeMs     float64 `mapstructure:"attack_time_ms" yaml:"attack_time_ms"`
	ReleaseTimeMs    float64 `mapstructure:"release_time_ms" yaml:"release_time_ms"`
	PeakAttackTimeMs float64 `mapstructure:"peak_attack_time_ms" yaml:"peak_attack_time_ms"`
	PeakReleaseTimeMs float64 `mapstructure:"peak_release_time_ms" yaml:"peak_release_time_ms"`
	FloorDb          float64 `mapstructure:"floor_db" yaml:"floor_db"`
	CeilingDb        float64 `mapstructure:"ceiling_db" yaml:"ceiling_db"`
}

// StorageConfig points the master-call loader (C9) at its two source trees.
type StorageConfig struct {
	MasterCallsPath string `mapstructure:"master_calls_path" yaml:"master_calls_path"`
	FeaturesPath    string `mapstructure:"features_path" yaml:"features_path"`
	WriteCache      bool   `mapstructure:"write_cache" yaml:"write_cache"`
}

// LogConfig holds logging settings. Only Level is read (by cmd/gamecalls);
// Rotation and MaxSize are parsed but not applied anywhere.
type LogConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`
	Rotation string `mapstructure:"rotation" yaml:"rotation"` // "size", "daily", "weekly"
	MaxSize  int64  `mapstructure:"max_size_bytes" yaml:"max_size_bytes"`
}

// Settings is the full engine configuration tree, scoped to this engine's
// own knobs rather than a whole application's settings.
type Settings struct {
	SampleRateHz int              `mapstructure:"sample_rate_hz" yaml:"sample_rate_hz"`
	MFCC         MFCCConfig       `mapstructure:"mfcc" yaml:"mfcc"`
	VAD          VADConfig        `mapstructure:"vad" yaml:"vad"`
	DTW          DTWConfig        `mapstructure:"dtw" yaml:"dtw"`
	Scorer       ScorerConfig     `mapstructure:"scorer" yaml:"scorer"`
	BufferPool   BufferPoolConfig `mapstructure:"buffer_pool" yaml:"buffer_pool"`
	RingBuffer   RingBufferConfig `mapstructure:"ring_buffer" yaml:"ring_buffer"`
	Level        LevelConfig      `mapstructure:"level" yaml:"level"`
	Storage      StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Log          LogConfig        `mapstructure:"log" yaml:"log"`
}

// Defaults returns the documented default settings without touching the
// filesystem.
func Defaults() *Settings {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultConfigYAML)); err != nil {
		panic(fmt.Sprintf("conf: embedded default config.yaml is invalid: %v", err))
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		panic(fmt.Sprintf("conf: embedded default config.yaml does not unmarshal: %v", err))
	}
	return &s
}

// Load reads the embedded defaults, merges an optional YAML file at path
// (if non-empty and present), and applies ENGINE_-prefixed environment
// overrides (e.g. ENGINE_SAMPLE_RATE_HZ=48000).
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("conf: reading embedded defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("conf: merging %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("conf: unmarshal: %w", err)
	}
	return &s, nil
}

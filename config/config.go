// Package config defines the recognized configuration surface of the
// slipwire pipeline as a typed, defaulted structure, loadable from YAML.
package config

import (
	"fmt"
	"time"

	"github.com/slipwire/slipwire/bandwidth"
	"github.com/slipwire/slipwire/compress"
	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/format"
	"github.com/slipwire/slipwire/predict"
	"github.com/slipwire/slipwire/reliable"
)

// Config holds every recognized option. Zero values mean "use the
// default"; Normalize fills them in and Validate rejects out-of-range
// values.
type Config struct {
	// Compression.
	CompressionEnabled *bool  `yaml:"compression_enabled"`
	Compression        string `yaml:"compression"` // none, lz77, s2, lz4, zstd
	MinCompressSize    int    `yaml:"min_compress_size"`
	WindowSize         int    `yaml:"window_size"`
	LookaheadSize      int    `yaml:"lookahead_size"`

	// Bandwidth monitoring and quality adaptation.
	TargetBandwidth float64  `yaml:"target_bandwidth"` // bytes per second
	MinQuality      float64  `yaml:"min_quality"`
	MaxQuality      float64  `yaml:"max_quality"`
	MonitorInterval Duration `yaml:"monitor_interval"`

	// Prediction.
	PredictionBufferCapacity int `yaml:"prediction_buffer_capacity"`

	// Reliable delivery.
	AckTimeout Duration `yaml:"ack_timeout"`
	MaxRetries int      `yaml:"max_retries"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "250ms", "1s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "250ms" or "1s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed

	return nil
}

// Default returns the configuration the pipeline runs with when given
// nothing else.
func Default() Config {
	enabled := true
	return Config{
		CompressionEnabled:       &enabled,
		Compression:              "lz77",
		MinCompressSize:          compress.DefaultMinCompressSize,
		WindowSize:               compress.DefaultWindowSize,
		LookaheadSize:            compress.DefaultLookaheadSize,
		TargetBandwidth:          bandwidth.DefaultTargetBandwidth,
		MinQuality:               bandwidth.DefaultMinQuality,
		MaxQuality:               bandwidth.DefaultMaxQuality,
		MonitorInterval:          Duration{time.Second},
		PredictionBufferCapacity: predict.DefaultCapacity,
		AckTimeout:               Duration{reliable.DefaultAckTimeout},
		MaxRetries:               reliable.DefaultMaxRetries,
	}
}

// Normalize fills zero values with defaults, returning the completed
// configuration.
func (c Config) Normalize() Config {
	def := Default()
	if c.CompressionEnabled == nil {
		c.CompressionEnabled = def.CompressionEnabled
	}
	if c.Compression == "" {
		c.Compression = def.Compression
	}
	if c.MinCompressSize == 0 {
		c.MinCompressSize = def.MinCompressSize
	}
	if c.WindowSize == 0 {
		c.WindowSize = def.WindowSize
	}
	if c.LookaheadSize == 0 {
		c.LookaheadSize = def.LookaheadSize
	}
	if c.TargetBandwidth == 0 {
		c.TargetBandwidth = def.TargetBandwidth
	}
	if c.MinQuality == 0 && c.MaxQuality == 0 {
		c.MinQuality = def.MinQuality
		c.MaxQuality = def.MaxQuality
	}
	if c.MonitorInterval.Duration == 0 {
		c.MonitorInterval = def.MonitorInterval
	}
	if c.PredictionBufferCapacity == 0 {
		c.PredictionBufferCapacity = def.PredictionBufferCapacity
	}
	if c.AckTimeout.Duration == 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}

	return c
}

// Validate rejects values outside their documented ranges. Call on a
// normalized configuration.
func (c Config) Validate() error {
	if _, err := c.CompressionType(); err != nil {
		return err
	}
	if c.MinCompressSize < 0 {
		return fmt.Errorf("%w: min_compress_size %d is negative", errs.ErrInvalidConfig, c.MinCompressSize)
	}
	if c.TargetBandwidth <= 0 {
		return fmt.Errorf("%w: target_bandwidth %v must be positive", errs.ErrInvalidConfig, c.TargetBandwidth)
	}
	if c.MinQuality < 0 || c.MaxQuality <= 0 || c.MinQuality > c.MaxQuality {
		return fmt.Errorf("%w: quality range [%v, %v]", errs.ErrInvalidConfig, c.MinQuality, c.MaxQuality)
	}
	if c.MonitorInterval.Duration <= 0 {
		return fmt.Errorf("%w: monitor_interval %v must be positive", errs.ErrInvalidConfig, c.MonitorInterval.Duration)
	}
	if c.PredictionBufferCapacity < 2 {
		return fmt.Errorf("%w: prediction_buffer_capacity %d below minimum 2", errs.ErrInvalidConfig, c.PredictionBufferCapacity)
	}
	if c.AckTimeout.Duration <= 0 {
		return fmt.Errorf("%w: ack_timeout %v must be positive", errs.ErrInvalidConfig, c.AckTimeout.Duration)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries %d below 1", errs.ErrInvalidConfig, c.MaxRetries)
	}

	// The LZ77 codec validates its own window/lookahead ranges.
	if c.Compression == "lz77" {
		if _, err := compress.NewLZ77CodecSized(c.WindowSize, c.LookaheadSize); err != nil {
			return err
		}
	}

	return nil
}

// CompressionType maps the configured algorithm name to its enum.
// Disabled compression always maps to CompressionNone.
func (c Config) CompressionType() (format.CompressionType, error) {
	if c.CompressionEnabled != nil && !*c.CompressionEnabled {
		return format.CompressionNone, nil
	}

	switch c.Compression {
	case "", "lz77":
		return format.CompressionLZ77, nil
	case "none":
		return format.CompressionNone, nil
	case "s2":
		return format.CompressionS2, nil
	case "lz4":
		return format.CompressionLZ4, nil
	case "zstd":
		return format.CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: unknown compression %q", errs.ErrInvalidConfig, c.Compression)
	}
}

// Package config defines the daemon configuration and its viper-based
// loader: YAML file, DAQSTREAM_* environment overrides, and programmatic
// defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Config is the top-level configuration struct for daqstream.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Control ControlConfig `mapstructure:"control"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Catalog CatalogConfig `mapstructure:"catalog"`
}

// CaptureConfig holds the sampling and chunking knobs.
type CaptureConfig struct {
	// RateHz is the initial requested sample rate.
	RateHz float64 `mapstructure:"rate_hz"`
	// ChunkDuration is the wall-clock span of one chunk, e.g. "2s".
	ChunkDuration time.Duration `mapstructure:"chunk_duration"`
	// RingSize is the ring buffer capacity as a human-readable byte size,
	// e.g. "4 MiB".
	RingSize string `mapstructure:"ring_size"`
	// OutputDir receives the committed chunk files.
	OutputDir string `mapstructure:"output_dir"`
	// Device names the sampling source; empty selects the sole registered one.
	Device string `mapstructure:"device"`
	// Channel is the device channel selector.
	Channel int `mapstructure:"channel"`
	// ReadTimeout bounds one device read.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// IdlePoll is the producer's capture-flag poll interval while idle.
	IdlePoll time.Duration `mapstructure:"idle_poll"`
}

// ControlConfig holds the control-plane socket settings.
type ControlConfig struct {
	// Socket is the Unix stream socket path for the control protocol.
	Socket string `mapstructure:"socket"`
}

// MetricsConfig holds the optional Prometheus scrape endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// CatalogConfig holds the chunk index settings.
type CatalogConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// File is the SQLite database path; empty means catalog.db inside the
	// output directory.
	File string `mapstructure:"file"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidRate indicates the capture rate is out of range.
	ErrInvalidRate = errors.New("capture.rate_hz must be greater than 0 and at most 100000")
	// ErrInvalidChunkDuration indicates a non-positive chunk duration.
	ErrInvalidChunkDuration = errors.New("capture.chunk_duration must be positive")
	// ErrInvalidRingSize indicates an unparsable, too-small or unaligned
	// ring size.
	ErrInvalidRingSize = errors.New("capture.ring_size must be a byte size holding a whole number of 8-byte sample records")
	// ErrInvalidOutputDir indicates an empty output directory.
	ErrInvalidOutputDir = errors.New("capture.output_dir must not be empty")
	// ErrInvalidSocket indicates an empty control socket path.
	ErrInvalidSocket = errors.New("control.socket must not be empty")
	// ErrInvalidMetricsAddr indicates metrics are enabled without an address.
	ErrInvalidMetricsAddr = errors.New("metrics.addr must not be empty when metrics are enabled")
)

// maxRateHz mirrors the control protocol's SET_RATE upper bound.
const maxRateHz = 100000.0

// recordSize is the byte size of one sample.
const recordSize = 8

// Validate checks the decoded configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Capture.RateHz <= 0 || c.Capture.RateHz > maxRateHz {
		return ErrInvalidRate
	}

	if c.Capture.ChunkDuration <= 0 {
		return ErrInvalidChunkDuration
	}

	_, err := c.RingSizeBytes()
	if err != nil {
		return err
	}

	if c.Capture.OutputDir == "" {
		return ErrInvalidOutputDir
	}

	if c.Control.Socket == "" {
		return ErrInvalidSocket
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return ErrInvalidMetricsAddr
	}

	return nil
}

// RingSizeBytes parses the human-readable ring size into bytes.
func (c *Config) RingSizeBytes() (int, error) {
	size, err := humanize.ParseBytes(c.Capture.RingSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidRingSize, c.Capture.RingSize, err)
	}

	// An unaligned capacity would let a drop-oldest overflow advance the
	// read cursor mid-record, shearing every sample decoded afterwards.
	if size < recordSize || size%recordSize != 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRingSize, c.Capture.RingSize)
	}

	return int(size), nil
}

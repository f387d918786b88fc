package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.InDelta(t, 4000.0, cfg.Capture.RateHz, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Capture.ChunkDuration)
	assert.Equal(t, "DAD_Files", cfg.Capture.OutputDir)
	assert.Equal(t, 4, cfg.Capture.Channel)
	assert.Equal(t, "/tmp/sensor_ctrl.sock", cfg.Control.Socket)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Catalog.Enabled)

	size, err := cfg.RingSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, 4*1024*1024, size)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daq.yaml")

	yaml := `
capture:
  rate_hz: 120
  chunk_duration: 500ms
  ring_size: 64 KiB
  output_dir: /var/lib/daq
control:
  socket: /run/daq.sock
metrics:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.InDelta(t, 120.0, cfg.Capture.RateHz, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.Capture.ChunkDuration)
	assert.Equal(t, "/var/lib/daq", cfg.Capture.OutputDir)
	assert.Equal(t, "/run/daq.sock", cfg.Control.Socket)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)

	size, err := cfg.RingSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, 64*1024, size)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Capture: CaptureConfig{
				RateHz:        4000,
				ChunkDuration: 2 * time.Second,
				RingSize:      "4 MiB",
				OutputDir:     "out",
			},
			Control: ControlConfig{Socket: "/tmp/s.sock"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero rate", mutate: func(c *Config) { c.Capture.RateHz = 0 }, wantErr: ErrInvalidRate},
		{name: "rate too high", mutate: func(c *Config) { c.Capture.RateHz = 1e9 }, wantErr: ErrInvalidRate},
		{name: "zero duration", mutate: func(c *Config) { c.Capture.ChunkDuration = 0 }, wantErr: ErrInvalidChunkDuration},
		{name: "bad ring size", mutate: func(c *Config) { c.Capture.RingSize = "a lot" }, wantErr: ErrInvalidRingSize},
		{name: "tiny ring size", mutate: func(c *Config) { c.Capture.RingSize = "4" }, wantErr: ErrInvalidRingSize},
		{name: "unaligned ring size", mutate: func(c *Config) { c.Capture.RingSize = "1001B" }, wantErr: ErrInvalidRingSize},
		{name: "empty output dir", mutate: func(c *Config) { c.Capture.OutputDir = "" }, wantErr: ErrInvalidOutputDir},
		{name: "empty socket", mutate: func(c *Config) { c.Control.Socket = "" }, wantErr: ErrInvalidSocket},
		{
			name:    "metrics without addr",
			mutate:  func(c *Config) { c.Metrics.Enabled = true },
			wantErr: ErrInvalidMetricsAddr,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

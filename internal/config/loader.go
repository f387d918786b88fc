package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".daqstream"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for daqstream settings.
const envPrefix = "DAQSTREAM"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Defaults mirror the reference logger: 4 kHz scan, 2-second chunks, a
// 4 MiB ring, DAD_Files output, /tmp/sensor_ctrl.sock control socket.
const (
	DefaultRateHz        = 4000.0
	DefaultChunkDuration = "2s"
	DefaultRingSize      = "4 MiB"
	DefaultOutputDir     = "DAD_Files"
	DefaultChannel       = 4
	DefaultReadTimeout   = "1s"
	DefaultIdlePoll      = "200ms"
	DefaultSocket        = "/tmp/sensor_ctrl.sock"
	DefaultMetricsAddr   = "127.0.0.1:9464"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("capture.rate_hz", DefaultRateHz)
	viperCfg.SetDefault("capture.chunk_duration", DefaultChunkDuration)
	viperCfg.SetDefault("capture.ring_size", DefaultRingSize)
	viperCfg.SetDefault("capture.output_dir", DefaultOutputDir)
	viperCfg.SetDefault("capture.device", "")
	viperCfg.SetDefault("capture.channel", DefaultChannel)
	viperCfg.SetDefault("capture.read_timeout", DefaultReadTimeout)
	viperCfg.SetDefault("capture.idle_poll", DefaultIdlePoll)

	viperCfg.SetDefault("control.socket", DefaultSocket)

	viperCfg.SetDefault("metrics.enabled", false)
	viperCfg.SetDefault("metrics.addr", DefaultMetricsAddr)

	viperCfg.SetDefault("catalog.enabled", true)
	viperCfg.SetDefault("catalog.file", "")
}

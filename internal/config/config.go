// Package config loads optional tool-wide defaults from a cachesim.yaml
// configuration file and CACHESIM_* environment variables. Explicit command
// line flags always win over configured values.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configurable defaults of the CLI.
type Config struct {
	// LogLevel is the minimum slog level: debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`

	// MetricsAddr enables the Prometheus endpoint when non-empty, e.g.
	// "127.0.0.1:9090".
	MetricsAddr string `mapstructure:"metrics_addr"`

	// StatsHeader controls the CSV header row of summary output.
	StatsHeader bool `mapstructure:"stats_header"`

	// CacheProcessorCount is the default number of simulated cache
	// processors.
	CacheProcessorCount int `mapstructure:"cache_processor_count"`

	// SharedStorage makes all cache processors share one storage volume.
	SharedStorage bool `mapstructure:"shared_storage"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:            "info",
		StatsHeader:         true,
		CacheProcessorCount: 1,
		SharedStorage:       true,
	}
}

// Load reads the configuration. explicitFile names a config file to require;
// when empty, cachesim.yaml is searched in the working directory and
// $HOME/.config/cachesim, and a missing file is not an error.
func Load(explicitFile string) (Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("metrics_addr", defaults.MetricsAddr)
	v.SetDefault("stats_header", defaults.StatsHeader)
	v.SetDefault("cache_processor_count", defaults.CacheProcessorCount)
	v.SetDefault("shared_storage", defaults.SharedStorage)

	v.SetEnvPrefix("CACHESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.SetConfigName("cachesim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/cachesim")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

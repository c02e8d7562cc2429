// Package config provides configuration management for the e-graph engine.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine: how hard saturation works
// before giving up, how many goroutines the worker pool may use, and how
// the process logs and reports telemetry.
type Config struct {
	Saturation SaturationConfig `mapstructure:"saturation"`
	Parallel   ParallelConfig   `mapstructure:"parallel"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

// SaturationConfig bounds how long a Strategy is allowed to run.
type SaturationConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	// TimeoutSeconds is the wall-clock budget withTimeout installs around
	// a driven strategy; 0 disables the timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// RebaseEvery runs a Rebase pass every N iterations; 0 disables it.
	RebaseEvery int `mapstructure:"rebase_every"`
}

// ParallelConfig sizes the worker pool backing pkg/parallel.Concurrent.
type ParallelConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
}

// TelemetryConfig toggles OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path, falling back to
// defaults when no file is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/egraph")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from in-memory content (useful for
// testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("saturation.max_iterations", 1000)
	v.SetDefault("saturation.timeout_seconds", 0)
	v.SetDefault("saturation.rebase_every", 0)

	v.SetDefault("parallel.max_workers", 8)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "egraph")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.metrics_enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Saturation.MaxIterations < 1 {
		return fmt.Errorf("saturation max_iterations must be at least 1")
	}
	if c.Parallel.MaxWorkers < 1 {
		return fmt.Errorf("parallel max_workers must be at least 1")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry sampling_ratio must be in [0,1]")
	}
	return nil
}

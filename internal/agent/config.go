package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HyperbolicLabs/inference-benchmarks/internal/export"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner/aiperf"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner/osworld"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/telemetry"
)

// HeartbeatConfig configures the live progress stream emitted while a
// benchmark is still running.
type HeartbeatConfig struct {
	// Enabled toggles the heartbeat stream. Defaults to off.
	Enabled bool `yaml:"enabled"`

	// Interval is how often heartbeat gauges are pushed.
	// Defaults to 30s.
	Interval time.Duration `yaml:"interval"`
}

// Config is the top-level configuration for the benchmark runner.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Telemetry configures the metrics export to the telemetry API.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`

	// Heartbeat configures the live progress stream.
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`

	// AIPerf configures the aiperf load-generation benchmark.
	AIPerf aiperf.Config `yaml:"aiperf"`

	// OSWorld configures the OSWorld agent evaluation.
	OSWorld osworld.Config `yaml:"osworld"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Health: export.HealthConfig{
			Addr: ":9090",
		},
		Heartbeat: HeartbeatConfig{
			Interval: 30 * time.Second,
		},
	}
}

// LoadConfig reads and parses a YAML configuration file. An empty path
// returns the defaults; every field can also be supplied through the
// environment, so running without a config file is normal.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency. The benchmark
// sections are validated by their runners, since only one of them is
// active per invocation.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		// Valid.
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}

	if c.Heartbeat.Enabled && c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive")
	}

	return nil
}

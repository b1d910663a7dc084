package telemetry

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Environment variables consulted when the corresponding config
// fields are left unset.
const (
	EnvAPIKey  = "DD_API_KEY"
	EnvAddress = "DD_API_HOST"
)

// DefaultAddress is the production metrics API endpoint.
const DefaultAddress = "https://api.datadoghq.com"

// Config configures the telemetry exporter.
type Config struct {
	// APIKey authenticates submissions. Falls back to the DD_API_KEY
	// environment variable when empty. A missing key does not fail
	// validation: export calls short-circuit with ErrMissingAPIKey
	// instead, so a benchmark run never aborts over telemetry.
	APIKey string `yaml:"api_key"`

	// Address is the metrics API base URL. Falls back to DD_API_HOST,
	// then to DefaultAddress. Override for staging or tests.
	Address string `yaml:"address"`

	// BatchSize is the maximum number of samples per HTTP submission.
	// Defaults to 20.
	BatchSize int `yaml:"batch_size"`

	// MaxRetries is the maximum number of delivery attempts per batch.
	// Defaults to 3.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the first retry backoff delay. Subsequent delays
	// double (1s, 2s, 4s, ...). Defaults to 1s.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the backoff delay. Defaults to 30s.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Jitter is the backoff randomization factor in [0, 1).
	// 0 disables jitter. Defaults to 0.
	Jitter float64 `yaml:"jitter"`

	// RequestTimeout bounds each individual HTTP delivery attempt.
	// Defaults to 30s.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Compression specifies the request body compression.
	// Valid values: none, gzip, zstd, deflate, snappy.
	// Defaults to gzip.
	Compression string `yaml:"compression"`

	// QueueSize is the maximum number of queued samples for the
	// background stream. Defaults to 1024.
	QueueSize int `yaml:"queue_size"`

	// FlushInterval is how long the background stream waits before
	// flushing a partial batch. Defaults to 10s.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// AsyncWaitTimeout is how long callers should wait for an async
	// export before giving up on the result. Defaults to 30s.
	AsyncWaitTimeout time.Duration `yaml:"async_wait_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:          DefaultAddress,
		BatchSize:        20,
		MaxRetries:       3,
		BaseDelay:        time.Second,
		MaxDelay:         30 * time.Second,
		RequestTimeout:   30 * time.Second,
		Compression:      CompressionGzip,
		QueueSize:        1024,
		FlushInterval:    10 * time.Second,
		AsyncWaitTimeout: 30 * time.Second,
	}
}

// ApplyDefaults applies default values to unset fields, consulting
// the environment for the API key and address.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}

	if c.Address == "" {
		c.Address = os.Getenv(EnvAddress)
	}

	if c.Address == "" {
		c.Address = defaults.Address
	}

	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = defaults.BaseDelay
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = defaults.MaxDelay
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}

	if c.Compression == "" {
		c.Compression = defaults.Compression
	}

	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}

	if c.FlushInterval <= 0 {
		c.FlushInterval = defaults.FlushInterval
	}

	if c.AsyncWaitTimeout <= 0 {
		c.AsyncWaitTimeout = defaults.AsyncWaitTimeout
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}

	if c.BatchSize <= 0 {
		return errors.New("batch_size must be greater than 0")
	}

	if c.MaxRetries <= 0 {
		return errors.New("max_retries must be greater than 0")
	}

	if c.Jitter < 0 || c.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0, 1), got %v", c.Jitter)
	}

	if c.MaxDelay < c.BaseDelay {
		return errors.New("max_delay cannot be less than base_delay")
	}

	switch c.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd,
		CompressionDeflate, CompressionSnappy:
		// Valid.
	default:
		return errors.New("invalid compression type: " + c.Compression)
	}

	return nil
}

package aiperf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config configures the AIPerf benchmark wrapper. Every field falls
// back to the corresponding environment variable when unset, so the
// wrapper runs without a config file inside container jobs.
type Config struct {
	// Binary is the aiperf executable. Defaults to "aiperf".
	Binary string `yaml:"binary"`

	// Model is the model identifier to benchmark.
	Model string `yaml:"model"`

	// EndpointURL is the inference endpoint under test.
	EndpointURL string `yaml:"endpoint_url"`

	// EndpointType is one of chat, completions, embeddings.
	// Defaults to chat.
	EndpointType string `yaml:"endpoint_type"`

	// Concurrency is the number of concurrent requests. Defaults to 10.
	Concurrency int `yaml:"concurrency"`

	// RequestCount is the total number of requests. Ignored when
	// Duration is set; aiperf rejects both together. Defaults to 100.
	RequestCount int `yaml:"request_count"`

	// Duration runs the benchmark for a fixed time instead of a
	// request count.
	Duration time.Duration `yaml:"duration"`

	// GracePeriod is the post-duration drain window. Only meaningful
	// together with Duration.
	GracePeriod time.Duration `yaml:"grace_period"`

	// Streaming enables streaming responses. Defaults to true.
	Streaming *bool `yaml:"streaming"`

	// RequestTimeout bounds each benchmark request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// OutputTokensMean is the mean output tokens per response.
	OutputTokensMean int `yaml:"output_tokens_mean"`

	// OutputDir is where aiperf writes its artifacts.
	// Defaults to /tmp/aiperf-results.
	OutputDir string `yaml:"output_dir"`

	// CFAccessClientID and CFAccessClientSecret pass Cloudflare
	// Access credentials through to the endpoint as headers.
	CFAccessClientID     string `yaml:"cf_access_client_id"`
	CFAccessClientSecret string `yaml:"cf_access_client_secret"`

	// ExtraArgs are appended verbatim to the aiperf command line.
	ExtraArgs []string `yaml:"extra_args"`

	// ClusterName tags exported metrics with the cluster identity.
	// Defaults to inference-cluster.
	ClusterName string `yaml:"cluster_name"`
}

// Environment variables consulted by ApplyDefaults.
const (
	envModel            = "MODEL_NAME"
	envEndpointURL      = "ENDPOINT_URL"
	envEndpointType     = "ENDPOINT_TYPE"
	envConcurrency      = "CONCURRENCY"
	envRequestCount     = "REQUEST_COUNT"
	envStreaming        = "STREAMING"
	envOutputDir        = "OUTPUT_DIR"
	envDuration         = "BENCHMARK_DURATION"
	envGracePeriod      = "BENCHMARK_GRACE_PERIOD"
	envRequestTimeout   = "REQUEST_TIMEOUT"
	envOutputTokensMean = "OUTPUT_TOKENS_MEAN"
	envCFAccessClientID = "CF_ACCESS_CLIENT_ID"
	envCFAccessSecret   = "CF_ACCESS_CLIENT_SECRET"
	envClusterName      = "CLUSTER_NAME"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Binary:       "aiperf",
		EndpointType: "chat",
		Concurrency:  10,
		RequestCount: 100,
		OutputDir:    "/tmp/aiperf-results",
		ClusterName:  "inference-cluster",
	}
}

// ApplyDefaults fills unset fields from the environment, then from
// the package defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Model == "" {
		c.Model = os.Getenv(envModel)
	}

	if c.EndpointURL == "" {
		c.EndpointURL = os.Getenv(envEndpointURL)
	}

	if c.EndpointType == "" {
		c.EndpointType = os.Getenv(envEndpointType)
	}

	if c.OutputDir == "" {
		c.OutputDir = os.Getenv(envOutputDir)
	}

	if c.ClusterName == "" {
		c.ClusterName = os.Getenv(envClusterName)
	}

	if c.CFAccessClientID == "" {
		c.CFAccessClientID = os.Getenv(envCFAccessClientID)
	}

	if c.CFAccessClientSecret == "" {
		c.CFAccessClientSecret = os.Getenv(envCFAccessSecret)
	}

	if c.Concurrency <= 0 {
		c.Concurrency = envInt(envConcurrency, 0)
	}

	if c.RequestCount <= 0 {
		c.RequestCount = envInt(envRequestCount, 0)
	}

	if c.OutputTokensMean <= 0 {
		c.OutputTokensMean = envInt(envOutputTokensMean, 0)
	}

	if c.Duration <= 0 {
		c.Duration = envSeconds(envDuration)
	}

	if c.GracePeriod <= 0 {
		c.GracePeriod = envSeconds(envGracePeriod)
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = envSeconds(envRequestTimeout)
	}

	if c.Streaming == nil {
		streaming := true
		if v := os.Getenv(envStreaming); v != "" {
			streaming = strings.EqualFold(v, "true")
		}

		c.Streaming = &streaming
	}

	if c.Binary == "" {
		c.Binary = defaults.Binary
	}

	if c.EndpointType == "" {
		c.EndpointType = defaults.EndpointType
	}

	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}

	if c.RequestCount <= 0 {
		c.RequestCount = defaults.RequestCount
	}

	if c.OutputDir == "" {
		c.OutputDir = defaults.OutputDir
	}

	if c.ClusterName == "" {
		c.ClusterName = defaults.ClusterName
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required (or set %s)", envModel)
	}

	if c.EndpointURL == "" {
		return fmt.Errorf("endpoint_url is required (or set %s)", envEndpointURL)
	}

	switch c.EndpointType {
	case "chat", "completions", "embeddings":
		// Valid.
	default:
		return fmt.Errorf("invalid endpoint_type: %s", c.EndpointType)
	}

	return nil
}

// IsStreaming returns whether streaming responses are enabled.
func (c *Config) IsStreaming() bool {
	if c.Streaming == nil {
		return true
	}

	return *c.Streaming
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

// envSeconds parses an environment variable holding a number of
// seconds, matching the units the benchmark scripts historically used.
func envSeconds(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}

	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}

	return time.Duration(secs * float64(time.Second))
}

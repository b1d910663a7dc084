package aiperf

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	r, err := New(log, cfg)
	require.NoError(t, err)

	return r
}

func baseConfig() Config {
	return Config{
		Model:       "Qwen/Qwen3-VL-32B-Thinking",
		EndpointURL: "https://inference.example.com",
	}
}

func TestArgs_RequestCountMode(t *testing.T) {
	r := testRunner(t, baseConfig())

	args := r.args()

	assert.Equal(t, "profile", args[0])
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "Qwen/Qwen3-VL-32B-Thinking")
	assert.Contains(t, args, "--request-count")
	assert.Contains(t, args, "100")
	assert.Contains(t, args, "--ui-type")
	assert.Contains(t, args, "--no-server-metrics")
	assert.Contains(t, args, "--streaming")
	assert.NotContains(t, args, "--benchmark-duration")
}

func TestArgs_DurationModeExcludesRequestCount(t *testing.T) {
	cfg := baseConfig()
	cfg.Duration = 300 * time.Second
	cfg.GracePeriod = 30 * time.Second

	r := testRunner(t, cfg)
	args := r.args()

	assert.Contains(t, args, "--benchmark-duration")
	assert.Contains(t, args, "300")
	assert.Contains(t, args, "--benchmark-grace-period")
	assert.Contains(t, args, "30")
	// aiperf rejects both flags at once.
	assert.NotContains(t, args, "--request-count")
}

func TestArgs_StreamingDisabled(t *testing.T) {
	streaming := false

	cfg := baseConfig()
	cfg.Streaming = &streaming

	r := testRunner(t, cfg)
	assert.NotContains(t, r.args(), "--streaming")
}

func TestArgs_CloudflareAccessHeaders(t *testing.T) {
	cfg := baseConfig()
	cfg.CFAccessClientID = "client-id"
	cfg.CFAccessClientSecret = "client-secret"

	r := testRunner(t, cfg)
	args := r.args()

	assert.Contains(t, args, "CF-Access-Client-Id: client-id")
	assert.Contains(t, args, "CF-Access-Client-Secret: client-secret")
}

func TestArgs_ExtraArgsAppended(t *testing.T) {
	cfg := baseConfig()
	cfg.ExtraArgs = []string{"--warmup-request-count", "5"}

	r := testRunner(t, cfg)
	args := r.args()

	assert.Equal(t, "5", args[len(args)-1])
	assert.Equal(t, "--warmup-request-count", args[len(args)-2])
}

func TestBenchmarkEnv(t *testing.T) {
	env := benchmarkEnv([]string{
		"PATH=/usr/bin",
		"TERM=xterm-256color",
		"AIPERF_SERVICE_PROFILE_START_TIMEOUT=120.0",
	})

	assert.Contains(t, env, "PATH=/usr/bin")
	assert.Contains(t, env, "TERM=dumb")
	assert.NotContains(t, env, "TERM=xterm-256color")
	assert.Contains(t, env, "CI=true")
	assert.Contains(t, env, "NO_COLOR=1")

	// Existing AIPerf timeout values win over the defaults.
	assert.Contains(t, env, "AIPERF_SERVICE_PROFILE_START_TIMEOUT=120.0")
	assert.NotContains(t, env, "AIPERF_SERVICE_PROFILE_START_TIMEOUT=300.0")
	assert.Contains(t, env, "AIPERF_SERVICE_PROFILE_CONFIGURE_TIMEOUT=600.0")
}

func TestTags(t *testing.T) {
	r := testRunner(t, baseConfig())

	assert.ElementsMatch(t, []string{
		"model:Qwen/Qwen3-VL-32B-Thinking",
		"endpoint:https://inference.example.com",
		"benchmark:aiperf",
		"cluster_name:inference-cluster",
	}, r.Tags())
}

func TestNew_RequiresModelAndEndpoint(t *testing.T) {
	log := logrus.New()

	// Clear the env fallbacks so validation actually fires.
	t.Setenv(envModel, "")
	t.Setenv(envEndpointURL, "")

	_, err := New(log, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")

	_, err = New(log, Config{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint_url is required")
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "300", formatSeconds(300*time.Second))
	assert.Equal(t, "1.5", formatSeconds(1500*time.Millisecond))
}

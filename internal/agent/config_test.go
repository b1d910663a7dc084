package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Health.Addr)
	assert.False(t, cfg.Health.Enabled)
	assert.False(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.Interval)
}

func TestLoadConfig(t *testing.T) {
	yaml := `
log_level: debug
telemetry:
  address: "https://telemetry.example.com"
  batch_size: 10
  max_retries: 5
  compression: zstd
health:
  enabled: true
  addr: ":9091"
heartbeat:
  enabled: true
  interval: 15s
aiperf:
  model: "llama-3"
  endpoint_url: "http://vllm:8000"
  concurrency: 64
osworld:
  model: "qwen3-vl"
  openai_base_url: "http://vllm:8000/v1"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://telemetry.example.com", cfg.Telemetry.Address)
	assert.Equal(t, 10, cfg.Telemetry.BatchSize)
	assert.Equal(t, 5, cfg.Telemetry.MaxRetries)
	assert.Equal(t, "zstd", cfg.Telemetry.Compression)
	assert.True(t, cfg.Health.Enabled)
	assert.Equal(t, ":9091", cfg.Health.Addr)
	assert.True(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, "llama-3", cfg.AIPerf.Model)
	assert.Equal(t, 64, cfg.AIPerf.Concurrency)
	assert.Equal(t, "qwen3-vl", cfg.OSWorld.Model)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	// Use a tab character at the start which is invalid YAML indentation.
	require.NoError(t, os.WriteFile(path, []byte("\t- bad"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log_level")
}

func TestValidate_HeartbeatInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Heartbeat.Enabled = true
	cfg.Heartbeat.Interval = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat.interval must be positive")
}

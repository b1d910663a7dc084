package osworld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(envModel, "env-model")
	t.Setenv(envOpenAIBaseURL, "http://env:8000/v1")
	t.Setenv(envNumEnvs, "4")
	t.Setenv(envMaxSteps, "30")
	t.Setenv(envDomain, "gimp")
	t.Setenv(envAdditionalArgs, "--foo bar")

	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "env-model", cfg.Model)
	assert.Equal(t, "http://env:8000/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, 4, cfg.NumEnvs)
	assert.Equal(t, 30, cfg.MaxSteps)
	assert.Equal(t, "gimp", cfg.Domain)
	assert.Equal(t, []string{"--foo", "bar"}, cfg.ExtraArgs)

	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_Fallbacks(t *testing.T) {
	clearEnv(t)

	cfg := Config{Model: "m", OpenAIBaseURL: "http://e"}
	cfg.ApplyDefaults()

	assert.Equal(t, "docker", cfg.ProviderName)
	assert.Equal(t, 1, cfg.NumEnvs)
	assert.Equal(t, 15, cfg.MaxSteps)
	assert.Equal(t, 32768, cfg.MaxTokens)
	assert.Equal(t, "all", cfg.Domain)
	assert.Equal(t, "/osworld/results", cfg.ResultDir)
	assert.Equal(t, "/osworld", cfg.WorkDir)
	assert.Equal(t, "run_multienv_qwen3vl.py", cfg.Script)
	assert.Equal(t, "dummy-key", cfg.OpenAIAPIKey)
	assert.Equal(t, "inference-cluster", cfg.ClusterName)
}

func TestApplyDefaults_ExplicitWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(envModel, "env-model")
	t.Setenv(envNumEnvs, "8")

	cfg := Config{Model: "explicit", NumEnvs: 2}
	cfg.ApplyDefaults()

	assert.Equal(t, "explicit", cfg.Model)
	assert.Equal(t, 2, cfg.NumEnvs)
}

func TestEnvIntOr_Invalid(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 7, envIntOr("TEST_INT", 7))

	t.Setenv("TEST_INT", "-3")
	assert.Equal(t, 7, envIntOr("TEST_INT", 7))
}

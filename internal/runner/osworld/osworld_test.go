package osworld

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		envModel, envProviderName, envNumEnvs, envMaxSteps, envMaxTokens,
		envDomain, envTestMetaPath, envResultDir, envActionSpace,
		envObservationType, envAdditionalArgs, envOpenAIBaseURL,
		envOpenAIAPIKey, envClusterName,
	} {
		t.Setenv(name, "")
	}
}

func TestNew_RequiresModelAndBaseURL(t *testing.T) {
	clearEnv(t)

	_, err := New(testLog(), Config{OpenAIBaseURL: "http://vllm:8000/v1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")

	_, err = New(testLog(), Config{Model: "qwen3-vl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai_base_url is required")
}

func TestTags(t *testing.T) {
	clearEnv(t)

	r, err := New(testLog(), Config{
		Model:         "qwen3-vl",
		Domain:        "chrome",
		OpenAIBaseURL: "http://vllm:8000/v1",
		ClusterName:   "staging",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"model:qwen3-vl",
		"domain:chrome",
		"benchmark:osworld",
		"cluster_name:staging",
	}, r.Tags())
	assert.Equal(t, "osworld", r.Name())
	assert.Equal(t, MetricPrefix, r.MetricPrefix())
}

func TestArgs(t *testing.T) {
	clearEnv(t)

	r, err := New(testLog(), Config{
		Model:         "qwen3-vl",
		OpenAIBaseURL: "http://vllm:8000/v1",
		ExtraArgs:     []string{"--region", "us-east"},
	})
	require.NoError(t, err)

	args := r.args()

	assert.Equal(t, "run_multienv_qwen3vl.py", args[0])
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "qwen3-vl")
	assert.Contains(t, args, "--provider_name")
	assert.Contains(t, args, "docker")
	assert.Contains(t, args, "--headless")
	assert.Contains(t, args, "--action_space")
	assert.Contains(t, args, "pyautogui")
	assert.Contains(t, args, "--observation_type")
	assert.Contains(t, args, "screenshot")

	// Extra args go last, verbatim.
	assert.Equal(t, []string{"--region", "us-east"}, args[len(args)-2:])
}

func TestWriteEnvFile(t *testing.T) {
	clearEnv(t)

	workDir := filepath.Join(t.TempDir(), "osworld")

	r, err := New(testLog(), Config{
		Model:         "qwen3-vl",
		OpenAIBaseURL: "http://vllm:8000/v1",
		OpenAIAPIKey:  "passthrough-key",
		WorkDir:       workDir,
	})
	require.NoError(t, err)

	require.NoError(t, r.writeEnvFile())

	data, err := os.ReadFile(filepath.Join(workDir, ".env"))
	require.NoError(t, err)

	assert.Equal(t,
		"OPENAI_BASE_URL=http://vllm:8000/v1\n"+
			"OPENAI_API_KEY=passthrough-key\n"+
			"OPENAI_MODEL=qwen3-vl\n",
		string(data),
	)

	info, err := os.Stat(filepath.Join(workDir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

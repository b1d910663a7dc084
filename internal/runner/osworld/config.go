package osworld

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config configures the OSWorld evaluation wrapper. Every field falls
// back to the corresponding environment variable when unset.
type Config struct {
	// Model is the model identifier under evaluation.
	Model string `yaml:"model"`

	// ProviderName selects the desktop environment provider.
	// Defaults to docker.
	ProviderName string `yaml:"provider_name"`

	// NumEnvs is the number of parallel desktop environments.
	// Defaults to 1.
	NumEnvs int `yaml:"num_envs"`

	// MaxSteps bounds agent steps per task. Defaults to 15.
	MaxSteps int `yaml:"max_steps"`

	// MaxTokens bounds model output per call. Defaults to 32768.
	MaxTokens int `yaml:"max_tokens"`

	// Domain restricts the task set. Defaults to all.
	Domain string `yaml:"domain"`

	// TestMetaPath is the task manifest consumed by the evaluation
	// script.
	TestMetaPath string `yaml:"test_meta_path"`

	// ResultDir is where the evaluation writes per-task results.
	ResultDir string `yaml:"result_dir"`

	// ActionSpace selects the agent action encoding.
	// Defaults to pyautogui.
	ActionSpace string `yaml:"action_space"`

	// ObservationType selects the agent observation encoding.
	// Defaults to screenshot.
	ObservationType string `yaml:"observation_type"`

	// ExtraArgs are appended verbatim to the evaluation command line.
	ExtraArgs []string `yaml:"extra_args"`

	// OpenAIBaseURL and OpenAIAPIKey are written to the .env file the
	// evaluation agent reads. The key is a passthrough credential.
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`

	// WorkDir is the OSWorld checkout the evaluation runs in.
	// Defaults to /osworld.
	WorkDir string `yaml:"work_dir"`

	// Script is the evaluation entrypoint, relative to WorkDir.
	Script string `yaml:"script"`

	// ClusterName tags exported metrics with the cluster identity.
	ClusterName string `yaml:"cluster_name"`
}

// Environment variables consulted by ApplyDefaults.
const (
	envModel           = "MODEL_NAME"
	envProviderName    = "PROVIDER_NAME"
	envNumEnvs         = "NUM_ENVS"
	envMaxSteps        = "MAX_STEPS"
	envMaxTokens       = "MAX_TOKENS"
	envDomain          = "DOMAIN"
	envTestMetaPath    = "TEST_META_PATH"
	envResultDir       = "RESULT_DIR"
	envActionSpace     = "ACTION_SPACE"
	envObservationType = "OBSERVATION_TYPE"
	envAdditionalArgs  = "ADDITIONAL_ARGS"
	envOpenAIBaseURL   = "OPENAI_BASE_URL"
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	envClusterName     = "CLUSTER_NAME"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ProviderName:    "docker",
		NumEnvs:         1,
		MaxSteps:        15,
		MaxTokens:       32768,
		Domain:          "all",
		TestMetaPath:    "evaluation_examples/test_nogdrive.json",
		ResultDir:       "/osworld/results",
		ActionSpace:     "pyautogui",
		ObservationType: "screenshot",
		WorkDir:         "/osworld",
		Script:          "run_multienv_qwen3vl.py",
		OpenAIAPIKey:    "dummy-key",
		ClusterName:     "inference-cluster",
	}
}

// ApplyDefaults fills unset fields from the environment, then from
// the package defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	stringDefaults := []struct {
		field    *string
		env      string
		fallback string
	}{
		{&c.Model, envModel, ""},
		{&c.ProviderName, envProviderName, defaults.ProviderName},
		{&c.Domain, envDomain, defaults.Domain},
		{&c.TestMetaPath, envTestMetaPath, defaults.TestMetaPath},
		{&c.ResultDir, envResultDir, defaults.ResultDir},
		{&c.ActionSpace, envActionSpace, defaults.ActionSpace},
		{&c.ObservationType, envObservationType, defaults.ObservationType},
		{&c.OpenAIBaseURL, envOpenAIBaseURL, ""},
		{&c.OpenAIAPIKey, envOpenAIAPIKey, defaults.OpenAIAPIKey},
		{&c.ClusterName, envClusterName, defaults.ClusterName},
	}

	for _, d := range stringDefaults {
		if *d.field == "" {
			*d.field = os.Getenv(d.env)
		}

		if *d.field == "" {
			*d.field = d.fallback
		}
	}

	if c.NumEnvs <= 0 {
		c.NumEnvs = envIntOr(envNumEnvs, defaults.NumEnvs)
	}

	if c.MaxSteps <= 0 {
		c.MaxSteps = envIntOr(envMaxSteps, defaults.MaxSteps)
	}

	if c.MaxTokens <= 0 {
		c.MaxTokens = envIntOr(envMaxTokens, defaults.MaxTokens)
	}

	if len(c.ExtraArgs) == 0 {
		if v := os.Getenv(envAdditionalArgs); v != "" {
			c.ExtraArgs = strings.Fields(v)
		}
	}

	if c.WorkDir == "" {
		c.WorkDir = defaults.WorkDir
	}

	if c.Script == "" {
		c.Script = defaults.Script
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required (or set %s)", envModel)
	}

	if c.OpenAIBaseURL == "" {
		return fmt.Errorf(
			"openai_base_url is required (or set %s)", envOpenAIBaseURL,
		)
	}

	if c.ResultDir == "" {
		return fmt.Errorf("result_dir is required")
	}

	return nil
}

func envIntOr(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}

// Package osworld wraps the OSWorld desktop-agent evaluation: it
// provisions the agent's environment file, runs the evaluation script
// and aggregates per-task scores from the result directory.
package osworld

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner"
)

// MetricPrefix namespaces all exported OSWorld metrics.
const MetricPrefix = "inference.benchmark.osworld"

// Runner executes an OSWorld evaluation run.
type Runner struct {
	log logrus.FieldLogger
	cfg Config
}

var _ runner.Runner = (*Runner)(nil)

// New creates a new OSWorld runner.
func New(log logrus.FieldLogger, cfg Config) (*Runner, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		log: log.WithField("component", "osworld"),
		cfg: cfg,
	}, nil
}

func (r *Runner) Name() string { return "osworld" }

func (r *Runner) MetricPrefix() string { return MetricPrefix }

func (r *Runner) Tags() []string {
	return []string{
		"model:" + r.cfg.Model,
		"domain:" + r.cfg.Domain,
		"benchmark:osworld",
		"cluster_name:" + r.cfg.ClusterName,
	}
}

// Run writes the agent environment file and executes the evaluation
// script to completion.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.writeEnvFile(); err != nil {
		return err
	}

	args := r.args()

	r.log.WithFields(logrus.Fields{
		"model":  r.cfg.Model,
		"domain": r.cfg.Domain,
		"args":   args,
	}).Info("Starting OSWorld evaluation")

	cmd := exec.CommandContext(ctx, "python3", args...)
	cmd.Dir = r.cfg.WorkDir

	out := r.log.WithField("source", "osworld").WriterLevel(logrus.InfoLevel)
	defer out.Close()

	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running osworld evaluation: %w", err)
	}

	r.log.WithField("result_dir", r.cfg.ResultDir).
		Info("OSWorld evaluation completed")

	return nil
}

// Results aggregates per-task scores from the last run.
func (r *Runner) Results() (map[string]float64, error) {
	return ParseResults(r.log, r.cfg.ResultDir)
}

// writeEnvFile writes the .env file the evaluation agent reads its
// endpoint credentials from. The API key is a passthrough only.
func (r *Runner) writeEnvFile() error {
	path := filepath.Join(r.cfg.WorkDir, ".env")

	if err := os.MkdirAll(r.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("creating workdir %s: %w", r.cfg.WorkDir, err)
	}

	content := "OPENAI_BASE_URL=" + r.cfg.OpenAIBaseURL + "\n" +
		"OPENAI_API_KEY=" + r.cfg.OpenAIAPIKey + "\n" +
		"OPENAI_MODEL=" + r.cfg.Model + "\n"

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing env file %s: %w", path, err)
	}

	return nil
}

// args builds the evaluation script command line.
func (r *Runner) args() []string {
	args := []string{
		r.cfg.Script,
		"--model", r.cfg.Model,
		"--provider_name", r.cfg.ProviderName,
		"--num_envs", strconv.Itoa(r.cfg.NumEnvs),
		"--max_steps", strconv.Itoa(r.cfg.MaxSteps),
		"--max_tokens", strconv.Itoa(r.cfg.MaxTokens),
		"--domain", r.cfg.Domain,
		"--test_all_meta_path", r.cfg.TestMetaPath,
		"--result_dir", r.cfg.ResultDir,
		"--headless",
		"--action_space", r.cfg.ActionSpace,
		"--observation_type", r.cfg.ObservationType,
	}

	return append(args, r.cfg.ExtraArgs...)
}

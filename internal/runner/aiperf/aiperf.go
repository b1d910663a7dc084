// Package aiperf wraps the AIPerf load generator: it shells out to
// the aiperf CLI, waits for the profile run to finish and parses the
// exported result artifacts.
package aiperf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner"
)

// MetricPrefix namespaces all exported AIPerf metrics.
const MetricPrefix = "inference.benchmark.aiperf"

// Runner executes an AIPerf profile run against an inference endpoint.
type Runner struct {
	log logrus.FieldLogger
	cfg Config
}

var _ runner.Runner = (*Runner)(nil)

// New creates a new AIPerf runner.
func New(log logrus.FieldLogger, cfg Config) (*Runner, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		log: log.WithField("component", "aiperf"),
		cfg: cfg,
	}, nil
}

func (r *Runner) Name() string { return "aiperf" }

func (r *Runner) MetricPrefix() string { return MetricPrefix }

func (r *Runner) Tags() []string {
	return []string{
		"model:" + r.cfg.Model,
		"endpoint:" + r.cfg.EndpointURL,
		"benchmark:aiperf",
		"cluster_name:" + r.cfg.ClusterName,
	}
}

// Run executes the aiperf subprocess to completion. Output goes to
// the logger; artifacts land in cfg.OutputDir.
func (r *Runner) Run(ctx context.Context) error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %s: %w", r.cfg.OutputDir, err)
	}

	args := r.args()

	r.log.WithFields(logrus.Fields{
		"model":    r.cfg.Model,
		"endpoint": r.cfg.EndpointURL,
		"args":     args,
	}).Info("Starting AIPerf benchmark")

	cmd := exec.CommandContext(ctx, r.cfg.Binary, args...)
	cmd.Env = benchmarkEnv(os.Environ())

	out := r.log.WithField("source", "aiperf").WriterLevel(logrus.InfoLevel)
	defer out.Close()

	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		// Artifacts can survive a non-zero exit (e.g. a timeout
		// during cleanup); surface that before failing the run.
		if artifacts, _ := filepath.Glob(
			filepath.Join(r.cfg.OutputDir, "*.json*"),
		); len(artifacts) > 0 {
			r.log.WithField("artifacts", artifacts).
				Warn("AIPerf exited with error but left result files")
		}

		return fmt.Errorf("running aiperf: %w", err)
	}

	r.log.WithField("output_dir", r.cfg.OutputDir).
		Info("AIPerf benchmark completed")

	return nil
}

// Results parses the artifacts from the last run.
func (r *Runner) Results() (map[string]float64, error) {
	return ParseResults(r.cfg.OutputDir)
}

// args builds the aiperf profile command line.
func (r *Runner) args() []string {
	args := []string{
		"profile",
		"--model", r.cfg.Model,
		"--url", r.cfg.EndpointURL,
		"--endpoint-type", r.cfg.EndpointType,
		"--concurrency", strconv.Itoa(r.cfg.Concurrency),
		"--output-artifact-dir", r.cfg.OutputDir,
		// Disable the TUI for non-interactive container environments.
		"--ui-type", "none",
		// Avoid timeouts against unreachable Prometheus endpoints.
		"--no-server-metrics",
	}

	// aiperf rejects --request-count and --benchmark-duration together.
	if r.cfg.Duration > 0 {
		args = append(args,
			"--benchmark-duration", formatSeconds(r.cfg.Duration),
		)

		if r.cfg.GracePeriod > 0 {
			args = append(args,
				"--benchmark-grace-period", formatSeconds(r.cfg.GracePeriod),
			)
		}
	} else {
		args = append(args,
			"--request-count", strconv.Itoa(r.cfg.RequestCount),
		)
	}

	if r.cfg.IsStreaming() {
		args = append(args, "--streaming")
	}

	if r.cfg.RequestTimeout > 0 {
		args = append(args,
			"--request-timeout-seconds", formatSeconds(r.cfg.RequestTimeout),
		)
	}

	if r.cfg.OutputTokensMean > 0 {
		args = append(args,
			"--output-tokens-mean", strconv.Itoa(r.cfg.OutputTokensMean),
		)
	}

	if r.cfg.CFAccessClientID != "" && r.cfg.CFAccessClientSecret != "" {
		args = append(args,
			"--header", "CF-Access-Client-Id: "+r.cfg.CFAccessClientID,
			"--header", "CF-Access-Client-Secret: "+r.cfg.CFAccessClientSecret,
		)
	}

	return append(args, r.cfg.ExtraArgs...)
}

// benchmarkEnv returns env with TUI-disabling variables set and
// generous AIPerf startup timeouts defaulted (existing values win).
func benchmarkEnv(env []string) []string {
	overrides := map[string]string{
		"TERM":             "dumb",
		"CI":               "true",
		"NO_COLOR":         "1",
		"PYTHONUNBUFFERED": "1",
	}

	defaults := map[string]string{
		"AIPERF_SERVICE_PROFILE_CONFIGURE_TIMEOUT": "600.0",
		"AIPERF_SERVICE_PROFILE_START_TIMEOUT":     "300.0",
		"AIPERF_DATASET_CONFIGURATION_TIMEOUT":     "600.0",
	}

	out := make([]string, 0, len(env)+len(overrides)+len(defaults))

	for _, kv := range env {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}

		if _, ok := overrides[name]; ok {
			continue
		}

		if _, ok := defaults[name]; ok {
			delete(defaults, name)
		}

		out = append(out, kv)
	}

	for name, value := range overrides {
		out = append(out, name+"="+value)
	}

	for name, value := range defaults {
		out = append(out, name+"="+value)
	}

	return out
}

// formatSeconds renders a duration as a plain seconds value for the
// aiperf CLI.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HyperbolicLabs/inference-benchmarks/internal/agent"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner/aiperf"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner/osworld"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchrunner",
		Short: "Inference benchmark runner with telemetry export",
		Long: `benchrunner executes inference benchmarks against a model
endpoint and ships the resulting metrics to the telemetry API.
All settings can be supplied via environment variables, so a config
file is optional.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(
		&cfgFile, "config", "",
		"path to config file (optional, env vars used otherwise)",
	)
	cmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)

	cmd.AddCommand(aiperfCmd())
	cmd.AddCommand(osworldCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func aiperfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aiperf",
		Short: "Run the aiperf load-generation benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(
				log logrus.FieldLogger, cfg *agent.Config,
			) (runner.Runner, error) {
				return aiperf.New(log, cfg.AIPerf)
			})
		},
	}
}

func osworldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "osworld",
		Short: "Run the OSWorld agent evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(
				log logrus.FieldLogger, cfg *agent.Config,
			) (runner.Runner, error) {
				return osworld.New(log, cfg.OSWorld)
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

func run(
	parent context.Context,
	newRunner func(logrus.FieldLogger, *agent.Config) (runner.Runner, error),
) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := agent.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flag overrides config file.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}

	log.SetLevel(level)

	ctx, cancel := signal.NotifyContext(
		parent,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	r, err := newRunner(log, cfg)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	a, err := agent.New(log, cfg, r)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	log.WithField("benchmark", r.Name()).Info("Starting benchmark run")

	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info("Benchmark run complete")

	return nil
}

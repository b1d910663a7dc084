// Package agent orchestrates a benchmark run: it executes the
// configured benchmark to completion, streams live progress while it
// runs and ships the final results to the telemetry API.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HyperbolicLabs/inference-benchmarks/internal/export"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/runner"
	"github.com/HyperbolicLabs/inference-benchmarks/internal/telemetry"
)

// Agent is the top-level orchestrator for a single benchmark run.
type Agent interface {
	// Run executes the benchmark to completion and exports results.
	// The returned error reflects the benchmark outcome only: export
	// failures are logged and counted but never fail the run.
	Run(ctx context.Context) error
}

type agent struct {
	log      logrus.FieldLogger
	cfg      *Config
	health   *export.HealthMetrics
	runner   runner.Runner
	exporter telemetry.Exporter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Agent driving the given benchmark runner.
func New(
	log logrus.FieldLogger,
	cfg *Config,
	r runner.Runner,
) (Agent, error) {
	// Resolve telemetry defaults up front: the agent reads timeouts
	// from this config directly.
	cfg.Telemetry.ApplyDefaults()

	exp, err := telemetry.New(log, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry exporter: %w", err)
	}

	return &agent{
		log:      log.WithField("component", "agent"),
		cfg:      cfg,
		health:   export.NewHealthMetrics(log, cfg.Health),
		runner:   r,
		exporter: exp,
	}, nil
}

func (a *agent) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	defer func() {
		if err := a.exporter.Close(); err != nil {
			a.log.WithError(err).Debug("Exporter close failed")
		}
	}()

	// 1. Start health metrics server.
	if a.cfg.Health.Enabled {
		if err := a.health.Start(ctx); err != nil {
			return fmt.Errorf("starting health metrics: %w", err)
		}

		defer a.health.Stop()
	}

	// 2. Start the heartbeat stream. A missing API key disables it
	// without failing the run.
	stream, err := a.startHeartbeat(ctx)
	if err != nil {
		if !errors.Is(err, telemetry.ErrMissingAPIKey) {
			return fmt.Errorf("starting heartbeat stream: %w", err)
		}

		a.log.Warn("No API key configured, heartbeat stream disabled")
	}

	// 3. Run the benchmark to completion. The run's exit status
	// mirrors the benchmark's.
	start := time.Now()
	runErr := a.runner.Run(ctx)
	elapsed := time.Since(start)

	a.stopHeartbeat(stream)

	a.health.BenchmarkDuration.
		WithLabelValues(a.runner.Name()).Observe(elapsed.Seconds())

	if runErr != nil {
		a.health.BenchmarkRuns.
			WithLabelValues(a.runner.Name(), "failure").Inc()

		// Partial results may still exist; try to ship them before
		// reporting the failure.
		a.exportResults(ctx)

		return fmt.Errorf("running benchmark %s: %w", a.runner.Name(), runErr)
	}

	a.health.BenchmarkRuns.
		WithLabelValues(a.runner.Name(), "success").Inc()

	a.log.WithFields(logrus.Fields{
		"benchmark": a.runner.Name(),
		"elapsed":   elapsed,
	}).Info("Benchmark completed")

	// 4. Export results. Never fails the run.
	a.exportResults(ctx)

	return nil
}

// startHeartbeat starts the live progress stream when enabled. The
// stream pushes a liveness gauge and the elapsed run time on a ticker
// so dashboards can see a benchmark that is still in flight.
func (a *agent) startHeartbeat(ctx context.Context) (*telemetry.Stream, error) {
	if !a.cfg.Heartbeat.Enabled {
		return nil, nil
	}

	stream, err := telemetry.NewStream(
		a.log,
		a.cfg.Telemetry,
		"heartbeat",
		a.runner.MetricPrefix(),
		a.runner.Tags(),
	)
	if err != nil {
		return nil, err
	}

	stream.Start(ctx)

	start := time.Now()

	a.wg.Add(1)

	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(a.cfg.Heartbeat.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.pushHeartbeat(ctx, stream, start)
			}
		}
	}()

	return stream, nil
}

func (a *agent) pushHeartbeat(
	ctx context.Context,
	stream *telemetry.Stream,
	start time.Time,
) {
	if err := stream.Push(ctx, "heartbeat", 1); err != nil {
		a.log.WithError(err).Debug("Heartbeat push failed")

		return
	}

	elapsed := time.Since(start).Seconds()
	if err := stream.Push(ctx, "elapsed_seconds", elapsed); err != nil {
		a.log.WithError(err).Debug("Heartbeat push failed")

		return
	}

	a.health.HeartbeatsSent.Inc()
}

// stopHeartbeat flushes and stops the stream. Bounded by the async
// wait timeout so a wedged flush cannot stall the run.
func (a *agent) stopHeartbeat(stream *telemetry.Stream) {
	a.cancel()
	a.wg.Wait()

	if stream == nil {
		return
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), a.cfg.Telemetry.AsyncWaitTimeout,
	)
	defer cancel()

	if err := stream.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("Heartbeat stream shutdown failed")
	}
}

// exportResults parses the runner's results and ships them. Export
// runs on a background context: the run context may already be
// cancelled when shipping results for a failed benchmark, and a slow
// delivery keeps its full retry budget.
func (a *agent) exportResults(_ context.Context) {
	metrics, err := a.runner.Results()
	if err != nil {
		a.log.WithError(err).Error("Failed to parse benchmark results")

		return
	}

	if len(metrics) == 0 {
		a.log.Warn("Benchmark produced no metrics")

		return
	}

	a.log.WithField("count", len(metrics)).Info("Exporting benchmark metrics")

	start := time.Now()

	handle := a.exporter.ExportAsync(context.Background(), telemetry.Request{
		Metrics:  metrics,
		Prefix:   a.runner.MetricPrefix(),
		BaseTags: a.runner.Tags(),
	})

	result, ok := handle.Wait(a.cfg.Telemetry.AsyncWaitTimeout)
	if !ok {
		// The process must not exit under an in-flight delivery:
		// surface the overrun, then block until it reaches a
		// terminal state.
		a.log.WithField("timeout", a.cfg.Telemetry.AsyncWaitTimeout).
			Warn("Metrics export exceeded wait timeout, waiting for completion")

		<-handle.Done()
		result = handle.Result()
	}

	a.health.ExportDuration.Observe(time.Since(start).Seconds())
	a.recordExportResult(result)
}

// recordExportResult folds an export outcome into the health metrics.
func (a *agent) recordExportResult(result telemetry.Result) {
	a.health.SamplesDelivered.Add(float64(result.SamplesDelivered))
	a.health.SamplesFailed.Add(float64(result.SamplesFailed))
	a.health.SamplesSkipped.Add(float64(result.SamplesSkipped))
	a.health.BatchesDelivered.Add(float64(result.BatchesDelivered))
	a.health.BatchesFailed.Add(float64(result.BatchesFailed))

	if result.Err != nil {
		a.log.WithError(result.Err).Warn("Metrics export skipped")

		return
	}

	if !result.Delivered() {
		a.log.WithFields(logrus.Fields{
			"delivered": result.SamplesDelivered,
			"failed":    result.SamplesFailed,
		}).Warn("Metrics export partially failed")
	}
}

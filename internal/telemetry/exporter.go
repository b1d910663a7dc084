package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrMissingAPIKey marks an export call that was skipped because no
// API credential was configured. No HTTP calls are made in that case.
var ErrMissingAPIKey = errors.New("telemetry API key is not configured")

// Request is one export call: a flat metric mapping plus the
// namespace prefix and tags applied to every sample.
type Request struct {
	// Metrics maps metric short-names to values. An empty mapping is
	// a no-op.
	Metrics map[string]float64

	// Prefix is prepended (dot-separated) to every short-name.
	Prefix string

	// BaseTags are applied to every sample in this call.
	BaseTags []string
}

// Result is the aggregate outcome of one export call. Per-sample and
// per-batch failures are folded into the counters; Err is only set
// for call-level configuration failures.
type Result struct {
	SamplesAttempted int
	SamplesDelivered int
	SamplesFailed    int
	SamplesSkipped   int
	BatchesDelivered int
	BatchesFailed    int
	Err              error
}

// Delivered reports whether every attempted sample was delivered and
// no call-level error occurred.
func (r Result) Delivered() bool {
	return r.Err == nil && r.BatchesFailed == 0 &&
		r.SamplesDelivered == r.SamplesAttempted
}

// Handle tracks an in-flight asynchronous export.
type Handle struct {
	done   chan struct{}
	result Result
}

// Done returns a channel closed when the export completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the export completes or the timeout elapses.
// The boolean reports whether the export completed in time.
func (h *Handle) Wait(timeout time.Duration) (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	case <-time.After(timeout):
		return Result{}, false
	}
}

// Result returns the export outcome. Only valid once Done is closed.
func (h *Handle) Result() Result {
	return h.result
}

// Exporter delivers metric mappings to the external metrics API.
type Exporter interface {
	// Export blocks until every batch reaches a terminal state.
	Export(ctx context.Context, req Request) Result
	// ExportAsync returns immediately; delivery proceeds on a
	// background goroutine. Callers must not assume metrics are
	// delivered when ExportAsync returns.
	ExportAsync(ctx context.Context, req Request) *Handle
	// Close releases the underlying HTTP client resources.
	Close() error
}

type exporter struct {
	cfg       Config
	log       logrus.FieldLogger
	client    *client
	deliverer *deliverer
}

// New creates a new Exporter. The configuration is resolved once
// here; there is no hidden re-initialization later.
func New(log logrus.FieldLogger, cfg Config) (Exporter, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cli, err := newClient(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return &exporter{
		cfg:       cfg,
		log:       log.WithField("component", "telemetry_exporter"),
		client:    cli,
		deliverer: newDeliverer(log, cfg, cli.submit),
	}, nil
}

func (e *exporter) Export(ctx context.Context, req Request) Result {
	if len(req.Metrics) == 0 {
		return Result{}
	}

	if e.cfg.APIKey == "" {
		e.log.Warn("No API key configured, skipping metrics export")

		return Result{Err: ErrMissingAPIKey}
	}

	samples, skipped := e.buildSamples(req)

	result := Result{
		SamplesAttempted: len(samples),
		SamplesSkipped:   skipped,
	}

	if len(samples) == 0 {
		return result
	}

	for _, batch := range partition(samples, e.cfg.BatchSize) {
		if err := e.deliverer.deliver(ctx, batch); err != nil {
			e.log.WithError(err).Error("Batch failed permanently")

			result.BatchesFailed++
			result.SamplesFailed += len(batch)

			continue
		}

		result.BatchesDelivered++
		result.SamplesDelivered += len(batch)
	}

	e.log.WithFields(logrus.Fields{
		"delivered": result.SamplesDelivered,
		"failed":    result.SamplesFailed,
		"skipped":   result.SamplesSkipped,
		"batches":   result.BatchesDelivered + result.BatchesFailed,
	}).Info("Metrics export finished")

	return result
}

func (e *exporter) ExportAsync(ctx context.Context, req Request) *Handle {
	h := &Handle{done: make(chan struct{})}

	go func() {
		h.result = e.Export(ctx, req)
		close(h.done)
	}()

	return h
}

func (e *exporter) Close() error {
	return e.client.close()
}

// buildSamples converts the metric mapping into namespaced samples,
// timestamped at call time. Invalid samples are skipped with a
// warning; the remainder is still exported.
func (e *exporter) buildSamples(req Request) ([]Sample, int) {
	now := time.Now()

	samples := make([]Sample, 0, len(req.Metrics))
	skipped := 0

	for _, name := range sortedNames(req.Metrics) {
		s, err := NewSample(
			req.Prefix, name, req.Metrics[name], req.BaseTags, now,
		)
		if err != nil {
			e.log.WithError(err).WithField("metric", name).
				Warn("Skipping invalid sample")

			skipped++

			continue
		}

		samples = append(samples, s)
	}

	return samples, skipped
}

package telemetry

import (
	"context"
	"fmt"
	"time"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"
)

// Stream pushes samples continuously through a background batch
// processor. It is the live counterpart of Exporter: benchmark
// progress gauges are queued while the benchmark is still running and
// flushed in batches. Delivery is fire-and-forget; samples are
// dropped when the queue is full.
type Stream struct {
	log      logrus.FieldLogger
	proc     *processor.BatchItemProcessor[Sample]
	prefix   string
	baseTags []string
}

// streamExporter adapts the HTTP client to processor.ItemExporter.
type streamExporter struct {
	client *client
}

var _ processor.ItemExporter[Sample] = (*streamExporter)(nil)

func (s *streamExporter) ExportItems(ctx context.Context, items []*Sample) error {
	samples := make([]Sample, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		samples = append(samples, *item)
	}

	if len(samples) == 0 {
		return nil
	}

	return s.client.submit(ctx, samples)
}

func (s *streamExporter) Shutdown(_ context.Context) error {
	return s.client.close()
}

// NewStream creates a background sample stream. The prefix and base
// tags are applied to every pushed sample. Requires a configured API
// key since queued samples cannot be re-driven later.
func NewStream(
	log logrus.FieldLogger,
	cfg Config,
	name, prefix string,
	baseTags []string,
) (*Stream, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	cli, err := newClient(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	proc, err := processor.NewBatchItemProcessor[Sample](
		&streamExporter{client: cli},
		name,
		log,
		processor.WithMaxQueueSize(cfg.QueueSize),
		processor.WithBatchTimeout(cfg.FlushInterval),
		processor.WithExportTimeout(cfg.RequestTimeout),
		processor.WithMaxExportBatchSize(cfg.BatchSize),
		processor.WithWorkers(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processor: %w", err)
	}

	return &Stream{
		log:      log.WithField("component", "telemetry_stream"),
		proc:     proc,
		prefix:   prefix,
		baseTags: normalizeTags(baseTags),
	}, nil
}

// Start begins the background workers.
func (s *Stream) Start(ctx context.Context) {
	s.proc.Start(ctx)
	s.log.Info("Telemetry stream started")
}

// Push queues a single gauge sample, timestamped now.
func (s *Stream) Push(ctx context.Context, name string, value float64) error {
	sample, err := NewSample(s.prefix, name, value, s.baseTags, time.Now())
	if err != nil {
		return err
	}

	if err := s.proc.Write(ctx, []*Sample{&sample}); err != nil {
		return fmt.Errorf("queueing sample: %w", err)
	}

	return nil
}

// Shutdown flushes remaining samples and stops the workers.
func (s *Stream) Shutdown(ctx context.Context) error {
	return s.proc.Shutdown(ctx)
}

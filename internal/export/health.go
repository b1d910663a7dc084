// Package export exposes the benchrunner's own operational metrics
// over a Prometheus /metrics endpoint, separate from the benchmark
// metrics shipped to the telemetry API.
package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Enabled toggles the health metrics server. Defaults to off:
	// most benchmark runs are short-lived batch jobs.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes Prometheus metrics for runner health.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	// Benchmark lifecycle
	BenchmarkRuns     *prometheus.CounterVec // benchmark, status
	BenchmarkDuration *prometheus.HistogramVec

	// Telemetry export accounting
	SamplesDelivered prometheus.Counter
	SamplesFailed    prometheus.Counter
	SamplesSkipped   prometheus.Counter
	BatchesDelivered prometheus.Counter
	BatchesFailed    prometheus.Counter
	ExportDuration   prometheus.Histogram

	// Heartbeat stream
	HeartbeatsSent prometheus.Counter

	running atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		BenchmarkRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "benchrunner",
				Name:      "benchmark_runs_total",
				Help:      "Total benchmark runs by benchmark and status.",
			},
			[]string{"benchmark", "status"},
		),
		BenchmarkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "benchrunner",
				Name:      "benchmark_duration_seconds",
				Help:      "Wall-clock benchmark duration by benchmark.",
				Buckets:   []float64{30, 60, 300, 900, 1800, 3600, 7200},
			},
			[]string{"benchmark"},
		),

		SamplesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benchrunner",
			Name:      "samples_delivered_total",
			Help:      "Total metric samples delivered to the telemetry API.",
		}),
		SamplesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benchrunner",
			Name:      "samples_failed_total",
			Help:      "Total metric samples that failed delivery permanently.",
		}),
		SamplesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benchrunner",
			Name:      "samples_skipped_total",
			Help:      "Total metric samples skipped before submission.",
		}),
		BatchesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benchrunner",
			Name:      "batches_delivered_total",
			Help:      "Total batches accepted by the telemetry API.",
		}),
		BatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benchrunner",
			Name:      "batches_failed_total",
			Help:      "Total batches that exhausted retries or failed permanently.",
		}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "benchrunner",
			Name:      "export_duration_seconds",
			Help:      "Time to export one result set, retries included.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),

		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benchrunner",
			Name:      "heartbeats_sent_total",
			Help:      "Total heartbeat samples pushed to the live stream.",
		}),
	}

	reg.MustRegister(
		h.BenchmarkRuns,
		h.BenchmarkDuration,
		h.SamplesDelivered,
		h.SamplesFailed,
		h.SamplesSkipped,
		h.BatchesDelivered,
		h.BatchesFailed,
		h.ExportDuration,
		h.HeartbeatsSent,
	)

	return h
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop gracefully shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}

// Package runner defines the interface benchmark wrappers implement.
package runner

import "context"

// Runner executes one third-party benchmark tool and reports its
// result metrics for telemetry export.
type Runner interface {
	// Name returns the benchmark's name for logging.
	Name() string
	// Run executes the benchmark to completion.
	Run(ctx context.Context) error
	// Results parses the benchmark's output artifacts into a flat
	// metric mapping.
	Results() (map[string]float64, error)
	// MetricPrefix is the namespace prepended to every exported metric.
	MetricPrefix() string
	// Tags returns the base tags applied to every exported sample.
	Tags() []string
}

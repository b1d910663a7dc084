// Package telemetry delivers benchmark result metrics to an external
// metrics API with batching, retries and partial-success accounting.
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Sample validation errors.
var (
	ErrEmptyMetricName = errors.New("metric name is empty")
	ErrNonFiniteValue  = errors.New("metric value is not finite")
)

// Sample is a single gauge point destined for the metrics API.
type Sample struct {
	Metric    string
	Value     float64
	Tags      []string
	Timestamp time.Time
}

// NewSample builds a namespaced, tagged sample. The prefix is joined
// to the short name with a dot; an empty prefix leaves the name as-is.
func NewSample(
	prefix, name string,
	value float64,
	tags []string,
	ts time.Time,
) (Sample, error) {
	if name == "" {
		return Sample{}, ErrEmptyMetricName
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Sample{}, fmt.Errorf("%w: %s=%v", ErrNonFiniteValue, name, value)
	}

	metric := name
	if prefix != "" {
		metric = prefix + "." + name
	}

	return Sample{
		Metric:    metric,
		Value:     value,
		Tags:      normalizeTags(tags),
		Timestamp: ts,
	}, nil
}

// normalizeTags sorts tags and collapses duplicates. Tag order is
// irrelevant to the API; sorting keeps the wire payload deterministic.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		if tag == "" {
			continue
		}

		if _, ok := seen[tag]; ok {
			continue
		}

		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	sort.Strings(out)

	return out
}

// sortedNames returns the metric short-names in sorted order. Go maps
// have no iteration order, so sorted-key order is the deterministic
// input order for partitioning.
func sortedNames(metrics map[string]float64) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// partition splits samples into batches of at most size, preserving
// order. Partition boundaries are deterministic given input order.
func partition(samples []Sample, size int) [][]Sample {
	if len(samples) == 0 {
		return nil
	}

	batches := make([][]Sample, 0, (len(samples)+size-1)/size)

	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}

		batches = append(batches, samples[start:end])
	}

	return batches
}

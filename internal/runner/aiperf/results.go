package aiperf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// resultFile is the aggregated stats artifact aiperf writes.
const resultFile = "profile_export_aiperf.json"

// metricFields are the top-level metric objects in the current aiperf
// export format, each carrying avg/p50/p95/p99/min/max/std stats.
var metricFields = []string{
	"request_latency", "time_to_first_token", "time_to_second_token",
	"inter_token_latency", "inter_chunk_latency",
	"request_throughput", "output_token_throughput",
	"output_token_throughput_per_user",
	"request_count", "good_request_count", "error_request_count",
	"output_sequence_length", "input_sequence_length",
	"output_token_count", "reasoning_token_count",
	"goodput", "total_output_tokens", "total_reasoning_tokens",
	"benchmark_duration", "total_isl", "total_osl",
	"error_isl", "total_error_isl",
}

var statNames = []string{"avg", "p50", "p95", "p99", "min", "max", "std"}

// legacyKeys are flat metric keys from older aiperf export formats.
var legacyKeys = []string{
	"latency_p50", "latency_p95", "latency_p99", "ttft", "ttft_ms",
	"tokens_per_sec", "requests_per_sec",
	"throughput_tokens_per_sec", "throughput_requests_per_sec",
}

// ParseResults reads the aiperf result artifact in dir and flattens
// it into metric_name -> value. It understands the current top-level
// stats layout, the nested metrics/stats layout and two legacy
// formats; unknown or non-numeric entries are skipped.
func ParseResults(dir string) (map[string]float64, error) {
	path := filepath.Join(dir, resultFile)

	if _, err := os.Stat(path); err != nil {
		// Fallback: any JSON file in the artifact directory.
		candidates, globErr := filepath.Glob(filepath.Join(dir, "*.json"))
		if globErr != nil || len(candidates) == 0 {
			return nil, fmt.Errorf("no result files found in %s", dir)
		}

		path = candidates[0]
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	metrics := make(map[string]float64)

	// Current format: data[metric] = {"unit": "ms", "avg": ..., "p95": ...}.
	for _, field := range metricFields {
		stats, ok := data[field].(map[string]any)
		if !ok {
			continue
		}

		collectStats(metrics, field, stats, statNames)
	}

	// Alternative format: data["metrics"][name] = {"stats": {...}} or
	// stats directly in the metric object.
	if nested, ok := data["metrics"].(map[string]any); ok {
		for name, v := range nested {
			obj, ok := v.(map[string]any)
			if !ok {
				continue
			}

			if stats, ok := obj["stats"].(map[string]any); ok {
				collectStats(metrics, name, stats,
					[]string{"mean", "p50", "p95", "p99"})

				continue
			}

			collectStats(metrics, name, obj,
				[]string{"avg", "mean", "p50", "p95", "p99", "min", "max", "std"})
		}
	}

	// Legacy flat keys.
	for _, key := range legacyKeys {
		if v, ok := asFloat(data[key]); ok {
			metrics[key] = v
		}
	}

	// Legacy nested latency/throughput maps.
	if latency, ok := data["latency"].(map[string]any); ok {
		for _, pct := range []string{"50", "95", "99"} {
			key := "latency_p" + pct
			if v, ok := asFloat(latency[key]); ok {
				metrics[key] = v
			}
		}
	}

	if throughput, ok := data["throughput"].(map[string]any); ok {
		for _, key := range []string{"tokens_per_sec", "requests_per_sec"} {
			if v, ok := asFloat(throughput[key]); ok {
				metrics["throughput_"+key] = v
			}
		}
	}

	return metrics, nil
}

// collectStats extracts the named stats from obj into out as
// "<metric>_<stat>" entries.
func collectStats(
	out map[string]float64,
	metric string,
	obj map[string]any,
	stats []string,
) {
	for _, stat := range stats {
		if v, ok := asFloat(obj[stat]); ok {
			out[metric+"_"+stat] = v
		}
	}
}

// asFloat coerces a decoded JSON value to float64. String values are
// parsed for tolerance toward older exporters.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

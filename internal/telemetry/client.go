package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const seriesPath = "/api/v1/series"

// seriesPayload is the submission body for the metrics API.
type seriesPayload struct {
	Series []seriesEntry `json:"series"`
}

type seriesEntry struct {
	Metric string       `json:"metric"`
	Points [][2]float64 `json:"points"`
	Tags   []string     `json:"tags,omitempty"`
	Type   string       `json:"type"`
}

// APIError is a non-2xx response from the metrics API.
type APIError struct {
	Status int
	// RetryAfter is the server-requested wait before the next
	// attempt, zero when the response carried no Retry-After header.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metrics api returned status %d", e.Status)
}

// Retryable reports whether the response indicates a transient
// condition: rate limiting or a server-side error.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// retryable classifies a delivery error. Network and timeout errors
// are transient; API errors defer to their status code.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	return true
}

// retryAfterHint extracts the server-requested delay, if any.
func retryAfterHint(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}

	return 0
}

// client submits sample batches to the metrics API over HTTP.
// Safe for concurrent use across in-flight batches and export calls.
type client struct {
	cfg        Config
	http       *http.Client
	compressor *compressor
	log        logrus.FieldLogger
}

func newClient(log logrus.FieldLogger, cfg Config) (*client, error) {
	comp, err := newCompressor(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		compressor: comp,
		log:        log.WithField("component", "telemetry_client"),
	}, nil
}

// submit posts one batch of samples as a gauge series. A non-2xx
// status is returned as *APIError.
func (c *client) submit(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	payload := seriesPayload{
		Series: make([]seriesEntry, 0, len(samples)),
	}

	for _, s := range samples {
		payload.Series = append(payload.Series, seriesEntry{
			Metric: s.Metric,
			Points: [][2]float64{
				{float64(s.Timestamp.Unix()), s.Value},
			},
			Tags: s.Tags,
			Type: "gauge",
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding series payload: %w", err)
	}

	body, err := c.compressor.compress(data)
	if err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.Address, "/") + seriesPath

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", c.cfg.APIKey)

	if encoding := c.compressor.contentEncoding(); encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	defer resp.Body.Close()

	// Drain response body to enable connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	c.log.WithFields(logrus.Fields{
		"samples": len(samples),
		"bytes":   len(body),
	}).Debug("Submitted batch")

	return nil
}

func (c *client) close() error {
	c.http.CloseIdleConnections()

	if c.compressor != nil {
		return c.compressor.close()
	}

	return nil
}

// parseRetryAfter parses an integer-seconds Retry-After value.
// HTTP-date values are ignored.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs < 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}

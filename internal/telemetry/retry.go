package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// deliveryState tracks a batch through the retry state machine.
type deliveryState int

const (
	statePending deliveryState = iota
	stateAttempting
	stateRetryWait
	stateDelivered
	stateFailedPermanent
)

func (s deliveryState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAttempting:
		return "attempting"
	case stateRetryWait:
		return "retry_wait"
	case stateDelivered:
		return "delivered"
	case stateFailedPermanent:
		return "failed_permanent"
	default:
		return "unknown"
	}
}

// deliverer drives a single batch through
// PENDING -> ATTEMPTING -> {DELIVERED | RETRY_WAIT | FAILED_PERMANENT}.
// submit and sleep are injectable for tests.
type deliverer struct {
	log        logrus.FieldLogger
	maxRetries int
	newBackOff func() backoff.BackOff
	submit     func(ctx context.Context, batch []Sample) error
	sleep      func(ctx context.Context, d time.Duration) error
}

func newDeliverer(
	log logrus.FieldLogger,
	cfg Config,
	submit func(ctx context.Context, batch []Sample) error,
) *deliverer {
	return &deliverer{
		log:        log.WithField("component", "telemetry_deliverer"),
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff {
			b := &backoff.ExponentialBackOff{
				InitialInterval:     cfg.BaseDelay,
				RandomizationFactor: cfg.Jitter,
				Multiplier:          2,
				MaxInterval:         cfg.MaxDelay,
				Stop:                backoff.Stop,
				Clock:               backoff.SystemClock,
			}
			b.Reset()

			return b
		},
		submit: submit,
		sleep:  sleepContext,
	}
}

// deliver runs one batch to a terminal state. A nil return means the
// batch was delivered; a non-nil return means it failed permanently
// or the context was cancelled.
func (d *deliverer) deliver(ctx context.Context, batch []Sample) error {
	state := statePending
	bo := d.newBackOff()

	var (
		attempt int
		lastErr error
	)

	for {
		switch state {
		case statePending:
			state = stateAttempting

		case stateAttempting:
			attempt++
			start := time.Now()

			err := d.submit(ctx, batch)
			latency := time.Since(start)

			switch {
			case err == nil:
				d.log.WithFields(logrus.Fields{
					"samples": len(batch),
					"attempt": attempt,
					"latency": latency,
				}).Debug("Batch delivered")

				state = stateDelivered
			case ctx.Err() != nil:
				return fmt.Errorf("delivery aborted: %w", ctx.Err())
			case !retryable(err):
				lastErr = err
				state = stateFailedPermanent
			case attempt >= d.maxRetries:
				lastErr = err
				state = stateFailedPermanent
			default:
				lastErr = err
				state = stateRetryWait
			}

		case stateRetryWait:
			delay := bo.NextBackOff()
			if delay == backoff.Stop {
				state = stateFailedPermanent

				continue
			}

			// Server-requested delay wins over the computed one.
			if hint := retryAfterHint(lastErr); hint > 0 {
				delay = hint
			}

			d.log.WithError(lastErr).WithFields(logrus.Fields{
				"attempt": attempt,
				"max":     d.maxRetries,
				"delay":   delay,
			}).Warn("Batch delivery failed, retrying")

			if err := d.sleep(ctx, delay); err != nil {
				return fmt.Errorf("delivery aborted: %w", err)
			}

			state = stateAttempting

		case stateDelivered:
			return nil

		case stateFailedPermanent:
			return fmt.Errorf(
				"batch of %d samples failed after %d attempt(s): %w",
				len(batch), attempt, lastErr,
			)
		}
	}
}

// sleepContext sleeps for d, returning early with the context error
// if the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package chat

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy bounds StartWithRetry.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy mirrors the configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// Backoff returns the wait before retry n (n >= 1).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := time.Duration(float64(p.InitialBackoff) * exponentialBackoff(n))
	if d < p.InitialBackoff {
		d = p.InitialBackoff
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

func exponentialBackoff(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

// StartWithRetry calls Start up to policy.MaxAttempts times, waiting between attempts.
// Only establishment failures are retried; any other error, or ctx ending, is returned
// immediately. The last ConnectError is returned when attempts run out.
func (m *Manager) StartWithRetry(ctx context.Context, policy RetryPolicy) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := policy.Backoff(attempt - 1)
			m.log.Info().
				Int("attempt", attempt).
				Dur("wait", wait).
				Str("endpoint", m.endpoint).
				Msg("retrying connection")

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = m.Start(ctx)
		var connErr *ConnectError
		if err == nil || !errors.As(err, &connErr) {
			return err
		}
	}
	return err
}

package client

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/hyperborea-net/hyperborea/protoerr"
)

// RetryConfig configures the backoff applied to Transport and Timeout
// errors — the two kinds that are client-side retriable.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultRetryConfig mirrors the shape of a conventional exponential
// backoff with jitter: short initial delay, capped growth.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

func (r RetryConfig) delay(attempt int) time.Duration {
	d := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if d > float64(r.MaxDelay) {
		d = float64(r.MaxDelay)
	}
	if r.Jitter > 0 {
		jitter := d * r.Jitter
		d = d - jitter + (rand.Float64() * 2 * jitter)
	}
	return time.Duration(d)
}

func (r RetryConfig) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(r.delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldRetry reports whether err is a kind the retry loop should absorb.
func shouldRetry(err error) bool {
	return protoerr.IsTransport(err) || protoerr.IsTimeout(err)
}

// withRetry runs op until it succeeds, exhausts cfg.MaxRetries, or op
// returns a non-retriable error.
func withRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}
		if err := cfg.wait(ctx, attempt); err != nil {
			return err
		}
	}
	return lastErr
}

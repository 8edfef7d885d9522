// Package retry provides exponential-backoff retries for transient upstream
// failures, mainly the field-extraction service.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/contractline/backend/internal/extract"
)

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Retryable decides whether an error is worth another attempt. Nil means
	// retry everything.
	Retryable func(error) bool
}

// DefaultConfig matches the pacing used against the extraction service:
// three attempts, 500ms base, capped at 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Retryable:   TransientExtractionError,
	}
}

// TransientExtractionError reports whether an extraction failure is rate
// limiting or a server-side fault. Client errors and parse failures are not
// retried.
func TransientExtractionError(err error) bool {
	var rateLimited *extract.RateLimitError
	if errors.As(err, &rateLimited) {
		return true
	}
	var serviceErr *extract.ServiceError
	return errors.As(err, &serviceErr)
}

// Do runs fn until it succeeds, the attempts are exhausted, or the context is
// done. It returns the number of attempts made alongside the final error.
// A RateLimitError's Retry-After hint overrides the computed backoff.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) (int, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.BaseDelay

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt, nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return attempt, err
		}
		if attempt == cfg.MaxAttempts {
			return attempt, err
		}

		wait := delay
		var rateLimited *extract.RateLimitError
		if errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0 {
			wait = rateLimited.RetryAfter
		}
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}

		if cfg.Multiplier > 1 {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}
	}
	return cfg.MaxAttempts, err
}

// Package retry wraps outbound store calls with exponential backoff. The
// engine cannot reliably tell transient failures from permanent ones, so
// every failure is retried up to the attempt budget and the final error is
// propagated to the caller for error persistence.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults applied when the configuration leaves a field unset.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
)

// Config holds the retry parameters: the delay before attempt n is
// min(InitialDelay * Multiplier^(n-1), MaxDelay).
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Runner executes operations under a shared retry policy.
type Runner struct {
	cfg Config
}

// NewRunner creates a Runner, filling unset config fields with defaults.
func NewRunner(cfg Config) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultMultiplier
	}
	return &Runner{cfg: cfg}
}

// Do runs op, retrying on failure until the attempt budget is exhausted or
// ctx is canceled. The last error is returned unchanged.
func (r *Runner) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialDelay
	b.MaxInterval = r.cfg.MaxDelay
	b.Multiplier = r.cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)), ctx)
	return backoff.Retry(op, policy)
}

// Permanent marks err as non-retryable: Do returns it immediately instead of
// burning the remaining attempt budget.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

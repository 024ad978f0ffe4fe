package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/config"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
	"git.home.luguber.info/inful/harvestcycle/internal/logfields"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // maximum retry attempts after the first failure
}

// DefaultPolicy returns the default policy (linear, 1s initial, 30s cap, 2 retries).
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds a policy from the retry section of the configuration.
func FromConfig(c config.RetryConfig) Policy {
	return NewPolicy(c.Backoff, c.Initial, c.Max, c.MaxRetries)
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Do runs fn until it succeeds, fails with an error that is not retryable,
// the retry budget is spent, or ctx is done. onRetry, if set, is called
// before each repeated attempt.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error, onRetry func(attempt int, err error)) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= p.MaxRetries; attempt++ {
		if !errors.IsRetryable(err) {
			return err
		}
		delay := p.Delay(attempt)
		slog.Warn("Retrying after transient failure",
			logfields.Attempt(attempt),
			logfields.DurationMS(float64(delay.Milliseconds())),
			logfields.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		err = fn(ctx)
	}
	return err
}

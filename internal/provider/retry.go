package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig bounds each delegate call.
type RetryConfig struct {
	// Timeout applies to each attempt separately. Default: 7s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of additional attempts after the first.
	// Default: 2. Negative disables retries.
	MaxRetries int `yaml:"max_retries"`

	// Backoff is the fixed pause between attempts. Default: 500ms.
	Backoff time.Duration `yaml:"backoff"`
}

func (c *RetryConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 7 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
}

// Retrying wraps a Delegate with a per-attempt timeout and fixed-backoff
// retries on transient failures.
type Retrying struct {
	next   Delegate
	cfg    RetryConfig
	logger *slog.Logger
}

// WithRetry wraps next. A nil logger discards output.
func WithRetry(next Delegate, cfg RetryConfig, logger *slog.Logger) *Retrying {
	cfg.defaults()
	return &Retrying{next: next, cfg: cfg, logger: loggerOrNop(logger)}
}

// GetResponse implements Delegate.
func (r *Retrying) GetResponse(ctx context.Context, history []Message, userInput, systemPrompt string) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		reply, err := r.next.GetResponse(attemptCtx, history, userInput, systemPrompt)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, r.cfg.Timeout, err)
		}
		if !IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.cfg.Backoff)),
		backoff.WithMaxTries(uint(r.cfg.MaxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Warn("provider: retrying request",
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
		}),
	)
}

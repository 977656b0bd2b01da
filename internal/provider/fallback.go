package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FallbackEntry names one delegate in a Fallback.
type FallbackEntry struct {
	Name     string
	Delegate Delegate
}

// FallbackOption configures optional Fallback behavior.
type FallbackOption func(*Fallback)

// WithFallbackLogger injects a structured logger.
func WithFallbackLogger(l *slog.Logger) FallbackOption {
	return func(f *Fallback) { f.logger = l }
}

// WithCooldown sets how long a delegate is skipped after a transient failure.
func WithCooldown(d time.Duration) FallbackOption {
	return func(f *Fallback) { f.cooldown = d }
}

// Fallback tries delegates in order and returns the first successful reply.
// A delegate that fails transiently is skipped for a cooldown period unless
// every delegate is cooling down.
type Fallback struct {
	entries  []FallbackEntry
	logger   *slog.Logger
	cooldown time.Duration

	mu    sync.Mutex
	until map[string]time.Time

	// now is injectable for testing.
	now func() time.Time
}

// NewFallback creates a Fallback over entries.
func NewFallback(entries []FallbackEntry, opts ...FallbackOption) (*Fallback, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}
	for _, e := range entries {
		if e.Delegate == nil {
			return nil, fmt.Errorf("%w: entry %q has nil delegate", ErrNoProvider, e.Name)
		}
	}
	f := &Fallback{
		entries:  entries,
		cooldown: 30 * time.Second,
		until:    make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = loggerOrNop(f.logger)
	return f, nil
}

// GetResponse implements Delegate.
func (f *Fallback) GetResponse(ctx context.Context, history []Message, userInput, systemPrompt string) (string, error) {
	var errs []error
	for _, e := range f.ordered() {
		reply, err := e.Delegate.GetResponse(ctx, history, userInput, systemPrompt)
		if err == nil {
			f.recover(e.Name)
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		if IsRetryable(err) {
			f.trip(e.Name)
		}
		f.logger.Warn("provider failed, trying next", "provider", e.Name, "error", err)
	}
	return "", fmt.Errorf("%w: %w", ErrAllProviders, errors.Join(errs...))
}

// ordered returns available entries first, cooling-down entries last, so a
// request is still attempted when everything is cooling down.
func (f *Fallback) ordered() []FallbackEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	ready := make([]FallbackEntry, 0, len(f.entries))
	var cooling []FallbackEntry
	for _, e := range f.entries {
		if until, ok := f.until[e.Name]; ok && now.Before(until) {
			cooling = append(cooling, e)
			continue
		}
		ready = append(ready, e)
	}
	return append(ready, cooling...)
}

func (f *Fallback) trip(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.until[name] = f.now().Add(f.cooldown)
}

func (f *Fallback) recover(name string) {
	f.mu.Lock()
	_, was := f.until[name]
	delete(f.until, name)
	f.mu.Unlock()
	if was {
		f.logger.Info("provider recovered", "provider", name)
	}
}

// Status is the health of one delegate in a Fallback.
type Status struct {
	Name         string    `json:"name"`
	Available    bool      `json:"available"`
	CoolingUntil time.Time `json:"cooling_until,omitzero"`
}

// HealthReport returns the status of every delegate, in configured order.
func (f *Fallback) HealthReport() []Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]Status, len(f.entries))
	for i, e := range f.entries {
		out[i] = Status{Name: e.Name, Available: true}
		if until, ok := f.until[e.Name]; ok && now.Before(until) {
			out[i].Available = false
			out[i].CoolingUntil = until
		}
	}
	return out
}

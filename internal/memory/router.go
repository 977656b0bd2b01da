package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/flemzord/almond/internal/telemetry"
)

// Optimizer merges a batch of staged short fragments into one
// fact-preserving text.
type Optimizer interface {
	Optimize(ctx context.Context, conversationID string, batch []Fragment) (string, error)
}

// RouterConfig controls tier selection and batching.
type RouterConfig struct {
	// Threshold is the largest content length, in characters, routed to
	// the short-form tier. Default: 150.
	Threshold int `yaml:"threshold"`

	// BatchSize is the number of staged short fragments that triggers
	// promotion into one optimized long fragment. A value of 1 disables
	// staging. Default: 10.
	BatchSize int `yaml:"batch_size"`
}

func (c *RouterConfig) defaults() {
	if c.Threshold <= 0 {
		c.Threshold = 150
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
}

// RouterOption configures optional Router behavior.
type RouterOption func(*Router)

// WithOptimizer enables batching through o.
func WithOptimizer(o Optimizer) RouterOption {
	return func(r *Router) { r.optimizer = o }
}

// WithRouterLogger injects a structured logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// WithRouterMetrics records stored and dropped fragments.
func WithRouterMetrics(m *telemetry.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// Router decides which tier a fragment is written to and exposes the raw
// store primitives to the rest of the core. Every fragment it writes lives
// in exactly one tier.
type Router struct {
	short     ShortStore
	long      LongStore
	stager    Stager
	optimizer Optimizer
	cfg       RouterConfig
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	// indexReady is set once EnsureIndex succeeds and cleared when the
	// long store reports the index missing.
	indexReady atomic.Bool

	// now is injectable for testing.
	now func() time.Time
}

// NewRouter creates a Router over both tiers. Staging is used when the
// short store also implements Stager, an optimizer is set and BatchSize is
// greater than one.
func NewRouter(short ShortStore, long LongStore, cfg RouterConfig, opts ...RouterOption) (*Router, error) {
	if short == nil || long == nil {
		return nil, ErrNoStore
	}
	cfg.defaults()
	r := &Router{
		short: short,
		long:  long,
		cfg:   cfg,
		now:   time.Now,
	}
	if st, ok := short.(Stager); ok {
		r.stager = st
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = discardLogger()
	}
	return r, nil
}

// Short returns the short-form store.
func (r *Router) Short() ShortStore { return r.short }

// Long returns the long-form store.
func (r *Router) Long() LongStore { return r.long }

// Threshold returns the configured routing threshold.
func (r *Router) Threshold() int { return r.cfg.Threshold }

func (r *Router) batching() bool {
	return r.stager != nil && r.optimizer != nil && r.cfg.BatchSize > 1
}

// Store persists content for the conversation. Empty content is dropped
// with a warning and reported as not stored, without an error.
func (r *Router) Store(ctx context.Context, conversationID string, role Role, content string) (Fragment, bool, error) {
	if strings.TrimSpace(content) == "" {
		r.logger.Warn("memory: empty content dropped",
			"conversation_id", conversationID,
			"role", string(role),
		)
		r.metrics.Dropped()
		return Fragment{}, false, nil
	}

	f := Fragment{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      r.now(),
	}

	if Route(content, r.cfg.Threshold) == TierLong {
		stored, err := r.insertLong(ctx, f)
		if err != nil {
			return Fragment{}, false, err
		}
		return stored, true, nil
	}

	if !r.batching() {
		stored, err := r.short.Insert(ctx, f)
		if err != nil {
			return Fragment{}, false, fmt.Errorf("memory: short store insert: %w", err)
		}
		r.metrics.Stored(string(TierShort))
		return stored, true, nil
	}

	stored, staged, err := r.stager.Stage(ctx, f)
	if err != nil {
		return Fragment{}, false, fmt.Errorf("memory: staging insert: %w", err)
	}
	if staged >= r.cfg.BatchSize {
		if err := r.promote(ctx, conversationID); err != nil {
			// The batch stays staged and is retried on the next store.
			r.logger.Warn("memory: batch promotion failed",
				"conversation_id", conversationID,
				"error", err,
			)
		}
	}
	return stored, true, nil
}

func (r *Router) ensureIndex(ctx context.Context) error {
	if r.indexReady.Load() {
		return nil
	}
	if err := r.long.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("memory: ensure long index: %w", err)
	}
	r.indexReady.Store(true)
	return nil
}

// insertLong writes f to the long store. If the index vanished since it was
// last ensured, it is recreated and the write retried once.
func (r *Router) insertLong(ctx context.Context, f Fragment) (Fragment, error) {
	if err := r.ensureIndex(ctx); err != nil {
		return Fragment{}, err
	}
	out, err := r.long.BulkInsert(ctx, []Fragment{f})
	if errors.Is(err, ErrIndexMissing) {
		r.indexReady.Store(false)
		r.logger.Warn("memory: long index missing, recreating", "error", err)
		if err := r.ensureIndex(ctx); err != nil {
			return Fragment{}, err
		}
		out, err = r.long.BulkInsert(ctx, []Fragment{f})
	}
	if err != nil {
		return Fragment{}, fmt.Errorf("memory: long store insert: %w", err)
	}
	r.metrics.Stored(string(TierLong))
	if len(out) == 0 {
		return f, nil
	}
	return out[0], nil
}

// promote optimizes the conversation's staged batch into one long fragment
// and clears the staging area. When the optimizer fails, the staged
// fragments are moved to the short store unchanged instead, one at a time,
// so a failed flush leaves only the unmoved ones staged.
func (r *Router) promote(ctx context.Context, conversationID string) error {
	batch, err := r.stager.Staged(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("reading staged batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	summary, err := r.optimizer.Optimize(ctx, conversationID, batch)
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("optimizer returned empty text")
	}

	if err != nil {
		r.logger.Warn("memory: batch optimization failed, keeping fragments as-is",
			"conversation_id", conversationID,
			"batch", len(batch),
			"error", err,
		)
		for _, f := range batch {
			stagedID := f.ID
			f.ID = ""
			f.Tier = TierShort
			if _, err := r.short.Insert(ctx, f); err != nil {
				return fmt.Errorf("flushing staged fragment: %w", err)
			}
			r.metrics.Stored(string(TierShort))
			if err := r.stager.Unstage(ctx, stagedID); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("unstaging flushed fragment: %w", err)
			}
		}
	} else {
		merged := Fragment{
			ConversationID: conversationID,
			Role:           RoleAssistant,
			Content:        strings.TrimSpace(summary),
			CreatedAt:      r.now(),
		}
		if _, err := r.insertLong(ctx, merged); err != nil {
			return err
		}
		r.logger.Info("memory: batch promoted to long-form store",
			"conversation_id", conversationID,
			"batch", len(batch),
		)
	}

	if err := r.stager.ClearStaged(ctx, conversationID); err != nil {
		return fmt.Errorf("clearing staged batch: %w", err)
	}
	return nil
}

// Delete removes f from the tier it lives in.
func (r *Router) Delete(ctx context.Context, f Fragment) error {
	switch f.Tier {
	case TierShort:
		return r.short.Delete(ctx, f.ID)
	case TierLong:
		return r.long.Delete(ctx, f.ID)
	case TierStaged:
		return r.deleteStaged(ctx, f)
	default:
		return fmt.Errorf("memory: fragment %s has unknown tier %q", f.ID, f.Tier)
	}
}

// deleteStaged removes a fragment that was staged when it was read. If it
// has since been flushed to the short store under a new ID, that copy is
// deleted instead.
func (r *Router) deleteStaged(ctx context.Context, f Fragment) error {
	if r.stager == nil {
		return fmt.Errorf("memory: fragment %s is staged but the short store does not stage", f.ID)
	}
	err := r.stager.Unstage(ctx, f.ID)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	flushed, err := r.short.List(ctx, f.ConversationID)
	if err != nil {
		return fmt.Errorf("memory: listing short store: %w", err)
	}
	k := KeyOf(f)
	for _, c := range flushed {
		if KeyOf(c) == k {
			return r.short.Delete(ctx, c.ID)
		}
	}
	return ErrNotFound
}

// LoadAll reads every fragment from both tiers and the staging area,
// drops content duplicates, and groups the rest by conversation, oldest
// first.
func (r *Router) LoadAll(ctx context.Context) (map[string][]Fragment, error) {
	short, err := r.short.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("memory: listing short store: %w", err)
	}
	long, err := r.long.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("memory: listing long store: %w", err)
	}
	all := append(short, long...)
	if r.stager != nil {
		staged, err := r.stager.Staged(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("memory: listing staging area: %w", err)
		}
		all = append(all, staged...)
	}

	slices.SortStableFunc(all, func(a, b Fragment) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})

	seen := make(map[Key]struct{}, len(all))
	out := make(map[string][]Fragment)
	for _, f := range all {
		k := KeyOf(f)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out[f.ConversationID] = append(out[f.ConversationID], f)
	}
	return out, nil
}

// Purge removes every stored fragment of the conversation from both tiers
// and the staging area. It returns the number of stored fragments deleted.
func (r *Router) Purge(ctx context.Context, conversationID string) (int, error) {
	if conversationID == "" {
		return 0, errors.New("memory: purge requires a conversation id")
	}

	short, err := r.short.List(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("memory: listing short store: %w", err)
	}
	long, err := r.long.List(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("memory: listing long store: %w", err)
	}

	n := 0
	for _, f := range append(short, long...) {
		if err := r.Delete(ctx, f); err != nil && !errors.Is(err, ErrNotFound) {
			return n, err
		}
		n++
	}
	if r.stager != nil {
		if err := r.stager.ClearStaged(ctx, conversationID); err != nil {
			return n, fmt.Errorf("memory: clearing staging area: %w", err)
		}
	}
	return n, nil
}

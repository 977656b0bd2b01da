package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/almond/internal/telemetry"
)

// Compressor collapses an overlong history into one summary turn.
type Compressor interface {
	// ShouldCompress reports whether h exceeds the context ceiling.
	ShouldCompress(h *History) bool

	// Compress replaces every turn of h with one assistant summary and
	// returns it. On failure h must be left unmodified.
	Compress(ctx context.Context, conversationID string, h *History) (Turn, error)
}

// Config is the memory section of the configuration file.
type Config struct {
	// HistoryCapacity is the number of turns kept per conversation.
	// Default: 50.
	HistoryCapacity int `yaml:"history_capacity"`

	RouterConfig    `yaml:",inline"`
	RetrieverConfig `yaml:",inline"`

	Forget ForgetConfig `yaml:"forget"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = 50
	}
	c.RouterConfig.defaults()
	c.RetrieverConfig.defaults()
	c.Forget.defaults()
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithCompressor sets the compression engine.
func WithCompressor(c Compressor) ManagerOption {
	return func(m *Manager) { m.compressor = c }
}

// WithRewriter enables the model-assisted retrieval stage.
func WithRewriter(r Rewriter) ManagerOption {
	return func(m *Manager) { m.rewriter = r }
}

// WithLogger injects a structured logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records compression, retrieval and forgetting outcomes.
func WithMetrics(metrics *telemetry.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// Manager is the facade the message pipeline talks to. It owns one History
// per conversation and composes the router, retriever, usage tracker and
// forgetter.
//
// History mutation is not locked: callers hold the conversation's
// processing gate.
type Manager struct {
	cfg        Config
	router     *Router
	usage      *UsageTracker
	retriever  *Retriever
	forgetter  *Forgetter
	compressor Compressor
	rewriter   Rewriter
	logger     *slog.Logger
	metrics    *telemetry.Metrics

	mu        sync.Mutex
	histories map[string]*History
}

// NewManager creates a Manager over router.
func NewManager(router *Router, cfg Config, opts ...ManagerOption) (*Manager, error) {
	if router == nil {
		return nil, ErrNoStore
	}
	cfg.Defaults()
	m := &Manager{
		cfg:       cfg,
		router:    router,
		usage:     NewUsageTracker(),
		histories: make(map[string]*History),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = discardLogger()
	}
	m.retriever = NewRetriever(router, m.usage, m.rewriter, cfg.RetrieverConfig, m.logger, m.metrics)
	m.forgetter = NewForgetter(router, m.usage, cfg.Forget, m.logger, m.metrics)
	return m, nil
}

// Router returns the store router.
func (m *Manager) Router() *Router { return m.router }

// Usage returns the usage tracker.
func (m *Manager) Usage() *UsageTracker { return m.usage }

// Forgetter returns the forgetting engine.
func (m *Manager) Forgetter() *Forgetter { return m.forgetter }

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// History returns the conversation's history, creating it on first use.
func (m *Manager) History(conversationID string) *History {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[conversationID]
	if !ok {
		h = NewHistory(m.cfg.HistoryCapacity)
		m.histories[conversationID] = h
	}
	return h
}

// Conversations returns the IDs of every conversation with a history,
// sorted.
func (m *Manager) Conversations() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.histories))
	for id := range m.histories {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Append adds t to the conversation's history.
func (m *Manager) Append(conversationID string, t Turn) {
	if _, evicted := m.History(conversationID).Append(t); evicted {
		m.logger.Debug("memory: oldest turn evicted", "conversation_id", conversationID)
	}
}

// Compress runs the compression engine when the history exceeds its
// ceiling and persists the summary. It reports whether the history was
// replaced. On error the history is unchanged.
func (m *Manager) Compress(ctx context.Context, conversationID string) (bool, error) {
	if m.compressor == nil {
		return false, nil
	}
	h := m.History(conversationID)
	if !m.compressor.ShouldCompress(h) {
		return false, nil
	}

	summary, err := m.compressor.Compress(ctx, conversationID, h)
	if err != nil {
		m.metrics.Compressed("failed")
		return false, err
	}
	m.metrics.Compressed("ok")

	if _, _, err := m.router.Store(ctx, conversationID, summary.Role, summary.Content); err != nil {
		m.logger.Warn("memory: persisting summary failed",
			"conversation_id", conversationID,
			"error", err,
		)
	}
	return true, nil
}

// Retrieve returns the most relevant memory for query as a system
// advisory fragment.
func (m *Manager) Retrieve(ctx context.Context, conversationID, query string) (Fragment, bool, error) {
	return m.retriever.Retrieve(ctx, conversationID, query)
}

// RetrieveN returns up to the configured maximum of advisory fragments.
func (m *Manager) RetrieveN(ctx context.Context, conversationID, query string) ([]Fragment, error) {
	return m.retriever.RetrieveN(ctx, conversationID, query, m.cfg.MaxFragments)
}

// Store persists content through the router.
func (m *Manager) Store(ctx context.Context, conversationID string, role Role, content string) (Fragment, bool, error) {
	return m.router.Store(ctx, conversationID, role, content)
}

// Forget runs one forgetting sweep.
func (m *Manager) Forget(ctx context.Context) (SweepResult, error) {
	return m.forgetter.Sweep(ctx)
}

// Purge deletes the conversation's stored fragments and usage stats. The
// in-process history is left alone; callers running alongside a live
// dispatcher must hold the conversation's processing gate to clear it.
func (m *Manager) Purge(ctx context.Context, conversationID string) (int, error) {
	n, err := m.router.Purge(ctx, conversationID)
	m.usage.Forget(conversationID)
	if err != nil {
		return n, err
	}
	m.logger.Info("memory: conversation purged", "conversation_id", conversationID, "fragments", n)
	return n, nil
}

// Hydrate loads every persisted fragment and seeds each conversation's
// history with its newest fragments, up to capacity. It returns the number
// of conversations seeded.
func (m *Manager) Hydrate(ctx context.Context) (int, error) {
	all, err := m.router.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("memory: hydrate: %w", err)
	}
	for id, frags := range all {
		if extra := len(frags) - m.cfg.HistoryCapacity; extra > 0 {
			frags = frags[extra:]
		}
		turns := make([]Turn, len(frags))
		for i, f := range frags {
			turns[i] = f.Turn()
		}
		m.History(id).Replace(turns...)
	}
	m.logger.Info("memory: hydrated", "conversations", len(all))
	return len(all), nil
}

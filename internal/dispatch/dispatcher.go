package dispatch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/almond/internal/telemetry"
	"github.com/flemzord/almond/pkg/message"
)

const (
	defaultWorkers       = 10
	defaultDedupCapacity = 1024
	defaultIdleTimeout   = 30 * time.Minute
	defaultPruneInterval = 5 * time.Minute
)

// Handler processes one inbound message. The dispatcher guarantees that
// Handle is never called concurrently for the same conversation.
type Handler interface {
	Handle(ctx context.Context, msg message.InboundMessage) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg message.InboundMessage) error

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg message.InboundMessage) error {
	return f(ctx, msg)
}

// Config holds the dispatcher settings.
type Config struct {
	// Workers bounds how many conversations are processed at once.
	Workers int `yaml:"workers"`

	// DedupCapacity is the number of recent message IDs remembered for
	// duplicate suppression.
	DedupCapacity int `yaml:"dedup_capacity"`

	// IdleTimeout is how long an empty lane is kept before pruning.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// PruneInterval rate-limits opportunistic lane pruning.
	PruneInterval time.Duration `yaml:"prune_interval"`

	Group GroupPolicy `yaml:"group"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.DedupCapacity <= 0 {
		c.DedupCapacity = defaultDedupCapacity
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = defaultPruneInterval
	}
}

// Option configures optional Dispatcher behavior.
type Option func(*Dispatcher)

// WithLogger injects a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records queue and lane metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher accepts inbound messages from any number of channels and
// hands them to the Handler, one at a time per conversation and in arrival
// order, with different conversations running in parallel.
type Dispatcher struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// mu guards the lanes map only; each lane has its own lock.
	mu    sync.Mutex
	lanes map[string]*lane

	seen   *seenSet
	sem    chan struct{}
	pruner *lazyPruner
	active atomic.Int64

	// runMu orders Enqueue against Stop so no drain goroutine is started
	// after Stop begins waiting.
	runMu    sync.RWMutex
	stopped  bool
	closing  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	// now is injectable for testing.
	now func() time.Time
}

// New creates a Dispatcher that delivers messages to h.
func New(h Handler, cfg Config, opts ...Option) (*Dispatcher, error) {
	if h == nil {
		return nil, ErrNoHandler
	}
	cfg.Defaults()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:     cfg,
		handler: h,
		lanes:   make(map[string]*lane),
		seen:    newSeenSet(cfg.DedupCapacity),
		sem:     make(chan struct{}, cfg.Workers),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.pruner = newLazyPruner(func() int { return d.Prune(d.cfg.IdleTimeout) }, cfg.PruneInterval)
	return d, nil
}

// Enqueue accepts msg for processing and returns immediately. Messages the
// group policy filters out are dropped silently, and so are messages whose
// ID was already seen.
func (d *Dispatcher) Enqueue(msg message.InboundMessage) error {
	d.runMu.RLock()
	defer d.runMu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	conv := msg.ConversationID()
	if conv == "" {
		return ErrNoConversation
	}
	if !d.cfg.Group.ShouldProcess(msg) {
		d.logger.Debug("dispatch: message filtered by group policy",
			"conversation_id", conv,
			"sender", msg.Sender.ID,
		)
		return nil
	}
	if msg.ID != "" && !d.seen.Add(msg.ID) {
		d.metrics.Duplicate()
		d.logger.Debug("dispatch: duplicate message ignored",
			"conversation_id", conv,
			"message_id", msg.ID,
		)
		return nil
	}

	for {
		ln := d.lane(conv)

		ln.mu.Lock()
		if ln.removed {
			// Pruned between lookup and lock; take the fresh lane.
			ln.mu.Unlock()
			continue
		}
		ln.queue = append(ln.queue, msg)
		ln.lastActive = d.now()
		start := !ln.draining
		ln.draining = true
		ln.mu.Unlock()

		d.metrics.Enqueued()
		if start {
			d.metrics.SetActiveLanes(int(d.active.Add(1)))
			d.wg.Add(1)
			go d.drain(ln)
		}
		return nil
	}
}

// lane returns the lane for conv, creating it on first use.
func (d *Dispatcher) lane(conv string) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()
	ln, ok := d.lanes[conv]
	if !ok {
		ln = &lane{id: conv, lastActive: d.now()}
		d.lanes[conv] = ln
	}
	return ln
}

// drain processes ln's queue until it is empty. Only one drain goroutine
// runs per lane at a time.
func (d *Dispatcher) drain(ln *lane) {
	defer d.wg.Done()
	defer func() { d.metrics.SetActiveLanes(int(d.active.Add(-1))) }()

	for {
		msg, dropped, ok := ln.pop(d.closing.Load(), d.now())
		if !ok {
			if dropped > 0 {
				d.logger.Warn("dispatch: queued messages dropped on shutdown",
					"conversation_id", ln.id,
					"dropped", dropped,
				)
			}
			return
		}
		d.process(msg)
		ln.done(d.now())
		d.pruner.TryPrune()
	}
}

// process runs the handler for one message under the worker limit. A
// handler error or panic is logged and never stops the lane.
func (d *Dispatcher) process(msg message.InboundMessage) {
	select {
	case d.sem <- struct{}{}:
	case <-d.ctx.Done():
		d.metrics.Processed("cancelled")
		return
	}
	defer func() { <-d.sem }()

	conv := msg.ConversationID()
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Processed("panic")
			d.logger.Error("dispatch: handler panicked",
				"conversation_id", conv,
				"message_id", msg.ID,
				"panic", r,
			)
		}
	}()

	start := d.now()
	if err := d.handler.Handle(d.ctx, msg); err != nil {
		d.metrics.Processed("error")
		d.logger.Error("dispatch: message processing failed",
			"conversation_id", conv,
			"message_id", msg.ID,
			"error", err,
		)
		return
	}
	d.metrics.Processed("ok")
	d.logger.Debug("dispatch: message processed",
		"conversation_id", conv,
		"message_id", msg.ID,
		"duration", d.now().Sub(start),
	)
}

// Prune removes lanes that are idle, empty and inactive for longer than
// maxIdle. It returns the number of lanes removed.
func (d *Dispatcher) Prune(maxIdle time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-maxIdle)
	pruned := 0
	for id, ln := range d.lanes {
		ln.mu.Lock()
		if !ln.draining && len(ln.queue) == 0 && ln.lastActive.Before(cutoff) {
			ln.removed = true
			delete(d.lanes, id)
			pruned++
		}
		ln.mu.Unlock()
	}
	if pruned > 0 {
		d.logger.Debug("dispatch: pruned idle lanes", "count", pruned)
	}
	return pruned
}

// Lanes returns a snapshot of every lane, sorted by conversation ID.
func (d *Dispatcher) Lanes() []LaneInfo {
	d.mu.Lock()
	lanes := make([]*lane, 0, len(d.lanes))
	for _, ln := range d.lanes {
		lanes = append(lanes, ln)
	}
	d.mu.Unlock()

	out := make([]LaneInfo, 0, len(lanes))
	for _, ln := range lanes {
		out = append(out, ln.info())
	}
	slices.SortFunc(out, func(a, b LaneInfo) int {
		return cmp.Compare(a.ConversationID, b.ConversationID)
	})
	return out
}

// LaneCount returns the number of live lanes.
func (d *Dispatcher) LaneCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Stop stops accepting messages and waits for in-flight messages to
// finish. Messages still queued behind them are dropped. When ctx expires
// first, in-flight processing is cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.runMu.Lock()
		d.stopped = true
		d.runMu.Unlock()
		d.closing.Store(true)
	})
	defer d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatch: stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: waiting for lanes: %w", ctx.Err())
	}
}

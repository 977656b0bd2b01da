package memory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/almond/internal/telemetry"
)

// ForgetConfig controls the forgetting sweep.
type ForgetConfig struct {
	// MaxFrequency is the highest retrieval count that still allows
	// removal. Default: 3.
	MaxFrequency int `yaml:"max_frequency"`

	// Retention is how long a fragment must go unused before it can be
	// removed. Default: 14 days.
	Retention time.Duration `yaml:"retention"`

	// Schedule is the cron expression the sweep runs on.
	// Default: "0 3 * * *".
	Schedule string `yaml:"schedule"`
}

func (c *ForgetConfig) defaults() {
	if c.MaxFrequency <= 0 {
		c.MaxFrequency = 3
	}
	if c.Retention <= 0 {
		c.Retention = 14 * 24 * time.Hour
	}
	if c.Schedule == "" {
		c.Schedule = "0 3 * * *"
	}
}

// SweepResult summarizes one forgetting sweep.
type SweepResult struct {
	Examined int `json:"examined"`
	Removed  int `json:"removed"`
	Failed   int `json:"failed"`
}

// Forgetter removes rarely used, stale fragments. Fragments that were never
// retrieved have no usage stat and are always kept.
type Forgetter struct {
	router  *Router
	usage   *UsageTracker
	cfg     ForgetConfig
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// now is injectable for testing.
	now func() time.Time
}

// NewForgetter creates a Forgetter. A nil logger discards output.
func NewForgetter(router *Router, usage *UsageTracker, cfg ForgetConfig, logger *slog.Logger, metrics *telemetry.Metrics) *Forgetter {
	cfg.defaults()
	if logger == nil {
		logger = discardLogger()
	}
	return &Forgetter{
		router:  router,
		usage:   usage,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Schedule returns the configured cron expression.
func (f *Forgetter) Schedule() string { return f.cfg.Schedule }

// IsCandidate reports whether st qualifies for removal at now: used at most
// MaxFrequency times and last used longer ago than the retention window.
func (f *Forgetter) IsCandidate(st UsageStat, now time.Time) bool {
	return st.Frequency <= f.cfg.MaxFrequency && now.Sub(st.LastUsed) > f.cfg.Retention
}

// Sweep removes every candidate fragment and its usage stat. A fragment
// whose deletion fails keeps its stat and is retried by the next sweep; a
// fragment already gone from its store only loses its stat.
func (f *Forgetter) Sweep(ctx context.Context) (SweepResult, error) {
	now := f.now()
	var res SweepResult

	for _, k := range f.usage.Keys() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Examined++

		removed, err := f.usage.EvictIf(k,
			func(st UsageStat) bool { return f.IsCandidate(st, now) },
			func(frag Fragment) error {
				err := f.router.Delete(ctx, frag)
				if errors.Is(err, ErrNotFound) {
					return nil
				}
				return err
			},
		)
		if err != nil {
			res.Failed++
			f.logger.Warn("memory: forgetting fragment failed",
				"conversation_id", k.ConversationID,
				"error", err,
			)
			continue
		}
		if removed {
			res.Removed++
		}
	}

	f.metrics.Swept(res.Removed)
	f.logger.Info("memory: forget sweep finished",
		"examined", res.Examined,
		"removed", res.Removed,
		"failed", res.Failed,
	)
	return res, nil
}

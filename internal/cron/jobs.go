package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/almond/internal/memory"
)

const (
	defaultForgetSchedule    = "0 3 * * *"
	defaultLanePruneSchedule = "*/5 * * * *"
	defaultLaneMaxIdle       = 30 * time.Minute
)

// Forgetter runs one forgetting sweep. *memory.Manager satisfies it.
type Forgetter interface {
	Forget(ctx context.Context) (memory.SweepResult, error)
}

// LanePruner removes idle conversation lanes. *dispatch.Dispatcher
// satisfies it.
type LanePruner interface {
	Prune(maxIdle time.Duration) int
}

// ForgetJob evicts rarely used, stale memory fragments.
type ForgetJob struct {
	Forgetter    Forgetter
	ScheduleExpr string // empty = "0 3 * * *"
	Logger       *slog.Logger
}

var _ Job = (*ForgetJob)(nil)

// Name implements Job.
func (j *ForgetJob) Name() string { return "memory_forget" }

// Schedule implements Job.
func (j *ForgetJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return defaultForgetSchedule
}

// Run implements Job.
func (j *ForgetJob) Run(ctx context.Context) error {
	res, err := j.Forgetter.Forget(ctx)
	if err != nil {
		return fmt.Errorf("cron: forget sweep: %w", err)
	}
	if res.Removed > 0 || res.Failed > 0 {
		loggerOrDefault(j.Logger).Info("cron: forget sweep",
			"examined", res.Examined,
			"removed", res.Removed,
			"failed", res.Failed,
		)
	}
	return nil
}

// LanePruneJob drops dispatcher lanes idle for longer than MaxIdle.
type LanePruneJob struct {
	Lanes        LanePruner
	MaxIdle      time.Duration // zero = 30m
	ScheduleExpr string        // empty = "*/5 * * * *"
	Logger       *slog.Logger
}

var _ Job = (*LanePruneJob)(nil)

// Name implements Job.
func (j *LanePruneJob) Name() string { return "lane_prune" }

// Schedule implements Job.
func (j *LanePruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return defaultLanePruneSchedule
}

// Run implements Job.
func (j *LanePruneJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: lane prune cancelled: %w", err)
	}
	maxIdle := j.MaxIdle
	if maxIdle <= 0 {
		maxIdle = defaultLaneMaxIdle
	}
	if n := j.Lanes.Prune(maxIdle); n > 0 {
		loggerOrDefault(j.Logger).Info("cron: pruned idle lanes", "count", n)
	}
	return nil
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

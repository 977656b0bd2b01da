// Package crontest provides fakes for the maintenance job dependencies.
package crontest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flemzord/almond/internal/cron"
	"github.com/flemzord/almond/internal/memory"
)

// MockForgetter is a cron.Forgetter returning Result and Err.
type MockForgetter struct {
	Result memory.SweepResult
	Err    error
	Calls  atomic.Int32
}

var _ cron.Forgetter = (*MockForgetter)(nil)

// Forget implements cron.Forgetter.
func (m *MockForgetter) Forget(context.Context) (memory.SweepResult, error) {
	m.Calls.Add(1)
	return m.Result, m.Err
}

// MockLanePruner is a cron.LanePruner.
type MockLanePruner struct {
	PruneFunc  func(maxIdle time.Duration) int
	PruneCalls atomic.Int32
}

var _ cron.LanePruner = (*MockLanePruner)(nil)

// Prune implements cron.LanePruner.
func (m *MockLanePruner) Prune(maxIdle time.Duration) int {
	m.PruneCalls.Add(1)
	if m.PruneFunc != nil {
		return m.PruneFunc(maxIdle)
	}
	return 0
}

package dispatch

import (
	"sync"
	"time"
)

// lazyPruner runs a prune function at most once per interval, so it can be
// called opportunistically after every message.
type lazyPruner struct {
	mu       sync.Mutex
	prune    func() int
	interval time.Duration
	lastRun  time.Time
	now      func() time.Time
}

func newLazyPruner(prune func() int, interval time.Duration) *lazyPruner {
	return &lazyPruner{
		prune:    prune,
		interval: interval,
		now:      time.Now,
	}
}

// TryPrune prunes if enough time has elapsed since the last run. It returns
// the number of lanes pruned, or 0 if rate-limited.
func (p *lazyPruner) TryPrune() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastRun) < p.interval {
		return 0
	}
	p.lastRun = now
	return p.prune()
}

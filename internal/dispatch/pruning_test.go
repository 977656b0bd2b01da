package dispatch

import (
	"testing"
	"time"
)

func TestLazyPruner_RateLimited(t *testing.T) {
	t.Parallel()

	calls := 0
	p := newLazyPruner(func() int { calls++; return 2 }, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	if got := p.TryPrune(); got != 2 {
		t.Errorf("first TryPrune = %d, want 2", got)
	}
	now = now.Add(30 * time.Second)
	if got := p.TryPrune(); got != 0 {
		t.Errorf("rate-limited TryPrune = %d, want 0", got)
	}
	now = now.Add(31 * time.Second)
	if got := p.TryPrune(); got != 2 {
		t.Errorf("TryPrune after interval = %d, want 2", got)
	}
	if calls != 2 {
		t.Errorf("prune calls = %d, want 2", calls)
	}
}

package memory

import (
	"slices"
	"sync"
	"time"
)

// UsageStat records how often and how recently a fragment was retrieved.
// A stat exists only for fragments retrieved at least once, so Frequency is
// always at least one.
type UsageStat struct {
	Fragment  Fragment  `json:"fragment"`
	Frequency int       `json:"frequency"`
	LastUsed  time.Time `json:"last_used"`
}

// UsageTracker is the process-wide usage map, keyed by fragment content
// key. It is safe for concurrent use.
type UsageTracker struct {
	mu    sync.Mutex
	stats map[Key]*UsageStat
	// evicting holds the keys whose fragment deletion is in flight.
	evicting map[Key]struct{}
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		stats:    make(map[Key]*UsageStat),
		evicting: make(map[Key]struct{}),
	}
}

// Touch records a retrieval hit for f at the given time: the first hit
// creates the stat with frequency one, later hits increment it. The
// recorded fragment reference is refreshed so deletion targets the copy
// most recently retrieved.
func (u *UsageTracker) Touch(f Fragment, at time.Time) UsageStat {
	u.mu.Lock()
	defer u.mu.Unlock()

	k := KeyOf(f)
	st, ok := u.stats[k]
	if !ok {
		st = &UsageStat{}
		u.stats[k] = st
	}
	st.Fragment = f
	st.Frequency++
	if at.After(st.LastUsed) {
		st.LastUsed = at
	}
	return *st
}

// Get returns the stat for k.
func (u *UsageTracker) Get(k Key) (UsageStat, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	st, ok := u.stats[k]
	if !ok {
		return UsageStat{}, false
	}
	return *st, true
}

// Keys returns every tracked key.
func (u *UsageTracker) Keys() []Key {
	u.mu.Lock()
	defer u.mu.Unlock()
	keys := make([]Key, 0, len(u.stats))
	for k := range u.stats {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a copy of every stat, most recently used first.
func (u *UsageTracker) Snapshot() []UsageStat {
	u.mu.Lock()
	out := make([]UsageStat, 0, len(u.stats))
	for _, st := range u.stats {
		out = append(out, *st)
	}
	u.mu.Unlock()

	slices.SortFunc(out, func(a, b UsageStat) int {
		return b.LastUsed.Compare(a.LastUsed)
	})
	return out
}

// Len returns the number of tracked fragments.
func (u *UsageTracker) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.stats)
}

// Forget drops the stat for every fragment of a conversation, or all stats
// when conversationID is empty. It returns the number removed.
func (u *UsageTracker) Forget(conversationID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for k := range u.stats {
		if conversationID == "" || k.ConversationID == conversationID {
			delete(u.stats, k)
			n++
		}
	}
	return n
}

// EvictIf removes the stat for k together with its fragment when pred
// holds. The key is marked while del deletes the fragment outside the lock,
// so hits keep landing and a concurrent EvictIf for the same key is a
// no-op. When del fails the stat is kept. After a successful delete the
// stat is dropped unless a hit in the meantime moved it to another copy of
// the content. It reports whether the fragment was removed.
func (u *UsageTracker) EvictIf(k Key, pred func(UsageStat) bool, del func(Fragment) error) (bool, error) {
	u.mu.Lock()
	st, ok := u.stats[k]
	_, busy := u.evicting[k]
	if !ok || busy || !pred(*st) {
		u.mu.Unlock()
		return false, nil
	}
	target := st.Fragment
	u.evicting[k] = struct{}{}
	u.mu.Unlock()

	err := del(target)

	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.evicting, k)
	if err != nil {
		return false, err
	}
	if st, ok := u.stats[k]; ok && sameCopy(st.Fragment, target) {
		delete(u.stats, k)
	}
	return true, nil
}

func sameCopy(a, b Fragment) bool {
	return a.ID == b.ID && a.Tier == b.Tier
}

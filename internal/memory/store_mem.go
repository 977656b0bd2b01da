package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fragmentList is an insertion-ordered, mutex-guarded fragment collection
// shared by the in-memory stores.
type fragmentList struct {
	mu        sync.RWMutex
	fragments []Fragment
}

func (l *fragmentList) add(f Fragment, tier Tier) Fragment {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	f.Tier = tier

	l.mu.Lock()
	l.fragments = append(l.fragments, f)
	l.mu.Unlock()
	return f
}

func (l *fragmentList) filter(keep func(Fragment) bool) []Fragment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Fragment
	for _, f := range l.fragments {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

func (l *fragmentList) remove(match func(Fragment) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.fragments)
	l.fragments = slices.DeleteFunc(l.fragments, match)
	return before - len(l.fragments)
}

func inConversation(conversationID string) func(Fragment) bool {
	return func(f Fragment) bool {
		return conversationID == "" || f.ConversationID == conversationID
	}
}

// InMemoryShortStore is a thread-safe, process-local ShortStore with a
// staging area. It backs tests and single-process deployments without a
// document database.
type InMemoryShortStore struct {
	main    fragmentList
	staging fragmentList
}

// NewInMemoryShortStore creates an empty store.
func NewInMemoryShortStore() *InMemoryShortStore {
	return &InMemoryShortStore{}
}

// Compile-time interface checks.
var (
	_ ShortStore = (*InMemoryShortStore)(nil)
	_ Stager     = (*InMemoryShortStore)(nil)
)

// Insert implements ShortStore.
func (s *InMemoryShortStore) Insert(_ context.Context, f Fragment) (Fragment, error) {
	return s.main.add(f, TierShort), nil
}

// Find implements ShortStore.
func (s *InMemoryShortStore) Find(_ context.Context, conversationID string, keywords []string) ([]Fragment, error) {
	in := inConversation(conversationID)
	return s.main.filter(func(f Fragment) bool {
		return in(f) && ContainsAll(f.Content, keywords)
	}), nil
}

// Delete implements ShortStore.
func (s *InMemoryShortStore) Delete(_ context.Context, id string) error {
	if s.main.remove(func(f Fragment) bool { return f.ID == id }) == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements ShortStore.
func (s *InMemoryShortStore) List(_ context.Context, conversationID string) ([]Fragment, error) {
	return s.main.filter(inConversation(conversationID)), nil
}

// Stage implements Stager.
func (s *InMemoryShortStore) Stage(_ context.Context, f Fragment) (Fragment, int, error) {
	stored := s.staging.add(f, TierStaged)
	n := len(s.staging.filter(inConversation(f.ConversationID)))
	return stored, n, nil
}

// Staged implements Stager.
func (s *InMemoryShortStore) Staged(_ context.Context, conversationID string) ([]Fragment, error) {
	return s.staging.filter(inConversation(conversationID)), nil
}

// Unstage implements Stager.
func (s *InMemoryShortStore) Unstage(_ context.Context, id string) error {
	if s.staging.remove(func(f Fragment) bool { return f.ID == id }) == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearStaged implements Stager.
func (s *InMemoryShortStore) ClearStaged(_ context.Context, conversationID string) error {
	s.staging.remove(func(f Fragment) bool { return f.ConversationID == conversationID })
	return nil
}

// InMemoryLongStore is a thread-safe, process-local LongStore. Similarity is
// the number of query terms a fragment shares, which is enough to exercise
// the retrieval stages without a search engine.
type InMemoryLongStore struct {
	fragments fragmentList
}

// NewInMemoryLongStore creates an empty store.
func NewInMemoryLongStore() *InMemoryLongStore {
	return &InMemoryLongStore{}
}

// Compile-time interface check.
var _ LongStore = (*InMemoryLongStore)(nil)

// EnsureIndex implements LongStore.
func (s *InMemoryLongStore) EnsureIndex(context.Context) error { return nil }

// BulkInsert implements LongStore.
func (s *InMemoryLongStore) BulkInsert(_ context.Context, fs []Fragment) ([]Fragment, error) {
	out := make([]Fragment, len(fs))
	for i, f := range fs {
		out[i] = s.fragments.add(f, TierLong)
	}
	return out, nil
}

// MoreLikeThis implements LongStore.
func (s *InMemoryLongStore) MoreLikeThis(_ context.Context, conversationID, like string, maxTerms, limit int) ([]Fragment, error) {
	terms := Tokenize(like)
	if maxTerms > 0 && len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	type hit struct {
		f       Fragment
		matched int
	}
	var hits []hit
	for _, f := range s.fragments.filter(inConversation(conversationID)) {
		have := termCounts(f.Content)
		matched := 0
		for _, t := range terms {
			if have[t] > 0 {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, hit{f: f, matched: matched})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(b.matched, a.matched)
	})

	out := make([]Fragment, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		out = append(out, h.f)
	}
	return out, nil
}

// Delete implements LongStore.
func (s *InMemoryLongStore) Delete(_ context.Context, id string) error {
	if s.fragments.remove(func(f Fragment) bool { return f.ID == id }) == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements LongStore.
func (s *InMemoryLongStore) List(_ context.Context, conversationID string) ([]Fragment, error) {
	return s.fragments.filter(inConversation(conversationID)), nil
}

// Indices implements LongStore.
func (s *InMemoryLongStore) Indices(context.Context) ([]string, error) {
	return []string{"memory"}, nil
}

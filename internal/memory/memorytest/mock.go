// Package memorytest provides test doubles for the memory package.
package memorytest

import (
	"context"
	"sync"

	"github.com/flemzord/almond/internal/memory"
)

// Compile-time interface guards.
var (
	_ memory.ShortStore = (*FaultyShortStore)(nil)
	_ memory.Stager     = (*FaultyShortStore)(nil)
	_ memory.LongStore  = (*FaultyLongStore)(nil)
	_ memory.Optimizer  = (*MockOptimizer)(nil)
	_ memory.Rewriter   = (*MockRewriter)(nil)
)

// FaultyShortStore wraps an in-memory short store and fails the operations
// whose error field is set.
type FaultyShortStore struct {
	*memory.InMemoryShortStore

	mu        sync.Mutex
	InsertErr error
	FindErr   error
	DeleteErr error

	// lateErr fails inserts once insertsLeft successful ones have run.
	lateErr     error
	insertsLeft int
}

// NewFaultyShortStore creates a FaultyShortStore with no faults.
func NewFaultyShortStore() *FaultyShortStore {
	return &FaultyShortStore{InMemoryShortStore: memory.NewInMemoryShortStore()}
}

// SetFindErr changes the Find fault while the store is in use.
func (s *FaultyShortStore) SetFindErr(err error) {
	s.mu.Lock()
	s.FindErr = err
	s.mu.Unlock()
}

// FailInsertsAfter lets n more inserts succeed and fails every later one
// with err.
func (s *FaultyShortStore) FailInsertsAfter(n int, err error) {
	s.mu.Lock()
	s.insertsLeft, s.lateErr = n, err
	s.mu.Unlock()
}

// Insert implements memory.ShortStore.
func (s *FaultyShortStore) Insert(ctx context.Context, f memory.Fragment) (memory.Fragment, error) {
	s.mu.Lock()
	err := s.InsertErr
	if err == nil && s.lateErr != nil {
		if s.insertsLeft == 0 {
			err = s.lateErr
		} else {
			s.insertsLeft--
		}
	}
	s.mu.Unlock()
	if err != nil {
		return memory.Fragment{}, err
	}
	return s.InMemoryShortStore.Insert(ctx, f)
}

// Find implements memory.ShortStore.
func (s *FaultyShortStore) Find(ctx context.Context, conversationID string, keywords []string) ([]memory.Fragment, error) {
	s.mu.Lock()
	err := s.FindErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.InMemoryShortStore.Find(ctx, conversationID, keywords)
}

// Delete implements memory.ShortStore.
func (s *FaultyShortStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.DeleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.InMemoryShortStore.Delete(ctx, id)
}

// FaultyLongStore wraps an in-memory long store and fails the operations
// whose error field is set.
type FaultyLongStore struct {
	*memory.InMemoryLongStore

	mu        sync.Mutex
	InsertErr error
	SearchErr error
	DeleteErr error
	searches  int
	ensures   int
	// onceErr fails the next BulkInsert only.
	onceErr error
}

// NewFaultyLongStore creates a FaultyLongStore with no faults.
func NewFaultyLongStore() *FaultyLongStore {
	return &FaultyLongStore{InMemoryLongStore: memory.NewInMemoryLongStore()}
}

// SetInsertErr changes the BulkInsert fault while the store is in use.
func (s *FaultyLongStore) SetInsertErr(err error) {
	s.mu.Lock()
	s.InsertErr = err
	s.mu.Unlock()
}

// FailNextInsert fails the next BulkInsert with err.
func (s *FaultyLongStore) FailNextInsert(err error) {
	s.mu.Lock()
	s.onceErr = err
	s.mu.Unlock()
}

// Ensures returns how many EnsureIndex calls were made.
func (s *FaultyLongStore) Ensures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensures
}

// EnsureIndex implements memory.LongStore.
func (s *FaultyLongStore) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	s.ensures++
	s.mu.Unlock()
	return s.InMemoryLongStore.EnsureIndex(ctx)
}

// Searches returns how many MoreLikeThis calls were made.
func (s *FaultyLongStore) Searches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// BulkInsert implements memory.LongStore.
func (s *FaultyLongStore) BulkInsert(ctx context.Context, fs []memory.Fragment) ([]memory.Fragment, error) {
	s.mu.Lock()
	err := s.InsertErr
	if err == nil && s.onceErr != nil {
		err, s.onceErr = s.onceErr, nil
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.InMemoryLongStore.BulkInsert(ctx, fs)
}

// MoreLikeThis implements memory.LongStore.
func (s *FaultyLongStore) MoreLikeThis(ctx context.Context, conversationID, like string, maxTerms, limit int) ([]memory.Fragment, error) {
	s.mu.Lock()
	s.searches++
	err := s.SearchErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.InMemoryLongStore.MoreLikeThis(ctx, conversationID, like, maxTerms, limit)
}

// Delete implements memory.LongStore.
func (s *FaultyLongStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.DeleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.InMemoryLongStore.Delete(ctx, id)
}

// MockOptimizer returns Text or Err and records every batch it receives.
type MockOptimizer struct {
	Text string
	Err  error

	mu      sync.Mutex
	batches [][]memory.Fragment
}

// Optimize implements memory.Optimizer.
func (o *MockOptimizer) Optimize(_ context.Context, _ string, batch []memory.Fragment) (string, error) {
	o.mu.Lock()
	o.batches = append(o.batches, batch)
	o.mu.Unlock()
	return o.Text, o.Err
}

// Batches returns the batches received so far.
func (o *MockOptimizer) Batches() [][]memory.Fragment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]memory.Fragment(nil), o.batches...)
}

// MockRewriter returns Terms or Err and counts calls.
type MockRewriter struct {
	Terms []string
	Err   error

	mu    sync.Mutex
	calls int
}

// Rewrite implements memory.Rewriter.
func (r *MockRewriter) Rewrite(context.Context, string) ([]string, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.Terms, r.Err
}

// Calls returns how many rewrites were requested.
func (r *MockRewriter) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

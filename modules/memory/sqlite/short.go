package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flemzord/almond/internal/memory"
)

// ShortStore is the short-form tier with its staging area.
type ShortStore struct {
	db *sql.DB
}

// Insert implements memory.ShortStore.
func (s *ShortStore) Insert(ctx context.Context, f memory.Fragment) (memory.Fragment, error) {
	return insert(ctx, s.db, f, memory.TierShort, false)
}

// Find implements memory.ShortStore. Keyword matching runs in Go because
// SQLite's LIKE and lower() only fold ASCII.
func (s *ShortStore) Find(ctx context.Context, conversationID string, keywords []string) ([]memory.Fragment, error) {
	all, err := list(ctx, s.db, memory.TierShort, false, conversationID)
	if err != nil {
		return nil, err
	}
	var out []memory.Fragment
	for _, f := range all {
		if memory.ContainsAll(f.Content, keywords) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Delete implements memory.ShortStore.
func (s *ShortStore) Delete(ctx context.Context, id string) error {
	return remove(ctx, s.db, memory.TierShort, false, id)
}

// List implements memory.ShortStore.
func (s *ShortStore) List(ctx context.Context, conversationID string) ([]memory.Fragment, error) {
	return list(ctx, s.db, memory.TierShort, false, conversationID)
}

// Stage implements memory.Stager.
func (s *ShortStore) Stage(ctx context.Context, f memory.Fragment) (memory.Fragment, int, error) {
	stored, err := insert(ctx, s.db, f, memory.TierShort, true)
	if err != nil {
		return memory.Fragment{}, 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fragments WHERE tier = ? AND staged = 1 AND conversation_id = ?",
		string(memory.TierShort), f.ConversationID,
	).Scan(&n)
	if err != nil {
		return memory.Fragment{}, 0, fmt.Errorf("sqlite: count staged: %w", err)
	}
	return stored, n, nil
}

// Staged implements memory.Stager.
func (s *ShortStore) Staged(ctx context.Context, conversationID string) ([]memory.Fragment, error) {
	return list(ctx, s.db, memory.TierShort, true, conversationID)
}

// Unstage implements memory.Stager.
func (s *ShortStore) Unstage(ctx context.Context, id string) error {
	return remove(ctx, s.db, memory.TierShort, true, id)
}

// ClearStaged implements memory.Stager.
func (s *ShortStore) ClearStaged(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM fragments WHERE tier = ? AND staged = 1 AND conversation_id = ?",
		string(memory.TierShort), conversationID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clear staged: %w", err)
	}
	return nil
}

// Compile-time interface guards.
var (
	_ memory.ShortStore = (*ShortStore)(nil)
	_ memory.Stager     = (*ShortStore)(nil)
)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/flemzord/almond/internal/memory"
)

// LongStore is the long-form tier. The FTS5 index over tokenized content
// plays the role of the search engine's inverted index.
type LongStore struct {
	db    *sql.DB
	index string
}

// EnsureIndex implements memory.LongStore. The index is created by the
// schema migration, so this only checks it is reachable.
func (s *LongStore) EnsureIndex(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM fragments_fts").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: full-text index unavailable: %w", err)
	}
	return nil
}

// BulkInsert implements memory.LongStore. All fragments are written in one
// transaction.
func (s *LongStore) BulkInsert(ctx context.Context, fs []memory.Fragment) ([]memory.Fragment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]memory.Fragment, 0, len(fs))
	for _, f := range fs {
		stored, err := insert(ctx, tx, f, memory.TierLong, false)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit bulk insert: %w", err)
	}
	return out, nil
}

// MoreLikeThis implements memory.LongStore. The text is tokenized, the
// first maxTerms distinct terms are OR-ed into an FTS5 query, and matches
// are ordered by bm25 rank.
func (s *LongStore) MoreLikeThis(ctx context.Context, conversationID, like string, maxTerms, limit int) ([]memory.Fragment, error) {
	query := matchQuery(like, maxTerms)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fragmentColumns+`
		FROM fragments_fts
		JOIN fragments f ON f.rowid = fragments_fts.rowid
		WHERE fragments_fts MATCH ? AND f.tier = ? AND f.conversation_id = ?
		ORDER BY rank
		LIMIT ?`,
		query, string(memory.TierLong), conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: more like this: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFragments(rows)
}

// matchQuery builds an FTS5 OR query from the distinct terms of text.
// Each term is quoted so FTS5 operators in user text stay literal.
func matchQuery(text string, maxTerms int) string {
	seen := make(map[string]bool)
	var quoted []string
	for _, t := range memory.Tokenize(text) {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
		if maxTerms > 0 && len(quoted) == maxTerms {
			break
		}
	}
	return strings.Join(quoted, " OR ")
}

// Delete implements memory.LongStore.
func (s *LongStore) Delete(ctx context.Context, id string) error {
	return remove(ctx, s.db, memory.TierLong, false, id)
}

// List implements memory.LongStore.
func (s *LongStore) List(ctx context.Context, conversationID string) ([]memory.Fragment, error) {
	return list(ctx, s.db, memory.TierLong, false, conversationID)
}

// Indices implements memory.LongStore.
func (s *LongStore) Indices(context.Context) ([]string, error) {
	return []string{s.index}, nil
}

// Compile-time interface guard.
var _ memory.LongStore = (*LongStore)(nil)

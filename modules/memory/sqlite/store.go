package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/almond/internal/memory"
	"github.com/google/uuid"
)

const fragmentColumns = "f.id, f.conversation_id, f.tier, f.role, f.content, f.created_at"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insert writes f into tier, assigning an ID and timestamp when missing.
// Staged fragments come back tagged memory.TierStaged.
func insert(ctx context.Context, db execer, f memory.Fragment, tier memory.Tier, staged bool) (memory.Fragment, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	f.Tier = tier
	if staged {
		f.Tier = memory.TierStaged
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO fragments (id, conversation_id, tier, staged, role, content, terms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ConversationID, string(tier), staged, string(f.Role), f.Content,
		strings.Join(memory.Tokenize(f.Content), " "),
		f.CreatedAt.UnixNano(),
	)
	if err != nil {
		return memory.Fragment{}, fmt.Errorf("sqlite: insert fragment: %w", err)
	}
	return f, nil
}

// list returns the tier's fragments oldest first, scoped to the
// conversation unless it is empty.
func list(ctx context.Context, db *sql.DB, tier memory.Tier, staged bool, conversationID string) ([]memory.Fragment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+fragmentColumns+`
		FROM fragments f
		WHERE f.tier = ? AND f.staged = ? AND (? = '' OR f.conversation_id = ?)
		ORDER BY f.created_at, f.rowid`,
		string(tier), staged, conversationID, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list fragments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out, err := scanFragments(rows)
	if err != nil {
		return nil, err
	}
	if staged {
		for i := range out {
			out[i].Tier = memory.TierStaged
		}
	}
	return out, nil
}

// remove deletes the tier's fragment by ID, from the staging area when
// staged is set. Missing IDs return memory.ErrNotFound.
func remove(ctx context.Context, db *sql.DB, tier memory.Tier, staged bool, id string) error {
	result, err := db.ExecContext(ctx,
		"DELETE FROM fragments WHERE id = ? AND tier = ? AND staged = ?",
		id, string(tier), staged,
	)
	if err != nil {
		return fmt.Errorf("sqlite: delete fragment: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

func scanFragments(rows *sql.Rows) ([]memory.Fragment, error) {
	var out []memory.Fragment
	for rows.Next() {
		var (
			f         memory.Fragment
			tier      string
			role      string
			createdAt int64
		)
		if err := rows.Scan(&f.ID, &f.ConversationID, &tier, &role, &f.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan fragment: %w", err)
		}
		f.Tier = memory.Tier(tier)
		f.Role = memory.Role(role)
		f.CreatedAt = time.Unix(0, createdAt)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan fragment rows: %w", err)
	}
	return out, nil
}

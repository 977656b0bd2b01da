package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
//
// The terms column holds the tokenized content, space separated, so the
// FTS5 unicode61 tokenizer indexes Han bigrams the same way the retrieval
// stages tokenize queries.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS fragments (
		id              TEXT    PRIMARY KEY,
		conversation_id TEXT    NOT NULL,
		tier            TEXT    NOT NULL,
		staged          INTEGER NOT NULL DEFAULT 0,
		role            TEXT    NOT NULL,
		content         TEXT    NOT NULL,
		terms           TEXT    NOT NULL DEFAULT '',
		created_at      INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_fragments_conv
		ON fragments(tier, staged, conversation_id, created_at)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS fragments_fts USING fts5(
		terms,
		content=fragments,
		content_rowid=rowid
	)`,

	`CREATE TRIGGER IF NOT EXISTS fragments_ai AFTER INSERT ON fragments BEGIN
		INSERT INTO fragments_fts(rowid, terms) VALUES (new.rowid, new.terms);
	END`,

	`CREATE TRIGGER IF NOT EXISTS fragments_ad AFTER DELETE ON fragments BEGIN
		INSERT INTO fragments_fts(fragments_fts, rowid, terms) VALUES ('delete', old.rowid, old.terms);
	END`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}

package memory

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested fragment does not exist.
	ErrNotFound = errors.New("memory: fragment not found")

	// ErrIndexMissing indicates the long store's index no longer exists.
	ErrIndexMissing = errors.New("memory: long index missing")

	// ErrNoStore indicates a required store was not configured.
	ErrNoStore = errors.New("memory: store not configured")
)

// ShortStore is the short-form tier: a keyed document store for small,
// frequent fragments. Implementations must be safe for concurrent use.
type ShortStore interface {
	// Insert persists f and returns it with its store-assigned ID.
	Insert(ctx context.Context, f Fragment) (Fragment, error)

	// Find returns the conversation's fragments whose content contains
	// every keyword (case-insensitive), oldest first.
	Find(ctx context.Context, conversationID string, keywords []string) ([]Fragment, error)

	// Delete removes a fragment by ID. Missing IDs return ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns the conversation's fragments oldest first, or every
	// fragment when conversationID is empty.
	List(ctx context.Context, conversationID string) ([]Fragment, error)
}

// Stager is the optional temporary staging area of the short-form tier
// used by batching.
type Stager interface {
	// Stage adds f to the conversation's staging area and returns the
	// stored fragment, tagged TierStaged, and the number of fragments now
	// staged.
	Stage(ctx context.Context, f Fragment) (Fragment, int, error)

	// Staged returns the conversation's staged fragments oldest first, or
	// every staged fragment when conversationID is empty.
	Staged(ctx context.Context, conversationID string) ([]Fragment, error)

	// Unstage removes one staged fragment by ID. Missing IDs return
	// ErrNotFound.
	Unstage(ctx context.Context, id string) error

	// ClearStaged empties the conversation's staging area.
	ClearStaged(ctx context.Context, conversationID string) error
}

// LongStore is the long-form tier: a full-text search engine for large or
// numerous fragments. Implementations must be safe for concurrent use.
type LongStore interface {
	// EnsureIndex creates the backing index when absent. It is idempotent.
	EnsureIndex(ctx context.Context) error

	// BulkInsert persists fragments, each under its own ID, and returns
	// them with IDs assigned. A write against a missing index that the
	// store cannot create implicitly returns ErrIndexMissing.
	BulkInsert(ctx context.Context, fs []Fragment) ([]Fragment, error)

	// MoreLikeThis returns up to limit of the conversation's fragments
	// similar to like, using at most maxTerms query terms.
	MoreLikeThis(ctx context.Context, conversationID, like string, maxTerms, limit int) ([]Fragment, error)

	// Delete removes a fragment by ID. Missing IDs return ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns the conversation's fragments oldest first, or every
	// fragment when conversationID is empty.
	List(ctx context.Context, conversationID string) ([]Fragment, error)

	// Indices lists the indices the store manages.
	Indices(ctx context.Context) ([]string, error)
}

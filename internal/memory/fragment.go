package memory

import (
	"crypto/sha256"
	"time"
	"unicode/utf8"
)

// Tier names the store a fragment lives in.
type Tier string

// Tier constants. TierStaged marks a short fragment still waiting in the
// staging area for batch promotion; it is never a routing outcome.
const (
	TierShort  Tier = "short"
	TierLong   Tier = "long"
	TierStaged Tier = "staged"
)

// Fragment is a persisted Turn-like record. Fragments are immutable:
// forgetting deletes them, nothing edits them.
type Fragment struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Tier           Tier      `json:"tier"`
}

// Turn converts the fragment back into a history turn.
func (f Fragment) Turn() Turn {
	return Turn{Role: f.Role, Content: f.Content, Timestamp: f.CreatedAt}
}

// Key identifies fragment content within a conversation and role. Two
// fragments with the same key are duplicates regardless of tier or ID.
type Key struct {
	ConversationID string
	Role           Role
	Hash           [sha256.Size]byte
}

// KeyOf returns the content key of f.
func KeyOf(f Fragment) Key {
	return Key{
		ConversationID: f.ConversationID,
		Role:           f.Role,
		Hash:           sha256.Sum256([]byte(f.Content)),
	}
}

// Route returns the tier content belongs in: the short-form tier when its
// length in characters is at most threshold, the long-form tier otherwise.
func Route(content string, threshold int) Tier {
	if utf8.RuneCountInString(content) <= threshold {
		return TierShort
	}
	return TierLong
}

// Package memory implements the conversational memory core: bounded
// per-conversation histories, the two-tier fragment store router, multi-stage
// retrieval with TF-IDF reranking, usage tracking and forgetting.
package memory

import "time"

// Role identifies the author of a Turn or Fragment.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Turn is one role-tagged message unit in a conversation. Turns are values
// and are never modified after creation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a Turn stamped with the current time.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now()}
}

// Package provider defines the language-model delegate contract and the
// wrappers every delegate call goes through: selection by name, failover,
// per-call timeout with fixed-backoff retries, duplicate-request suppression
// and tracing.
package provider

import (
	"context"
	"log/slog"
)

// Role identifies the author of a Message.
type Role string

// Role constants.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of request context sent to a delegate.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Delegate is the interface for asking a language model for a reply.
// Concrete implementations live in separate packages (e.g., provider.openai)
// and typically also implement core.Module for lifecycle management.
type Delegate interface {
	// GetResponse sends the ordered context turns, the new user input and
	// the system instruction, and returns the model's text reply.
	GetResponse(ctx context.Context, history []Message, userInput, systemPrompt string) (string, error)
}

// DelegateFunc adapts a function to the Delegate interface.
type DelegateFunc func(ctx context.Context, history []Message, userInput, systemPrompt string) (string, error)

// GetResponse implements Delegate.
func (f DelegateFunc) GetResponse(ctx context.Context, history []Message, userInput, systemPrompt string) (string, error) {
	return f(ctx, history, userInput, systemPrompt)
}

// BuildMessages assembles the full message list a chat-completion API
// expects: system instruction, context turns, then the user input. Empty
// system prompt or user input are omitted.
func BuildMessages(history []Message, userInput, systemPrompt string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history...)
	if userInput != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: userInput})
	}
	return msgs
}

type conversationKey struct{}

// WithConversation tags ctx with the conversation a request belongs to.
// DedupGuard scopes duplicate detection by this value.
func WithConversation(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationKey{}, conversationID)
}

// ConversationFrom returns the conversation tagged by WithConversation.
func ConversationFrom(ctx context.Context) string {
	id, _ := ctx.Value(conversationKey{}).(string)
	return id
}

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func loggerOrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(nopHandler{})
	}
	return l
}

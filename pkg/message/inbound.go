package message

import (
	"strings"
	"time"
)

// InboundMessage represents a message received from a channel.
//
// ID must be unique across every conversation the channel serves; it is the
// key the dispatcher de-duplicates re-delivered events on.
type InboundMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
	Sender    Sender    `json:"sender"`
	Chat      Chat      `json:"chat"`
	ReplyToID string    `json:"reply_to_id,omitempty"`
	Text      string    `json:"text"`

	// Mentioned is true when the message addresses the bot directly
	// (mention, reply to one of its messages, or a direct chat).
	Mentioned bool `json:"mentioned,omitempty"`
}

// ConversationID returns the identifier that orders and isolates this
// message's processing.
func (m *InboundMessage) ConversationID() string {
	return m.Chat.ID
}

// IsCommand reports whether the text starts with a slash command.
func (m *InboundMessage) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// Command splits a slash command into its name (without the slash and any
// "@botname" suffix) and the remaining argument text. ok is false when the
// message is not a command.
func (m *InboundMessage) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return head, strings.TrimSpace(rest), head != ""
}

package channel

import (
	"strings"

	"github.com/flemzord/almond/pkg/message"
)

// Wildcard in either list allows everyone.
const Wildcard = "*"

// AllowList controls which users and chats may talk to the assistant. An
// empty or nil AllowList denies everyone.
type AllowList struct {
	users    map[string]struct{}
	chats    map[string]struct{}
	anything bool
}

// NewAllowList creates an AllowList. Entries are trimmed and compared
// case-insensitively.
func NewAllowList(users, chats []string) *AllowList {
	a := &AllowList{
		users: make(map[string]struct{}, len(users)),
		chats: make(map[string]struct{}, len(chats)),
	}
	add := func(dst map[string]struct{}, ids []string) {
		for _, id := range ids {
			id = normalize(id)
			if id == Wildcard {
				a.anything = true
			}
			if id != "" {
				dst[id] = struct{}{}
			}
		}
	}
	add(a.users, users)
	add(a.chats, chats)
	return a
}

// IsAllowed reports whether the sender or the chat is listed. In a group,
// listing the chat admits every member.
func (a *AllowList) IsAllowed(msg message.InboundMessage) bool {
	if a == nil {
		return false
	}
	if a.anything {
		return true
	}
	if _, ok := a.users[normalize(msg.Sender.ID)]; ok {
		return true
	}
	_, ok := a.chats[normalize(msg.Chat.ID)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/flemzord/almond/pkg/message"
	tele "gopkg.in/telebot.v3"
)

// messageID builds the conversation-scoped inbound ID.
func messageID(chatID int64, msgID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(msgID)
}

// parseMessageID reverses messageID.
func parseMessageID(id string) (chatID int64, msgID int, err error) {
	chat, msg, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("telegram: malformed message id %q", id)
	}
	chatID, err1 := strconv.ParseInt(chat, 10, 64)
	msgID, err2 := strconv.Atoi(msg)
	if err := errors.Join(err1, err2); err != nil {
		return 0, 0, fmt.Errorf("telegram: malformed message id %q: %w", id, err)
	}
	return chatID, msgID, nil
}

// mentionMatcher decides whether a message addresses the bot.
type mentionMatcher struct {
	botID       int64
	botUsername string
	aliases     []string
}

func newMentionMatcher(me *tele.User, aliases []string) mentionMatcher {
	m := mentionMatcher{}
	if me != nil {
		m.botID = me.ID
		m.botUsername = me.Username
	}
	for _, a := range aliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			m.aliases = append(m.aliases, a)
		}
	}
	return m
}

func (m mentionMatcher) matches(msg *tele.Message) bool {
	if msg.Chat != nil && msg.Chat.Type == tele.ChatPrivate {
		return true
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil && m.botID != 0 && msg.ReplyTo.Sender.ID == m.botID {
		return true
	}
	for _, ent := range msg.Entities {
		switch ent.Type {
		case tele.EntityMention:
			name := strings.TrimPrefix(entityText(msg.Text, ent.Offset, ent.Length), "@")
			if m.botUsername != "" && strings.EqualFold(name, m.botUsername) {
				return true
			}
		case tele.EntityTMention:
			if ent.User != nil && m.botID != 0 && ent.User.ID == m.botID {
				return true
			}
		}
	}
	lower := strings.ToLower(msg.Text)
	for _, a := range m.aliases {
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}

// stripMention removes a leading "@botname" from text.
func (m mentionMatcher) stripMention(text string) string {
	if m.botUsername == "" {
		return text
	}
	trimmed := strings.TrimSpace(text)
	prefix := "@" + m.botUsername
	if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return strings.TrimSpace(trimmed[len(prefix):])
	}
	return text
}

// convertInbound transforms a Telegram message into an InboundMessage.
func convertInbound(msg *tele.Message, mm mentionMatcher, channelName string) (message.InboundMessage, error) {
	if msg == nil || msg.Chat == nil {
		return message.InboundMessage{}, errors.New("telegram: update contains no message")
	}

	in := message.InboundMessage{
		ID:        messageID(msg.Chat.ID, msg.ID),
		Timestamp: msg.Time(),
		Channel:   channelName,
		Sender:    convertSender(msg.Sender),
		Chat:      convertChat(msg.Chat),
		Text:      mm.stripMention(msg.Text),
		Mentioned: mm.matches(msg),
	}
	if msg.ReplyTo != nil {
		in.ReplyToID = messageID(msg.Chat.ID, msg.ReplyTo.ID)
	}
	return in, nil
}

func convertSender(user *tele.User) message.Sender {
	if user == nil {
		return message.Sender{}
	}
	displayName := user.FirstName
	if user.LastName != "" {
		displayName += " " + user.LastName
	}
	return message.Sender{
		ID:          strconv.FormatInt(user.ID, 10),
		Username:    user.Username,
		DisplayName: displayName,
	}
}

func convertChat(chat *tele.Chat) message.Chat {
	return message.Chat{
		ID:    strconv.FormatInt(chat.ID, 10),
		Type:  mapChatType(chat.Type),
		Title: chat.Title,
	}
}

func mapChatType(t tele.ChatType) message.ChatType {
	if t == tele.ChatPrivate {
		return message.ChatDM
	}
	return message.ChatGroup
}

// entityText extracts a substring using UTF-16 offsets, which is what
// Telegram uses for entity offsets and lengths.
func entityText(text string, offset, length int) string {
	encoded := utf16.Encode([]rune(text))
	if offset < 0 || offset >= len(encoded) {
		return ""
	}
	end := min(offset+length, len(encoded))
	return string(utf16.Decode(encoded[offset:end]))
}

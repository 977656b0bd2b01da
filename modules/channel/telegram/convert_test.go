package telegram

import (
	"testing"

	"github.com/flemzord/almond/pkg/message"
	tele "gopkg.in/telebot.v3"
)

func TestConvertInbound(t *testing.T) {
	t.Parallel()

	bot := &tele.User{ID: 42, Username: "almond_bot"}
	mm := newMentionMatcher(bot, []string{" Almond ", ""})
	group := &tele.Chat{ID: -100, Type: tele.ChatSuperGroup, Title: "Hikers"}
	alice := &tele.User{ID: 7, FirstName: "Alice", LastName: "Liddell", Username: "alice"}

	tests := []struct {
		name          string
		msg           *tele.Message
		wantText      string
		wantMentioned bool
		wantType      message.ChatType
		wantReplyTo   string
	}{
		{
			name:     "plain group message",
			msg:      &tele.Message{ID: 5, Chat: group, Sender: alice, Text: "see you Saturday"},
			wantText: "see you Saturday", wantType: message.ChatGroup,
		},
		{
			name: "username mention is stripped",
			msg: &tele.Message{ID: 6, Chat: group, Sender: alice, Text: "@Almond_Bot when is the trip?",
				Entities: tele.Entities{{Type: tele.EntityMention, Offset: 0, Length: 11}}},
			wantText: "when is the trip?", wantMentioned: true, wantType: message.ChatGroup,
		},
		{
			name: "mention of another user",
			msg: &tele.Message{ID: 7, Chat: group, Sender: alice, Text: "@bob hi",
				Entities: tele.Entities{{Type: tele.EntityMention, Offset: 0, Length: 4}}},
			wantText: "@bob hi", wantType: message.ChatGroup,
		},
		{
			name: "text mention by user id",
			msg: &tele.Message{ID: 8, Chat: group, Sender: alice, Text: "Bot hi",
				Entities: tele.Entities{{Type: tele.EntityTMention, Offset: 0, Length: 3, User: bot}}},
			wantText: "Bot hi", wantMentioned: true, wantType: message.ChatGroup,
		},
		{
			name: "reply to the bot",
			msg: &tele.Message{ID: 9, Chat: group, Sender: alice, Text: "thanks",
				ReplyTo: &tele.Message{ID: 3, Sender: bot}},
			wantText: "thanks", wantMentioned: true, wantType: message.ChatGroup, wantReplyTo: "-100:3",
		},
		{
			name: "reply to someone else",
			msg: &tele.Message{ID: 10, Chat: group, Sender: alice, Text: "agreed",
				ReplyTo: &tele.Message{ID: 4, Sender: alice}},
			wantText: "agreed", wantType: message.ChatGroup, wantReplyTo: "-100:4",
		},
		{
			name:     "alias in text",
			msg:      &tele.Message{ID: 11, Chat: group, Sender: alice, Text: "hey ALMOND, help"},
			wantText: "hey ALMOND, help", wantMentioned: true, wantType: message.ChatGroup,
		},
		{
			name:     "private chat",
			msg:      &tele.Message{ID: 12, Chat: &tele.Chat{ID: 7, Type: tele.ChatPrivate}, Sender: alice, Text: "hi"},
			wantText: "hi", wantMentioned: true, wantType: message.ChatDM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in, err := convertInbound(tt.msg, mm, "channel.telegram")
			if err != nil {
				t.Fatalf("convertInbound: %v", err)
			}
			if in.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", in.Text, tt.wantText)
			}
			if in.Mentioned != tt.wantMentioned {
				t.Errorf("Mentioned = %v, want %v", in.Mentioned, tt.wantMentioned)
			}
			if in.Chat.Type != tt.wantType {
				t.Errorf("Chat.Type = %q, want %q", in.Chat.Type, tt.wantType)
			}
			if in.ReplyToID != tt.wantReplyTo {
				t.Errorf("ReplyToID = %q, want %q", in.ReplyToID, tt.wantReplyTo)
			}
			if in.ID != messageID(tt.msg.Chat.ID, tt.msg.ID) {
				t.Errorf("ID = %q", in.ID)
			}
			if in.Sender.DisplayName != "Alice Liddell" || in.Sender.ID != "7" {
				t.Errorf("Sender = %+v", in.Sender)
			}
			if in.Channel != "channel.telegram" {
				t.Errorf("Channel = %q", in.Channel)
			}
		})
	}
}

func TestConvertInbound_NoMessage(t *testing.T) {
	t.Parallel()

	if _, err := convertInbound(nil, mentionMatcher{}, "channel.telegram"); err == nil {
		t.Error("expected error for nil message")
	}
	if _, err := convertInbound(&tele.Message{ID: 1}, mentionMatcher{}, "channel.telegram"); err == nil {
		t.Error("expected error for message without chat")
	}
}

func TestParseMessageID(t *testing.T) {
	t.Parallel()

	chat, msg, err := parseMessageID(messageID(-1001234, 77))
	if err != nil || chat != -1001234 || msg != 77 {
		t.Errorf("round trip = %d, %d, %v", chat, msg, err)
	}

	for _, bad := range []string{"", "77", "abc:1", "-100:x"} {
		if _, _, err := parseMessageID(bad); err == nil {
			t.Errorf("parseMessageID(%q) should fail", bad)
		}
	}
}

func TestEntityText_UTF16(t *testing.T) {
	t.Parallel()

	// The emoji occupies two UTF-16 code units.
	text := "😀 @almond_bot hi"
	if got := entityText(text, 3, 11); got != "@almond_bot" {
		t.Errorf("entityText = %q", got)
	}
	if got := entityText(text, 100, 2); got != "" {
		t.Errorf("out of range = %q", got)
	}
}

package message

import "testing"

func TestNewReply(t *testing.T) {
	t.Parallel()

	in := InboundMessage{
		ID:      "-100:42",
		Channel: "channel.telegram",
		Chat:    Chat{ID: "-100", Type: ChatGroup},
		Text:    "hi",
	}
	out := NewReply(in, "hello")

	if out.ReplyToID != "-100:42" {
		t.Errorf("ReplyToID = %q, want %q", out.ReplyToID, "-100:42")
	}
	if out.Channel != in.Channel || out.Chat != in.Chat {
		t.Errorf("reply routed to %s/%v, want %s/%v", out.Channel, out.Chat, in.Channel, in.Chat)
	}
	if out.Text != "hello" {
		t.Errorf("Text = %q, want %q", out.Text, "hello")
	}
}

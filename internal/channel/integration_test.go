package channel_test

import (
	"context"
	"testing"
	"time"

	"github.com/flemzord/almond/internal/channel"
	"github.com/flemzord/almond/internal/channel/channeltest"
	"github.com/flemzord/almond/internal/dispatch"
	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
	"github.com/flemzord/almond/pkg/message"
)

// TestEndToEnd_ChannelThroughDispatcher drives a message from a channel
// through the dispatcher and pipeline and back out the same channel.
func TestEndToEnd_ChannelThroughDispatcher(t *testing.T) {
	t.Parallel()

	ch := channeltest.NewMockChannel("test", channel.NewAllowList(nil, []string{"room"}))
	replies := channel.NewDispatcher(nil)
	if err := replies.Register("channel.test", ch); err != nil {
		t.Fatal(err)
	}

	router, err := memory.NewRouter(memory.NewInMemoryShortStore(), memory.NewInMemoryLongStore(), memory.RouterConfig{BatchSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	mem, err := memory.NewManager(router, memory.Config{})
	if err != nil {
		t.Fatal(err)
	}

	echo := provider.DelegateFunc(func(_ context.Context, _ []provider.Message, input, _ string) (string, error) {
		return "echo: " + input, nil
	})
	pipeline, err := dispatch.NewPipeline(dispatch.PipelineConfig{
		Memory:   mem,
		Delegate: echo,
		Sender:   replies,
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := dispatch.New(pipeline, dispatch.Config{Group: dispatch.GroupPolicy{Mode: dispatch.GroupPolicyAllowAll}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Stop(context.Background()) })
	ch.SetInbox(d.Enqueue)

	err = ch.SimulateMessage(message.InboundMessage{
		ID:     "room:1",
		Sender: message.Sender{ID: "u1", DisplayName: "Alice"},
		Chat:   message.Chat{ID: "room", Type: message.ChatGroup},
		Text:   "ping",
	})
	if err != nil {
		t.Fatalf("SimulateMessage: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(ch.SentMessages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sent := ch.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(sent))
	}
	if sent[0].Text != "echo: Alice: ping" || sent[0].ReplyToID != "room:1" {
		t.Errorf("reply = %+v", sent[0])
	}
}

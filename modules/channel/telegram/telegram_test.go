package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/almond/internal/channel"
	"github.com/flemzord/almond/pkg/message"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/yaml.v3"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{Token: testToken}},
		{name: "missing token", cfg: Config{}, wantErr: true},
		{name: "bad token", cfg: Config{Token: "invalid-token"}, wantErr: true},
		{name: "bad api url", cfg: Config{Token: testToken, APIURL: "not-a-url"}, wantErr: true},
		{name: "polling timeout too long", cfg: Config{Token: testToken, PollingTimeout: time.Minute}, wantErr: true},
		{name: "message limit too large", cfg: Config{Token: testToken, MaxMessageLength: 10000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			cfg.defaults()
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigure_Defaults(t *testing.T) {
	t.Parallel()

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("token: "+testToken+"\naliases: [almond]\n"), &node); err != nil {
		t.Fatal(err)
	}
	tg := &Telegram{}
	if err := tg.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if tg.MaxMessageLength() != 4096 || tg.config.PollingTimeout != 30*time.Second {
		t.Errorf("config = %+v", tg.config)
	}
	if tg.ModuleInfo().ID != "channel.telegram" {
		t.Errorf("ID = %q", tg.ModuleInfo().ID)
	}
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()

	group := &tele.Chat{ID: -100, Type: tele.ChatGroup}
	tests := []struct {
		name      string
		msg       *tele.Message
		inboxErr  error
		wantCount int
		wantErr   bool
	}{
		{
			name:      "listed group",
			msg:       &tele.Message{ID: 1, Chat: group, Sender: &tele.User{ID: 9}, Text: "hi"},
			wantCount: 1,
		},
		{
			name: "unlisted chat",
			msg:  &tele.Message{ID: 2, Chat: &tele.Chat{ID: -200, Type: tele.ChatGroup}, Sender: &tele.User{ID: 9}, Text: "hi"},
		},
		{
			name:      "listed user in another chat",
			msg:       &tele.Message{ID: 3, Chat: &tele.Chat{ID: -300, Type: tele.ChatGroup}, Sender: &tele.User{ID: 7}, Text: "hi"},
			wantCount: 1,
		},
		{
			name: "mention only",
			msg:  &tele.Message{ID: 4, Chat: group, Sender: &tele.User{ID: 9}, Text: "@almond_bot"},
		},
		{
			name:     "inbox failure",
			msg:      &tele.Message{ID: 5, Chat: group, Sender: &tele.User{ID: 9}, Text: "hi"},
			inboxErr: errors.New("stopped"),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tg := newTestTelegram(t, "http://127.0.0.1:1", Config{
				AllowUsers:  []string{"7"},
				AllowGroups: []string{"-100"},
			})
			tg.mention = newMentionMatcher(&tele.User{ID: 42, Username: "almond_bot"}, nil)
			rec := newInboxRecorder()
			rec.err = tt.inboxErr
			tg.SetInbox(rec.push)

			err := tg.handleMessage(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("handleMessage() = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(rec.received()); got != tt.wantCount {
				t.Errorf("delivered = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestHandleMessage_NoInbox(t *testing.T) {
	t.Parallel()

	tg := newTestTelegram(t, "http://127.0.0.1:1", Config{AllowGroups: []string{"*"}})
	err := tg.handleMessage(&tele.Message{ID: 1, Chat: &tele.Chat{ID: -100}, Text: "hi"})
	if !errors.Is(err, channel.ErrNoInbox) {
		t.Errorf("err = %v, want ErrNoInbox", err)
	}
}

func TestSend(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	tg := newTestTelegram(t, srv.URL, Config{})
	tg.offline = true
	bot, err := tele.NewBot(tg.settings())
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	tg.bot = bot

	ctx := context.Background()
	chat := message.Chat{ID: "-100", Type: message.ChatGroup}

	if err := tg.Send(ctx, message.OutboundMessage{Chat: chat, ReplyToID: "-100:5", Text: "Saturday it is"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := tg.Send(ctx, message.OutboundMessage{Chat: chat, ReplyToID: "-999:5", Text: "unthreaded"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	sent := api.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(sent))
	}
	if sent[0]["chat_id"] != "-100" || sent[0]["text"] != "Saturday it is" || !threaded(sent[0]) {
		t.Errorf("threaded reply params = %v", sent[0])
	}
	if threaded(sent[1]) {
		t.Errorf("reply across chats should not thread: %v", sent[1])
	}

	if err := tg.Send(ctx, message.OutboundMessage{Chat: message.Chat{ID: "general"}, Text: "x"}); err == nil {
		t.Error("expected error for non-numeric chat ID")
	}

	api.mu.Lock()
	api.sendErr = true
	api.mu.Unlock()
	err = tg.Send(ctx, message.OutboundMessage{Chat: chat, Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("err = %v, want API error", err)
	}
}

func TestSend_NotStarted(t *testing.T) {
	t.Parallel()

	tg := newTestTelegram(t, "http://127.0.0.1:1", Config{})
	err := tg.Send(context.Background(), message.OutboundMessage{Chat: message.Chat{ID: "-100"}, Text: "x"})
	if !errors.Is(err, errNotStarted) {
		t.Errorf("err = %v, want errNotStarted", err)
	}
}

func TestStart_RequiresInbox(t *testing.T) {
	t.Parallel()

	tg := newTestTelegram(t, "http://127.0.0.1:1", Config{})
	if err := tg.Start(); !errors.Is(err, channel.ErrNoInbox) {
		t.Errorf("Start() = %v, want ErrNoInbox", err)
	}
}

func TestStartStop_DeliversUpdates(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	tg := newTestTelegram(t, srv.URL, Config{AllowGroups: []string{"-100"}})
	rec := newInboxRecorder()
	tg.SetInbox(rec.push)

	api.queue(map[string]any{
		"update_id": 1,
		"message": map[string]any{
			"message_id": 5,
			"date":       1700000000,
			"chat":       map[string]any{"id": -100, "type": "supergroup", "title": "Hikers"},
			"from":       map[string]any{"id": 7, "first_name": "Alice"},
			"text":       "@almond_bot when is the trip?",
			"entities":   []any{map[string]any{"type": "mention", "offset": 0, "length": 11}},
		},
	})

	if err := tg.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case in := <-rec.ch:
		if in.ID != "-100:5" || !in.Mentioned || in.Text != "when is the trip?" {
			t.Errorf("inbound = %+v", in)
		}
		if !in.Timestamp.Equal(time.Unix(1700000000, 0)) {
			t.Errorf("Timestamp = %v", in.Timestamp)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("update was not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tg.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := tg.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestStart_BadToken(t *testing.T) {
	t.Parallel()

	tg := newTestTelegram(t, "http://127.0.0.1:1", Config{})
	tg.SetInbox(newInboxRecorder().push)
	if err := tg.Start(); err == nil {
		t.Error("expected getMe failure")
	}
}

// threaded reports whether sendMessage params reference a message to reply
// to, in either the legacy or the reply_parameters form.
func threaded(params map[string]any) bool {
	if params["reply_to_message_id"] == "5" {
		return true
	}
	rp, _ := params["reply_parameters"].(string)
	return strings.Contains(rp, `"message_id":5`)
}

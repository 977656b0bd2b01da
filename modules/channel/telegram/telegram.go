package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/flemzord/almond/internal/channel"
	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/pkg/message"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ channel.Channel   = (*Telegram)(nil)
	_ channel.Limited   = (*Telegram)(nil)
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// errNotStarted is returned by Send before Start has connected the bot.
var errNotStarted = errors.New("telegram: bot not started")

// Telegram is the channel.telegram module.
type Telegram struct {
	config    Config
	logger    *slog.Logger
	allowList *channel.AllowList

	mu      sync.Mutex
	inbox   func(message.InboundMessage) error
	bot     *tele.Bot
	mention mentionMatcher
	done    chan struct{}

	// offline skips the getMe handshake; set by tests.
	offline bool
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.logger = ctx.Logger
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	t.allowList = channel.NewAllowList(t.config.AllowUsers, t.config.AllowGroups)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	return t.config.validate()
}

// MaxMessageLength implements channel.Limited.
func (t *Telegram) MaxMessageLength() int { return t.config.MaxMessageLength }

// SetInbox implements channel.Channel.
func (t *Telegram) SetInbox(fn func(msg message.InboundMessage) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = fn
}

func (t *Telegram) settings() tele.Settings {
	return tele.Settings{
		URL:   t.config.APIURL,
		Token: t.config.Token,
		Poller: &tele.LongPoller{
			Timeout:        t.config.PollingTimeout,
			AllowedUpdates: t.config.AllowedUpdates,
		},
		Offline: t.offline,
		OnError: func(err error, c tele.Context) {
			attrs := []any{"error", err}
			if c != nil && c.Chat() != nil {
				attrs = append(attrs, "chat_id", c.Chat().ID)
			}
			t.logger.Error("telegram: handler failed", attrs...)
		},
	}
}

// Start implements core.Starter. It authenticates the bot token with
// getMe and starts long polling.
func (t *Telegram) Start() error {
	t.mu.Lock()
	hasInbox := t.inbox != nil
	t.mu.Unlock()
	if !hasInbox {
		return fmt.Errorf("telegram: %w, call SetInbox before Start", channel.ErrNoInbox)
	}

	bot, err := tele.NewBot(t.settings())
	if err != nil {
		return fmt.Errorf("telegram: connect bot (check token): %w", err)
	}
	bot.Handle(tele.OnText, func(c tele.Context) error {
		return t.handleMessage(c.Message())
	})

	done := make(chan struct{})
	t.mu.Lock()
	t.bot = bot
	t.mention = newMentionMatcher(bot.Me, t.config.Aliases)
	t.done = done
	t.mu.Unlock()

	if len(t.config.AllowUsers) == 0 && len(t.config.AllowGroups) == 0 {
		t.logger.Warn("telegram: allow lists are empty, every message will be ignored")
	}
	t.logger.Info("telegram: bot authenticated",
		"id", bot.Me.ID,
		"username", bot.Me.Username,
	)

	go func() {
		defer close(done)
		bot.Start()
	}()
	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(ctx context.Context) error {
	t.mu.Lock()
	bot, done := t.bot, t.done
	t.bot = nil
	t.mu.Unlock()
	if bot == nil {
		return nil
	}

	t.logger.Info("telegram: channel stopping")
	stopped := make(chan struct{})
	go func() {
		bot.Stop()
		<-done
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram: stop: %w", ctx.Err())
	}
}

// handleMessage converts one Telegram message and pushes it through the
// allow-list into the inbox. Denied senders are dropped silently.
func (t *Telegram) handleMessage(msg *tele.Message) error {
	t.mu.Lock()
	inbox, mm := t.inbox, t.mention
	t.mu.Unlock()
	if inbox == nil {
		return channel.ErrNoInbox
	}

	in, err := convertInbound(msg, mm, string(t.ModuleInfo().ID))
	if err != nil {
		return err
	}
	if in.Text == "" {
		return nil
	}
	if !t.allowList.IsAllowed(in) {
		t.logger.Debug("telegram: message from unlisted sender dropped",
			"chat_id", in.Chat.ID,
			"sender_id", in.Sender.ID,
		)
		return nil
	}
	if err := inbox(in); err != nil {
		return fmt.Errorf("telegram: deliver %s: %w", in.ID, err)
	}
	return nil
}

// Send implements channel.Channel. Replies thread under the inbound message
// when it belongs to the same chat.
func (t *Telegram) Send(ctx context.Context, msg message.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()
	if bot == nil {
		return errNotStarted
	}

	chatID, err := strconv.ParseInt(msg.Chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", msg.Chat.ID, err)
	}

	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if msg.ReplyToID != "" {
		if replyChat, replyID, err := parseMessageID(msg.ReplyToID); err == nil && replyChat == chatID {
			opts.ReplyTo = &tele.Message{ID: replyID, Chat: &tele.Chat{ID: chatID}}
			opts.AllowWithoutReply = true
		}
	}

	if _, err := bot.Send(tele.ChatID(chatID), msg.Text, opts); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}

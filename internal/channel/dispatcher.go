package channel

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/almond/pkg/message"
)

// Dispatcher routes replies to the channel named in OutboundMessage.Channel.
// It satisfies dispatch.Sender.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher. A nil logger uses
// slog.Default.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		channels: make(map[string]Channel),
		logger:   logger,
	}
}

// Register adds ch under name.
func (d *Dispatcher) Register(name string, ch Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.channels[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	d.channels[name] = ch
	return nil
}

// Get returns the channel registered under name.
func (d *Dispatcher) Get(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[name]
	return ch, ok
}

// Send delivers msg through its channel, split into as many messages as
// the channel's length limit requires. Delivery stops at the first failed
// part.
func (d *Dispatcher) Send(ctx context.Context, msg message.OutboundMessage) error {
	ch, ok := d.Get(msg.Channel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoChannel, msg.Channel)
	}

	parts := []message.OutboundMessage{msg}
	if l, ok := ch.(Limited); ok {
		parts = Split(msg, l.MaxMessageLength())
	}
	for i, part := range parts {
		if err := ch.Send(ctx, part); err != nil {
			return fmt.Errorf("channel %s: sending part %d/%d: %w", msg.Channel, i+1, len(parts), err)
		}
	}
	if len(parts) > 1 {
		d.logger.Debug("channel: reply split",
			"channel", msg.Channel,
			"chat_id", msg.Chat.ID,
			"parts", len(parts),
		)
	}
	return nil
}

// Channels returns the registered channel names, sorted.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	d.mu.RUnlock()
	slices.Sort(names)
	return names
}

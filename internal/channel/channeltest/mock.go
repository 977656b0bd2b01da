// Package channeltest provides a scriptable Channel for tests.
package channeltest

import (
	"context"
	"sync"

	"github.com/flemzord/almond/internal/channel"
	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/pkg/message"
)

// MockChannel records replies and lets tests inject inbound messages
// through its allow-list.
type MockChannel struct {
	// SendFunc, if set, replaces the default recording behavior.
	SendFunc func(ctx context.Context, msg message.OutboundMessage) error

	// MaxLength, if positive, is reported as the channel's message limit.
	MaxLength int

	name      string
	allowList *channel.AllowList

	mu    sync.Mutex
	inbox func(msg message.InboundMessage) error
	sent  []message.OutboundMessage
}

// Interface guards.
var (
	_ channel.Channel = (*MockChannel)(nil)
	_ channel.Limited = (*MockChannel)(nil)
)

// NewMockChannel creates a MockChannel. A nil allow-list denies every
// simulated message.
func NewMockChannel(name string, allowList *channel.AllowList) *MockChannel {
	return &MockChannel{name: name, allowList: allowList}
}

// ModuleInfo implements core.Module.
func (m *MockChannel) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID("channel." + m.name),
		New: func() core.Module { return NewMockChannel(m.name, m.allowList) },
	}
}

// MaxMessageLength implements channel.Limited.
func (m *MockChannel) MaxMessageLength() int { return m.MaxLength }

// Send records msg, or delegates to SendFunc when set.
func (m *MockChannel) Send(ctx context.Context, msg message.OutboundMessage) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// SetInbox implements channel.Channel.
func (m *MockChannel) SetInbox(fn func(msg message.InboundMessage) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = fn
}

// SimulateMessage tags msg with the channel module ID and pushes it through the
// allow-list into the inbox.
func (m *MockChannel) SimulateMessage(msg message.InboundMessage) error {
	m.mu.Lock()
	inbox := m.inbox
	m.mu.Unlock()

	if !m.allowList.IsAllowed(msg) {
		return channel.ErrDenied
	}
	if inbox == nil {
		return channel.ErrNoInbox
	}
	msg.Channel = "channel." + m.name
	return inbox(msg)
}

// SentMessages returns a copy of the recorded replies.
func (m *MockChannel) SentMessages() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.OutboundMessage(nil), m.sent...)
}

// Reset clears the recorded replies.
func (m *MockChannel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

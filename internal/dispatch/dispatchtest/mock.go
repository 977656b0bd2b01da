// Package dispatchtest provides test doubles for the dispatch package.
package dispatchtest

import (
	"context"
	"sync"

	"github.com/flemzord/almond/internal/dispatch"
	"github.com/flemzord/almond/pkg/message"
)

// MockSender records outbound messages. When SendFunc is set its error is
// returned after recording.
type MockSender struct {
	SendFunc func(ctx context.Context, msg message.OutboundMessage) error

	mu   sync.Mutex
	sent []message.OutboundMessage
}

// Send records msg and optionally delegates to SendFunc.
func (m *MockSender) Send(ctx context.Context, msg message.OutboundMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *MockSender) Sent() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.OutboundMessage(nil), m.sent...)
}

// Texts returns the text of every recorded message, in send order.
func (m *MockSender) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.Text
	}
	return out
}

// Interface guard.
var _ dispatch.Sender = (*MockSender)(nil)

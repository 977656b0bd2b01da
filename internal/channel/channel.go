// Package channel connects chat platforms to the dispatcher. A channel
// pushes inbound messages into an inbox callback and delivers replies;
// the outbound Dispatcher picks the right channel for each reply and
// splits text that exceeds the platform's message limit.
package channel

import (
	"context"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/pkg/message"
)

// Channel is implemented by every chat transport module.
type Channel interface {
	core.Module

	// Send delivers one reply. Text longer than the channel's limit has
	// already been split by the Dispatcher.
	Send(ctx context.Context, msg message.OutboundMessage) error

	// SetInbox sets the callback inbound messages are pushed to. It is
	// called during wiring, before Start.
	SetInbox(fn func(msg message.InboundMessage) error)
}

// Limited is implemented by channels whose platform caps message length.
type Limited interface {
	// MaxMessageLength is the longest text, in characters, one message
	// may carry.
	MaxMessageLength() int
}

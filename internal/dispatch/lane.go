package dispatch

import (
	"sync"
	"time"

	"github.com/flemzord/almond/pkg/message"
)

// lane is one conversation's FIFO queue and processing gate. At most one
// drain goroutine exists per lane (draining), which is what serializes the
// conversation.
type lane struct {
	id string

	mu         sync.Mutex
	queue      []message.InboundMessage
	draining   bool
	processing bool
	removed    bool
	lastActive time.Time
}

// LaneInfo is a point-in-time view of one conversation lane.
type LaneInfo struct {
	ConversationID string    `json:"conversation_id"`
	Queued         int       `json:"queued"`
	Processing     bool      `json:"processing"`
	LastActive     time.Time `json:"last_active"`
}

func (l *lane) info() LaneInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LaneInfo{
		ConversationID: l.id,
		Queued:         len(l.queue),
		Processing:     l.processing,
		LastActive:     l.lastActive,
	}
}

// pop removes the head of the queue. When the queue is empty, or stop is
// set, it releases the gate and reports false together with the number of
// messages dropped.
func (l *lane) pop(stop bool, now time.Time) (message.InboundMessage, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 || stop {
		dropped := len(l.queue)
		l.queue = nil
		l.draining = false
		l.lastActive = now
		return message.InboundMessage{}, dropped, false
	}
	msg := l.queue[0]
	l.queue[0] = message.InboundMessage{}
	l.queue = l.queue[1:]
	l.processing = true
	return msg, 0, true
}

func (l *lane) done(now time.Time) {
	l.mu.Lock()
	l.processing = false
	l.lastActive = now
	l.mu.Unlock()
}

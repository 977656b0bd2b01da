package provider

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"time"
)

// GetMemoryMarker asks the assistant to look up long-term memory. Requests
// carrying it are re-asks by design and bypass duplicate suppression.
const GetMemoryMarker = "<get memory>"

// DedupGuard suppresses an identical user input for the same conversation
// arriving within a short window, which happens when a transport re-delivers
// an event the dispatcher has not yet marked as seen.
type DedupGuard struct {
	next   Delegate
	window time.Duration

	mu   sync.Mutex
	seen map[[sha256.Size]byte]time.Time

	// now is injectable for testing.
	now func() time.Time
}

// NewDedupGuard wraps next. A zero window defaults to 600ms.
func NewDedupGuard(next Delegate, window time.Duration) *DedupGuard {
	if window <= 0 {
		window = 600 * time.Millisecond
	}
	return &DedupGuard{
		next:   next,
		window: window,
		seen:   make(map[[sha256.Size]byte]time.Time),
		now:    time.Now,
	}
}

// GetResponse implements Delegate. Suppressed requests return
// ErrDuplicateRequest without reaching the wrapped delegate.
func (g *DedupGuard) GetResponse(ctx context.Context, history []Message, userInput, systemPrompt string) (string, error) {
	if !strings.Contains(userInput, GetMemoryMarker) && g.isDuplicate(ConversationFrom(ctx), userInput) {
		return "", ErrDuplicateRequest
	}
	return g.next.GetResponse(ctx, history, userInput, systemPrompt)
}

func (g *DedupGuard) isDuplicate(conversationID, userInput string) bool {
	key := sha256.Sum256([]byte(conversationID + "\x00" + userInput))
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[key]; ok {
		return true
	}
	g.seen[key] = now
	return false
}

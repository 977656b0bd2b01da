package memory

import "unicode/utf8"

// History is a bounded, ordered sequence of Turns with ring-buffer
// semantics: once full, appending drops the oldest turn.
//
// A History is owned by its conversation's single active processor and is
// not safe for concurrent mutation.
type History struct {
	buf  []Turn
	head int // index of the oldest turn
	size int
}

// NewHistory creates a History holding at most capacity turns. A capacity
// below one is raised to one.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Turn, capacity)}
}

// Append adds t as the newest turn. When the buffer is full the oldest turn
// is evicted and returned with ok set.
func (h *History) Append(t Turn) (evicted Turn, ok bool) {
	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = t
		h.size++
		return Turn{}, false
	}
	evicted = h.buf[h.head]
	h.buf[h.head] = t
	h.head = (h.head + 1) % len(h.buf)
	return evicted, true
}

// Turns returns a copy of the turns, oldest first.
func (h *History) Turns() []Turn {
	out := make([]Turn, h.size)
	for i := range h.size {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// Last returns the newest turn.
func (h *History) Last() (Turn, bool) {
	if h.size == 0 {
		return Turn{}, false
	}
	return h.buf[(h.head+h.size-1)%len(h.buf)], true
}

// Replace discards every turn and stores turns in their place. When more
// turns than the capacity are given, only the newest ones are kept.
func (h *History) Replace(turns ...Turn) {
	clear(h.buf)
	h.head, h.size = 0, 0
	if extra := len(turns) - len(h.buf); extra > 0 {
		turns = turns[extra:]
	}
	for _, t := range turns {
		h.Append(t)
	}
}

// Len returns the number of turns held.
func (h *History) Len() int { return h.size }

// Cap returns the maximum number of turns.
func (h *History) Cap() int { return len(h.buf) }

// Chars returns the total content length in characters.
func (h *History) Chars() int {
	n := 0
	for i := range h.size {
		n += utf8.RuneCountInString(h.buf[(h.head+i)%len(h.buf)].Content)
	}
	return n
}

package channel

import (
	"strings"
	"unicode/utf8"

	"github.com/flemzord/almond/pkg/message"
)

// Split breaks msg into messages of at most maxChars characters each,
// preferring line boundaries. Every part keeps the original routing
// fields. A maxChars of zero or less disables splitting.
func Split(msg message.OutboundMessage, maxChars int) []message.OutboundMessage {
	if maxChars <= 0 || utf8.RuneCountInString(msg.Text) <= maxChars {
		return []message.OutboundMessage{msg}
	}

	chunks := SplitText(msg.Text, maxChars)
	out := make([]message.OutboundMessage, len(chunks))
	for i, c := range chunks {
		out[i] = msg
		out[i].Text = c
	}
	return out
}

// SplitText splits text into chunks of at most maxChars characters. Lines
// are packed greedily; a line longer than the limit is cut at character
// boundaries. Empty chunks are never produced.
func SplitText(text string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if s := strings.TrimRight(cur.String(), "\n"); strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		n = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		size := utf8.RuneCountInString(line)
		if n+size <= maxChars {
			cur.WriteString(line)
			n += size
			continue
		}
		flush()
		for size > maxChars {
			head, tail := cutRunes(line, maxChars)
			chunks = append(chunks, head)
			line, size = tail, size-maxChars
		}
		cur.WriteString(line)
		n = size
	}
	flush()
	return chunks
}

// cutRunes splits s after its first n runes.
func cutRunes(s string, n int) (string, string) {
	i := 0
	for range n {
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
	}
	return s[:i], s[i:]
}

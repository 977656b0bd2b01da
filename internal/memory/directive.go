package memory

import (
	"regexp"
	"strings"
)

// memoryDirective matches a "remember this" block the model embeds in a
// reply.
var memoryDirective = regexp.MustCompile(`(?s)<memory>(.*?)</memory>`)

// ExtractDirectives removes every <memory>…</memory> block from reply and
// returns the cleaned reply with the non-empty block bodies.
func ExtractDirectives(reply string) (string, []string) {
	var memories []string
	for _, m := range memoryDirective.FindAllStringSubmatch(reply, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			memories = append(memories, body)
		}
	}
	if memories == nil && !memoryDirective.MatchString(reply) {
		return reply, nil
	}
	return strings.TrimSpace(memoryDirective.ReplaceAllString(reply, "")), memories
}

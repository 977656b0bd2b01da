package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/flemzord/almond/internal/provider"
)

// Rewriter proposes alternate search terms for a query that found nothing.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) ([]string, error)
}

const rewritePrompt = `You help search a chat group's long-term memory.
The search below found nothing. Propose 3 or 4 alternative search keywords
that capture what the message is about, followed by one short phrase the
group might have said when the topic first came up.
Answer with the keywords and the phrase only, separated by commas.`

// LLMRewriter asks a delegate for alternate search terms.
type LLMRewriter struct {
	delegate provider.Delegate
}

// NewLLMRewriter creates a rewriter backed by d.
func NewLLMRewriter(d provider.Delegate) *LLMRewriter {
	return &LLMRewriter{delegate: d}
}

// Compile-time interface check.
var _ Rewriter = (*LLMRewriter)(nil)

// Rewrite implements Rewriter.
func (r *LLMRewriter) Rewrite(ctx context.Context, query string) ([]string, error) {
	reply, err := r.delegate.GetResponse(ctx, nil, query, rewritePrompt)
	if err != nil {
		return nil, fmt.Errorf("memory: semantic rewrite: %w", err)
	}
	return parseTerms(reply), nil
}

// parseTerms splits a comma-separated reply (ASCII or full-width commas,
// or one term per line) into distinct, trimmed terms.
func parseTerms(reply string) []string {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == '\n'
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		term := strings.Trim(trimBullet(strings.TrimSpace(f)), `"'“”。.`)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}

// trimBullet removes leading bullet markers ("- ", "* ", "1. ").
func trimBullet(s string) string {
	if len(s) >= 2 && (s[0] == '-' || s[0] == '*') && s[1] == ' ' {
		return s[2:]
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(s) && s[i] == '.' && s[i+1] == ' ' {
		return s[i+2:]
	}
	return s
}

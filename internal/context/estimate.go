package ctxengine

import (
	"regexp"

	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
)

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// tokenPattern counts each word and each punctuation mark as one token.
var tokenPattern = regexp.MustCompile(`\w+|[^\w\s]`)

// RegexEstimator counts word runs and individual punctuation marks. Han
// characters are not matched by \w and therefore count one token each.
type RegexEstimator struct{}

// Estimate implements TokenEstimator.
func (RegexEstimator) Estimate(text string) int {
	return len(tokenPattern.FindAllStringIndex(text, -1))
}

// CharEstimator estimates tokens using a characters-per-token ratio.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator. A ratio <= 0 defaults to 4.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate implements TokenEstimator. It always rounds up.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len([]rune(text)))/e.CharsPerToken) + 1
}

// EstimateMessages returns the summed estimate of every message content.
func EstimateMessages(est TokenEstimator, msgs []provider.Message) int {
	total := 0
	for _, m := range msgs {
		total += est.Estimate(m.Content)
	}
	return total
}

// EstimateTurns returns the summed estimate of every turn content.
func EstimateTurns(est TokenEstimator, turns []memory.Turn) int {
	total := 0
	for _, t := range turns {
		total += est.Estimate(t.Content)
	}
	return total
}

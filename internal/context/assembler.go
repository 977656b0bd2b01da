package ctxengine

import (
	"strings"

	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
)

// AssemblyRequest contains the inputs for context assembly.
type AssemblyRequest struct {
	// History is the conversation history before the message being
	// answered, oldest first.
	History []memory.Turn

	// UserMessage is the formatted message being answered.
	UserMessage string

	// Memories are retrieved fragments to attach to UserMessage.
	Memories []memory.Fragment
}

// AssemblyResult is the output of context assembly.
type AssemblyResult struct {
	// Messages is the trimmed context preceding UserInput.
	Messages []provider.Message

	// UserInput is the user message, followed by any retrieved memory.
	UserInput string

	// Tokens is the estimated size of Messages and UserInput together.
	Tokens int

	// Trimmed is the number of leading messages dropped to fit the budget.
	Trimmed int
}

// Assembler builds the request context sent to the delegate.
type Assembler struct {
	estimator TokenEstimator
	cfg       Config
}

// NewAssembler creates an Assembler. A nil estimator uses RegexEstimator.
func NewAssembler(estimator TokenEstimator, cfg Config) *Assembler {
	cfg.Defaults()
	if estimator == nil {
		estimator = RegexEstimator{}
	}
	return &Assembler{estimator: estimator, cfg: cfg}
}

// Assemble converts the history to messages, drops empty turns, attaches
// retrieved memory to the user message and trims the oldest messages until
// the whole request fits the token budget. The user input itself is never
// trimmed.
func (a *Assembler) Assemble(req AssemblyRequest) AssemblyResult {
	msgs := make([]provider.Message, 0, len(req.History))
	for _, t := range req.History {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		msgs = append(msgs, provider.Message{Role: provider.Role(t.Role), Content: t.Content})
	}

	input := req.UserMessage
	if len(req.Memories) > 0 {
		input = FormatMemory(req.UserMessage, req.Memories)
	}

	inputTokens := a.estimator.Estimate(input)
	trimmed := TrimToBudget(a.estimator, msgs, a.cfg.MaxTokens-inputTokens)
	return AssemblyResult{
		Messages:  trimmed,
		UserInput: input,
		Tokens:    EstimateMessages(a.estimator, trimmed) + inputTokens,
		Trimmed:   len(msgs) - len(trimmed),
	}
}

// FormatMemory renders userMessage followed by retrieved memory, the way
// the model is told to treat it as recalled context.
func FormatMemory(userMessage string, memories []memory.Fragment) string {
	parts := make([]string, 0, len(memories))
	for _, f := range memories {
		parts = append(parts, strings.TrimPrefix(f.Content, memory.AdvisoryPrefix))
	}
	return userMessage + "\n---\n<long-term memory found in database, use carefully: " + strings.Join(parts, "\n") + ">"
}

// TrimToBudget drops messages from the front until the estimate fits
// maxTokens. It may return an empty slice.
func TrimToBudget(est TokenEstimator, msgs []provider.Message, maxTokens int) []provider.Message {
	tokens := EstimateMessages(est, msgs)
	start := 0
	for tokens > maxTokens && start < len(msgs) {
		tokens -= est.Estimate(msgs[start].Content)
		start++
	}
	return msgs[start:]
}

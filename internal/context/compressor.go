package ctxengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
)

// ErrCompressionFailed indicates that compression could not produce a
// summary. The history is left unchanged.
var ErrCompressionFailed = errors.New("ctxengine: compression failed")

const defaultSummaryPrompt = `You compress chat transcripts without losing information.
Summarize the conversation above in a few sentences. Keep every person's
name, every number, date, place and concrete fact exactly as written.
Drop greetings and filler. Reply with the summary only.`

const defaultOptimizePrompt = `You maintain a group chat's long-term memory.
Merge the notes below into one short paragraph. Keep every person's name,
every number, date, place and concrete fact exactly as written, and drop
duplicates and small talk. Reply with the paragraph only.`

const summarizeRequest = "Summarize the conversation so far."

// Compressor collapses an overlong history into a single summary turn and
// merges staged memory batches. It implements memory.Compressor and
// memory.Optimizer.
type Compressor struct {
	delegate  provider.Delegate
	estimator TokenEstimator
	cfg       Config
	logger    *slog.Logger

	// now is injectable for testing.
	now func() time.Time
}

// Compile-time interface checks.
var (
	_ memory.Compressor = (*Compressor)(nil)
	_ memory.Optimizer  = (*Compressor)(nil)
)

// NewCompressor creates a Compressor. A nil estimator uses RegexEstimator.
func NewCompressor(delegate provider.Delegate, estimator TokenEstimator, cfg Config, logger *slog.Logger) *Compressor {
	cfg.Defaults()
	if estimator == nil {
		estimator = RegexEstimator{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compressor{
		delegate:  delegate,
		estimator: estimator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// ShouldCompress reports whether the history exceeds the compression
// ceiling.
func (c *Compressor) ShouldCompress(h *memory.History) bool {
	return EstimateTurns(c.estimator, h.Turns()) > c.cfg.CompressAt
}

// Compress asks the delegate to summarize h and replaces every turn of h
// with the summary, as one assistant turn. When the delegate fails or
// answers with nothing, h is left unmodified and ErrCompressionFailed is
// returned.
func (c *Compressor) Compress(ctx context.Context, conversationID string, h *memory.History) (memory.Turn, error) {
	turns := h.Turns()
	msgs := make([]provider.Message, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		msgs = append(msgs, provider.Message{Role: provider.Role(t.Role), Content: t.Content})
	}
	if len(msgs) == 0 {
		return memory.Turn{}, fmt.Errorf("%w: nothing to summarize", ErrCompressionFailed)
	}

	summary, err := c.delegate.GetResponse(ctx, msgs, summarizeRequest, c.cfg.SummaryPrompt)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return memory.Turn{}, fmt.Errorf("%w: %w", ErrCompressionFailed, provider.ErrEmptyReply)
	}

	t := memory.Turn{Role: memory.RoleAssistant, Content: summary, Timestamp: c.now()}
	h.Replace(t)

	c.logger.Info("ctxengine: history compressed",
		"conversation_id", conversationID,
		"turns", len(turns),
		"summary_chars", len([]rune(summary)),
	)
	return t, nil
}

// Optimize merges a batch of short fragments into one fact-preserving
// paragraph.
func (c *Compressor) Optimize(ctx context.Context, conversationID string, batch []memory.Fragment) (string, error) {
	var b strings.Builder
	for _, f := range batch {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(f.Content)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "", nil
	}

	text, err := c.delegate.GetResponse(ctx, nil, b.String(), c.cfg.OptimizePrompt)
	if err != nil {
		return "", fmt.Errorf("ctxengine: optimizing batch: %w", err)
	}
	c.logger.Debug("ctxengine: batch optimized",
		"conversation_id", conversationID,
		"fragments", len(batch),
	)
	return strings.TrimSpace(text), nil
}

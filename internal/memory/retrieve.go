package memory

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/flemzord/almond/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AdvisoryPrefix starts the content of every fragment Retrieve returns.
const AdvisoryPrefix = "Relevant memory: "

// Retrieval stages, as reported in logs, spans and metrics.
const (
	StageLong    = "long"
	StageShort   = "short"
	StageRewrite = "rewrite"
	StageMiss    = "miss"
)

// RetrieverConfig controls the retrieval stages.
type RetrieverConfig struct {
	// Keywords is how many terms are extracted from the query. Default: 5.
	Keywords int `yaml:"keywords"`

	// MaxQueryTerms bounds the similarity query. Default: 16.
	MaxQueryTerms int `yaml:"max_query_terms"`

	// Candidates is how many long-form matches are reranked. Default: 10.
	Candidates int `yaml:"candidates"`

	// MaxFragments is how many fragments RetrieveN returns at most.
	// Default: 1.
	MaxFragments int `yaml:"max_fragments"`

	// DisableRewrite turns off the model-assisted query rewrite stage.
	DisableRewrite bool `yaml:"disable_rewrite"`
}

func (c *RetrieverConfig) defaults() {
	if c.Keywords <= 0 {
		c.Keywords = 5
	}
	if c.MaxQueryTerms <= 0 {
		c.MaxQueryTerms = 16
	}
	if c.Candidates <= 0 {
		c.Candidates = 10
	}
	if c.MaxFragments <= 0 {
		c.MaxFragments = 1
	}
}

// Retriever searches both tiers for memory relevant to a query:
//
//  1. extract keywords locally,
//  2. similarity query on the long-form tier,
//  3. conjunctive substring match on the short-form tier,
//  4. one model-assisted rewrite, then the long-form query again,
//  5. TF-IDF rerank of whichever stage produced candidates.
//
// Finding nothing is the common case and is not an error.
type Retriever struct {
	router   *Router
	usage    *UsageTracker
	rewriter Rewriter
	cfg      RetrieverConfig
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer

	// now is injectable for testing.
	now func() time.Time
}

// NewRetriever creates a Retriever. rewriter may be nil to skip stage 4.
func NewRetriever(router *Router, usage *UsageTracker, rewriter Rewriter, cfg RetrieverConfig, logger *slog.Logger, metrics *telemetry.Metrics) *Retriever {
	cfg.defaults()
	if logger == nil {
		logger = discardLogger()
	}
	if cfg.DisableRewrite {
		rewriter = nil
	}
	return &Retriever{
		router:   router,
		usage:    usage,
		rewriter: rewriter,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("github.com/flemzord/almond/internal/memory"),
		now:      time.Now,
	}
}

// Retrieve returns the single most relevant fragment, wrapped as a system
// advisory. ok is false when nothing relevant was found.
func (r *Retriever) Retrieve(ctx context.Context, conversationID, query string) (Fragment, bool, error) {
	found, err := r.RetrieveN(ctx, conversationID, query, 1)
	if err != nil || len(found) == 0 {
		return Fragment{}, false, err
	}
	return found[0], true, nil
}

// RetrieveN returns up to n advisory fragments, best first. n is capped by
// the configured MaxFragments.
func (r *Retriever) RetrieveN(ctx context.Context, conversationID, query string, n int) ([]Fragment, error) {
	ctx, span := r.tracer.Start(ctx, "memory.Retrieve",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	n = max(1, min(n, r.cfg.MaxFragments))
	candidates, stage, err := r.search(ctx, conversationID, query)
	span.SetAttributes(attribute.String("memory.stage", stage), attribute.Int("memory.candidates", len(candidates)))
	r.metrics.Retrieved(stage)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Equal scores must keep store insertion order.
	slices.SortStableFunc(candidates, func(a, b Fragment) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	ranked := Rank(query, candidates)

	now := r.now()
	out := make([]Fragment, 0, min(n, len(ranked)))
	for _, s := range ranked[:min(n, len(ranked))] {
		r.usage.Touch(s.Fragment, now)
		out = append(out, advisory(s.Fragment))
	}
	r.logger.Debug("memory: retrieved",
		"conversation_id", conversationID,
		"stage", stage,
		"candidates", len(candidates),
		"returned", len(out),
	)
	return out, nil
}

// search runs stages 1 to 4 and returns the first non-empty candidate set.
// A failing stage degrades to the next one; an error is returned only when
// no stage could run at all.
func (r *Retriever) search(ctx context.Context, conversationID, query string) ([]Fragment, string, error) {
	keywords := ExtractKeywords(query, r.cfg.Keywords)
	var errs []error
	ran := false

	if len(keywords) > 0 {
		found, err := r.longStage(ctx, conversationID, keywords)
		if err == nil {
			ran = true
			if len(found) > 0 {
				return found, StageLong, nil
			}
		} else {
			errs = append(errs, err)
		}

		found, err = r.shortStage(ctx, conversationID, keywords)
		if err == nil {
			ran = true
			if len(found) > 0 {
				return found, StageShort, nil
			}
		} else {
			errs = append(errs, err)
		}
	}

	if r.rewriter != nil && ctx.Err() == nil {
		terms, err := r.rewriter.Rewrite(ctx, query)
		if err != nil {
			r.logger.Warn("memory: query rewrite failed", "conversation_id", conversationID, "error", err)
			errs = append(errs, err)
		} else if len(terms) > 0 {
			found, err := r.longStage(ctx, conversationID, terms)
			if err == nil {
				ran = true
				if len(found) > 0 {
					return found, StageRewrite, nil
				}
			} else {
				errs = append(errs, err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, StageMiss, err
	}
	if !ran && len(errs) > 0 {
		return nil, StageMiss, errors.Join(errs...)
	}
	return nil, StageMiss, nil
}

func (r *Retriever) longStage(ctx context.Context, conversationID string, terms []string) ([]Fragment, error) {
	found, err := r.router.Long().MoreLikeThis(ctx, conversationID, strings.Join(terms, " "), r.cfg.MaxQueryTerms, r.cfg.Candidates)
	if err != nil {
		r.logger.Warn("memory: long-form search failed", "conversation_id", conversationID, "error", err)
		return nil, err
	}
	return found, nil
}

func (r *Retriever) shortStage(ctx context.Context, conversationID string, keywords []string) ([]Fragment, error) {
	found, err := r.router.Short().Find(ctx, conversationID, keywords)
	if err != nil {
		r.logger.Warn("memory: short-form search failed", "conversation_id", conversationID, "error", err)
		return nil, err
	}
	if r.router.stager != nil {
		staged, err := r.router.stager.Staged(ctx, conversationID)
		if err != nil {
			r.logger.Warn("memory: staging search failed", "conversation_id", conversationID, "error", err)
		}
		for _, f := range staged {
			if ContainsAll(f.Content, keywords) {
				found = append(found, f)
			}
		}
	}
	return found, nil
}

// advisory wraps f as a system fragment for insertion into model context.
func advisory(f Fragment) Fragment {
	f.Role = RoleSystem
	f.Content = AdvisoryPrefix + f.Content
	return f
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/flemzord/almond/internal/context"
	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
	"github.com/flemzord/almond/pkg/message"
)

const tracerName = "github.com/flemzord/almond/internal/dispatch"

// DefaultFallbackReply is sent when no usable reply could be produced.
const DefaultFallbackReply = "Sorry, I'm temporarily unavailable. Please try again later."

// DefaultMemoryTriggers are the phrases that make a message ask about the
// past.
var DefaultMemoryTriggers = []string{"remember", "recall", "记得", "以前", "还记得", "上次"}

// Sender delivers replies to the channel a message arrived on.
type Sender interface {
	Send(ctx context.Context, msg message.OutboundMessage) error
}

// LaneCounter reports the number of live conversation lanes.
type LaneCounter interface {
	LaneCount() int
}

// AssistantConfig holds the assistant behavior settings.
type AssistantConfig struct {
	SystemPrompt string `yaml:"system_prompt"`

	// FallbackReply replaces empty or failed replies.
	FallbackReply string `yaml:"fallback_reply"`

	// RetrieveOnTrigger limits retrieval to messages containing one of
	// MemoryTriggers. By default every message is looked up.
	RetrieveOnTrigger bool `yaml:"retrieve_on_trigger"`

	// MemoryTriggers are case-insensitive phrases that enable retrieval
	// when RetrieveOnTrigger is set.
	MemoryTriggers []string `yaml:"memory_triggers"`

	// Admins are sender IDs allowed to run chat commands.
	Admins []string `yaml:"admins"`
}

// Defaults fills zero values.
func (c *AssistantConfig) Defaults() {
	if c.FallbackReply == "" {
		c.FallbackReply = DefaultFallbackReply
	}
	if len(c.MemoryTriggers) == 0 {
		c.MemoryTriggers = DefaultMemoryTriggers
	}
}

// PipelineConfig groups the dependencies of the message pipeline.
type PipelineConfig struct {
	Assistant AssistantConfig
	Memory    *memory.Manager
	Assembler *ctxengine.Assembler
	Delegate  provider.Delegate
	Sender    Sender
	Logger    *slog.Logger

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Pipeline handles one message at a time for a conversation: it keeps the
// history, attaches recalled memory, asks the delegate and stores what the
// assistant was told to remember.
type Pipeline struct {
	cfg    AssistantConfig
	mem    *memory.Manager
	asm    *ctxengine.Assembler
	llm    provider.Delegate
	sender Sender
	lanes  LaneCounter
	logger *slog.Logger
	tracer trace.Tracer
}

// NewPipeline validates cfg and creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	var errs []error
	if cfg.Memory == nil {
		errs = append(errs, errors.New("dispatch: pipeline requires a memory manager"))
	}
	if cfg.Delegate == nil {
		errs = append(errs, errors.New("dispatch: pipeline requires a delegate"))
	}
	if cfg.Sender == nil {
		errs = append(errs, errors.New("dispatch: pipeline requires a sender"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg.Assistant.Defaults()
	if cfg.Assembler == nil {
		cfg.Assembler = ctxengine.NewAssembler(nil, ctxengine.Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	return &Pipeline{
		cfg:    cfg.Assistant,
		mem:    cfg.Memory,
		asm:    cfg.Assembler,
		llm:    cfg.Delegate,
		sender: cfg.Sender,
		logger: cfg.Logger,
		tracer: cfg.TracerProvider.Tracer(tracerName),
	}, nil
}

// SetLaneCounter sets the source of lane counts reported by /stats.
func (p *Pipeline) SetLaneCounter(l LaneCounter) { p.lanes = l }

// Handle implements Handler. Failures of memory enhancements only degrade
// the reply; an error is returned only when the reply could not be sent.
func (p *Pipeline) Handle(ctx context.Context, msg message.InboundMessage) error {
	conv := msg.ConversationID()
	ctx = provider.WithConversation(ctx, conv)
	ctx, span := p.tracer.Start(ctx, "dispatch.Handle",
		trace.WithAttributes(
			attribute.String("conversation.id", conv),
			attribute.String("message.id", msg.ID),
		))
	defer span.End()

	logger := p.logger.With("conversation_id", conv, "message_id", msg.ID)

	// Step 1: Admin commands.
	if handled, err := p.handleCommand(ctx, msg); handled {
		return err
	}

	// Step 2: Compression, before the new turn joins the history.
	if _, err := p.mem.Compress(ctx, conv); err != nil {
		logger.Warn("dispatch: compression skipped", "error", err)
	}

	// Step 3: History.
	prior := p.mem.History(conv).Turns()
	user := memory.Turn{Role: memory.RoleUser, Content: formatUser(msg), Timestamp: msg.Timestamp}
	if user.Timestamp.IsZero() {
		user = memory.NewTurn(memory.RoleUser, user.Content)
	}
	p.mem.Append(conv, user)

	// Step 4: Retrieval.
	var memories []memory.Fragment
	if p.wantsMemory(msg.Text) {
		memories = p.retrieve(ctx, logger, conv, msg.Text)
	}

	// Step 5: Context assembly and the delegate call.
	req := p.asm.Assemble(ctxengine.AssemblyRequest{
		History:     prior,
		UserMessage: user.Content,
		Memories:    memories,
	})
	if req.Trimmed > 0 {
		logger.Debug("dispatch: context trimmed", "dropped", req.Trimmed, "tokens", req.Tokens)
	}
	reply, err := p.llm.GetResponse(ctx, req.Messages, req.UserInput, p.cfg.SystemPrompt)
	if errors.Is(err, provider.ErrDuplicateRequest) {
		logger.Debug("dispatch: duplicate request suppressed")
		return nil
	}

	// Step 6: Memory lookup requested by the model.
	if err == nil && strings.Contains(reply, provider.GetMemoryMarker) && len(memories) == 0 {
		reply = p.reask(ctx, logger, conv, msg.Text, prior, user.Content, reply)
	}
	reply = strings.TrimSpace(strings.ReplaceAll(reply, provider.GetMemoryMarker, ""))

	// Step 7: Memory directives.
	reply, directives := memory.ExtractDirectives(reply)
	for _, d := range directives {
		if _, _, serr := p.mem.Store(ctx, conv, memory.RoleAssistant, d); serr != nil {
			logger.Warn("dispatch: storing memory directive failed", "error", serr)
		}
	}

	// Step 8: Fallback.
	answered := err == nil && reply != ""
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "delegate failed")
		logger.Error("dispatch: delegate failed", "error", err)
		reply = p.cfg.FallbackReply
	case reply == "":
		logger.Warn("dispatch: empty reply, sending fallback")
		reply = p.cfg.FallbackReply
	}

	// Step 9: Persistence (write-behind, non-fatal).
	p.persist(ctx, logger, conv, memory.RoleUser, user.Content)
	if answered {
		p.mem.Append(conv, memory.NewTurn(memory.RoleAssistant, reply))
		p.persist(ctx, logger, conv, memory.RoleAssistant, reply)
	}

	// Step 10: Send.
	if err := p.sender.Send(ctx, message.NewReply(msg, reply)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dispatch: sending reply: %w", err)
	}
	return nil
}

// reask retrieves memory for the user's message and asks the delegate
// again once with it attached. The first reply is kept when nothing is
// found or the second call fails.
func (p *Pipeline) reask(ctx context.Context, logger *slog.Logger, conv, query string, prior []memory.Turn, userText, first string) string {
	memories := p.retrieve(ctx, logger, conv, query)
	if len(memories) == 0 {
		return first
	}
	req := p.asm.Assemble(ctxengine.AssemblyRequest{
		History:     prior,
		UserMessage: userText,
		Memories:    memories,
	})
	reply, err := p.llm.GetResponse(ctx, req.Messages, req.UserInput, p.cfg.SystemPrompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		logger.Warn("dispatch: memory re-ask failed, keeping first reply", "error", err)
		return first
	}
	return reply
}

func (p *Pipeline) retrieve(ctx context.Context, logger *slog.Logger, conv, query string) []memory.Fragment {
	frags, err := p.mem.RetrieveN(ctx, conv, query)
	if err != nil {
		logger.Warn("dispatch: retrieval failed", "error", err)
		return nil
	}
	return frags
}

func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, conv string, role memory.Role, content string) {
	if _, _, err := p.mem.Store(ctx, conv, role, content); err != nil {
		logger.Warn("dispatch: persisting turn failed", "role", string(role), "error", err)
	}
}

func (p *Pipeline) wantsMemory(text string) bool {
	if !p.cfg.RetrieveOnTrigger {
		return true
	}
	lower := strings.ToLower(text)
	for _, t := range p.cfg.MemoryTriggers {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// formatUser renders a user message the way it is kept in history.
func formatUser(msg message.InboundMessage) string {
	return msg.Sender.Name() + ": " + strings.TrimSpace(msg.Text)
}

// Interface guard.
var _ Handler = (*Pipeline)(nil)

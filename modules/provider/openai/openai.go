// Package openai implements the provider.openai module, answering delegate
// requests through the OpenAI Chat Completions API or any compatible
// endpoint.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/provider"
	sdkopenai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Delegate = (*Provider)(nil)
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
)

// Provider is the provider.openai module.
type Provider struct {
	config Config
	logger *slog.Logger
	client *sdkopenai.Client
	apiKey string
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	p.apiKey = p.config.APIKey
	if p.apiKey == "" {
		p.apiKey = os.Getenv(p.config.APIKeyEnv)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(p.apiKey),
		option.WithHTTPClient(&http.Client{Timeout: p.config.Timeout}),
		// Retries and failover happen in the provider wrappers.
		option.WithMaxRetries(0),
	}
	if p.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.config.BaseURL))
	}
	client := sdkopenai.NewClient(opts...)
	p.client = &client
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if p.apiKey == "" {
		return errors.New("provider.openai: api_key is required (set api_key or " + p.config.APIKeyEnv + ")")
	}
	return p.config.validate()
}

// GetResponse implements provider.Delegate.
func (p *Provider) GetResponse(ctx context.Context, history []provider.Message, userInput, systemPrompt string) (string, error) {
	params := sdkopenai.ChatCompletionNewParams{
		Model:    p.config.Model,
		Messages: convertMessages(provider.BuildMessages(history, userInput, systemPrompt)),
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = sdkopenai.Int(int64(p.config.MaxTokens))
	}
	params.Temperature = sdkopenai.Float(*p.config.Temperature)
	params.TopP = sdkopenai.Float(*p.config.TopP)
	params.PresencePenalty = sdkopenai.Float(*p.config.PresencePenalty)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		p.logger.Warn("provider.openai: empty reply",
			"model", p.config.Model,
			"finish_reason", resp.Choices[0].FinishReason,
		)
		return "", provider.ErrEmptyReply
	}
	return reply, nil
}

func convertMessages(msgs []provider.Message) []sdkopenai.ChatCompletionMessageParamUnion {
	out := make([]sdkopenai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleSystem:
			out = append(out, sdkopenai.SystemMessage(m.Content))
		case provider.RoleAssistant:
			out = append(out, sdkopenai.AssistantMessage(m.Content))
		default:
			out = append(out, sdkopenai.UserMessage(m.Content))
		}
	}
	return out
}

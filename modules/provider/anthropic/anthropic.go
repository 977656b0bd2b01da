// Package anthropic implements the provider.anthropic module, answering
// delegate requests through the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/provider"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module       = (*Anthropic)(nil)
	_ core.Configurable = (*Anthropic)(nil)
	_ core.Provisioner  = (*Anthropic)(nil)
	_ core.Validator    = (*Anthropic)(nil)
	_ provider.Delegate = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.logger = ctx.Logger
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}

	// Config takes precedence over the environment.
	apiKey := a.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(a.config.APIKeyEnv)
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: a.config.Timeout}),
		// Retries and failover happen in the provider wrappers.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	a.client = &client
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.config.Model == "" {
		return errors.New("provider.anthropic: model must not be empty")
	}
	if a.config.MaxTokens < 0 {
		return errors.New("provider.anthropic: max_tokens must not be negative")
	}
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	return nil
}

// GetResponse implements provider.Delegate.
func (a *Anthropic) GetResponse(ctx context.Context, history []provider.Message, userInput, systemPrompt string) (string, error) {
	params := buildParams(history, userInput, systemPrompt, &a.config)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}

	reply := replyText(msg)
	if reply == "" {
		return "", provider.ErrEmptyReply
	}
	return reply, nil
}

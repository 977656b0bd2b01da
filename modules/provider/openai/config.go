package openai

import (
	"errors"
	"time"
)

// Config holds the configuration for the OpenAI-compatible delegate. Any
// vendor that speaks the Chat Completions protocol works through BaseURL.
type Config struct {
	APIKey          string        `yaml:"api_key"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     *float64      `yaml:"temperature"`
	TopP            *float64      `yaml:"top_p"`
	PresencePenalty *float64      `yaml:"presence_penalty"`
	Timeout         time.Duration `yaml:"timeout"`
}

func ptr(v float64) *float64 { return &v }

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 3450
	}
	if c.Temperature == nil {
		c.Temperature = ptr(0.85)
	}
	if c.TopP == nil {
		c.TopP = ptr(1)
	}
	if c.PresencePenalty == nil {
		c.PresencePenalty = ptr(1)
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Model == "" {
		return errors.New("provider.openai: model is required")
	}
	if c.MaxTokens < 0 {
		return errors.New("provider.openai: max_tokens must not be negative")
	}
	if t := *c.Temperature; t < 0 || t > 2 {
		return errors.New("provider.openai: temperature must be between 0 and 2")
	}
	if p := *c.PresencePenalty; p < -2 || p > 2 {
		return errors.New("provider.openai: presence_penalty must be between -2 and 2")
	}
	return nil
}

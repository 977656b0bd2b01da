// Package ctxengine manages the request context sent to the language model:
// token estimation, history compression and budget trimming.
package ctxengine

// Config is the context section of the configuration file.
type Config struct {
	// MaxTokens is the token budget of one request context. Oldest turns
	// are trimmed until the context fits. Default: 2400.
	MaxTokens int `yaml:"max_tokens"`

	// CompressAt is the history size, in estimated tokens, above which the
	// history is compressed into one summary. Default: MaxTokens.
	CompressAt int `yaml:"compress_at"`

	// SummaryPrompt overrides the compression instruction.
	SummaryPrompt string `yaml:"summary_prompt"`

	// OptimizePrompt overrides the batch optimization instruction.
	OptimizePrompt string `yaml:"optimize_prompt"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2400
	}
	if c.CompressAt <= 0 {
		c.CompressAt = c.MaxTokens
	}
	if c.SummaryPrompt == "" {
		c.SummaryPrompt = defaultSummaryPrompt
	}
	if c.OptimizePrompt == "" {
		c.OptimizePrompt = defaultOptimizePrompt
	}
}

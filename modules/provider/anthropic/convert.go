package anthropic

import (
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/almond/internal/provider"
)

// buildParams turns the delegate arguments into Messages API parameters.
// System turns move to the System field and consecutive turns of the same
// role are merged, since the API expects user and assistant to alternate.
func buildParams(history []provider.Message, userInput, systemPrompt string, cfg *Config) sdkanthropic.MessageNewParams {
	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
	}
	if cfg.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*cfg.Temperature)
	}

	var turns []provider.Message
	for _, m := range provider.BuildMessages(history, userInput, systemPrompt) {
		if m.Role == provider.RoleSystem {
			params.System = append(params.System, sdkanthropic.TextBlockParam{Text: m.Content})
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n" + m.Content
			continue
		}
		turns = append(turns, m)
	}

	params.Messages = make([]sdkanthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		block := sdkanthropic.NewTextBlock(m.Content)
		if m.Role == provider.RoleAssistant {
			params.Messages = append(params.Messages, sdkanthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, sdkanthropic.NewUserMessage(block))
		}
	}
	return params
}

// replyText joins the text blocks of a response.
func replyText(msg *sdkanthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok && v.Text != "" {
			parts = append(parts, v.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/flemzord/almond/internal/provider"
	sdkopenai "github.com/openai/openai-go"
)

// mapError converts SDK and network errors to provider sentinels. Context
// errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkopenai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 400 && isContextLength(apiErr) {
			return fmt.Errorf("%w: %w", provider.ErrContextLength, err)
		}
		return provider.ClassifyStatus(apiErr.StatusCode, fmt.Errorf("openai: %w", err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("openai: %w", err)
}

func isContextLength(apiErr *sdkopenai.Error) bool {
	if apiErr.Code == "context_length_exceeded" {
		return true
	}
	// Compatible vendors do not always fill the structured fields.
	text := strings.ToLower(apiErr.Message + " " + apiErr.Error())
	return strings.Contains(text, "context_length_exceeded") ||
		strings.Contains(text, "maximum context length")
}

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/almond/internal/provider"
)

// overloadedStatus is Anthropic's non-standard "overloaded" status code.
const overloadedStatus = 529

// mapError converts an Anthropic SDK error into the matching provider
// sentinel. Non-API errors are returned as-is.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: %w", err)
	}

	if apiErr.StatusCode == overloadedStatus {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	if apiErr.StatusCode == 400 && isContextLengthError(apiErr.RawJSON()) {
		return fmt.Errorf("%w: %w", provider.ErrContextLength, err)
	}
	return provider.ClassifyStatus(apiErr.StatusCode, fmt.Errorf("anthropic: %w", err))
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// isContextLengthError reports whether a 400 body describes an oversized
// prompt.
func isContextLengthError(raw string) bool {
	msg := raw
	var body apiErrorBody
	if err := json.Unmarshal([]byte(raw), &body); err == nil {
		if body.Error.Type != "invalid_request_error" {
			return false
		}
		msg = body.Error.Message
	}
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "context length") ||
		strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "prompt is too long")
}

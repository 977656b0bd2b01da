package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for delegate operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrProviderDown indicates a 5xx or otherwise transient provider failure.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrTimeout indicates a single attempt exceeded its per-call timeout.
	ErrTimeout = errors.New("provider request timed out")

	// ErrBadRequest indicates a 4xx client error other than rate limiting.
	ErrBadRequest = errors.New("provider rejected request")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("context length exceeded")

	// ErrEmptyReply indicates the provider answered with no usable content.
	ErrEmptyReply = errors.New("provider returned empty reply")

	// ErrDuplicateRequest indicates an identical request was issued moments
	// ago for the same conversation and this one was suppressed.
	ErrDuplicateRequest = errors.New("duplicate request suppressed")

	// ErrAllProviders indicates every delegate in a Fallback failed.
	ErrAllProviders = errors.New("all providers failed")

	// ErrNoProvider indicates no delegate is configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrUnknownProvider indicates the configured provider name is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
)

// IsRetryable reports whether the error is transient and the request can be
// repeated after a short delay. Client errors, cancellation and suppressed
// duplicates are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateRequest) || errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrContextLength) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ClassifyStatus wraps err with the sentinel matching an HTTP status code.
// Provider modules call it with the status their SDK reports.
func ClassifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimit, err)
	case status >= 500:
		return fmt.Errorf("%w (HTTP %d): %w", ErrProviderDown, status, err)
	case status >= 400:
		return fmt.Errorf("%w (HTTP %d): %w", ErrBadRequest, status, err)
	default:
		return err
	}
}

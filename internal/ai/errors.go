package ai

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	// ErrNoProvider is returned when no configured provider can serve a request
	ErrNoProvider = errors.New("no AI provider available")
	// ErrEmptyResponse is returned when a provider answers with no text
	ErrEmptyResponse = errors.New("AI provider returned an empty response")
	// ErrRateLimited is returned when every candidate provider is over its limit
	ErrRateLimited = errors.New("rate limit exceeded for all available providers")
)

// Classified provider error prefixes. Providers format HTTP failures as
// "PREFIX: message" so callers can branch without parsing status codes.
const (
	prefixRateLimit     = "RATE_LIMIT:"
	prefixServiceError  = "SERVICE_ERROR:"
	prefixUnauthorized  = "UNAUTHORIZED:"
	prefixForbidden     = "FORBIDDEN:"
	prefixQuotaExceeded = "QUOTA_EXCEEDED:"
	prefixModelNotFound = "MODEL_NOT_FOUND:"
)

// IsRetryable reports whether err is worth another attempt. Auth, quota and
// caller-side cancellation errors are permanent; throttling, 5xx, empty
// answers and network failures are transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrNoProvider) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrRateLimited) {
		return true
	}

	msg := err.Error()
	for _, p := range []string{prefixUnauthorized, prefixForbidden, prefixQuotaExceeded, prefixModelNotFound} {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range []string{prefixRateLimit, prefixServiceError} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

package connector

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports missing or invalid configuration at
// construction time. No connector instance is created.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// AuthenticationError reports the provider rejecting credentials.
type AuthenticationError struct {
	Provider string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s rejected credentials: %v", e.Provider, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitError signals a rate limit, either internally tracked or
// provider-reported (HTTP 429). ResetAt is the earliest time capacity is
// expected back; zero when unknown.
type RateLimitError struct {
	Provider string
	ResetAt  time.Time
	Internal bool
}

func (e *RateLimitError) Error() string {
	origin := "provider"
	if e.Internal {
		origin = "internal"
	}
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("%s rate limit (%s)", e.Provider, origin)
	}
	return fmt.Sprintf("%s rate limit (%s), resets at %s", e.Provider, origin, e.ResetAt.Format(time.RFC3339))
}

// TransportError wraps a network-level failure. Retried with fixed backoff.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProviderAPIError reports a non-retryable 4xx/5xx with the provider's
// parsed error message where one was available.
type ProviderAPIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderAPIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
}

// IsRateLimit reports whether err is a RateLimitError anywhere in its chain.
func IsRateLimit(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}

// IsTransport reports whether err is a TransportError anywhere in its chain.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

package domain

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
)

var (
	// ErrNotConfigured is returned by Llm.Ready when no upstream credential
	// is available.
	ErrNotConfigured = errors.New("upstream credential not configured")

	// ErrStreamInterrupted means a candidate failed after part of its answer
	// had already been forwarded to the caller.
	ErrStreamInterrupted = errors.New("stream interrupted after partial output")

	// ErrNoProvider is returned by a router for a candidate no configured
	// provider can serve.
	ErrNoProvider = errors.New("no provider for candidate")
)

// ConfigurationError is fatal: the orchestrator makes zero attempts.
type ConfigurationError struct {
	Locale language.Tag
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Message() string { return i18n.Text(e.Locale, i18n.NotConfigured) }

// ValidationError rejects a request before any orchestration.
type ValidationError struct {
	Locale language.Tag
	Field  string
	Reason string
	Key    i18n.Key
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for '%s': %s", e.Field, e.Reason)
}

func (e *ValidationError) Message() string {
	key := e.Key
	if key == "" {
		key = i18n.InvalidRequest
	}
	return i18n.Text(e.Locale, key)
}

// ProviderError is a failed call to one upstream provider.
type ProviderError struct {
	Candidate  Candidate
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error for %s (status %d): %s", e.Candidate, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error for %s: %s", e.Candidate, e.Message)
}

// RateLimited reports an upstream 429, either as HTTP status or as the error
// code inside the response body.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == http.StatusTooManyRequests
}

// IsRateLimited reports whether err carries an upstream rate-limit signal.
func IsRateLimited(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.RateLimited()
}

// ExhaustedError means every candidate failed.
type ExhaustedError struct {
	Locale   language.Tag
	Attempts []Attempt
	// RateLimited is set when at least one candidate answered 429.
	RateLimited bool
	Last        error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d candidates failed: %v", len(e.Attempts), e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Message() string { return i18n.Text(e.Locale, i18n.AllModelsBusy) }

// Retryable is always true: the caller may try again later.
func (e *ExhaustedError) Retryable() bool { return true }

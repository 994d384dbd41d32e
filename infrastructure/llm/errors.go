package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by the client and the providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider returned no text.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the provider's response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrResponseBlocked indicates that the provider refused to answer, for
	// example because a safety filter tripped on the document image.
	ErrResponseBlocked = errors.New("response blocked by provider")
)

// ErrorType is the provider-independent category of a failed request.
type ErrorType int

// Error categories. Rate limits, server errors, network failures and
// timeouts are transient; the rest are not worth retrying.
const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// String returns the snake_case name of t, or the empty string for
// ErrorTypeUnknown.
func (t ErrorType) String() string { return errorTypeNames[t] }

// Retryable reports whether a request failing with t may succeed later.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// ProviderError is a failed provider request normalized to an ErrorType.
type ProviderError struct {
	Type     ErrorType
	Provider string
	// StatusCode is the HTTP status, or zero when the request never got one.
	StatusCode   int
	Message      string
	WrappedError error
}

// Error implements the error interface, e.g.
// "google error (HTTP 429) [rate_limit]: google rate limit exceeded".
func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if name := e.Type.String(); name != "" {
		msg += " [" + name + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.WrappedError != nil {
		msg += fmt.Sprintf(": %v", e.WrappedError)
	}
	return msg
}

// Unwrap returns the provider's original error.
func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether the request should be retried.
func (e *ProviderError) IsRetryable() bool { return e.Type.Retryable() }

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier turns the failures of one provider into ProviderErrors.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError maps an HTTP status to an ErrorType. Authentication and
// rate limit failures get a generic message; the provider's own message is
// kept for the others because it usually names the rejected parameter or
// the oversized document.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	errType := ErrorTypeUnknown
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		errType = ErrorTypeAuthentication
		message = ec.Provider + " authentication failed"
	case statusCode == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
		message = ec.Provider + " rate limit exceeded"
	case statusCode == http.StatusRequestTimeout:
		errType = ErrorTypeTimeout
	case statusCode == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case statusCode >= 500:
		errType = ErrorTypeServerError
	case statusCode >= 400:
		errType = ErrorTypeBadRequest
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError classifies a failure caused by the request context.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	}
	return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorAuth
	ErrorRateLimited
	ErrorNetwork
	ErrorMalformed
	ErrorUnsupported
)

// String returns the short user-facing category.
func (k ErrorKind) String() string {
	switch k {
	case ErrorAuth:
		return "Authentication failed"
	case ErrorRateLimited:
		return "Rate limited"
	case ErrorNetwork:
		return "Network error"
	case ErrorMalformed:
		return "Malformed response"
	case ErrorUnsupported:
		return "Unsupported"
	default:
		return "Request failed"
	}
}

var (
	// ErrUnsupportedProviderKind is returned for a kind with no registered factory.
	ErrUnsupportedProviderKind = errors.New("unsupported provider kind")
	// ErrNotConfigured is returned when a provider lacks credentials, endpoint or model.
	ErrNotConfigured = errors.New("provider is not configured")
	// ErrNoProvider is returned when no provider has been created yet.
	ErrNoProvider = errors.New("no AI provider available")
)

// ProviderError is the normalized failure returned by every provider.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(e.Kind.String()))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if msg := e.detail(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) detail() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// NewStatusError classifies a non-2xx HTTP response. message should be the
// upstream error text when the body carried one.
func NewStatusError(provider string, status int, message string, err error) *ProviderError {
	kind := ErrorUnknown
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrorAuth
	case http.StatusTooManyRequests:
		kind = ErrorRateLimited
	}
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(status)
	}
	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		StatusCode: status,
		Message:    strings.TrimSpace(message),
		Err:        err,
	}
}

// NewTransportError wraps a failure that happened before a status was read.
func NewTransportError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	kind := ErrorUnknown
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		kind = ErrorNetwork
	}
	return &ProviderError{Kind: kind, Provider: provider, Err: err}
}

// NewMalformedError reports a response body that could not be decoded.
func NewMalformedError(provider string, err error) *ProviderError {
	return &ProviderError{Kind: ErrorMalformed, Provider: provider, Err: err}
}

// KindOf returns the classification of err, or ErrorUnknown.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrUnsupportedProviderKind) || errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrNoProvider) {
		return ErrorUnsupported
	}
	return ErrorUnknown
}

// UserMessage renders err as "<category>: <upstream text>".
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		if detail := pe.detail(); detail != "" {
			return pe.Kind.String() + ": " + detail
		}
		return pe.Kind.String()
	}
	return KindOf(err).String() + ": " + err.Error()
}

package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestNewStatusError_Classifies(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, ErrorAuth},
		{http.StatusForbidden, ErrorAuth},
		{http.StatusTooManyRequests, ErrorRateLimited},
		{http.StatusInternalServerError, ErrorUnknown},
		{http.StatusNotFound, ErrorUnknown},
	}
	for _, tt := range tests {
		err := NewStatusError("openai", tt.status, "", nil)
		if err.Kind != tt.kind {
			t.Errorf("status %d: kind = %v, want %v", tt.status, err.Kind, tt.kind)
		}
		if err.Message == "" {
			t.Errorf("status %d: expected status text fallback message", tt.status)
		}
	}
}

func TestUserMessage(t *testing.T) {
	err := NewStatusError("openai", http.StatusUnauthorized, "Invalid API key", nil)
	if got := UserMessage(err); got != "Authentication failed: Invalid API key" {
		t.Fatalf("UserMessage() = %q", got)
	}

	wrapped := errors.Join(errors.New("context"), NewStatusError("gemini", http.StatusTooManyRequests, "quota", nil))
	if got := UserMessage(wrapped); got != "Rate limited: quota" {
		t.Fatalf("UserMessage(wrapped) = %q", got)
	}

	if got := UserMessage(errors.New("boom")); got != "Request failed: boom" {
		t.Fatalf("UserMessage(plain) = %q", got)
	}
	if UserMessage(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}

func TestNewTransportError(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	})
	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/", nil)
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("expected transport error")
	}

	pe := NewTransportError("local", err)
	if pe.Kind != ErrorNetwork {
		t.Fatalf("expected network kind, got %v", pe.Kind)
	}
	if !strings.Contains(UserMessage(pe), "connection refused") {
		t.Fatalf("expected transport text in message, got %q", UserMessage(pe))
	}

	deadline := NewTransportError("local", context.DeadlineExceeded)
	if deadline.Kind != ErrorNetwork {
		t.Fatalf("expected deadline to be network kind, got %v", deadline.Kind)
	}
	if !errors.Is(deadline, context.DeadlineExceeded) {
		t.Fatal("expected wrapped deadline error")
	}
}

func TestProviderError_Error(t *testing.T) {
	err := NewStatusError("local", http.StatusBadGateway, "upstream down", nil)
	if got := err.Error(); got != "local: request failed (502): upstream down" {
		t.Fatalf("Error() = %q", got)
	}
}

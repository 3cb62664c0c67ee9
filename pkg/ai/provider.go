package ai

import (
	"context"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message for LLM requests.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// ChatRequest defines the input to an LLM chat completion.
// Nil Temperature and MaxTokens fall back to the provider's config.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// TokenUsage reports token accounting when the backend returns it.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is a normalized one-shot response from an LLM.
type CompletionResult struct {
	Text         string
	Usage        *TokenUsage
	FinishReason string
	Model        string
}

// StreamChunk is one fragment of a streaming completion. The last chunk of a
// well-formed stream has IsFinal set and usually an empty Delta.
type StreamChunk struct {
	Delta   string
	IsFinal bool
}

// ChatStream is a pull-driven streaming response. Next blocks until the next
// chunk is available; Close may be called at any point to abandon the stream.
type ChatStream interface {
	Next() bool
	Chunk() StreamChunk
	Err() error
	Close() error
}

// ModelDescription is what a provider reports about itself.
type ModelDescription struct {
	DisplayName   string
	ProviderLabel string
}

// Provider defines the LLM interface used by the app.
type Provider interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (CompletionResult, error)
	CreateChatCompletionStream(ctx context.Context, req ChatRequest) (ChatStream, error)
	IsConfigured() bool
	Describe() ModelDescription
}

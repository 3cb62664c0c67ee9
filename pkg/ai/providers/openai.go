package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codemate/pkg/ai"
)

const (
	openAIDefaultAPIURL  = "https://api.openai.com/v1"
	openAIDefaultTimeout = 30 * time.Second
	// openAITokenCeiling is the hard max_tokens limit for one-shot requests.
	openAITokenCeiling = 4096
)

// OpenAIProvider implements the Provider interface using the OpenAI API directly.
type OpenAIProvider struct {
	cfg  ai.ProviderConfig
	chat *chatClient
}

// NewOpenAIProvider creates a new OpenAI provider from config. A missing key
// is not an error; IsConfigured reports it.
func NewOpenAIProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	apiURL := strings.TrimRight(cfg.Endpoint, "/")
	if apiURL == "" {
		apiURL = openAIDefaultAPIURL
	}

	slog.Debug("openai_provider_ready", "model", cfg.Model, "api_url", apiURL)
	return &OpenAIProvider{
		cfg:  cfg,
		chat: newChatClient("openai", apiURL, cfg.APIKey, cfg.HTTPClientOr(openAIDefaultTimeout)),
	}, nil
}

// CreateChatCompletion sends a non-streaming chat completion request.
func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.CompletionResult, error) {
	model := requestModel(req, p.cfg.Model)
	params, err := buildChatParams(req.Messages, chatParamsOptions{
		model:       model,
		temperature: requestTemperature(req, p.cfg),
		maxTokens:   ai.ClampTokens(requestMaxTokens(req, p.cfg), p.tokenCeiling(model)),
	})
	if err != nil {
		return ai.CompletionResult{}, fmt.Errorf("openai: %w", err)
	}

	slog.Debug("chat_completion_start", "provider", "openai", "model", model, "messages", len(req.Messages))
	return p.chat.complete(ctx, params)
}

// CreateChatCompletionStream sends a streaming chat completion request. The
// token ceiling only applies here when CapStreamTokens is set.
func (p *OpenAIProvider) CreateChatCompletionStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	model := requestModel(req, p.cfg.Model)
	maxTokens := requestMaxTokens(req, p.cfg)
	if p.cfg.CapStreamTokens {
		maxTokens = ai.ClampTokens(maxTokens, p.tokenCeiling(model))
	}

	params, err := buildChatParams(req.Messages, chatParamsOptions{
		model:       model,
		temperature: requestTemperature(req, p.cfg),
		maxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	slog.Debug("chat_stream_start", "provider", "openai", "model", model, "messages", len(req.Messages))
	return p.chat.stream(ctx, params)
}

// IsConfigured reports whether a key and model are set.
func (p *OpenAIProvider) IsConfigured() bool {
	return p.cfg.APIKey != "" && p.cfg.Model != ""
}

// Describe returns the catalog display name for the configured model.
func (p *OpenAIProvider) Describe() ai.ModelDescription {
	return ai.ModelDescription{
		DisplayName:   ai.DisplayName(ai.KindOpenAI, p.cfg.Model),
		ProviderLabel: "OpenAI",
	}
}

func (p *OpenAIProvider) tokenCeiling(model string) int {
	if entry, ok := ai.LookupModel(ai.KindOpenAI, model); ok && entry.MaxTokens < openAITokenCeiling {
		return entry.MaxTokens
	}
	return openAITokenCeiling
}

// Ensure interface compliance
var _ ai.Provider = (*OpenAIProvider)(nil)

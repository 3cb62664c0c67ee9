package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"codemate/pkg/ai"

	openai "github.com/openai/openai-go/v3"
)

const (
	localDefaultTimeout = 60 * time.Second
	localTokenCeiling   = 32768
)

// ollamaGenerateRequest is the native /api/generate body.
type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// ollamaGenerateResponse is one /api/generate object; streaming sends one per line.
type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	Error           string `json:"error,omitempty"`
}

// LocalProvider targets a self-hosted server. It speaks the OpenAI protocol
// first and switches to the Ollama generate protocol when that path is 404.
type LocalProvider struct {
	cfg        ai.ProviderConfig
	endpoint   string
	httpClient *http.Client
	chat       *chatClient
}

// NewLocalProvider creates a new local provider from config.
func NewLocalProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	httpClient := cfg.HTTPClientOr(localDefaultTimeout)

	slog.Debug("local_provider_ready", "model", cfg.Model, "endpoint", endpoint)
	return &LocalProvider{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: httpClient,
		chat:       newChatClient("local", endpoint+"/v1", cfg.APIKey, httpClient),
	}, nil
}

// CreateChatCompletion tries /v1/chat/completions, then /api/generate on 404.
func (p *LocalProvider) CreateChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.CompletionResult, error) {
	params, err := p.chatParams(req)
	if err != nil {
		return ai.CompletionResult{}, err
	}

	result, err := p.chat.complete(ctx, params)
	if err == nil || !isNotFound(err) {
		return result, err
	}

	slog.Info("local_provider_fallback", "path", "/api/generate", "stream", false)
	return p.generate(ctx, req)
}

// CreateChatCompletionStream makes its own fallback decision, independent of
// any earlier one-shot call.
func (p *LocalProvider) CreateChatCompletionStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	params, err := p.chatParams(req)
	if err != nil {
		return nil, err
	}

	stream, err := p.chat.stream(ctx, params)
	if err == nil || !isNotFound(err) {
		return stream, err
	}

	slog.Info("local_provider_fallback", "path", "/api/generate", "stream", true)
	return p.generateStream(ctx, req)
}

// IsConfigured reports whether an endpoint and model are set.
func (p *LocalProvider) IsConfigured() bool {
	return p.endpoint != "" && p.cfg.Model != ""
}

// Describe returns the configured model id.
func (p *LocalProvider) Describe() ai.ModelDescription {
	return ai.ModelDescription{
		DisplayName:   p.cfg.Model,
		ProviderLabel: "Local AI",
	}
}

func (p *LocalProvider) chatParams(req ai.ChatRequest) (openai.ChatCompletionNewParams, error) {
	if p.endpoint == "" {
		return openai.ChatCompletionNewParams{}, &ai.ProviderError{
			Kind:     ai.ErrorUnsupported,
			Provider: "local",
			Message:  "endpoint is required",
			Err:      ai.ErrNotConfigured,
		}
	}
	params, err := buildChatParams(req.Messages, chatParamsOptions{
		model:       requestModel(req, p.cfg.Model),
		temperature: requestTemperature(req, p.cfg),
		maxTokens:   p.maxTokens(req),
	})
	if err != nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("local: %w", err)
	}
	return params, nil
}

func (p *LocalProvider) maxTokens(req ai.ChatRequest) int {
	return ai.ClampTokens(requestMaxTokens(req, p.cfg), localTokenCeiling)
}

func (p *LocalProvider) generate(ctx context.Context, req ai.ChatRequest) (ai.CompletionResult, error) {
	resp, err := p.postGenerate(ctx, req, false)
	if err != nil {
		return ai.CompletionResult{}, err
	}
	defer resp.Body.Close()

	return collectGenerate(resp.Body)
}

// collectGenerate folds the /api/generate objects of a one-shot response,
// one per line, into a single result. Lines that do not decode are skipped
// and a done object ends the response. A body holding one unterminated
// object is accepted too.
func collectGenerate(body io.Reader) (ai.CompletionResult, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return ai.CompletionResult{}, ai.NewTransportError("local", err)
	}

	var (
		text    strings.Builder
		last    ollamaGenerateResponse
		model   string
		decoded bool
	)
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var payload ollamaGenerateResponse
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			slog.Debug("generate_line_skipped", "provider", "local", "error", err)
			continue
		}
		decoded = true
		text.WriteString(payload.Response)
		if payload.Model != "" {
			model = payload.Model
		}
		last = payload
		if payload.Done {
			break
		}
	}
	if !decoded {
		if err := json.Unmarshal(raw, &last); err != nil {
			return ai.CompletionResult{}, ai.NewMalformedError("local", fmt.Errorf("decode generate response: %w", err))
		}
		text.WriteString(last.Response)
		model = last.Model
	}

	finish := last.DoneReason
	if finish == "" {
		finish = "length"
		if last.Done {
			finish = "stop"
		}
	}
	result := ai.CompletionResult{
		Text:         text.String(),
		FinishReason: finish,
		Model:        model,
	}
	if last.PromptEvalCount > 0 || last.EvalCount > 0 {
		result.Usage = &ai.TokenUsage{
			PromptTokens:     last.PromptEvalCount,
			CompletionTokens: last.EvalCount,
			TotalTokens:      last.PromptEvalCount + last.EvalCount,
		}
	}
	return result, nil
}

func (p *LocalProvider) generateStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	resp, err := p.postGenerate(streamCtx, req, true)
	if err != nil {
		cancel()
		return nil, err
	}
	return ai.NewLineStream("local", resp.Body, cancel, decodeGenerateLine), nil
}

func (p *LocalProvider) postGenerate(ctx context.Context, req ai.ChatRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  requestModel(req, p.cfg.Model),
		Prompt: renderTranscript(req.Messages),
		Stream: stream,
		Options: ollamaOptions{
			Temperature: requestTemperature(req, p.cfg),
			NumPredict:  p.maxTokens(req),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("local: marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("local: create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, ai.NewTransportError("local", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := strings.TrimSpace(string(raw))
		var payload ollamaGenerateResponse
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			message = payload.Error
		}
		return nil, ai.NewStatusError("local", resp.StatusCode, message, nil)
	}
	return resp, nil
}

func decodeGenerateLine(line string) (string, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	var payload ollamaGenerateResponse
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		slog.Debug("chat_stream_line_skipped", "provider", "local", "error", err)
		return "", false
	}
	return payload.Response, payload.Done
}

// renderTranscript flattens messages into the plain prompt /api/generate expects.
func renderTranscript(messages []ai.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		prefix := "System: "
		switch msg.Role {
		case ai.RoleUser:
			prefix = "Human: "
		case ai.RoleAssistant:
			prefix = "Assistant: "
		}
		parts = append(parts, prefix+msg.Content)
	}
	return strings.Join(parts, "\n\n") + "\n\nAssistant: "
}

func isNotFound(err error) bool {
	var pe *ai.ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}

// Ensure interface compliance
var _ ai.Provider = (*LocalProvider)(nil)

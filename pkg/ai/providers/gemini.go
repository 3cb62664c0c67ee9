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
	"net/url"
	"strings"
	"time"

	"codemate/pkg/ai"

	"google.golang.org/genai"
)

const (
	geminiDefaultAPIURL  = "https://generativelanguage.googleapis.com"
	geminiDefaultTimeout = 30 * time.Second
	geminiTokenCeiling   = 8192
	geminiAPIVersion     = "v1beta"
)

// geminiRequest is the generateContent body. The API key travels in the
// query string, not in a header.
type geminiRequest struct {
	Contents         []*genai.Content        `json:"contents"`
	GenerationConfig *genai.GenerationConfig `json:"generationConfig,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiProvider talks to the Gemini REST API using genai wire types.
type GeminiProvider struct {
	cfg        ai.ProviderConfig
	baseURL    string
	httpClient *http.Client
}

// NewGeminiProvider creates a new Gemini provider from config.
func NewGeminiProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	baseURL := strings.TrimRight(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = geminiDefaultAPIURL
	}

	slog.Debug("gemini_provider_ready", "model", cfg.Model, "api_url", baseURL)
	return &GeminiProvider{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: cfg.HTTPClientOr(geminiDefaultTimeout),
	}, nil
}

// CreateChatCompletion sends a non-streaming generateContent request.
func (p *GeminiProvider) CreateChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.CompletionResult, error) {
	model, body, err := p.buildRequest(req)
	if err != nil {
		return ai.CompletionResult{}, fmt.Errorf("gemini: %w", err)
	}

	slog.Debug("chat_completion_start", "provider", "gemini", "model", model, "messages", len(req.Messages))
	resp, err := p.post(ctx, p.endpoint(model, "generateContent", false), body)
	if err != nil {
		return ai.CompletionResult{}, err
	}
	defer resp.Body.Close()

	var payload genai.GenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ai.CompletionResult{}, ai.NewMalformedError("gemini", fmt.Errorf("decode response: %w", err))
	}

	result := ai.CompletionResult{
		Text:  extractVisibleText(&payload),
		Model: model,
	}
	if len(payload.Candidates) > 0 && payload.Candidates[0] != nil {
		result.FinishReason = string(payload.Candidates[0].FinishReason)
	}
	if usage := payload.UsageMetadata; usage != nil {
		result.Usage = &ai.TokenUsage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}
	return result, nil
}

// CreateChatCompletionStream sends a streamGenerateContent request framed as SSE.
func (p *GeminiProvider) CreateChatCompletionStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	model, body, err := p.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	slog.Debug("chat_stream_start", "provider", "gemini", "model", model, "messages", len(req.Messages))
	streamCtx, cancel := context.WithCancel(ctx)
	resp, err := p.post(streamCtx, p.endpoint(model, "streamGenerateContent", true), body)
	if err != nil {
		cancel()
		return nil, err
	}
	return ai.NewLineStream("gemini", resp.Body, cancel, decodeGeminiEvent), nil
}

// IsConfigured reports whether a key and model are set.
func (p *GeminiProvider) IsConfigured() bool {
	return p.cfg.APIKey != "" && p.cfg.Model != ""
}

// Describe returns the catalog display name for the configured model.
func (p *GeminiProvider) Describe() ai.ModelDescription {
	return ai.ModelDescription{
		DisplayName:   ai.DisplayName(ai.KindGemini, p.cfg.Model),
		ProviderLabel: "Google Gemini",
	}
}

func (p *GeminiProvider) buildRequest(req ai.ChatRequest) (string, []byte, error) {
	model := requestModel(req, p.cfg.Model)
	if model == "" {
		return "", nil, fmt.Errorf("model is required")
	}

	contents, err := buildGeminiContents(req.Messages)
	if err != nil {
		return "", nil, err
	}

	maxTokens := ai.ClampTokens(requestMaxTokens(req, p.cfg), geminiTokenCeiling)
	body, err := json.Marshal(geminiRequest{
		Contents: contents,
		GenerationConfig: &genai.GenerationConfig{
			Temperature:     genai.Ptr(float32(requestTemperature(req, p.cfg))),
			MaxOutputTokens: int32(maxTokens),
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal request: %w", err)
	}
	return model, body, nil
}

func (p *GeminiProvider) endpoint(model, method string, sse bool) string {
	query := url.Values{}
	if sse {
		query.Set("alt", "sse")
	}
	query.Set("key", p.cfg.APIKey)
	return fmt.Sprintf("%s/%s/models/%s:%s?%s", p.baseURL, geminiAPIVersion, url.PathEscape(model), method, query.Encode())
}

func (p *GeminiProvider) post(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, ai.NewTransportError("gemini", redactKey(err))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errBody geminiErrorBody
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error.Message != "" {
			message = errBody.Error.Message
		}
		return nil, ai.NewStatusError("gemini", resp.StatusCode, message, nil)
	}
	return resp, nil
}

// buildGeminiContents maps messages to role-tagged content parts. System text
// is not its own turn; it is prepended to the next user turn.
func buildGeminiContents(messages []ai.Message) ([]*genai.Content, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var system []string
	for _, msg := range messages {
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case ai.RoleSystem:
			if content := strings.TrimSpace(msg.Content); content != "" {
				system = append(system, content)
			}
		case ai.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			text := msg.Content
			if len(system) > 0 {
				text = strings.Join(system, "\n\n") + "\n\n" + text
				system = nil
			}
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: text}},
			})
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("at least one user or assistant message is required")
	}
	return contents, nil
}

// decodeGeminiEvent ends the stream when an event carries a finishReason.
func decodeGeminiEvent(line string) (string, bool) {
	data, ok := ai.SSEData(line)
	if !ok {
		return "", false
	}

	var resp genai.GenerateContentResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		slog.Debug("chat_stream_line_skipped", "provider", "gemini", "error", err)
		return "", false
	}

	done := len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].FinishReason != ""
	return extractVisibleText(&resp), done
}

func extractVisibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// redactKey strips the request URL (which carries the key) from transport errors.
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: "gemini", Err: urlErr.Err}
	}
	return err
}

// Ensure interface compliance
var _ ai.Provider = (*GeminiProvider)(nil)

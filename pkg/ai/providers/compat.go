package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"codemate/pkg/ai"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// chatClient speaks the OpenAI chat-completions protocol. It backs both the
// hosted OpenAI provider and the local provider's primary path.
type chatClient struct {
	label  string
	client openai.Client
}

func newChatClient(label, baseURL, apiKey string, httpClient *http.Client) *chatClient {
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		// No key configured: send no Authorization header at all.
		opts = append(opts, option.WithHeaderDel("authorization"))
	}

	return &chatClient{
		label:  label,
		client: openai.NewClient(opts...),
	}
}

func (c *chatClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (ai.CompletionResult, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ai.CompletionResult{}, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return ai.CompletionResult{}, ai.NewMalformedError(c.label, errors.New("response has no choices"))
	}

	result := ai.CompletionResult{
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Model:        resp.Model,
	}
	if resp.Usage.TotalTokens > 0 {
		result.Usage = &ai.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}
	return result, nil
}

// stream posts params with stream=true and frames the raw SSE body itself so
// undecodable events are skipped instead of ending the stream.
func (c *chatClient) stream(ctx context.Context, params openai.ChatCompletionNewParams) (ai.ChatStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	var raw *http.Response
	err := c.client.Post(streamCtx, "chat/completions", params, &raw, option.WithJSONSet("stream", true))
	if err != nil {
		cancel()
		return nil, c.wrapError(err)
	}
	if raw == nil || raw.Body == nil {
		cancel()
		return nil, ai.NewMalformedError(c.label, errors.New("empty streaming response"))
	}

	slog.Debug("chat_stream_open", "provider", c.label, "status", raw.StatusCode)
	return ai.NewLineStream(c.label, raw.Body, cancel, decodeChatChunk), nil
}

func (c *chatClient) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if strings.TrimSpace(message) == "" {
			message = upstreamText(apiErr)
		}
		return ai.NewStatusError(c.label, apiErr.StatusCode, message, err)
	}
	return ai.NewTransportError(c.label, err)
}

// upstreamText recovers the error text of a response the SDK could not map
// to {"error":{"message":...}}: a string-valued "error" field, a bare JSON
// string, or the raw body.
func upstreamText(apiErr *openai.Error) string {
	raw := strings.TrimSpace(apiErr.RawJSON())
	if raw == "" && apiErr.Response != nil && apiErr.Response.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(apiErr.Response.Body, 4096))
		raw = strings.TrimSpace(string(body))
	}
	return errorText(raw)
}

func errorText(raw string) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal([]byte(raw), &body) == nil {
		if len(body.Error) > 0 {
			var text string
			if json.Unmarshal(body.Error, &text) == nil && text != "" {
				return text
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}
	var bare string
	if json.Unmarshal([]byte(raw), &bare) == nil {
		return bare
	}
	return raw
}

func decodeChatChunk(line string) (string, bool) {
	data, ok := ai.SSEData(line)
	if !ok {
		return "", false
	}
	if strings.TrimSpace(data) == "[DONE]" {
		return "", true
	}

	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		slog.Debug("chat_stream_line_skipped", "error", err)
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, false
}

type chatParamsOptions struct {
	model       string
	temperature float64
	maxTokens   int
}

func buildChatParams(messages []ai.Message, opts chatParamsOptions) (openai.ChatCompletionNewParams, error) {
	if strings.TrimSpace(opts.model) == "" {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("model is required")
	}
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("messages are required")
	}

	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		param, err := toChatMessageParam(msg)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params = append(params, param)
	}

	out := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(opts.model),
		Messages:    params,
		Temperature: openai.Float(opts.temperature),
	}
	if opts.maxTokens > 0 {
		out.MaxTokens = openai.Int(int64(opts.maxTokens))
	}
	return out, nil
}

func toChatMessageParam(msg ai.Message) (openai.ChatCompletionMessageParamUnion, error) {
	role := strings.ToLower(strings.TrimSpace(msg.Role))
	switch role {
	case ai.RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case ai.RoleUser:
		return openai.UserMessage(msg.Content), nil
	case ai.RoleAssistant:
		return openai.AssistantMessage(msg.Content), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role: %s", msg.Role)
	}
}

func requestModel(req ai.ChatRequest, fallback string) string {
	if model := strings.TrimSpace(req.Model); model != "" {
		return model
	}
	return fallback
}

func requestTemperature(req ai.ChatRequest, cfg ai.ProviderConfig) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return cfg.EffectiveTemperature()
}

func requestMaxTokens(req ai.ChatRequest, cfg ai.ProviderConfig) int {
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		return *req.MaxTokens
	}
	return cfg.EffectiveMaxTokens()
}

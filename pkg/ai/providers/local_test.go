package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"codemate/pkg/ai"
)

type requestLog struct {
	mu    sync.Mutex
	paths []string
	auth  []string
}

func (l *requestLog) record(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, r.URL.Path)
	l.auth = append(l.auth, r.Header.Get("Authorization"))
}

func (l *requestLog) snapshot() ([]string, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...), append([]string(nil), l.auth...)
}

func newLocalTestProvider(t *testing.T, url, apiKey string) ai.Provider {
	t.Helper()
	provider, err := NewLocalProvider(ai.ProviderConfig{
		Kind:     ai.KindLocal,
		APIKey:   apiKey,
		Endpoint: url,
		Model:    "codellama",
	})
	if err != nil {
		t.Fatalf("NewLocalProvider() error: %v", err)
	}
	return provider
}

func TestLocalProvider_OpenAICompatiblePath(t *testing.T) {
	log := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.record(r)
		writeJSON(t, w, http.StatusOK, chatCompletionJSON("compat answer"))
	}))
	defer server.Close()

	result, err := newLocalTestProvider(t, server.URL, "EMPTY").CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: userMessages("hi"),
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error: %v", err)
	}
	if result.Text != "compat answer" {
		t.Fatalf("Expected compat answer, got %q", result.Text)
	}

	paths, auth := log.snapshot()
	if len(paths) != 1 || paths[0] != "/v1/chat/completions" {
		t.Fatalf("Expected single compat request, got %v", paths)
	}
	if auth[0] != "Bearer EMPTY" {
		t.Fatalf("Expected bearer header, got %q", auth[0])
	}
}

func TestLocalProvider_FallsBackOn404(t *testing.T) {
	log := &requestLog{}
	var generateBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.record(r)
		switch r.URL.Path {
		case "/v1/chat/completions":
			http.NotFound(w, r)
		case "/api/generate":
			generateBody = decodeBody(t, r)
			writeJSON(t, w, http.StatusOK, map[string]any{
				"model":             "codellama",
				"response":          "from ollama",
				"done":              true,
				"prompt_eval_count": 10,
				"eval_count":        4,
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	result, err := newLocalTestProvider(t, server.URL, "").CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "sys"},
			{Role: ai.RoleUser, Content: "question"},
			{Role: ai.RoleAssistant, Content: "earlier"},
		},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error: %v", err)
	}
	if result.Text != "from ollama" || result.FinishReason != "stop" {
		t.Fatalf("Unexpected fallback result %+v", result)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 14 {
		t.Fatalf("Expected usage total 14, got %+v", result.Usage)
	}

	paths, auth := log.snapshot()
	if len(paths) != 2 || paths[1] != "/api/generate" {
		t.Fatalf("Expected compat then generate, got %v", paths)
	}
	for i, header := range auth {
		if header != "" {
			t.Fatalf("request %d: expected no Authorization header without key, got %q", i, header)
		}
	}

	wantPrompt := "System: sys\n\nHuman: question\n\nAssistant: earlier\n\nAssistant: "
	if generateBody["prompt"] != wantPrompt {
		t.Fatalf("Expected prompt %q, got %q", wantPrompt, generateBody["prompt"])
	}
	if generateBody["stream"] != false {
		t.Fatalf("Expected stream=false, got %v", generateBody["stream"])
	}
	options, _ := generateBody["options"].(map[string]any)
	if options["num_predict"] != float64(2000) || options["temperature"] != 0.7 {
		t.Fatalf("Unexpected options %v", options)
	}
}

func TestLocalProvider_StreamFallsBackOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			http.NotFound(w, r)
		case "/api/generate":
			body := decodeBody(t, r)
			if body["stream"] != true {
				t.Errorf("Expected stream=true, got %v", body["stream"])
			}
			w.Header().Set("Content-Type", "application/x-ndjson")
			fmt.Fprintln(w, `{"response":"Hel","done":false}`)
			fmt.Fprintln(w, `not json`)
			fmt.Fprintln(w, ``)
			fmt.Fprintln(w, `{"response":"lo","done":false}`)
			fmt.Fprintln(w, `{"response":"","done":true,"done_reason":"stop"}`)
		}
	}))
	defer server.Close()

	stream, err := newLocalTestProvider(t, server.URL, "").CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: userMessages("hi"),
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}

	chunks := collectChunks(t, stream)
	if joinDeltas(chunks) != "Hello" {
		t.Fatalf("Expected 'Hello', got %q", joinDeltas(chunks))
	}
	if len(chunks) != 3 || !chunks[2].IsFinal {
		t.Fatalf("Expected two deltas and a final chunk, got %#v", chunks)
	}
}

func TestLocalProvider_StreamCompatPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sseChunk("a", "")))
		_, _ = w.Write([]byte(sseChunk("b", "stop")))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	stream, err := newLocalTestProvider(t, server.URL, "EMPTY").CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: userMessages("hi"),
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	if got := joinDeltas(collectChunks(t, stream)); got != "ab" {
		t.Fatalf("Expected 'ab', got %q", got)
	}
}

func TestLocalProvider_NonNotFoundIsSurfaced(t *testing.T) {
	log := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.record(r)
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "model crashed"},
		})
	}))
	defer server.Close()

	_, err := newLocalTestProvider(t, server.URL, "").CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: userMessages("hi"),
	})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	var pe *ai.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Expected 500 provider error, got %v", err)
	}

	paths, _ := log.snapshot()
	if len(paths) != 1 {
		t.Fatalf("Expected no fallback request, got %v", paths)
	}
}

func TestLocalProvider_StatusErrorKeepsUpstreamText(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"plain text", "text/plain", "model is not loaded", "Request failed: model is not loaded"},
		{"string error field", "application/json", `{"error":"model 'codellama' not found"}`, "Request failed: model 'codellama' not found"},
		{"structured error", "application/json", `{"error":{"message":"model crashed"}}`, "Request failed: model crashed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := newLocalTestProvider(t, server.URL, "").CreateChatCompletion(context.Background(), ai.ChatRequest{
				Messages: userMessages("hi"),
			})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if got := ai.UserMessage(err); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestErrorText(t *testing.T) {
	tests := map[string]string{
		`{"error":"rate limit"}`:        "rate limit",
		`"bare string"`:                 "bare string",
		`{"error":{"message":"quota"}}`: "quota",
		`{"message":"busy"}`:            "busy",
		"plain body":                    "plain body",
		`{"detail":"x"}`:                `{"detail":"x"}`,
	}
	for raw, want := range tests {
		if got := errorText(raw); got != want {
			t.Errorf("errorText(%q): expected %q, got %q", raw, want, got)
		}
	}
}

func TestLocalProvider_FallbackJoinsNDJSONLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"codellama","response":"Hello","done":false}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"model":"codellama","response":" world","done":false}`)
		fmt.Fprintln(w, `{"model":"codellama","response":"","done":true,"done_reason":"stop","prompt_eval_count":3,"eval_count":2}`)
	}))
	defer server.Close()

	result, err := newLocalTestProvider(t, server.URL, "").CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: userMessages("hi"),
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error: %v", err)
	}
	if result.Text != "Hello world" {
		t.Errorf("Expected joined text %q, got %q", "Hello world", result.Text)
	}
	if result.FinishReason != "stop" {
		t.Errorf("Expected finish reason stop, got %q", result.FinishReason)
	}
	if result.Model != "codellama" {
		t.Errorf("Expected model codellama, got %q", result.Model)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 5 {
		t.Errorf("Expected usage from the final object, got %+v", result.Usage)
	}
}

func TestCollectGenerate_Malformed(t *testing.T) {
	_, err := collectGenerate(strings.NewReader("<html>oops</html>"))
	if ai.KindOf(err) != ai.ErrorMalformed {
		t.Fatalf("Expected malformed error, got %v", err)
	}
}

func TestLocalProvider_FallbackFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		writeJSON(t, w, http.StatusNotFound, map[string]any{"error": "model 'codellama' not found"})
	}))
	defer server.Close()

	_, err := newLocalTestProvider(t, server.URL, "").CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: userMessages("hi"),
	})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if got := ai.UserMessage(err); got != "Request failed: model 'codellama' not found" {
		t.Fatalf("Unexpected user message %q", got)
	}
}

func TestLocalProvider_IsConfigured(t *testing.T) {
	if newLocalTestProvider(t, "", "").IsConfigured() {
		t.Fatal("Expected provider without endpoint to be unconfigured")
	}
	provider := newLocalTestProvider(t, "http://localhost:11434", "")
	if !provider.IsConfigured() {
		t.Fatal("Expected provider with endpoint and model to be configured")
	}
	if desc := provider.Describe(); desc.DisplayName != "codellama" || desc.ProviderLabel != "Local AI" {
		t.Fatalf("Unexpected description %+v", desc)
	}

	_, err := newLocalTestProvider(t, "", "").CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: userMessages("hi"),
	})
	if ai.KindOf(err) != ai.ErrorUnsupported {
		t.Fatalf("Expected unsupported error without endpoint, got %v", err)
	}
}

func TestRenderTranscript(t *testing.T) {
	got := renderTranscript([]ai.Message{{Role: ai.RoleUser, Content: "x"}})
	if got != "Human: x\n\nAssistant: " {
		t.Fatalf("Unexpected transcript %q", got)
	}
}

func TestNewRegistry_RegistersAllKinds(t *testing.T) {
	r := NewRegistry()
	for _, kind := range ai.SupportedKinds() {
		if !r.IsRegistered(kind) {
			t.Fatalf("Expected %q to be registered", kind)
		}
	}
}

package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"codemate/pkg/ai"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripperFunc) *http.Client {
	return &http.Client{Transport: rt}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		t.Errorf("failed to decode request body: %v", err)
	}
	return payload
}

func chatCompletionJSON(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     5,
			"completion_tokens": 3,
			"total_tokens":      8,
		},
	}
}

func sseChunk(content, finish string) string {
	choice := map[string]any{
		"index": 0,
		"delta": map[string]any{"content": content},
	}
	if finish != "" {
		choice["finish_reason"] = finish
	}
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "test-model",
		"choices": []any{choice},
	})
	return fmt.Sprintf("data: %s\n\n", data)
}

func collectChunks(t *testing.T, stream ai.ChatStream) []ai.StreamChunk {
	t.Helper()
	defer stream.Close()

	var chunks []ai.StreamChunk
	for stream.Next() {
		chunks = append(chunks, stream.Chunk())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	return chunks
}

func joinDeltas(chunks []ai.StreamChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Delta)
	}
	return b.String()
}

func userMessages(content string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: "You are an AI coding assistant."},
		{Role: ai.RoleUser, Content: content},
	}
}

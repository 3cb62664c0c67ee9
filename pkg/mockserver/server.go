// Package mockserver is a stand-in OpenAI-compatible endpoint for exercising
// the local provider without a real model.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPort is where codemate-mock listens unless told otherwise.
	DefaultPort = 1998
	// APIKey is the only bearer token the server accepts.
	APIKey = "EMPTY"
	// Model is the single model the server advertises.
	Model = "qwen3-0.6b"
	// DefaultWordDelay spaces out streamed words.
	DefaultWordDelay = 50 * time.Millisecond
)

// Server routes the mock endpoints.
type Server struct {
	Router    *http.ServeMux
	wordDelay time.Duration
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithWordDelay sets the pause between streamed words. Zero disables it.
func WithWordDelay(d time.Duration) Option {
	return func(s *Server) { s.wordDelay = d }
}

// New creates a Server with its routes registered.
func New(opts ...Option) *Server {
	s := &Server{
		Router:    http.NewServeMux(),
		wordDelay: DefaultWordDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Router.HandleFunc("GET /health", s.handleHealth)
	s.Router.HandleFunc("GET /v1/models", s.handleModels)
	s.Router.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	return s
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock_server_listening", "addr", addr, "model", Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mock server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("mock_server_shutdown")
		return srv.Shutdown(shutdownCtx)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type delta struct {
	Content string `json:"content,omitempty"`
}

type chunkChoice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type completionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type completionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   usage              `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("mock_write_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	var body apiError
	body.Error.Message = message
	body.Error.Type = "invalid_request_error"
	writeJSON(w, status, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"model":     Model,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{{
			"id":       Model,
			"object":   "model",
			"created":  s.now().Unix(),
			"owned_by": "local-test",
		}},
	})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+APIKey {
		writeError(w, http.StatusUnauthorized, "Invalid API key")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	if req.Model == "" {
		req.Model = Model
	}

	last := req.Messages[len(req.Messages)-1].Content
	answer := Answer(last)
	id := "chatcmpl-" + uuid.NewString()
	slog.Info("mock_chat_completion", "id", id, "stream", req.Stream, "messages", len(req.Messages))

	if !req.Stream {
		writeJSON(w, http.StatusOK, completion{
			ID:      id,
			Object:  "chat.completion",
			Created: s.now().Unix(),
			Model:   req.Model,
			Choices: []completionChoice{{
				Message:      chatMessage{Role: "assistant", Content: answer},
				FinishReason: "stop",
			}},
			Usage: usage{
				PromptTokens:     len(last) / 4,
				CompletionTokens: len(answer) / 4,
				TotalTokens:      (len(last) + len(answer)) / 4,
			},
		})
		return
	}

	s.stream(r.Context(), w, id, req.Model, answer)
}

// stream writes answer word by word as SSE chunks, then a stop chunk and
// the [DONE] sentinel.
func (s *Server) stream(ctx context.Context, w http.ResponseWriter, id, model, answer string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	send := func(chunk completionChunk) bool {
		data, err := json.Marshal(chunk)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}
	chunk := func(content string, finish *string) completionChunk {
		return completionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: s.now().Unix(),
			Model:   model,
			Choices: []chunkChoice{{Delta: delta{Content: content}, FinishReason: finish}},
		}
	}

	for _, word := range strings.Split(answer, " ") {
		if !send(chunk(word+" ", nil)) {
			return
		}
		if s.wordDelay > 0 {
			select {
			case <-time.After(s.wordDelay):
			case <-ctx.Done():
				return
			}
		}
	}

	stop := "stop"
	if !send(chunk("", &stop)) {
		return
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

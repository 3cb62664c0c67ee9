package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"codemate/pkg/ai"
	"codemate/pkg/buffer"
	"codemate/pkg/editor"
	"codemate/pkg/logging"
	"codemate/pkg/prompt"
)

// MaxChatHistoryMessages caps how much history is sent with each turn.
const MaxChatHistoryMessages = 10

// ProviderSource yields the live provider or the reason there is none.
type ProviderSource interface {
	Available() (ai.Provider, error)
}

// StreamEvent is one update of a chat response.
type StreamEvent struct {
	Delta string
	Done  bool
	// Truncated is set on the last event when the stream ended without a
	// final chunk.
	Truncated bool
	Err       error
}

// ChatSession is a conversation with the current provider. Only one response
// streams at a time; a second Send waits for the first to finish.
type ChatSession struct {
	source  ProviderSource
	dir     string
	history *buffer.Ring[ai.Message]

	streaming sync.Mutex
	now       func() time.Time
}

// NewChatSession creates a session. dir is the workspace used to resolve
// #file: and #localChanges references.
func NewChatSession(source ProviderSource, dir string) *ChatSession {
	return &ChatSession{
		source:  source,
		dir:     dir,
		history: buffer.New[ai.Message](buffer.DefaultCapacity),
		now:     time.Now,
	}
}

// Send appends text as a user message and starts streaming the answer. The
// returned channel is closed after a Done event. doc may be nil.
func (s *ChatSession) Send(ctx context.Context, text string, doc editor.Document) (<-chan StreamEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoInput
	}

	s.streaming.Lock()
	s.history.Push(ai.Message{
		Role:      ai.RoleUser,
		Content:   expandReferences(text, doc, s.dir),
		Timestamp: s.now(),
	})

	provider, err := s.source.Available()
	if err != nil {
		s.recordError(err)
		s.streaming.Unlock()
		return nil, err
	}

	history := s.history.LastN(MaxChatHistoryMessages)
	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: prompt.SystemPrompt})
	messages = append(messages, history...)

	logging.Trace("chat_stream_prompt", "message_count", len(messages), "messages_full", dumpMessages(messages))
	slog.Info("chat_stream_start",
		"provider", provider.Describe().ProviderLabel,
		"message_count", len(messages),
		"history_messages", s.history.Len(),
	)

	stream, err := provider.CreateChatCompletionStream(ctx, ai.ChatRequest{Messages: messages})
	if err != nil {
		slog.Error("chat_stream_create_error", "error", err)
		s.recordError(err)
		s.streaming.Unlock()
		return nil, err
	}

	s.history.Push(ai.Message{Role: ai.RoleAssistant, Timestamp: s.now()})

	ch := make(chan StreamEvent, 8)
	go func() {
		defer s.streaming.Unlock()
		defer close(ch)
		defer stream.Close()

		emit := func(ev StreamEvent) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}

		final := false
		for stream.Next() {
			chunk := stream.Chunk()
			if chunk.Delta != "" {
				s.history.UpdateLast(func(m *ai.Message) { m.Content += chunk.Delta })
				emit(StreamEvent{Delta: chunk.Delta})
			}
			if chunk.IsFinal {
				final = true
				break
			}
		}

		if err := stream.Err(); err != nil {
			slog.Error("chat_stream_error", "error", err)
			s.recordError(err)
			emit(StreamEvent{Err: err, Done: true})
			return
		}
		if !final {
			slog.Warn("chat_stream_truncated")
		}
		slog.Info("chat_stream_done")
		emit(StreamEvent{Done: true, Truncated: !final})
	}()

	return ch, nil
}

// Ask sends text and waits for the complete answer.
func (s *ChatSession) Ask(ctx context.Context, text string, doc editor.Document) (string, error) {
	events, err := s.Send(ctx, text, doc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for ev := range events {
		if ev.Err != nil {
			return b.String(), ev.Err
		}
		b.WriteString(ev.Delta)
	}
	return b.String(), nil
}

func (s *ChatSession) recordError(err error) {
	s.history.Push(ai.Message{
		Role:      ai.RoleAssistant,
		Content:   "Error: " + ai.UserMessage(err),
		Timestamp: s.now(),
	})
}

// History returns the retained messages, oldest first.
func (s *ChatSession) History() []ai.Message {
	return s.history.All()
}

// Clear forgets the conversation.
func (s *ChatSession) Clear() {
	s.streaming.Lock()
	defer s.streaming.Unlock()
	s.history.Clear()
}

// Export renders the conversation as plain text, one block per message.
func (s *ChatSession) Export() string {
	msgs := s.history.All()
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s",
			m.Timestamp.Format(time.DateTime), strings.ToUpper(m.Role), m.Content))
	}
	return strings.Join(parts, "\n\n")
}

func dumpMessages(msgs []ai.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		fmt.Fprintf(&b, "[%d] %s:\n%s\n", i, m.Role, m.Content)
	}
	return b.String()
}

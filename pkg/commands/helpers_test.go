package commands

import (
	"context"
	"errors"
	"sync"

	"codemate/pkg/ai"
	"codemate/pkg/prompt"
)

type fakeProvider struct {
	mu       sync.Mutex
	answer   string
	err      error
	chunks   []ai.StreamChunk
	midErr   error
	requests []ai.ChatRequest
}

func (p *fakeProvider) record(req ai.ChatRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
}

func (p *fakeProvider) lastRequest() ai.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return ai.ChatRequest{}
	}
	return p.requests[len(p.requests)-1]
}

func (p *fakeProvider) lastPrompt() string {
	msgs := p.lastRequest().Messages
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

func (p *fakeProvider) CreateChatCompletion(_ context.Context, req ai.ChatRequest) (ai.CompletionResult, error) {
	p.record(req)
	if p.err != nil {
		return ai.CompletionResult{}, p.err
	}
	return ai.CompletionResult{Text: p.answer}, nil
}

func (p *fakeProvider) CreateChatCompletionStream(_ context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	p.record(req)
	if p.err != nil {
		return nil, p.err
	}
	return &sliceStream{chunks: p.chunks, err: p.midErr}, nil
}

func (p *fakeProvider) IsConfigured() bool { return true }

func (p *fakeProvider) Describe() ai.ModelDescription {
	return ai.ModelDescription{DisplayName: "fake", ProviderLabel: "Fake"}
}

type sliceStream struct {
	chunks []ai.StreamChunk
	pos    int
	err    error
}

func (s *sliceStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Chunk() ai.StreamChunk { return s.chunks[s.pos-1] }

func (s *sliceStream) Err() error {
	if s.pos >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *sliceStream) Close() error { return nil }

type fakeAssistant struct {
	provider ai.Provider
	err      error
	probe    ai.ConnectionResult
}

func (a *fakeAssistant) Available() (ai.Provider, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.provider, nil
}

func (a *fakeAssistant) TestConnection(context.Context) ai.ConnectionResult {
	return a.probe
}

func notConfigured() error {
	return errors.Join(ai.ErrNotConfigured, errors.New("OpenAI is not configured: API key and model are required"))
}

func newTestDispatcher(assistant Assistant) *Dispatcher {
	lib, err := prompt.NewLibrary(nil)
	if err != nil {
		panic(err)
	}
	return NewDispatcher(assistant, lib)
}

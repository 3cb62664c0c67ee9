package inline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codemate/pkg/ai"
	"codemate/pkg/config"
	"codemate/pkg/editor"
	"codemate/pkg/prompt"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu       sync.Mutex
	answer   string
	err      error
	calls    atomic.Int32
	requests []ai.ChatRequest
	block    func(ctx context.Context) error
}

func (p *stubProvider) CreateChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.CompletionResult, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.requests = append(p.requests, req)
	block := p.block
	p.mu.Unlock()

	if block != nil {
		if err := block(ctx); err != nil {
			return ai.CompletionResult{}, err
		}
	}
	if p.err != nil {
		return ai.CompletionResult{}, p.err
	}
	return ai.CompletionResult{Text: p.answer}, nil
}

func (p *stubProvider) CreateChatCompletionStream(context.Context, ai.ChatRequest) (ai.ChatStream, error) {
	return nil, errors.New("not used")
}

func (p *stubProvider) IsConfigured() bool { return true }

func (p *stubProvider) Describe() ai.ModelDescription {
	return ai.ModelDescription{DisplayName: "stub-model", ProviderLabel: "Stub"}
}

type stubSource struct {
	provider ai.Provider
	err      error
}

func (s stubSource) Available() (ai.Provider, error) {
	return s.provider, s.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testSettings() Settings {
	return Settings{Enabled: true, Debounce: 500 * time.Millisecond}
}

func newTestEngine(t *testing.T, source ProviderSource, settings Settings) (*Engine, *fakeClock) {
	t.Helper()
	lib, err := prompt.NewLibrary(nil)
	require.NoError(t, err)
	clock := newFakeClock()
	e := NewEngine(source, lib, settings, WithClock(clock.Now))
	t.Cleanup(e.Close)
	return e, clock
}

func docWithLine(name, line string) (editor.Document, editor.Position) {
	text := "// header\n" + line + "\nnext();"
	return editor.NewTextDocument(name, "", text), editor.Position{Line: 1, Column: len([]rune(line))}
}

func TestProvide_ConstAssignmentScenario(t *testing.T) {
	provider := &stubProvider{answer: "42;\nconsole.log(x)"}
	e, _ := newTestEngine(t, stubSource{provider: provider}, testSettings())

	doc, pos := docWithLine("main.js", "const x = ")
	got, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos, Trigger: TriggerAutomatic})

	require.True(t, ok)
	assert.Equal(t, "42;", got.Text)
	assert.Equal(t, pos, got.Position)
	assert.Equal(t, "const x = ", got.FilterText)

	require.Len(t, provider.requests, 1)
	msgs := provider.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Equal(t, prompt.SystemPrompt, msgs[0].Content)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "File: main.js\nLanguage: javascript\n\n"))
	assert.Contains(t, msgs[1].Content, "const x = [CURSOR]\n")
}

func TestProvide_Debounce(t *testing.T) {
	provider := &stubProvider{answer: "1;"}
	e, clock := newTestEngine(t, stubSource{provider: provider}, testSettings())
	doc, pos := docWithLine("main.js", "let y = ")
	req := Request{Document: doc, Position: pos, Trigger: TriggerAutomatic}

	_, ok := e.Provide(context.Background(), req)
	require.True(t, ok)

	clock.Advance(499 * time.Millisecond)
	_, ok = e.Provide(context.Background(), req)
	assert.False(t, ok)
	assert.EqualValues(t, 1, provider.calls.Load())

	// The window is measured from the last accepted trigger, not the rejected one.
	clock.Advance(1 * time.Millisecond)
	_, ok = e.Provide(context.Background(), req)
	assert.True(t, ok)
	assert.EqualValues(t, 2, provider.calls.Load())

	clock.Advance(600 * time.Millisecond)
	_, ok = e.Provide(context.Background(), req)
	assert.True(t, ok)
	assert.EqualValues(t, 3, provider.calls.Load())
}

func TestProvide_LexicalGateSuppressesComments(t *testing.T) {
	provider := &stubProvider{answer: "anything"}
	e, clock := newTestEngine(t, stubSource{provider: provider}, testSettings())

	for _, line := range []string{"x = 1; // ", "value = foo # ", `msg = "hello, `} {
		clock.Advance(time.Second)
		doc, pos := docWithLine("main.js", line)
		_, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos, Trigger: TriggerExplicit})
		assert.False(t, ok, line)
	}
	assert.EqualValues(t, 0, provider.calls.Load())
}

func TestProvide_Gates(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		trigger  TriggerKind
		settings func(*Settings)
		source   ProviderSource
	}{
		{name: "disabled", line: "const a = ", settings: func(s *Settings) { s.Enabled = false }},
		{name: "excluded", line: "const a = ", settings: func(s *Settings) { s.Exclude = []string{"**/*.js"} }},
		{name: "too short", line: " a", trigger: TriggerExplicit},
		{name: "no heuristic cue", line: "return total"},
		{name: "no provider", line: "const a = ", source: stubSource{err: ai.ErrNotConfigured}},
		{name: "provider error", line: "const a = ", source: stubSource{provider: &stubProvider{err: errors.New("boom")}}},
		{name: "empty answer", line: "const a = ", source: stubSource{provider: &stubProvider{answer: "  \n"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			if tt.settings != nil {
				tt.settings(&settings)
			}
			source := tt.source
			if source == nil {
				source = stubSource{provider: &stubProvider{answer: "ok"}}
			}
			e, _ := newTestEngine(t, source, settings)
			doc, pos := docWithLine("/src/app/main.js", tt.line)

			_, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos, Trigger: tt.trigger})
			assert.False(t, ok)
		})
	}
}

func TestProvide_ExplicitBypassesHeuristic(t *testing.T) {
	provider := &stubProvider{answer: "Amount"}
	e, _ := newTestEngine(t, stubSource{provider: provider}, testSettings())
	doc, pos := docWithLine("main.js", "return total")

	got, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos, Trigger: TriggerExplicit})
	require.True(t, ok)
	assert.Equal(t, "Amount", got.Text)
}

func TestProvide_RecoversFromPanics(t *testing.T) {
	provider := &stubProvider{block: func(context.Context) error { panic("provider exploded") }}
	e, _ := newTestEngine(t, stubSource{provider: provider}, testSettings())
	doc, pos := docWithLine("main.js", "const a = ")

	assert.NotPanics(t, func() {
		_, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos})
		assert.False(t, ok)
	})
}

func TestProvide_CachesAnswers(t *testing.T) {
	provider := &stubProvider{answer: "42;"}
	settings := testSettings()
	settings.CacheTTL = 30 * time.Second
	e, clock := newTestEngine(t, stubSource{provider: provider}, settings)
	doc, pos := docWithLine("main.js", "const x = ")
	req := Request{Document: doc, Position: pos}

	for i := 0; i < 3; i++ {
		got, ok := e.Provide(context.Background(), req)
		require.True(t, ok)
		assert.Equal(t, "42;", got.Text)
		clock.Advance(time.Second)
	}
	assert.EqualValues(t, 1, provider.calls.Load())

	e.SetSettings(settings)
	clock.Advance(time.Second)
	_, ok := e.Provide(context.Background(), req)
	require.True(t, ok)
	assert.EqualValues(t, 2, provider.calls.Load())
}

func TestClose_StopsSweeperImmediately(t *testing.T) {
	lib, err := prompt.NewLibrary(nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			e := NewEngine(stubSource{provider: &stubProvider{}}, lib, testSettings())
			e.Close()
			e.Close()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestClose_KeepsEngineUsable(t *testing.T) {
	provider := &stubProvider{answer: "42;"}
	e, _ := newTestEngine(t, stubSource{provider: provider}, testSettings())
	e.Close()

	doc, pos := docWithLine("main.js", "const x = ")
	got, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos})
	require.True(t, ok)
	assert.Equal(t, "42;", got.Text)
}

func TestProvide_NewerRequestCancelsOlder(t *testing.T) {
	started := make(chan struct{})
	var first atomic.Bool
	provider := &stubProvider{answer: "done;"}
	provider.block = func(ctx context.Context) error {
		if first.CompareAndSwap(false, true) {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}
	e, clock := newTestEngine(t, stubSource{provider: provider}, testSettings())
	doc, pos := docWithLine("main.js", "const x = ")

	type outcome struct {
		s  Suggestion
		ok bool
	}
	results := make(chan outcome, 1)
	go func() {
		s, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos})
		results <- outcome{s, ok}
	}()

	<-started
	clock.Advance(time.Second)
	got, ok := e.Provide(context.Background(), Request{Document: doc, Position: pos})
	require.True(t, ok)
	assert.Equal(t, "done;", got.Text)

	select {
	case res := <-results:
		assert.False(t, res.ok, "superseded request should yield nothing")
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request was not cancelled")
	}
}

func TestCompletionPromptGolden(t *testing.T) {
	e, _ := newTestEngine(t, stubSource{}, testSettings())
	doc := editor.NewTextDocument("app.ts", "", "function add(a, b) {\n  return a + b;\n}\n\nconst x = \nconsole.log(x);")

	out, err := e.CompletionPrompt(doc, editor.Position{Line: 4, Column: 10})
	require.NoError(t, err)
	golden.RequireEqual(t, []byte(out))
}

func TestSettingsFrom(t *testing.T) {
	s := SettingsFrom(config.Default().Inline)
	assert.True(t, s.Enabled)
	assert.Equal(t, 500*time.Millisecond, s.Debounce)
	assert.Equal(t, 30*time.Second, s.CacheTTL)
}

package inline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"codemate/pkg/ai"
	"codemate/pkg/config"
	"codemate/pkg/editor"
	"codemate/pkg/logging"
	"codemate/pkg/prompt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jellydator/ttlcache/v3"
)

// TriggerKind says why the host asked for a suggestion.
type TriggerKind int

const (
	// TriggerAutomatic fires while typing and must pass the heuristic gate.
	TriggerAutomatic TriggerKind = iota
	// TriggerExplicit is a user-invoked request.
	TriggerExplicit
)

func (k TriggerKind) String() string {
	if k == TriggerExplicit {
		return "explicit"
	}
	return "automatic"
}

// Request is one inline suggestion request.
type Request struct {
	Document editor.Document
	Position editor.Position
	Trigger  TriggerKind
}

// Suggestion is text to insert at Position. FilterText is the typed prefix
// the host can match against.
type Suggestion struct {
	Text       string
	Position   editor.Position
	FilterText string
}

// ProviderSource yields the provider to use, or an error when none is usable.
// *ai.Selector satisfies it.
type ProviderSource interface {
	Available() (ai.Provider, error)
}

// Settings controls the engine. Zero Debounce and CacheTTL disable them.
type Settings struct {
	Enabled  bool
	Debounce time.Duration
	CacheTTL time.Duration
	Exclude  []string
}

// SettingsFrom converts the persisted inline section.
func SettingsFrom(cfg config.InlineConfig) Settings {
	return Settings{
		Enabled:  cfg.Enabled,
		Debounce: time.Duration(cfg.DebounceMillis) * time.Millisecond,
		CacheTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Exclude:  append([]string(nil), cfg.Exclude...),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type inflight struct {
	id     uint64
	cancel context.CancelFunc
}

// Engine decides whether to ask the model for an inline suggestion and turns
// the answer into a safe single-line insertion. Errors never escape Provide.
type Engine struct {
	source  ProviderSource
	prompts *prompt.Library
	now     func() time.Time

	mu          sync.Mutex
	settings    Settings
	lastTrigger time.Time
	nextID      uint64
	pending     map[string]inflight

	cache     *ttlcache.Cache[string, string]
	stop      chan struct{}
	swept     chan struct{}
	closeOnce sync.Once
}

// cacheSweepInterval is how often expired answers are evicted.
const cacheSweepInterval = 10 * time.Second

// NewEngine creates an engine. Call Close to stop the cache sweeper.
func NewEngine(source ProviderSource, prompts *prompt.Library, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		prompts:  prompts,
		now:      time.Now,
		settings: settings,
		pending:  make(map[string]inflight),
		cache: ttlcache.New[string, string](
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		stop:  make(chan struct{}),
		swept: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.sweep(cacheSweepInterval)
	return e
}

// sweep evicts expired answers until Close.
func (e *Engine) sweep(interval time.Duration) {
	defer close(e.swept)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.cache.DeleteExpired()
		}
	}
}

// Close stops the cache sweeper and waits for it to exit. It is safe to call
// more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.stop)
		<-e.swept
		e.cache.DeleteAll()
	})
}

// SetSettings swaps the engine settings. Cached answers are dropped.
func (e *Engine) SetSettings(s Settings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.cache.DeleteAll()
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Provide runs the gates in order and, if they all pass, asks the model for
// a completion. ok is false when there is nothing to offer.
func (e *Engine) Provide(ctx context.Context, req Request) (s Suggestion, ok bool) {
	if req.Document == nil {
		return Suggestion{}, false
	}
	settings := e.Settings()

	if !settings.Enabled || excluded(settings.Exclude, req.Document.FileName()) {
		return skip("disabled")
	}
	if !e.acceptTrigger(settings.Debounce) {
		return skip("debounce")
	}

	line, err := req.Document.LineAt(req.Position.Line)
	if err != nil {
		return skip("position")
	}
	if InCommentOrString(line.Text, req.Position.Column) {
		return skip("lexical")
	}

	prefix, suffix := editor.SplitAt(line.Text, req.Position.Column)
	if !HasMinimumContent(prefix) {
		return skip("min_content")
	}
	if req.Trigger == TriggerAutomatic && !ShouldTrigger(prefix) {
		return skip("heuristic")
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("inline_suggestion_failed", "panic", fmt.Sprint(r))
			s, ok = Suggestion{}, false
		}
	}()

	provider, err := e.source.Available()
	if err != nil || provider == nil {
		return skip("provider")
	}

	text, err := e.generate(ctx, provider, req, suffix)
	if err != nil {
		slog.Debug("inline_suggestion_failed", "file", req.Document.FileName(), "error", err)
		return Suggestion{}, false
	}

	cleaned, ok := Sanitize(text, prefix, suffix)
	if !ok {
		slog.Debug("inline_suggestion_rejected", "file", req.Document.FileName(), "raw_len", len(text))
		return Suggestion{}, false
	}

	slog.Debug("inline_suggestion_ready", "file", req.Document.FileName(), "trigger", req.Trigger.String(), "len", len(cleaned))
	return Suggestion{Text: cleaned, Position: req.Position, FilterText: prefix}, true
}

func skip(gate string) (Suggestion, bool) {
	slog.Debug("inline_suggestion_skipped", "gate", gate)
	return Suggestion{}, false
}

// acceptTrigger applies the debounce window, measured from the start of the
// previously accepted trigger.
func (e *Engine) acceptTrigger(window time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if window > 0 && !e.lastTrigger.IsZero() && now.Sub(e.lastTrigger) < window {
		return false
	}
	e.lastTrigger = now
	return true
}

func excluded(patterns []string, fileName string) bool {
	if len(patterns) == 0 || fileName == "" {
		return false
	}
	path := filepath.ToSlash(fileName)
	base := filepath.Base(fileName)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// CompletionPrompt renders the user message sent for an inline request.
func (e *Engine) CompletionPrompt(doc editor.Document, pos editor.Position) (string, error) {
	line, err := doc.LineAt(pos.Line)
	if err != nil {
		return "", err
	}
	_, suffix := editor.SplitAt(line.Text, pos.Column)
	return e.completionPrompt(doc, pos, suffix)
}

func (e *Engine) completionPrompt(doc editor.Document, pos editor.Position, suffix string) (string, error) {
	codeCtx := editor.Extract(doc, nil)
	body, err := e.prompts.Format(prompt.InlineCompletion, map[string]string{
		"language":   codeCtx.Language,
		"context":    Window(doc, pos),
		"lineSuffix": suffix,
	})
	if err != nil {
		return "", err
	}
	header := editor.CodeContext{FileName: codeCtx.FileName, Language: codeCtx.Language}
	return prompt.WithContext(body, header), nil
}

func (e *Engine) generate(ctx context.Context, provider ai.Provider, req Request, suffix string) (string, error) {
	userPrompt, err := e.completionPrompt(req.Document, req.Position, suffix)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	desc := provider.Describe()
	key := desc.ProviderLabel + "\x00" + desc.DisplayName + "\x00" + userPrompt
	if item := e.cache.Get(key); item != nil {
		slog.Debug("inline_cache_hit", "file", req.Document.FileName())
		return item.Value(), nil
	}

	ctx, done := e.track(ctx, req.Document.FileName())
	defer done()

	logging.Trace("inline_prompt", "prompt", userPrompt)
	result, err := provider.CreateChatCompletion(ctx, ai.ChatRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: prompt.SystemPrompt},
			{Role: ai.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}

	if ttl := e.Settings().CacheTTL; ttl > 0 {
		e.cache.Set(key, result.Text, ttl)
	}
	return result.Text, nil
}

// track cancels any in-flight generation for the same document and returns
// a context for the new one.
func (e *Engine) track(parent context.Context, doc string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	e.mu.Lock()
	if prev, ok := e.pending[doc]; ok {
		prev.cancel()
	}
	e.nextID++
	id := e.nextID
	e.pending[doc] = inflight{id: id, cancel: cancel}
	e.mu.Unlock()

	return ctx, func() {
		cancel()
		e.mu.Lock()
		if cur, ok := e.pending[doc]; ok && cur.id == id {
			delete(e.pending, doc)
		}
		e.mu.Unlock()
	}
}

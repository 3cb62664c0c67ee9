// Package app wires configuration, providers, prompts and the command
// surfaces into one object owned by the host process.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"codemate/pkg/ai"
	"codemate/pkg/ai/providers"
	"codemate/pkg/commands"
	"codemate/pkg/config"
	"codemate/pkg/inline"
	"codemate/pkg/logging"
	"codemate/pkg/prompt"
)

// App is the composition root. Components that depend on the prompt table
// are rebuilt when the prompts section changes; everything else reacts to
// config changes in place.
type App struct {
	Store    *config.Store
	Registry *ai.Registry
	Selector *ai.Selector

	mu         sync.RWMutex
	prompts    *prompt.Library
	engine     *inline.Engine
	dispatcher *commands.Dispatcher

	engineOpts  []inline.Option
	unsubscribe []func()
}

// Option configures New.
type Option func(*App)

// WithRegistry replaces the built-in provider registry.
func WithRegistry(r *ai.Registry) Option {
	return func(a *App) { a.Registry = r }
}

// WithEngineOptions passes options to every inline engine the app builds.
func WithEngineOptions(opts ...inline.Option) Option {
	return func(a *App) { a.engineOpts = append(a.engineOpts, opts...) }
}

// Load reads .env files next to the config, the config file itself and env
// overrides, initializes logging and builds the app.
func Load(configPath string, opts ...Option) (*App, error) {
	if err := config.LoadDotEnv(".env", filepath.Join(filepath.Dir(configPath), ".env")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg = config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := logging.Init(cfg); err != nil {
		// Logging falls back to io.Discard; the app still works.
		slog.Warn("logging_init_failed", "error", err)
	}

	a, err := New(config.NewStore(configPath, cfg), opts...)
	if err != nil {
		return nil, err
	}
	a.unsubscribe = append(a.unsubscribe, a.Store.OnChange(config.SectionLogging, func(cfg config.Config) {
		if _, err := logging.Init(cfg); err != nil {
			slog.Warn("logging_init_failed", "error", err)
		}
	}))
	return a, nil
}

// New builds the app around an existing store.
func New(store *config.Store, opts ...Option) (*App, error) {
	a := &App{Store: store}
	for _, opt := range opts {
		opt(a)
	}
	if a.Registry == nil {
		a.Registry = providers.NewRegistry()
	}
	a.Selector = ai.NewSelector(a.Registry, func() ai.ProviderConfig {
		return ai.ProviderConfigFrom(a.Store.Get())
	})

	cfg := store.Get()
	if err := a.rebuild(cfg); err != nil {
		return nil, err
	}
	if _, err := a.Selector.Ensure(); err != nil {
		// Kept silent until a command needs the provider.
		slog.Warn("provider_init_failed", "provider", cfg.LLMProvider, "error", err)
	}

	refresh := func(config.Config) {
		if _, err := a.Selector.Refresh(); err != nil {
			slog.Warn("provider_refresh_failed", "error", err)
		}
	}
	a.unsubscribe = append(a.unsubscribe,
		store.OnChange(config.SectionProvider, refresh),
		store.OnChange(config.SectionProviders, refresh),
		store.OnChange(config.SectionInline, func(cfg config.Config) {
			a.Engine().SetSettings(inline.SettingsFrom(cfg.Inline))
		}),
		store.OnChange(config.SectionPrompts, func(cfg config.Config) {
			if err := a.rebuild(cfg); err != nil {
				slog.Error("prompt_reload_failed", "error", err)
			}
		}),
	)
	return a, nil
}

// rebuild replaces the prompt table and everything built on it.
func (a *App) rebuild(cfg config.Config) error {
	lib, err := prompt.NewLibrary(cfg.Prompts)
	if err != nil {
		return err
	}
	engine := inline.NewEngine(a.Selector, lib, inline.SettingsFrom(cfg.Inline), a.engineOpts...)
	dispatcher := commands.NewDispatcher(a.Selector, lib)

	a.mu.Lock()
	old := a.engine
	a.prompts, a.engine, a.dispatcher = lib, engine, dispatcher
	a.mu.Unlock()

	if old != nil {
		old.Close()
	}
	slog.Debug("prompts_loaded", "templates", len(lib.All()))
	return nil
}

// Prompts returns the live template table.
func (a *App) Prompts() *prompt.Library {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prompts
}

// Engine returns the live inline suggestion engine.
func (a *App) Engine() *inline.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// Dispatcher returns the live command dispatcher.
func (a *App) Dispatcher() *commands.Dispatcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dispatcher
}

// NewChat starts a chat session rooted at dir.
func (a *App) NewChat(dir string) *commands.ChatSession {
	return commands.NewChatSession(a.Selector, dir)
}

// Close drops config subscriptions and stops the engine.
func (a *App) Close() {
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.unsubscribe = nil
	if e := a.Engine(); e != nil {
		e.Close()
	}
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ProbeMessage is sent by TestConnection.
const ProbeMessage = `Hello, this is a test message. Please respond with "Test successful".`

// ConfigSource returns the provider config to use on Create(nil) and Refresh.
type ConfigSource func() ProviderConfig

// Validation is the result of Selector.Validate.
type Validation struct {
	IsValid bool
	Error   string
}

// ConnectionResult is the result of Selector.TestConnection.
type ConnectionResult struct {
	Success bool
	Error   string
}

type selection struct {
	provider Provider
	config   ProviderConfig
}

// Selector owns the single live provider. Reads are lock-free; Create swaps
// the whole selection so in-flight requests keep their old client.
type Selector struct {
	registry *Registry
	source   ConfigSource

	mu      sync.Mutex
	current atomic.Pointer[selection]
}

// NewSelector creates a selector. No provider is built until first use.
func NewSelector(registry *Registry, source ConfigSource) *Selector {
	return &Selector{registry: registry, source: source}
}

// Current returns the live provider, or nil if none has been created.
func (s *Selector) Current() Provider {
	if sel := s.current.Load(); sel != nil {
		return sel.provider
	}
	return nil
}

// Config returns the config the live provider was built from.
func (s *Selector) Config() (ProviderConfig, bool) {
	if sel := s.current.Load(); sel != nil {
		return sel.config, true
	}
	return ProviderConfig{}, false
}

// Ensure returns the live provider, creating it from the config source on
// first use.
func (s *Selector) Ensure() (Provider, error) {
	if p := s.Current(); p != nil {
		return p, nil
	}
	return s.Create(nil)
}

// Create builds a provider for cfg (or the config source when cfg is nil)
// and replaces the live one. On failure the previous provider stays.
func (s *Selector) Create(cfg *ProviderConfig) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pc ProviderConfig
	if cfg != nil {
		pc = *cfg
	} else if s.source != nil {
		pc = s.source()
	}

	provider, err := s.registry.GetProvider(pc)
	if err != nil {
		slog.Warn("provider_create_failed", "kind", string(pc.Kind), "error", err)
		return nil, fmt.Errorf("create provider: %w", err)
	}

	s.current.Store(&selection{provider: provider, config: pc})
	desc := provider.Describe()
	slog.Info("provider_created",
		"kind", string(pc.Kind),
		"model", desc.DisplayName,
		"configured", provider.IsConfigured(),
	)
	return provider, nil
}

// Refresh re-reads the config source and rebuilds the provider.
func (s *Selector) Refresh() (Provider, error) {
	return s.Create(nil)
}

// Validate reports whether a usable provider is live.
func (s *Selector) Validate() Validation {
	sel := s.current.Load()
	if sel == nil {
		return Validation{Error: "No AI provider configured"}
	}
	if !sel.provider.IsConfigured() {
		return Validation{Error: notConfiguredHint(sel)}
	}
	return Validation{IsValid: true}
}

// TestConnection validates and then sends one probe completion. The
// response text is discarded.
func (s *Selector) TestConnection(ctx context.Context) ConnectionResult {
	if v := s.Validate(); !v.IsValid {
		return ConnectionResult{Error: v.Error}
	}

	provider := s.Current()
	_, err := provider.CreateChatCompletion(ctx, ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: ProbeMessage}},
	})
	if err != nil {
		slog.Warn("provider_test_connection_failed", "error", err)
		return ConnectionResult{Error: UserMessage(err)}
	}
	slog.Info("provider_test_connection_ok", "provider", provider.Describe().ProviderLabel)
	return ConnectionResult{Success: true}
}

// Available returns the live provider when it validates, else an error
// suitable for silent callers to drop.
func (s *Selector) Available() (Provider, error) {
	if _, err := s.Ensure(); err != nil {
		return nil, err
	}
	if v := s.Validate(); !v.IsValid {
		return nil, errors.Join(ErrNotConfigured, errors.New(v.Error))
	}
	return s.Current(), nil
}

func notConfiguredHint(sel *selection) string {
	label := sel.provider.Describe().ProviderLabel
	if sel.config.Kind == KindLocal {
		return fmt.Sprintf("%s is not configured: endpoint and model are required", label)
	}
	return fmt.Sprintf("%s is not configured: API key and model are required", label)
}

package ai

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"codemate/pkg/config"
)

// ProviderKind names a supported backend.
type ProviderKind string

const (
	KindOpenAI ProviderKind = config.ProviderOpenAI
	KindGemini ProviderKind = config.ProviderGemini
	KindLocal  ProviderKind = config.ProviderLocal
)

// Defaults injected when a config leaves the value unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// ProviderConfig is the immutable snapshot a provider is built from.
type ProviderConfig struct {
	Kind            ProviderKind
	APIKey          string
	Endpoint        string
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	Timeout         time.Duration
	// CapStreamTokens applies the one-shot token ceiling to streaming requests too.
	CapStreamTokens bool
	// HTTPClient overrides the transport; nil means a client with Timeout.
	HTTPClient *http.Client
}

// EffectiveTemperature returns the configured temperature or the default.
func (c ProviderConfig) EffectiveTemperature() float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return DefaultTemperature
}

// EffectiveMaxTokens returns the configured token budget or the default.
func (c ProviderConfig) EffectiveMaxTokens() int {
	if c.MaxOutputTokens > 0 {
		return c.MaxOutputTokens
	}
	return DefaultMaxTokens
}

// HTTPClientOr returns the override client or a new one with the given timeout.
func (c ProviderConfig) HTTPClientOr(defaultTimeout time.Duration) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// ProviderConfigFrom builds the snapshot for the selected provider.
func ProviderConfigFrom(cfg config.Config) ProviderConfig {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(cfg.LLMProvider)))
	settings, _ := cfg.Settings(string(kind))

	pc := ProviderConfig{
		Kind:            kind,
		APIKey:          strings.TrimSpace(settings.APIKey),
		Endpoint:        strings.TrimSpace(settings.APIURL),
		Model:           strings.TrimSpace(settings.Model),
		MaxOutputTokens: settings.MaxTokens,
		CapStreamTokens: settings.CapStreamTokens,
	}
	if settings.Temperature != nil {
		t := *settings.Temperature
		pc.Temperature = &t
	}
	if settings.APITimeoutSeconds > 0 {
		pc.Timeout = time.Duration(settings.APITimeoutSeconds) * time.Second
	}
	return pc
}

// ProviderFactory is a function that creates a Provider from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// ProviderInfo describes a registered provider.
type ProviderInfo struct {
	Kind             ProviderKind
	Name             string
	Description      string
	RequiresKey      bool
	RequiresEndpoint bool
}

// Registry manages provider factories and instantiation.
type Registry struct {
	mu        sync.RWMutex
	factories map[ProviderKind]ProviderFactory
	info      map[ProviderKind]ProviderInfo
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ProviderKind]ProviderFactory),
		info:      make(map[ProviderKind]ProviderInfo),
	}
}

// Register adds a provider factory to the registry.
func (r *Registry) Register(info ProviderInfo, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[info.Kind] = factory
	r.info[info.Kind] = info
}

// GetProvider creates a provider instance by kind.
func (r *Registry) GetProvider(cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, &ProviderError{
			Kind:    ErrorUnsupported,
			Message: fmt.Sprintf("unknown provider kind %q", cfg.Kind),
			Err:     ErrUnsupportedProviderKind,
		}
	}

	return factory(cfg)
}

// ListProviders returns information about all registered providers, sorted by kind.
func (r *Registry) ListProviders() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]ProviderInfo, 0, len(r.info))
	for _, info := range r.info {
		providers = append(providers, info)
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Kind < providers[j].Kind
	})
	return providers
}

// GetProviderInfo returns information about a specific provider.
func (r *Registry) GetProviderInfo(kind ProviderKind) (ProviderInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.info[kind]
	return info, ok
}

// IsRegistered checks if a provider kind is registered.
func (r *Registry) IsRegistered(kind ProviderKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// SupportedKinds returns the closed set of provider kinds.
func SupportedKinds() []ProviderKind {
	return []ProviderKind{KindOpenAI, KindGemini, KindLocal}
}

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// Provider kinds accepted in llm_provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// Config represents the application configuration
type Config struct {
	LLMProvider string            `json:"llm_provider" toml:"llm_provider"`
	Providers   ProvidersConfig   `json:"providers" toml:"providers"`
	Inline      InlineConfig      `json:"inline" toml:"inline"`
	Prompts     map[string]string `json:"prompts,omitempty" toml:"prompts,omitempty"`
	LogLevel    string            `json:"log_level" toml:"log_level"`
	LogFormat   string            `json:"log_format" toml:"log_format"`
	LogFile     string            `json:"log_file" toml:"log_file"`
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	OpenAI ProviderSettings `json:"openai" toml:"openai"`
	Gemini ProviderSettings `json:"gemini" toml:"gemini"`
	Local  ProviderSettings `json:"local" toml:"local"`
}

// ProviderSettings holds the persisted settings for one backend.
// Temperature and MaxTokens left unset fall back to provider defaults.
type ProviderSettings struct {
	APIKey            string   `json:"api_key" toml:"api_key"`
	APIURL            string   `json:"api_url" toml:"api_url"`
	Model             string   `json:"model" toml:"model"`
	Temperature       *float64 `json:"temperature,omitempty" toml:"temperature,omitempty"`
	MaxTokens         int      `json:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
	APITimeoutSeconds int      `json:"api_timeout_seconds,omitempty" toml:"api_timeout_seconds,omitempty"`
	CapStreamTokens   bool     `json:"cap_stream_tokens,omitempty" toml:"cap_stream_tokens,omitempty"`
}

// InlineConfig holds inline suggestion settings.
type InlineConfig struct {
	Enabled         bool     `json:"enabled" toml:"enabled"`
	DebounceMillis  int      `json:"debounce_ms" toml:"debounce_ms"`
	CacheTTLSeconds int      `json:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	Exclude         []string `json:"exclude,omitempty" toml:"exclude,omitempty"`
}

// Default returns a configuration with default values
func Default() Config {
	return Config{
		LLMProvider: ProviderOpenAI,
		Providers: ProvidersConfig{
			OpenAI: ProviderSettings{
				APIURL: "https://api.openai.com/v1",
				Model:  "gpt-4o-mini",
			},
			Gemini: ProviderSettings{
				APIURL: "https://generativelanguage.googleapis.com",
				Model:  "gemini-1.5-flash",
			},
			Local: ProviderSettings{
				APIURL: "http://localhost:11434",
				Model:  "codellama",
			},
		},
		Inline: InlineConfig{
			Enabled:         true,
			DebounceMillis:  500,
			CacheTTLSeconds: 30,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load loads configuration from the specified path.
// If the file doesn't exist, creates one with default values.
// Files ending in .toml are decoded as TOML, everything else as JSON.
func Load(configPath string) (Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return Config{}, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(configPath, cfg); err != nil {
				return Config{}, fmt.Errorf("failed to create default config: %w", err)
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	// Start from defaults so missing fields keep them.
	cfg := Default()
	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the specified path
func Save(configPath string, cfg Config) error {
	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid. Missing credentials are
// not an error here; the provider selector reports those.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini, ProviderLocal:
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLMProvider)
	}

	for name, p := range map[string]ProviderSettings{
		ProviderOpenAI: c.Providers.OpenAI,
		ProviderGemini: c.Providers.Gemini,
		ProviderLocal:  c.Providers.Local,
	} {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Inline.DebounceMillis < 0 {
		return fmt.Errorf("inline.debounce_ms must not be negative, got: %d", c.Inline.DebounceMillis)
	}
	if c.Inline.CacheTTLSeconds < 0 {
		return fmt.Errorf("inline.cache_ttl_seconds must not be negative, got: %d", c.Inline.CacheTTLSeconds)
	}
	for _, pattern := range c.Inline.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid inline exclude pattern: %q", pattern)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format: %s", c.LogFormat)
	}

	return nil
}

func (p ProviderSettings) validate() error {
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got: %f", *p.Temperature)
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got: %d", p.MaxTokens)
	}
	if p.APITimeoutSeconds < 0 {
		return fmt.Errorf("api_timeout_seconds must not be negative, got: %d", p.APITimeoutSeconds)
	}
	if apiURL := strings.TrimSpace(p.APIURL); apiURL != "" {
		u, err := url.Parse(apiURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid api_url: %q", p.APIURL)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	out := c
	out.Providers.OpenAI = c.Providers.OpenAI.clone()
	out.Providers.Gemini = c.Providers.Gemini.clone()
	out.Providers.Local = c.Providers.Local.clone()
	if c.Inline.Exclude != nil {
		out.Inline.Exclude = append([]string(nil), c.Inline.Exclude...)
	}
	if c.Prompts != nil {
		out.Prompts = make(map[string]string, len(c.Prompts))
		for k, v := range c.Prompts {
			out.Prompts[k] = v
		}
	}
	return out
}

func (p ProviderSettings) clone() ProviderSettings {
	if p.Temperature != nil {
		t := *p.Temperature
		p.Temperature = &t
	}
	return p
}

// Settings returns the settings block for a provider kind.
func (c Config) Settings(kind string) (ProviderSettings, bool) {
	switch kind {
	case ProviderOpenAI:
		return c.Providers.OpenAI, true
	case ProviderGemini:
		return c.Providers.Gemini, true
	case ProviderLocal:
		return c.Providers.Local, true
	default:
		return ProviderSettings{}, false
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".codemate", "config.json")
	}
	return filepath.Join(homeDir, ".codemate", "config.json")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

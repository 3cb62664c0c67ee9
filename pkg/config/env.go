package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvProvider       = "CODEMATE_PROVIDER"
	EnvOpenAIKey      = "CODEMATE_OPENAI_API_KEY"
	EnvGeminiKey      = "CODEMATE_GEMINI_API_KEY"
	EnvLocalKey       = "CODEMATE_LOCAL_API_KEY"
	EnvLocalEndpoint  = "CODEMATE_LOCAL_ENDPOINT"
	EnvInlineDisabled = "CODEMATE_INLINE_DISABLED"
)

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment. Missing files are skipped; variables already set
// in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat env file %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv returns a copy of cfg with environment overrides applied.
func ApplyEnv(cfg Config) Config {
	out := cfg.Clone()
	if v, ok := lookup(EnvProvider); ok {
		out.LLMProvider = strings.ToLower(v)
	}
	if v, ok := lookup(EnvOpenAIKey); ok {
		out.Providers.OpenAI.APIKey = v
	}
	if v, ok := lookup(EnvGeminiKey); ok {
		out.Providers.Gemini.APIKey = v
	}
	if v, ok := lookup(EnvLocalKey); ok {
		out.Providers.Local.APIKey = v
	}
	if v, ok := lookup(EnvLocalEndpoint); ok {
		out.Providers.Local.APIURL = v
	}
	if v, ok := lookup(EnvInlineDisabled); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			out.Inline.Enabled = false
		}
	}
	return out
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

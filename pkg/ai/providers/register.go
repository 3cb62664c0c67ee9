package providers

import "codemate/pkg/ai"

// RegisterAll adds the hosted and local providers to r.
func RegisterAll(r *ai.Registry) {
	r.Register(ai.ProviderInfo{
		Kind:        ai.KindOpenAI,
		Name:        "OpenAI",
		Description: "Hosted OpenAI chat completions",
		RequiresKey: true,
	}, NewOpenAIProvider)

	r.Register(ai.ProviderInfo{
		Kind:        ai.KindGemini,
		Name:        "Google Gemini",
		Description: "Hosted Gemini generateContent API",
		RequiresKey: true,
	}, NewGeminiProvider)

	r.Register(ai.ProviderInfo{
		Kind:             ai.KindLocal,
		Name:             "Local AI",
		Description:      "Self-hosted OpenAI-compatible or Ollama server",
		RequiresEndpoint: true,
	}, NewLocalProvider)
}

// NewRegistry returns a registry with every built-in provider registered.
func NewRegistry() *ai.Registry {
	r := ai.NewRegistry()
	RegisterAll(r)
	return r
}

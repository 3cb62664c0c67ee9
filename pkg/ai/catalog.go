package ai

// CatalogEntry is static metadata for a known hosted model.
type CatalogEntry struct {
	ID        string
	Name      string
	MaxTokens int
}

var openAICatalog = map[string]CatalogEntry{
	"gpt-4.1":           {ID: "gpt-4.1", Name: "GPT-4.1", MaxTokens: 4096},
	"gpt-4.1-mini":      {ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", MaxTokens: 4096},
	"gpt-4.1-nano":      {ID: "gpt-4.1-nano", Name: "GPT-4.1 Nano", MaxTokens: 2048},
	"gpt-4.5-preview":   {ID: "gpt-4.5-preview", Name: "GPT-4.5 Preview", MaxTokens: 8192},
	"gpt-4o":            {ID: "gpt-4o", Name: "GPT-4o", MaxTokens: 4096},
	"gpt-4o-mini":       {ID: "gpt-4o-mini", Name: "GPT-4o Mini", MaxTokens: 4096},
	"o1":                {ID: "o1", Name: "O1", MaxTokens: 4096},
	"o1-mini":           {ID: "o1-mini", Name: "O1 Mini", MaxTokens: 4096},
	"o1-pro":            {ID: "o1-pro", Name: "O1 Pro", MaxTokens: 8192},
	"o3":                {ID: "o3", Name: "O3", MaxTokens: 4096},
	"o3-mini":           {ID: "o3-mini", Name: "O3 Mini", MaxTokens: 4096},
	"o3-pro":            {ID: "o3-pro", Name: "O3 Pro", MaxTokens: 8192},
	"o4-mini":           {ID: "o4-mini", Name: "O4 Mini", MaxTokens: 4096},
	"codex-mini-latest": {ID: "codex-mini-latest", Name: "Codex Mini Latest", MaxTokens: 4096},
	"gpt-4":             {ID: "gpt-4", Name: "GPT-4 (Legacy)", MaxTokens: 4096},
	"gpt-4-turbo":       {ID: "gpt-4-turbo", Name: "GPT-4 Turbo (Legacy)", MaxTokens: 4096},
	"gpt-3.5-turbo":     {ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo (Legacy)", MaxTokens: 4096},
}

var geminiCatalog = map[string]CatalogEntry{
	"gemini-2.5-pro":        {ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", MaxTokens: 8192},
	"gemini-2.5-flash":      {ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", MaxTokens: 8192},
	"gemini-2.5-flash-lite": {ID: "gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash Lite", MaxTokens: 4096},
	"gemini-1.5-pro":        {ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", MaxTokens: 8192},
	"gemini-1.5-flash":      {ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", MaxTokens: 8192},
	"gemini-pro":            {ID: "gemini-pro", Name: "Gemini Pro (Legacy)", MaxTokens: 4096},
}

// LookupModel returns catalog metadata for a hosted model id.
func LookupModel(kind ProviderKind, id string) (CatalogEntry, bool) {
	var entry CatalogEntry
	var ok bool
	switch kind {
	case KindOpenAI:
		entry, ok = openAICatalog[id]
	case KindGemini:
		entry, ok = geminiCatalog[id]
	}
	return entry, ok
}

// DisplayName returns the catalog name for id, or id itself.
func DisplayName(kind ProviderKind, id string) string {
	if entry, ok := LookupModel(kind, id); ok {
		return entry.Name
	}
	return id
}

// CatalogModels lists the known models for kind as ModelInfo.
func CatalogModels(kind ProviderKind) []ModelInfo {
	var src map[string]CatalogEntry
	switch kind {
	case KindOpenAI:
		src = openAICatalog
	case KindGemini:
		src = geminiCatalog
	default:
		return nil
	}
	out := make([]ModelInfo, 0, len(src))
	for _, entry := range src {
		out = append(out, ModelInfo{ID: entry.ID, Name: entry.Name, MaxTokens: entry.MaxTokens})
	}
	sortModels(out)
	return out
}

// ClampTokens returns n limited to ceiling; a non-positive ceiling means no limit.
func ClampTokens(n, ceiling int) int {
	if ceiling > 0 && n > ceiling {
		return ceiling
	}
	return n
}

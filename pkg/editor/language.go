package editor

import (
	"path/filepath"
	"regexp"
	"strings"
)

var languageByExt = map[string]string{
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".java":  "java",
	".c":     "c",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".php":   "php",
	".rb":    "ruby",
	".go":    "go",
	".rs":    "rust",
	".kt":    "kotlin",
	".swift": "swift",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sass":  "sass",
	".json":  "json",
	".xml":   "xml",
	".yaml":  "yaml",
	".yml":   "yaml",
	".md":    "markdown",
	".sql":   "sql",
	".sh":    "bash",
	".ps1":   "powershell",
}

var docFormats = map[string]string{
	"javascript": "JSDoc",
	"typescript": "JSDoc",
	"python":     "docstring",
	"java":       "Javadoc",
	"csharp":     "XML documentation comments",
	"php":        "PHPDoc",
	"ruby":       "RDoc",
	"go":         "Go doc comments",
	"rust":       "Rust doc comments",
	"kotlin":     "KDoc",
	"swift":      "Swift documentation comments",
}

var testFrameworks = map[string]string{
	"javascript": "Jest",
	"typescript": "Jest",
	"python":     "pytest",
	"java":       "JUnit",
	"csharp":     "NUnit",
	"php":        "PHPUnit",
	"ruby":       "RSpec",
	"go":         "testing package",
	"rust":       "built-in test framework",
	"kotlin":     "JUnit",
	"swift":      "XCTest",
}

// LanguageFromFileName maps a file extension to a language tag, "text" when unknown.
func LanguageFromFileName(name string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return lang
	}
	return "text"
}

// ExtensionFor returns the canonical file extension for a language tag.
func ExtensionFor(language string) string {
	switch strings.ToLower(language) {
	case "javascript":
		return ".js"
	case "typescript":
		return ".ts"
	case "python":
		return ".py"
	case "cpp", "c++":
		return ".cpp"
	case "csharp", "c#":
		return ".cs"
	case "ruby":
		return ".rb"
	case "rust":
		return ".rs"
	case "kotlin":
		return ".kt"
	case "bash", "shell":
		return ".sh"
	case "powershell":
		return ".ps1"
	case "markdown":
		return ".md"
	case "yaml":
		return ".yaml"
	case "text", "":
		return ".txt"
	}
	for ext, lang := range languageByExt {
		if lang == strings.ToLower(language) {
			return ext
		}
	}
	return ".txt"
}

// DocumentationFormat names the doc-comment convention for a language.
func DocumentationFormat(language string) string {
	if f, ok := docFormats[language]; ok {
		return f
	}
	return "standard comments"
}

// TestFramework names the usual test framework for a language.
func TestFramework(language string) string {
	if f, ok := testFrameworks[language]; ok {
		return f
	}
	return "appropriate testing framework"
}

var (
	slashRegex    = regexp.MustCompile(`^/.*/[gimuy]*$`)
	anchoredRegex = regexp.MustCompile(`^\^.*\$$`)
	cronChars     = regexp.MustCompile(`^[\s\d*/\-,?]+$`)
	sqlKeywords   = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "WITH"}
)

// IsRegexPattern guesses whether text is a regular expression.
func IsRegexPattern(text string) bool {
	trimmed := strings.TrimSpace(text)
	return slashRegex.MatchString(trimmed) ||
		anchoredRegex.MatchString(trimmed) ||
		strings.Contains(text, `\d`) ||
		strings.Contains(text, `\w`) ||
		strings.Contains(text, `\s`)
}

// IsSQLQuery reports whether text starts with a SQL statement keyword.
func IsSQLQuery(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, kw := range sqlKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// IsCronExpression reports whether text has five or six cron fields.
func IsCronExpression(text string) bool {
	fields := strings.Fields(text)
	return (len(fields) == 5 || len(fields) == 6) && cronChars.MatchString(text)
}

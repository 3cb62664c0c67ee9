package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"codemate/pkg/editor"

	"gopkg.in/yaml.v3"
)

// SystemPrompt is sent ahead of every command and inline request.
const SystemPrompt = "You are an AI coding assistant. Provide helpful, accurate, and concise responses."

// Template ids.
const (
	CodeGeneration     = "codeGeneration"
	CodeExplanation    = "codeExplanation"
	RegexExplanation   = "regexExplanation"
	SQLExplanation     = "sqlExplanation"
	CronExplanation    = "cronExplanation"
	Documentation      = "documentation"
	ProblemFinding     = "problemFinding"
	UnitTests          = "unitTests"
	Refactoring        = "refactoring"
	CommitMessage      = "commitMessage"
	NameGeneration     = "nameGeneration"
	LanguageConversion = "languageConversion"
	ErrorExplanation   = "errorExplanation"
	InlineCompletion   = "inlineCompletion"
)

// ErrTemplateNotFound is returned by Format for an unknown template id.
var ErrTemplateNotFound = errors.New("template not found")

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// Template is a named prompt with {key} placeholders.
type Template struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Template  string   `yaml:"template"`
	Variables []string `yaml:"variables"`
	Custom    bool     `yaml:"-"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// Library is a read-only template table. Overrides replace the body of a
// built-in template and keep its name and variables.
type Library struct {
	templates map[string]Template
	order     []string
}

// NewLibrary loads the built-in templates and applies overrides keyed by id.
// Blank overrides are ignored.
func NewLibrary(overrides map[string]string) (*Library, error) {
	defaults, err := parseTemplates(defaultTemplatesYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in templates: %w", err)
	}

	lib := &Library{templates: make(map[string]Template, len(defaults))}
	for _, tmpl := range defaults {
		lib.templates[tmpl.ID] = tmpl
		lib.order = append(lib.order, tmpl.ID)
	}

	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		body := overrides[id]
		if strings.TrimSpace(body) == "" {
			continue
		}
		tmpl, ok := lib.templates[id]
		if !ok {
			tmpl = Template{ID: id, Name: id}
			lib.order = append(lib.order, id)
		}
		tmpl.Template = body
		tmpl.Custom = true
		lib.templates[id] = tmpl
	}
	return lib, nil
}

func parseTemplates(data []byte) ([]Template, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	for i, tmpl := range file.Templates {
		if tmpl.ID == "" {
			return nil, fmt.Errorf("template %d has no id", i)
		}
	}
	return file.Templates, nil
}

// Get returns the template for id.
func (l *Library) Get(id string) (Template, bool) {
	tmpl, ok := l.templates[id]
	return tmpl, ok
}

// All returns every template in definition order.
func (l *Library) All() []Template {
	out := make([]Template, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.templates[id])
	}
	return out
}

// Format renders template id, replacing every {key} occurrence with vars[key].
// Placeholders without a value are left as is.
func (l *Library) Format(id string, vars map[string]string) (string, error) {
	tmpl, ok := l.templates[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return Render(tmpl.Template, vars), nil
}

// Render substitutes vars into text in a single pass, so values that happen
// to contain a placeholder are not expanded again.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// WithContext prefixes prompt with the file, language, selection and cursor
// details of ctx.
func WithContext(prompt string, ctx editor.CodeContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\nLanguage: %s\n", ctx.FileName, ctx.Language)
	if ctx.SelectedText != "" {
		fmt.Fprintf(&sb, "Selected code:\n```%s\n%s\n```\n", ctx.Language, ctx.SelectedText)
	}
	if ctx.Cursor != nil {
		fmt.Fprintf(&sb, "Cursor position: Line %d, Column %d\n", ctx.Cursor.Line, ctx.Cursor.Column)
	}
	sb.WriteString("\n")
	sb.WriteString(prompt)
	return sb.String()
}

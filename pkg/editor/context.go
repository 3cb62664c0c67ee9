package editor

import (
	"path/filepath"
	"regexp"
	"strings"
)

// CodeContext is the per-request snapshot of file and selection metadata sent
// alongside a prompt. When a selection was supplied exactly one of
// SelectedText and Cursor is set.
type CodeContext struct {
	FileName      string
	Language      string
	SelectedText  string
	Cursor        *Position
	WholeFileText string
}

// HasSelection reports whether the context carries selected code.
func (c CodeContext) HasSelection() bool {
	return c.SelectedText != ""
}

// Extract builds a CodeContext from doc. A non-empty selection contributes its
// text; an empty one contributes the cursor position.
func Extract(doc Document, sel *Selection) CodeContext {
	ctx := CodeContext{
		FileName:      filepath.Base(doc.FileName()),
		Language:      languageOf(doc),
		WholeFileText: doc.Text(nil),
	}
	if sel == nil {
		return ctx
	}

	if !sel.IsEmpty() {
		r := sel.Range()
		ctx.SelectedText = doc.Text(&r)
		if ctx.SelectedText != "" {
			return ctx
		}
	}
	active := sel.Active
	ctx.Cursor = &active
	return ctx
}

func languageOf(doc Document) string {
	lang := LanguageFromFileName(doc.FileName())
	if lang == "text" && doc.LanguageTag() != "" {
		return doc.LanguageTag()
	}
	return lang
}

var functionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(function\s+\w+|const\s+\w+\s*=.*=>|class\s+\w+)`),
	regexp.MustCompile(`^(def\s+\w+|class\s+\w+)`),
	regexp.MustCompile(`^(public|private|protected)?\s*(static\s+)?\w+\s+\w+\s*\(`),
	regexp.MustCompile(`^(fn\s+\w+|impl\s+\w+)`),
	regexp.MustCompile(`^(func\s+\w+|type\s+\w+)`),
}

func looksLikeDeclaration(line string) bool {
	for _, p := range functionPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// FunctionAtPosition returns the trimmed declaration line at pos, or the first
// one within five lines of it. ok is false when none is found.
func FunctionAtPosition(doc Document, pos Position) (string, bool) {
	if line, err := doc.LineAt(pos.Line); err == nil {
		if text := strings.TrimSpace(line.Text); looksLikeDeclaration(text) {
			return text, true
		}
	}

	from := max(0, pos.Line-5)
	to := min(doc.LineCount()-1, pos.Line+5)
	for i := from; i <= to; i++ {
		line, err := doc.LineAt(i)
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(line.Text); looksLikeDeclaration(text) {
			return text, true
		}
	}
	return "", false
}

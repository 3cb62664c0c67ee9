package inline

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"codemate/pkg/editor"
)

const (
	linesBefore   = 10
	linesAfter    = 2
	cursorMarker  = "[CURSOR]"
	minPrefixLen  = 2
	maxSuggestion = 200
)

var triggerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\w*$`),
	regexp.MustCompile(`\w+\($`),
	regexp.MustCompile(`\w+\s*=\s*$`),
	regexp.MustCompile(`if\s*\($`),
	regexp.MustCompile(`for\s*\($`),
	regexp.MustCompile(`while\s*\($`),
	regexp.MustCompile(`function\s+\w*\($`),
	regexp.MustCompile(`(const|let|var)\s+\w+\s*=\s*$`),
	regexp.MustCompile(`=>\s*$`),
	regexp.MustCompile(`\{\s*$`),
	regexp.MustCompile(`,\s*$`),
}

var (
	leadingFence  = regexp.MustCompile("^```\\w*\\n?")
	trailingFence = regexp.MustCompile("\\n?```$")
	identStart    = regexp.MustCompile(`^\w`)
)

// ShouldTrigger reports whether an automatic trigger's line prefix ends in a
// syntactic cue worth completing.
func ShouldTrigger(prefix string) bool {
	for _, p := range triggerPatterns {
		if p.MatchString(prefix) {
			return true
		}
	}
	return false
}

// InCommentOrString reports whether column on line sits after a // or #
// comment marker, or inside a quoted string opened earlier on the same line.
func InCommentOrString(line string, column int) bool {
	cut := editor.ByteOffset(line, column)
	if i := strings.Index(line, "//"); i >= 0 && i < cut {
		return true
	}
	if i := strings.IndexByte(line, '#'); i >= 0 && i < cut {
		return true
	}

	var quote byte
	for i := 0; i < cut; i++ {
		c := line[i]
		switch {
		case quote == 0 && (c == '"' || c == '\'' || c == '`'):
			quote = c
		case quote != 0 && c == quote && (i == 0 || line[i-1] != '\\'):
			quote = 0
		}
	}
	return quote != 0
}

// HasMinimumContent reports whether the trimmed prefix is long enough to
// complete.
func HasMinimumContent(prefix string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(prefix)) >= minPrefixLen
}

// Window renders up to ten lines before and two after pos, splicing the
// cursor marker into the current line at pos.Column. Every line ends in "\n".
func Window(doc editor.Document, pos editor.Position) string {
	start := max(0, pos.Line-linesBefore)
	end := min(doc.LineCount()-1, pos.Line+linesAfter)

	var sb strings.Builder
	for i := start; i <= end; i++ {
		line, err := doc.LineAt(i)
		if err != nil {
			continue
		}
		if i == pos.Line {
			prefix, suffix := editor.SplitAt(line.Text, pos.Column)
			sb.WriteString(prefix)
			sb.WriteString(cursorMarker)
			sb.WriteString(suffix)
		} else {
			sb.WriteString(line.Text)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Sanitize turns a raw model answer into a single-line insertion. ok is false
// when the answer should be dropped.
func Sanitize(raw, prefix, suffix string) (string, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = leadingFence.ReplaceAllString(cleaned, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")

	if typed := strings.TrimSpace(prefix); typed != "" {
		cleaned = strings.TrimPrefix(cleaned, typed)
	}

	first, _, _ := strings.Cut(cleaned, "\n")
	cleaned = strings.TrimSpace(first)

	switch {
	case cleaned == "":
		return "", false
	case utf8.RuneCountInString(cleaned) > maxSuggestion:
		return "", false
	}
	if rest := strings.TrimSpace(suffix); rest != "" && strings.Contains(cleaned, rest) {
		return "", false
	}
	if strings.HasSuffix(prefix, ".") && !identStart.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

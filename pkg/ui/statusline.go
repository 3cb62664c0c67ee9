package ui

import (
	"fmt"
	"os"
	"strings"

	"codemate/pkg/ui/styles"

	"github.com/charmbracelet/x/ansi"
)

// Status is what the status line shows.
type Status struct {
	Dir      string
	Branch   string
	Provider string
	Model    string
	Message  string
}

// StatusLine renders s as one full-width line.
func (r *Renderer) StatusLine(s Status) string {
	model := strings.TrimSpace(s.Provider + " " + s.Model)
	if model == "" {
		model = "not configured"
	}

	var content string
	if s.Message != "" {
		content = fmt.Sprintf("[codemate] %s | [llm]: %s", s.Message, model)
	} else {
		dir := TruncatePath(HomeRelative(s.Dir), r.width/2)
		if s.Branch != "" {
			dir += " (" + s.Branch + ")"
		}
		content = fmt.Sprintf("[codemate] %s | [llm]: %s", dir, model)
	}

	maxWidth := max(r.width-4, 10)
	if ansi.StringWidth(content) > maxWidth {
		content = ansi.Truncate(content, maxWidth, "...")
	}
	if !r.color {
		return content
	}

	styled := styles.StatusBarStyle.Render(content)
	if pad := r.width - ansi.StringWidth(styled); pad > 0 {
		styled += strings.Repeat(" ", pad)
	}
	return styled
}

// HomeRelative replaces the home directory prefix of dir with ~.
func HomeRelative(dir string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return dir
	}
	if dir == home || strings.HasPrefix(dir, home+"/") {
		return "~" + dir[len(home):]
	}
	return dir
}

// TruncatePath shortens path to maxWidth cells, keeping the root segment and
// as many trailing segments as fit: /home/../pkg/ui.
func TruncatePath(path string, maxWidth int) string {
	if maxWidth <= 0 || path == "" {
		return ""
	}
	if ansi.StringWidth(path) <= maxWidth {
		return path
	}

	var head, rest string
	switch {
	case strings.HasPrefix(path, "~"):
		head = "~"
		rest = strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")
	case strings.HasPrefix(path, "/"):
		rest = strings.TrimPrefix(path, "/")
		first, tail, _ := strings.Cut(rest, "/")
		head, rest = "/"+first, tail
	default:
		first, tail, _ := strings.Cut(path, "/")
		head, rest = first, tail
	}

	if rest == "" {
		return ansi.Truncate(head, maxWidth, "..")
	}
	segments := strings.Split(rest, "/")

	for n := min(3, len(segments)); n >= 1; n-- {
		candidate := head + "/../" + strings.Join(segments[len(segments)-n:], "/")
		if ansi.StringWidth(candidate) <= maxWidth {
			return candidate
		}
	}

	lead := head + "/../"
	avail := maxWidth - ansi.StringWidth(lead)
	if avail <= 0 {
		return ansi.Truncate(head, maxWidth, "..")
	}
	return lead + ansi.Truncate(segments[len(segments)-1], avail, "..")
}

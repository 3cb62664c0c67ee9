// Package ui renders command results, suggestions and status for a terminal.
package ui

import (
	"fmt"
	"os"
	"strings"

	"codemate/pkg/commands"
	"codemate/pkg/ui/styles"

	"charm.land/lipgloss/v2"
	"github.com/aymanbagabas/go-udiff"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const defaultWidth = 80

// Renderer formats output for one terminal. Styling is dropped when the
// output is not a TTY.
type Renderer struct {
	width int
	color bool
}

// NewRenderer inspects f for TTY-ness and size.
func NewRenderer(f *os.File) *Renderer {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return &Renderer{width: defaultWidth}
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		width = defaultWidth
	}
	return &Renderer{width: width, color: true}
}

// NewPlainRenderer renders unstyled text wrapped at width.
func NewPlainRenderer(width int) *Renderer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Renderer{width: width}
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.width
}

func (r *Renderer) paint(style lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return style.Render(text)
}

func (r *Renderer) wrap(text string) string {
	limit := r.width - 4
	if limit < 20 {
		limit = 20
	}
	return ansi.Wordwrap(text, limit, "")
}

// Result renders a command result according to its kind.
func (r *Renderer) Result(res *commands.Result) string {
	var body string
	switch {
	case res.Err != nil:
		body = r.paint(styles.ErrorStyle, r.wrap(res.Content))
	case res.Kind == commands.KindDiff:
		body = r.Diff(res.Original, res.Content)
	case res.Kind == commands.KindNewFile:
		body = r.paint(styles.TextMutedStyle, "Save as: "+res.FileName) + "\n\n" + res.Content
	default:
		body = r.wrap(res.Content)
	}

	title := r.paint(styles.TitleStyle, res.Title)
	if !r.color {
		return "== " + res.Title + " ==\n" + body + "\n"
	}
	box := styles.BoxStyle
	if res.Err != nil {
		box = styles.ErrorBoxStyle
	}
	return box.Render(title+"\n\n"+body) + "\n"
}

// Diff renders a unified diff from original to suggested.
func (r *Renderer) Diff(original, suggested string) string {
	if !strings.HasSuffix(original, "\n") && original != "" {
		original += "\n"
	}
	if !strings.HasSuffix(suggested, "\n") {
		suggested += "\n"
	}
	diff := udiff.Unified("original", "suggested", original, suggested)
	if diff == "" {
		return r.paint(styles.TextMutedStyle, "No changes suggested")
	}

	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = r.paint(styles.TextMutedStyle, line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = r.paint(styles.DiffHunkStyle, line)
		case strings.HasPrefix(line, "+"):
			lines[i] = r.paint(styles.DiffAddStyle, line)
		case strings.HasPrefix(line, "-"):
			lines[i] = r.paint(styles.DiffRemoveStyle, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Suggestion shows an inline completion as ghost text after the typed prefix.
func (r *Renderer) Suggestion(prefix, text string) string {
	return prefix + r.paint(styles.GhostStyle, text)
}

// Error renders a one-line failure.
func (r *Renderer) Error(msg string) string {
	return r.paint(styles.ErrorStyle, "Error: "+msg)
}

// Success renders a one-line confirmation.
func (r *Renderer) Success(msg string) string {
	return r.paint(styles.SuccessStyle, msg)
}

// Warning renders a one-line warning.
func (r *Renderer) Warning(msg string) string {
	return r.paint(styles.WarningStyle, msg)
}

// Muted renders secondary text.
func (r *Renderer) Muted(msg string) string {
	return r.paint(styles.TextMutedStyle, msg)
}

// CommandList renders command names and descriptions in aligned columns.
func (r *Renderer) CommandList(handlers []commands.Handler) string {
	nameWidth := 0
	for _, h := range handlers {
		nameWidth = max(nameWidth, runewidth.StringWidth(h.Name()))
	}

	var sb strings.Builder
	for _, h := range handlers {
		name := runewidth.FillRight(h.Name(), nameWidth)
		fmt.Fprintf(&sb, "  %s  %s\n", r.paint(styles.TitleStyle, name), h.Description())
	}
	return sb.String()
}

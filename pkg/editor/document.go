package editor

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrLineOutOfRange is returned by LineAt for a line outside the document.
var ErrLineOutOfRange = errors.New("line out of range")

// Position is a zero-based line and column. Columns count characters, not bytes.
type Position struct {
	Line   int
	Column int
}

// Before reports whether p comes strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// Range is a half-open span of a document.
type Range struct {
	Start Position
	End   Position
}

// Selection is an editor selection. Active is where the cursor sits.
type Selection struct {
	Anchor Position
	Active Position
}

// CursorAt returns an empty selection at pos.
func CursorAt(pos Position) Selection {
	return Selection{Anchor: pos, Active: pos}
}

// IsEmpty reports whether the selection covers no text.
func (s Selection) IsEmpty() bool {
	return s.Anchor == s.Active
}

// Range returns the selection ordered start to end.
func (s Selection) Range() Range {
	if s.Active.Before(s.Anchor) {
		return Range{Start: s.Active, End: s.Anchor}
	}
	return Range{Start: s.Anchor, End: s.Active}
}

// Line is one line of a document without its terminator.
type Line struct {
	Number int
	Text   string
}

// Document is the read-only view of an open file that context extraction
// and inline suggestions work against.
type Document interface {
	// Text returns the whole document when r is nil.
	Text(r *Range) string
	LineAt(n int) (Line, error)
	LineCount() int
	FileName() string
	LanguageTag() string
}

// TextDocument is an in-memory Document.
type TextDocument struct {
	fileName string
	language string
	lines    []string
}

// NewTextDocument splits text into lines. An empty language tag is derived
// from the file name.
func NewTextDocument(fileName, language, text string) *TextDocument {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if language == "" {
		language = LanguageFromFileName(fileName)
	}
	return &TextDocument{
		fileName: fileName,
		language: language,
		lines:    strings.Split(text, "\n"),
	}
}

// OpenTextDocument reads path from disk.
func OpenTextDocument(path string) (*TextDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return NewTextDocument(path, "", string(data)), nil
}

func (d *TextDocument) FileName() string    { return d.fileName }
func (d *TextDocument) LanguageTag() string { return d.language }
func (d *TextDocument) LineCount() int      { return len(d.lines) }

func (d *TextDocument) LineAt(n int) (Line, error) {
	if n < 0 || n >= len(d.lines) {
		return Line{}, fmt.Errorf("line %d of %d: %w", n, len(d.lines), ErrLineOutOfRange)
	}
	return Line{Number: n, Text: d.lines[n]}, nil
}

func (d *TextDocument) Text(r *Range) string {
	if r == nil {
		return strings.Join(d.lines, "\n")
	}

	start := d.clamp(r.Start)
	end := d.clamp(r.End)
	if end.Before(start) {
		start, end = end, start
	}

	if start.Line == end.Line {
		line := d.lines[start.Line]
		return line[ByteOffset(line, start.Column):ByteOffset(line, end.Column)]
	}

	var sb strings.Builder
	first := d.lines[start.Line]
	sb.WriteString(first[ByteOffset(first, start.Column):])
	for i := start.Line + 1; i < end.Line; i++ {
		sb.WriteByte('\n')
		sb.WriteString(d.lines[i])
	}
	last := d.lines[end.Line]
	sb.WriteByte('\n')
	sb.WriteString(last[:ByteOffset(last, end.Column)])
	return sb.String()
}

func (d *TextDocument) clamp(p Position) Position {
	if p.Line < 0 {
		return Position{}
	}
	if p.Line >= len(d.lines) {
		last := len(d.lines) - 1
		return Position{Line: last, Column: len([]rune(d.lines[last]))}
	}
	if p.Column < 0 {
		p.Column = 0
	}
	return p
}

// ByteOffset converts a character column into a byte offset within line,
// clamped to the line length.
func ByteOffset(line string, column int) int {
	if column <= 0 {
		return 0
	}
	seen := 0
	for i := range line {
		if seen == column {
			return i
		}
		seen++
	}
	return len(line)
}

// SplitAt returns the text of line before and after column.
func SplitAt(line string, column int) (prefix, suffix string) {
	off := ByteOffset(line, column)
	return line[:off], line[off:]
}

var _ Document = (*TextDocument)(nil)

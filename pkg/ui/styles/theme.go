// Package styles holds the shared terminal theme for codemate output.
package styles

import (
	"charm.land/lipgloss/v2"
)

// Color palette - ANSI 256 colors used throughout the application
var (
	ColorAccent     = lipgloss.Color("141")
	ColorText       = lipgloss.Color("252")
	ColorTextMuted  = lipgloss.Color("245")
	ColorTextBright = lipgloss.Color("15")

	ColorError   = lipgloss.Color("196")
	ColorWarning = lipgloss.Color("214")
	ColorSuccess = lipgloss.Color("42")

	ColorCode   = lipgloss.Color("213")
	ColorCodeBg = lipgloss.Color("235")

	ColorBorder = lipgloss.Color("141")
)

// Panel styles
var (
	// BoxStyle frames a command result.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	// ErrorBoxStyle frames a failed command.
	ErrorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorError).
			Padding(0, 1)
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	TextMutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	// GhostStyle renders an inline suggestion after the typed prefix.
	GhostStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)
)

// Code and diff styles
var (
	CodeStyle = lipgloss.NewStyle().
			Foreground(ColorCode).
			Background(ColorCodeBg)

	DiffAddStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	DiffRemoveStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	DiffHunkStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)
)

// StatusBarStyle is the one-line provider summary.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1).
	Bold(true)

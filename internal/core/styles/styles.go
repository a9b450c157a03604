// Package styles provides terminal output styling for CLI commands.
package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// Title styles section headers in command output.
	Title = lipgloss.NewStyle().Bold(true)
	// Muted styles secondary detail like timestamps and ids.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	// URL styles the review link handed to the user.
	URL = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)

	pending          = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	approved         = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	changesRequested = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	cancelled        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var isTTY = term.IsTerminal(int(os.Stdout.Fd()))

// Status renders a session status with its color when stdout is a terminal.
func Status(status string) string {
	if !isTTY {
		return status
	}

	switch status {
	case "pending":
		return pending.Render(status)
	case "approved":
		return approved.Render(status)
	case "changes_requested":
		return changesRequested.Render(status)
	case "cancelled":
		return cancelled.Render(status)
	default:
		return status
	}
}

// Render applies a style only when stdout is a terminal.
func Render(style lipgloss.Style, s string) string {
	if !isTTY {
		return s
	}
	return style.Render(s)
}

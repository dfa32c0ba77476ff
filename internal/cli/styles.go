package cli

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("120")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)
)

// Renderer formats an assistant reply for display
type Renderer func(content string) string

// PlainRenderer returns content unchanged with a trailing newline
func PlainRenderer(content string) string {
	return content + "\n"
}

// NewMarkdownRenderer renders replies as terminal markdown. It falls back to
// plain output when the renderer cannot be built or stdout is not a terminal.
func NewMarkdownRenderer(wordWrap int) Renderer {
	if !IsStdoutTTY() {
		return PlainRenderer
	}

	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return PlainRenderer
	}

	return func(content string) string {
		rendered, err := tr.Render(content)
		if err != nil {
			return PlainRenderer(content)
		}
		return rendered
	}
}

// IsStdoutTTY returns true if stdout is a terminal
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

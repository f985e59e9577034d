// ABOUTME: Terminal styles for CLI output
// ABOUTME: Styling is applied only when stdout is a terminal so piped output stays plain
package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

var stdoutIsTerminal = term.IsTerminal(int(os.Stdout.Fd()))

func paint(style lipgloss.Style, s string) string {
	if !stdoutIsTerminal {
		return s
	}
	return style.Render(s)
}

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor       = lipgloss.Color("7")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	// Foreground only, so the terminal background shows through.
	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	// System messages, timestamps, hints
	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	ToolStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)
)

// FormatFooter joins alternating keys and descriptions, rendering the
// descriptions in the assistant color.
//
//	FormatFooter("Enter", "Send", "Esc", "Cancel") // "Enter Send  Esc Cancel"
func FormatFooter(parts ...string) string {
	descStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var result []string
	for i := 0; i+1 < len(parts); i += 2 {
		result = append(result, parts[i]+" "+descStyle.Render(parts[i+1]))
	}
	return strings.Join(result, "  ")
}

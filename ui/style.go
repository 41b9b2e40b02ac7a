package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	heading = lipgloss.NewStyle().Bold(true)
	success = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failure = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	subtle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Colorize applies the given color to the text using lipgloss.
// color is an integer RGB value.
func Colorize(text string, color int) string {
	// Convert color int to hex string
	hexColor := fmt.Sprintf("#%06x", color)

	// Create a lipgloss style with the foreground color
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor))

	// Render the text with the style
	return style.Render(text)
}

// Heading renders a bold section title.
func Heading(text string) string { return heading.Render(text) }

// Success renders an outcome line for something that worked.
func Success(text string) string { return success.Render(text) }

// Failure renders an outcome line for something that did not.
func Failure(text string) string { return failure.Render(text) }

// Subtle renders de-emphasized detail text.
func Subtle(text string) string { return subtle.Render(text) }

// StatusBadge renders the install state marker used in mod listings.
func StatusBadge(installed bool) string {
	if installed {
		return success.Render("[installed]")
	}
	return subtle.Render("[available]")
}

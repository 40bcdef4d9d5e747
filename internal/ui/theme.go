package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles for one color scheme
type Theme struct {
	Name string
	// GlamourStyle is the standard glamour style for assistant markdown
	GlamourStyle string

	Title     lipgloss.Style
	Timestamp lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style
	Notice    lipgloss.Style
	Status    lipgloss.Style
	Input     lipgloss.Style
	Border    lipgloss.Style
}

func newTheme(name, glamourStyle string, fg, accent, userMsg, errMsg, border lipgloss.Color) Theme {
	return Theme{
		Name:         name,
		GlamourStyle: glamourStyle,
		Title:        lipgloss.NewStyle().Bold(true).Foreground(accent),
		Timestamp:    lipgloss.NewStyle().Faint(true).Foreground(fg),
		User:         lipgloss.NewStyle().Bold(true).Foreground(userMsg).PaddingLeft(2),
		Assistant:    lipgloss.NewStyle().Foreground(fg).PaddingLeft(2),
		Error:        lipgloss.NewStyle().Foreground(errMsg).PaddingLeft(2),
		Notice:       lipgloss.NewStyle().Italic(true).Foreground(accent),
		Status:       lipgloss.NewStyle().Foreground(fg),
		Input:        lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent),
		Border:       lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(border),
	}
}

// DarkTheme is the default scheme
func DarkTheme() Theme {
	return newTheme("dark", "dark", "#f0f0f0", "#00d4aa", "#e6f3ff", "#ff6b6b", "#404040")
}

// LightTheme is used after toggling away from dark
func LightTheme() Theme {
	return newTheme("light", "light", "#1a1a1a", "#0066cc", "#0066cc", "#dc3545", "#d1d5db")
}

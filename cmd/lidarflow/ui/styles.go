// Package ui styles the terminal output of the lidarflow CLI.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	// Light Mode Colors (Default)
	LightForeground = lipgloss.Color("#1b2a1f")
	LightPrimary    = lipgloss.Color("#2e7d32") // Forest green
	LightMuted      = lipgloss.Color("#8a958c")

	// Dark Mode Colors
	DarkForeground = lipgloss.Color("#eef2ee")
	DarkPrimary    = lipgloss.Color("#81c784")
	DarkMuted      = lipgloss.Color("#5f6b61")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#43a047")
	Warning     = lipgloss.Color("#ffb300")
)

// Theme holds the current color scheme
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{Foreground: LightForeground, Primary: LightPrimary, Muted: LightMuted}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{Foreground: DarkForeground, Primary: DarkPrimary, Muted: DarkMuted, IsDark: true}
}

// DetectTheme picks a theme from COLORFGBG or LIDARFLOW_DARK_MODE and
// defaults to light.
func DetectTheme() Theme {
	// Format is usually "foreground;background"
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
			// 0-6 and 8 (dark grey) are likely dark backgrounds
			if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
				return DarkTheme()
			}
		}
	}

	if os.Getenv("LIDARFLOW_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// NewStyles creates styles for the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,
		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(Warning),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// KeyValue renders an aligned "key: value" block.
func (s Styles) KeyValue(pairs ...[2]string) string {
	width := 0
	for _, p := range pairs {
		if w := lipgloss.Width(p[0]); w > width {
			width = w
		}
	}
	var sb strings.Builder
	keyStyle := s.Muted.Width(width + 2)
	for _, p := range pairs {
		sb.WriteString(keyStyle.Render(p[0] + ":"))
		sb.WriteString(s.Body.Render(p[1]))
		sb.WriteString("\n")
	}
	return sb.String()
}

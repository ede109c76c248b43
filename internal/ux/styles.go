package ux

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	LightForeground = lipgloss.Color("#101F38")
	LightPrimary    = lipgloss.Color("#101F38")
	LightMuted      = lipgloss.Color("#6b7280")

	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#8BC34A")
	DarkMuted      = lipgloss.Color("#9ca3af")

	// Semantic colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds the current color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{Foreground: LightForeground, Primary: LightPrimary, Muted: LightMuted}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{Foreground: DarkForeground, Primary: DarkPrimary, Muted: DarkMuted, IsDark: true}
}

// DetectTheme picks a theme from COLORFGBG or TESTGEN_DARK_MODE, defaulting
// to light.
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// Format is usually "foreground;background"
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return DarkTheme()
				}
			}
		}
	}
	if os.Getenv("TESTGEN_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the console line styles.
type Styles struct {
	Theme Theme

	Title lipgloss.Style
	Body  lipgloss.Style
	Muted lipgloss.Style
	Bold  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Badge lipgloss.Style
}

// NewStyles creates styles bound to a renderer. The renderer decides the
// color profile, so a non-terminal writer gets plain text.
func NewStyles(r *lipgloss.Renderer, theme Theme) Styles {
	return Styles{
		Theme: theme,

		Title: r.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Body: r.NewStyle().
			Foreground(theme.Foreground),

		Muted: r.NewStyle().
			Foreground(theme.Muted),

		Bold: r.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Success: r.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: r.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: r.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: r.NewStyle().
			Foreground(Info),

		Badge: r.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
	}
}

// StylesFor returns styles for output written to w.
func StylesFor(w io.Writer) Styles {
	return NewStyles(lipgloss.NewRenderer(w), DetectTheme())
}

// Package styles holds the lipgloss styles shared by the terminal views.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	ColorPrimary = lipgloss.Color("#7D56F4")
	ColorMuted   = lipgloss.Color("#6C6C6C")
	ColorError   = lipgloss.Color("#E06C75")
	ColorSuccess = lipgloss.Color("#98C379")
	ColorUnread  = lipgloss.Color("#E5C07B")
)

// Styles groups the styles a view renders with.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Unread   lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style
	Border   lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() *Styles {
	return &Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		Subtitle: lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
		Error:    lipgloss.NewStyle().Foreground(ColorError),
		Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
		Unread:   lipgloss.NewStyle().Bold(true).Foreground(ColorUnread),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(ColorPrimary),
		Header: lipgloss.NewStyle().Bold(true).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(ColorMuted),
		Border: lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(ColorMuted).Padding(0, 1),
	}
}

// Plain returns styles that render text unchanged, for non-terminal output.
func Plain() *Styles {
	s := lipgloss.NewStyle()
	return &Styles{
		Title: s, Subtitle: s, Muted: s, Error: s, Success: s,
		Unread: s, Selected: s, Header: s, Border: s,
	}
}

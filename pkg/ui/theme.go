package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/itmstools/itms_console/pkg/model"
)

// Theme carries the adaptive palette and the renderer styles are built from
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor

	Info    lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Danger  lipgloss.AdaptiveColor

	Pending  lipgloss.AdaptiveColor
	Approved lipgloss.AdaptiveColor
	Rejected lipgloss.AdaptiveColor
}

// DefaultTheme builds the palette on the given renderer (nil uses the
// default renderer)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: string(ColorPrimary)},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: string(ColorSecondary)},
		Text:      lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: string(ColorText)},
		Subtext:   lipgloss.AdaptiveColor{Light: "#444444", Dark: string(ColorSubtext)},
		Muted:     lipgloss.AdaptiveColor{Light: "#888888", Dark: string(ColorMuted)},
		Border:    lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: string(ColorBgHighlight)},
		Highlight: lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: string(ColorBgHighlight)},

		Info:    lipgloss.AdaptiveColor{Light: "#0277BD", Dark: string(ColorInfo)},
		Success: lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: string(ColorSuccess)},
		Warning: lipgloss.AdaptiveColor{Light: "#EF6C00", Dark: string(ColorWarning)},
		Danger:  lipgloss.AdaptiveColor{Light: "#C62828", Dark: string(ColorDanger)},

		Pending:  lipgloss.AdaptiveColor{Light: string(ColorStatusPending), Dark: string(ColorStatusPending)},
		Approved: lipgloss.AdaptiveColor{Light: string(ColorStatusApproved), Dark: string(ColorStatusApproved)},
		Rejected: lipgloss.AdaptiveColor{Light: string(ColorStatusRejected), Dark: string(ColorStatusRejected)},
	}
}

// StatusColor maps a review status to its palette color
func (t Theme) StatusColor(s model.Status) lipgloss.AdaptiveColor {
	switch s {
	case model.StatusPending:
		return t.Pending
	case model.StatusApproved:
		return t.Approved
	case model.StatusRejected:
		return t.Rejected
	}
	return t.Muted
}

// Style returns a fresh style on the theme's renderer
func (t Theme) Style() lipgloss.Style {
	return t.Renderer.NewStyle()
}

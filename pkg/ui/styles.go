package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/itmstools/itms_console/pkg/model"
)

// ══════════════════════════════════════════════════════════════════════════════
// DESIGN TOKENS
// ══════════════════════════════════════════════════════════════════════════════

// Spacing constants for consistent layout (in characters)
const (
	SpaceXS = 1
	SpaceSM = 2
	SpaceMD = 3
	SpaceLG = 4
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Dracula base with the review status colors
// ══════════════════════════════════════════════════════════════════════════════

var (
	// Base colors
	ColorBg          = lipgloss.Color("#282A36")
	ColorBgSubtle    = lipgloss.Color("#363949")
	ColorBgHighlight = lipgloss.Color("#44475A")
	ColorText        = lipgloss.Color("#F8F8F2")
	ColorSubtext     = lipgloss.Color("#BFBFBF")
	ColorMuted       = lipgloss.Color("#6272A4")

	// Accent colors
	ColorPrimary   = lipgloss.Color("#BD93F9")
	ColorSecondary = lipgloss.Color("#6272A4")
	ColorInfo      = lipgloss.Color("#8BE9FD")
	ColorSuccess   = lipgloss.Color("#50FA7B")
	ColorWarning   = lipgloss.Color("#FFB86C")
	ColorDanger    = lipgloss.Color("#FF5555")

	// Review status colors, shared with the chart export
	ColorStatusPending  = lipgloss.Color("#F57C00")
	ColorStatusApproved = lipgloss.Color("#388E3C")
	ColorStatusRejected = lipgloss.Color("#D32F2F")

	// Status badge backgrounds
	ColorStatusPendingBg  = lipgloss.Color("#3D2A1A")
	ColorStatusApprovedBg = lipgloss.Color("#1A3D2A")
	ColorStatusRejectedBg = lipgloss.Color("#3D1A1A")
)

// ══════════════════════════════════════════════════════════════════════════════
// PANEL STYLES
// ══════════════════════════════════════════════════════════════════════════════

var (
	// PanelStyle is the default style for unfocused panels
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBgHighlight)

	// FocusedPanelStyle is the style for focused panels
	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// RenderStatusBadge returns a styled status badge
func RenderStatusBadge(status model.Status) string {
	var fg, bg lipgloss.Color
	var label string

	switch status {
	case model.StatusPending:
		fg, bg, label = ColorStatusPending, ColorStatusPendingBg, "PENDING"
	case model.StatusApproved:
		fg, bg, label = ColorStatusApproved, ColorStatusApprovedBg, "APPROVED"
	case model.StatusRejected:
		fg, bg, label = ColorStatusRejected, ColorStatusRejectedBg, "REJECTED"
	default:
		fg, bg, label = ColorMuted, ColorBgSubtle, strings.ToUpper(string(status))
		if label == "" {
			label = "????"
		}
	}

	return lipgloss.NewStyle().
		Foreground(fg).
		Background(bg).
		Bold(true).
		Render(" " + label + " ")
}

// ══════════════════════════════════════════════════════════════════════════════
// METRIC VISUALIZATION
// ══════════════════════════════════════════════════════════════════════════════

// RenderMiniBar renders a mini horizontal bar for a value between 0 and 1
func RenderMiniBar(value float64, width int, color lipgloss.AdaptiveColor, t Theme) string {
	if width <= 0 {
		return ""
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}

	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}

	bar := t.Style().Foreground(color).Render(strings.Repeat("█", filled))
	rest := t.Style().Foreground(t.Muted).Render(strings.Repeat("░", width-filled))
	return bar + rest
}

// RenderPercent renders a ratio as a whole percentage
func RenderPercent(value float64) string {
	return fmt.Sprintf("%3.0f%%", value*100)
}

// ══════════════════════════════════════════════════════════════════════════════
// DIVIDERS AND SEPARATORS
// ══════════════════════════════════════════════════════════════════════════════

// RenderDivider renders a horizontal divider line
func RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorBgHighlight).
		Render(strings.Repeat("─", width))
}

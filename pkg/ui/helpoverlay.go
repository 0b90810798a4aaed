package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type shortcut struct{ key, desc string }

type shortcutSection struct {
	title string
	keys  []shortcut
}

var helpSections = []shortcutSection{
	{"NAVIGATION", []shortcut{
		{"j/↓", "Move down"},
		{"k/↑", "Move up"},
		{"g / G", "Top / bottom"},
		{"Enter", "Open review"},
		{"Esc", "Back"},
		{"1-5", "Sidebar pages"},
		{"s", "Toggle sidebar"},
	}},
	{"REVIEWS", []shortcut{
		{"f", "Edit filters"},
		{"x", "Clear filters"},
		{"/", "Jump to review"},
		{"m", "Assign to me"},
		{"e", "Export reviews.csv"},
		{"r", "Reload"},
	}},
	{"DETAIL", []shortcut{
		{"a", "Approve"},
		{"d", "Reject"},
		{"y", "Copy review id"},
		{"i", "Copy image URL"},
	}},
	{"APP", []shortcut{
		{"?", "Toggle this help"},
		{"L", "Log out"},
		{"q/Ctrl+C", "Quit"},
	}},
}

// HelpOverlayModel shows keyboard shortcuts help
type HelpOverlayModel struct {
	visible bool
	width   int
	height  int
	theme   Theme
}

// NewHelpOverlayModel creates a new help overlay
func NewHelpOverlayModel(theme Theme) HelpOverlayModel {
	return HelpOverlayModel{theme: theme}
}

// Show makes the help overlay visible
func (m *HelpOverlayModel) Show() { m.visible = true }

// Hide makes the help overlay invisible
func (m *HelpOverlayModel) Hide() { m.visible = false }

// Toggle toggles visibility
func (m *HelpOverlayModel) Toggle() { m.visible = !m.visible }

// IsVisible returns true if overlay is showing
func (m HelpOverlayModel) IsVisible() bool { return m.visible }

// SetSize sets dimensions
func (m *HelpOverlayModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles input
func (m HelpOverlayModel) Update(msg tea.Msg) (HelpOverlayModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	if _, ok := msg.(tea.KeyMsg); ok {
		// Any key closes help
		m.visible = false
	}
	return m, nil
}

// View renders the help overlay
func (m HelpOverlayModel) View() string {
	if !m.visible {
		return ""
	}

	var b strings.Builder

	titleStyle := m.theme.Style().Bold(true).Foreground(m.theme.Primary)
	b.WriteString(titleStyle.Render("ITMS Console Help"))
	b.WriteString("\n\n")

	sectionStyle := m.theme.Style().Bold(true).Foreground(m.theme.Secondary)
	keyStyle := m.theme.Style().Foreground(m.theme.Primary).Width(12)
	descStyle := m.theme.Style().Foreground(m.theme.Subtext)

	for i, section := range helpSections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sectionStyle.Render(section.title) + "\n")
		for _, s := range section.keys {
			b.WriteString("  " + keyStyle.Render(s.key) + descStyle.Render(s.desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Style().Faint(true).Italic(true).Render("[Press any key to close]"))

	return m.theme.Style().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Border).
		Padding(1, 2).
		Render(b.String())
}

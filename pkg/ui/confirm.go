package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/itmstools/itms_console/pkg/review"
)

// ConfirmModel is the modal shown before a workflow action is sent
type ConfirmModel struct {
	prompt   review.Prompt
	selected bool // true when the affirmative button is focused
	width    int
	theme    Theme

	// Result
	confirmed bool
	cancelled bool
}

// NewConfirmModel creates a confirmation modal for the prompt. Focus starts
// on the negative button.
func NewConfirmModel(p review.Prompt, theme Theme) ConfirmModel {
	return ConfirmModel{prompt: p, theme: theme}
}

// Update handles input
func (m ConfirmModel) Update(msg tea.Msg) (ConfirmModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "esc", "n", "N":
		m.cancelled = true
	case "y", "Y":
		m.confirmed = true
	case "left", "right", "tab", "shift+tab", "h", "l":
		m.selected = !m.selected
	case "enter":
		if m.selected {
			m.confirmed = true
		} else {
			m.cancelled = true
		}
	}
	return m, nil
}

// View renders the modal box
func (m ConfirmModel) View() string {
	width := 52
	if m.width > 0 && m.width < 62 {
		width = m.width - 10
	}

	var b strings.Builder
	titleStyle := m.theme.Style().
		Bold(true).
		Foreground(m.theme.Primary).
		Width(width).
		Align(lipgloss.Center)
	b.WriteString(titleStyle.Render(m.prompt.Title))
	b.WriteString("\n\n")

	b.WriteString(m.theme.Style().Foreground(m.theme.Text).Width(width).Render(m.prompt.Question))
	b.WriteString("\n")
	b.WriteString(m.theme.Style().Foreground(m.theme.Muted).Render("Review " + m.prompt.ReviewID))
	b.WriteString("\n\n")

	button := m.theme.Style().Padding(0, 2)
	active := button.Bold(true).Foreground(m.theme.Text).Background(m.affirmativeColor())
	inactive := button.Foreground(m.theme.Subtext).Background(m.theme.Highlight)

	yes, no := inactive.Render(m.prompt.Affirmative), active.Render(m.prompt.Negative)
	if m.selected {
		yes, no = active.Render(m.prompt.Affirmative), inactive.Render(m.prompt.Negative)
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, no, "  ", yes)
	b.WriteString(m.theme.Style().Width(width).Align(lipgloss.Center).Render(buttons))
	b.WriteString("\n\n")

	b.WriteString(m.theme.Style().Faint(true).Render("[←/→] Choose  [Enter] Select  [y/n] Answer  [Esc] Cancel"))

	return m.theme.Style().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.affirmativeColor()).
		Padding(1, 2).
		Width(width + 4).
		Render(b.String())
}

func (m ConfirmModel) affirmativeColor() lipgloss.AdaptiveColor {
	switch m.prompt.Action {
	case review.ActionApprove:
		return m.theme.Approved
	case review.ActionReject:
		return m.theme.Rejected
	}
	return m.theme.Primary
}

// SetSize sets the modal dimensions
func (m *ConfirmModel) SetSize(width, _ int) {
	m.width = width
}

// IsConfirmed returns true if the user chose the affirmative answer
func (m ConfirmModel) IsConfirmed() bool { return m.confirmed }

// IsCancelled returns true if the user declined
func (m ConfirmModel) IsCancelled() bool { return m.cancelled }

// Done reports whether the user answered
func (m ConfirmModel) Done() bool { return m.confirmed || m.cancelled }

// Prompt returns the prompt being asked
func (m ConfirmModel) Prompt() review.Prompt { return m.prompt }

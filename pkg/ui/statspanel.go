package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
	"github.com/itmstools/itms_console/pkg/stats"
)

// RenderStatsHeaderBox renders a consistent header box for stats panels.
func RenderStatsHeaderBox(title string, width int, theme Theme, color lipgloss.TerminalColor) []string {
	headerStyle := theme.Style().Bold(true).Foreground(color)

	boxWidth := width - StatsPanelPadding
	if boxWidth < MinBoxWidth {
		boxWidth = MinBoxWidth
	}
	title = truncateRunes(title, boxWidth-4)

	return []string{
		headerStyle.Render("╔" + strings.Repeat("═", boxWidth-2) + "╗"),
		headerStyle.Render("║ " + truncateOrPad(title, boxWidth-4) + " ║"),
		headerStyle.Render("╚" + strings.Repeat("═", boxWidth-2) + "╝"),
	}
}

// RenderStatusBars renders the per-status breakdown with mini bars
func RenderStatusBars(s stats.Summary, theme Theme) []string {
	total := s.Total
	if total == 0 {
		total = 1
	}
	lines := make([]string, 0, 3)
	for _, sc := range s.StatusCounts() {
		color := theme.StatusColor(sc.Status)
		bar := RenderMiniBar(float64(sc.Count)/float64(total), 14, color, theme)
		dot := theme.Style().Foreground(color).Render("●")
		lines = append(lines, fmt.Sprintf("   %s %-10s %4d %s", dot, string(sc.Status)+":", sc.Count, bar))
	}
	return lines
}

// OverviewModel is the dashboard landing panel
type OverviewModel struct {
	width int
	theme Theme
}

// NewOverviewModel creates the overview panel
func NewOverviewModel(theme Theme) OverviewModel {
	return OverviewModel{theme: theme}
}

// SetSize sets dimensions
func (m *OverviewModel) SetSize(width, _ int) { m.width = width }

// View renders the summary of the fetched list plus this session's tally
func (m OverviewModel) View(s stats.Summary, tally review.Tally, user string) string {
	t := m.theme
	label := t.Style().Foreground(t.Subtext)
	value := t.Style().Bold(true).Foreground(t.Text)

	boxWidth := m.width / 2
	if m.width < BreakpointMedium {
		boxWidth = m.width
	}
	if boxWidth < MinBoxWidth+StatsPanelPadding {
		boxWidth = MinBoxWidth + StatsPanelPadding
	}

	left := RenderStatsHeaderBox("Reviews", boxWidth, t, t.Primary)
	left = append(left, "")
	left = append(left, fmt.Sprintf("   %s %s", label.Render("Total:      "), value.Render(fmt.Sprint(s.Total))))
	left = append(left, fmt.Sprintf("   %s %s", label.Render("Unassigned: "), value.Render(fmt.Sprint(s.Unassigned))))
	left = append(left, "")
	left = append(left, RenderStatusBars(s, t)...)
	left = append(left, "")
	left = append(left, fmt.Sprintf("   %s %s %s", label.Render("Approval rate:"),
		RenderMiniBar(s.ApprovalRate(), 14, t.Approved, t), RenderPercent(s.ApprovalRate())))

	right := RenderStatsHeaderBox("Turnaround", boxWidth, t, t.Secondary)
	right = append(right, "")
	if s.Turnaround.Count == 0 {
		right = append(right, "   "+t.Style().Foreground(t.Muted).Render("No decided reviews yet"))
	} else {
		right = append(right,
			fmt.Sprintf("   %s %s", label.Render("Decided: "), value.Render(fmt.Sprint(s.Turnaround.Count))),
			fmt.Sprintf("   %s %s", label.Render("Median:  "), value.Render(stats.FormatDuration(s.Turnaround.Median))),
			fmt.Sprintf("   %s %s", label.Render("Mean:    "), value.Render(stats.FormatDuration(s.Turnaround.Mean))),
			fmt.Sprintf("   %s %s", label.Render("P90:     "), value.Render(stats.FormatDuration(s.Turnaround.P90))),
		)
	}
	right = append(right, "")
	right = append(right, "   "+label.Render("Top reviewers"))
	if len(s.Reviewers) == 0 {
		right = append(right, "   "+t.Style().Foreground(t.Muted).Render("none"))
	}
	for i, rc := range s.Reviewers {
		if i == 5 {
			break
		}
		right = append(right, fmt.Sprintf("   %-18s %4d", truncateRunes(rc.Reviewer, 18), rc.Count))
	}

	session := []string{
		label.Render("This session") + "  " +
			fmt.Sprintf("assigned %d · approved %d · rejected %d · failed %d", tally.Assigned, tally.Approved, tally.Rejected, tally.Failed),
	}
	if user != "" {
		session = append([]string{label.Render("Signed in as ") + value.Render(user)}, session...)
	}

	leftBlock := strings.Join(left, "\n")
	rightBlock := strings.Join(right, "\n")
	var boxes string
	if m.width < BreakpointMedium {
		boxes = lipgloss.JoinVertical(lipgloss.Left, leftBlock, "", rightBlock)
	} else {
		boxes = lipgloss.JoinHorizontal(lipgloss.Top, t.Style().Width(boxWidth).Render(leftBlock), rightBlock)
	}
	return strings.Join(session, "\n") + "\n\n" + boxes + "\n\n" +
		t.Style().Faint(true).Render("[3] reviews  [r] reload  [?] help")
}

// statusLabel renders a status in its color
func statusLabel(s model.Status, t Theme) string {
	return t.Style().Bold(true).Foreground(t.StatusColor(s)).Render(string(s))
}

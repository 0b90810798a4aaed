package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
)

// Intents the list raises for the app to carry out
type (
	openReviewMsg   struct{ id string }
	assignIntentMsg struct{ id string }
	exportIntentMsg struct{}
	reloadIntentMsg struct{}
)

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// Filter fields in display order
const (
	filterBarcode = iota
	filterEquipment
	filterUsername
	filterStart
	filterEnd
	filterCount
)

var filterLabels = [filterCount]string{"Barcode", "Equipment ID", "Username", "Start date", "End date"}

// reviewSource adapts the visible list for fuzzy matching
type reviewSource []model.Review

func (s reviewSource) String(i int) string {
	r := s[i]
	reviewer, _ := r.Reviewer()
	return strings.Join([]string{r.ReviewID, r.EquipmentID.String(), r.Barcode, r.CreatedBy, reviewer}, " ")
}

func (s reviewSource) Len() int { return len(s) }

// ReviewListModel is the filterable review table
type ReviewListModel struct {
	ctrl *review.Controller

	filters   [filterCount]textinput.Model
	editing   bool
	filterIdx int

	jump    textinput.Model
	jumping bool

	cursor int
	offset int

	loading bool
	spinner spinner.Model
	err     string

	width  int
	height int
	theme  Theme
}

// NewReviewListModel creates the list over the controller's projection
func NewReviewListModel(ctrl *review.Controller, theme Theme) ReviewListModel {
	m := ReviewListModel{ctrl: ctrl, theme: theme}
	for i := range m.filters {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 64
		in.Width = 14
		in.Placeholder = strings.ToLower(filterLabels[i])
		if i == filterStart || i == filterEnd {
			in.Placeholder = "YYYY-MM-DD"
		}
		m.filters[i] = in
	}
	m.jump = textinput.New()
	m.jump.Prompt = "/"
	m.jump.Placeholder = "review id, barcode, user..."
	m.jump.Width = 30

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	return m
}

// SetSize sets dimensions
func (m *ReviewListModel) SetSize(width, height int) {
	m.width, m.height = width, height
	m.ensureVisible()
}

// SetLoading enters the loading state
func (m *ReviewListModel) SetLoading() tea.Cmd {
	m.loading = true
	m.err = ""
	return m.spinner.Tick
}

// SetError leaves the loading state with an inline error banner
func (m *ReviewListModel) SetError(msg string) {
	m.loading = false
	m.err = msg
}

// Loaded leaves the loading state after the projection was refreshed
func (m *ReviewListModel) Loaded() {
	m.loading = false
	m.err = ""
	m.clampCursor()
}

// Loading reports whether a fetch is outstanding
func (m ReviewListModel) Loading() bool { return m.loading }

// Err returns the inline error banner text
func (m ReviewListModel) Err() string { return m.err }

// Editing reports whether a text field has focus
func (m ReviewListModel) Editing() bool { return m.editing || m.jumping }

// Selected returns the review under the cursor
func (m ReviewListModel) Selected() (model.Review, bool) {
	visible := m.ctrl.Projection().Visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return model.Review{}, false
	}
	return visible[m.cursor], true
}

// SetFilter sets one filter field and re-applies the criteria
func (m *ReviewListModel) SetFilter(field int, value string) {
	if field < 0 || field >= filterCount {
		return
	}
	m.filters[field].SetValue(value)
	m.applyFilters()
}

// Criteria returns the raw criteria from the filter inputs
func (m ReviewListModel) Criteria() model.FilterCriteria {
	return model.FilterCriteria{
		Barcode:     m.filters[filterBarcode].Value(),
		EquipmentID: m.filters[filterEquipment].Value(),
		Username:    m.filters[filterUsername].Value(),
		StartDate:   m.filters[filterStart].Value(),
		EndDate:     m.filters[filterEnd].Value(),
	}
}

func (m *ReviewListModel) applyFilters() {
	m.ctrl.Projection().SetCriteria(m.Criteria())
	m.clampCursor()
}

func (m *ReviewListModel) clearFilters() {
	for i := range m.filters {
		m.filters[i].Reset()
	}
	m.applyFilters()
}

func (m *ReviewListModel) focusFilter(i int) {
	m.filters[m.filterIdx].Blur()
	m.filterIdx = (i + filterCount) % filterCount
	m.filters[m.filterIdx].Focus()
}

// Update handles input
func (m ReviewListModel) Update(msg tea.Msg) (ReviewListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch {
		case m.editing:
			return m.updateFilters(msg)
		case m.jumping:
			return m.updateJump(msg)
		}
		return m.updateKeys(msg)
	}

	// cursor blink for whichever input has focus
	var cmd tea.Cmd
	switch {
	case m.editing:
		m.filters[m.filterIdx], cmd = m.filters[m.filterIdx].Update(msg)
	case m.jumping:
		m.jump, cmd = m.jump.Update(msg)
	}
	return m, cmd
}

func (m ReviewListModel) updateFilters(msg tea.KeyMsg) (ReviewListModel, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.filters[m.filterIdx].Blur()
		m.editing = false
		return m, nil
	case "tab", "down":
		m.focusFilter(m.filterIdx + 1)
		return m, nil
	case "shift+tab", "up":
		m.focusFilter(m.filterIdx - 1)
		return m, nil
	}
	var cmd tea.Cmd
	m.filters[m.filterIdx], cmd = m.filters[m.filterIdx].Update(msg)
	m.applyFilters()
	return m, cmd
}

func (m ReviewListModel) updateJump(msg tea.KeyMsg) (ReviewListModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.jumping = false
		m.jump.Blur()
		m.jump.Reset()
		return m, nil
	case "enter":
		m.jumping = false
		m.jump.Blur()
		m.jumpTo(m.jump.Value())
		m.jump.Reset()
		return m, nil
	}
	var cmd tea.Cmd
	m.jump, cmd = m.jump.Update(msg)
	return m, cmd
}

// jumpTo moves the cursor to the best fuzzy match in the visible list
func (m *ReviewListModel) jumpTo(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	matches := fuzzy.FindFrom(query, reviewSource(m.ctrl.Projection().Visible()))
	if len(matches) == 0 {
		return false
	}
	m.cursor = matches[0].Index
	m.ensureVisible()
	return true
}

func (m ReviewListModel) updateKeys(msg tea.KeyMsg) (ReviewListModel, tea.Cmd) {
	visible, _ := m.ctrl.Projection().Len()
	switch msg.String() {
	case "j", "down":
		if m.cursor < visible-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = visible - 1
	case "pgdown", "ctrl+d":
		m.cursor += m.pageSize()
	case "pgup", "ctrl+u":
		m.cursor -= m.pageSize()
	case "f":
		m.editing = true
		m.filters[m.filterIdx].Focus()
		return m, textinput.Blink
	case "x":
		m.clearFilters()
	case "/":
		m.jumping = true
		m.jump.Focus()
		return m, textinput.Blink
	case "enter":
		if r, ok := m.Selected(); ok {
			return m, emit(openReviewMsg{id: r.ReviewID})
		}
	case "m":
		if r, ok := m.Selected(); ok {
			return m, emit(assignIntentMsg{id: r.ReviewID})
		}
	case "e":
		return m, emit(exportIntentMsg{})
	case "r":
		return m, emit(reloadIntentMsg{})
	}
	m.clampCursor()
	return m, nil
}

func (m *ReviewListModel) clampCursor() {
	visible, _ := m.ctrl.Projection().Len()
	if m.cursor >= visible {
		m.cursor = visible - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
}

func (m ReviewListModel) pageSize() int {
	// filter bar, banner, header and footer take the rest
	rows := m.height - 9
	if rows < 3 {
		rows = 3
	}
	return rows
}

func (m *ReviewListModel) ensureVisible() {
	rows := m.pageSize()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View renders filters, banner and table
func (m ReviewListModel) View() string {
	var b strings.Builder
	b.WriteString(m.renderFilters())
	b.WriteString("\n")

	proj := m.ctrl.Projection()
	visible, total := proj.Len()
	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Loading reviews...")
	case m.err != "":
		b.WriteString(m.theme.Style().Bold(true).Foreground(m.theme.Danger).Render("✗ " + m.err + "  [r] retry"))
	case total == 0:
		b.WriteString(m.theme.Style().Foreground(m.theme.Muted).Render("No reviews yet"))
	default:
		count := fmt.Sprintf("%d of %d reviews", visible, total)
		if !proj.FetchedAt().IsZero() {
			count += " · fetched " + proj.FetchedAt().Local().Format("15:04:05")
		}
		b.WriteString(m.theme.Style().Foreground(m.theme.Muted).Render(count))
	}
	b.WriteString("\n\n")

	if m.jumping {
		b.WriteString(m.jump.View() + "\n")
	}
	b.WriteString(m.renderTable(proj.Visible()))
	b.WriteString("\n")
	b.WriteString(m.theme.Style().Faint(true).Render("[Enter] open  [m] assign to me  [f] filter  [x] clear  [/] jump  [e] export  [r] reload  [?] help"))
	return b.String()
}

func (m ReviewListModel) renderFilters() string {
	invalid := map[string]bool{}
	for _, name := range m.ctrl.Projection().Criteria().Invalid() {
		invalid[name] = true
	}

	cells := make([]string, 0, filterCount)
	for i, in := range m.filters {
		label := m.theme.Style().Foreground(m.theme.Subtext)
		border := m.theme.Border
		switch {
		case (i == filterStart && invalid["start_date"]) || (i == filterEnd && invalid["end_date"]):
			border = m.theme.Danger
			label = label.Foreground(m.theme.Danger)
		case m.editing && i == m.filterIdx:
			border = m.theme.Primary
		}
		box := m.theme.Style().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Width(in.Width + 2)
		cells = append(cells, lipgloss.JoinVertical(lipgloss.Left, label.Render(filterLabels[i]), box.Render(in.View())))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m ReviewListModel) tableColumns() []column {
	cols := []column{
		{"Review ID", 12},
		{"Equipment ID", 12},
		{"Barcode", 12},
		{"Created By", 12},
		{"Created At", len(timeLayout)},
		{"Reviewed By", 14},
		{"Reviewed At", len(timeLayout)},
		{"Status", 10},
	}
	width := m.width
	if width <= 0 {
		width = 120
	}
	return fitColumns(cols, width)
}

func (m ReviewListModel) renderTable(reviews []model.Review) string {
	cols := m.tableColumns()

	var b strings.Builder
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = truncateOrPad(c.title, c.width)
	}
	b.WriteString(m.theme.Style().Bold(true).Foreground(m.theme.Secondary).Render(strings.Join(header, " ")))
	b.WriteString("\n")

	end := m.offset + m.pageSize()
	if end > len(reviews) {
		end = len(reviews)
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(reviews[i], cols, i == m.cursor))
		b.WriteString("\n")
	}
	return b.String()
}

func (m ReviewListModel) renderRow(r model.Review, cols []column, selected bool) string {
	base := m.theme.Style().Foreground(m.theme.Text)
	if selected {
		base = base.Background(m.theme.Highlight).Bold(true)
	}

	reviewer, assigned := r.Reviewer()
	var reviewerCell string
	switch {
	case m.ctrl.InFlight(r.ReviewID):
		reviewerCell = base.Foreground(m.theme.Info).Render(truncateOrPad("Assigning…", cols[5].width))
	case assigned:
		reviewerCell = base.Render(truncateOrPad(reviewer, cols[5].width))
	case m.ctrl.CanAssign(r):
		reviewerCell = base.Foreground(m.theme.Primary).Render(truncateOrPad("[m] Assign to Me", cols[5].width))
	default:
		reviewerCell = base.Foreground(m.theme.Muted).Render(truncateOrPad("Unassigned", cols[5].width))
	}

	cells := []string{
		base.Render(truncateOrPad(r.ReviewID, cols[0].width)),
		base.Render(truncateOrPad(orDash(r.EquipmentID.String()), cols[1].width)),
		base.Render(truncateOrPad(orDash(r.Barcode), cols[2].width)),
		base.Render(truncateOrPad(orDash(r.CreatedBy), cols[3].width)),
		base.Render(truncateOrPad(formatTime(r.CreatedAt), cols[4].width)),
		reviewerCell,
		base.Render(truncateOrPad(formatTimePtr(r.ReviewedAt), cols[6].width)),
		base.Bold(true).Foreground(m.theme.StatusColor(r.Status)).Render(truncateOrPad(string(r.Status), cols[7].width)),
	}
	sep := base.Render(" ")
	return strings.Join(cells, sep)
}

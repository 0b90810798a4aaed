package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
)

const noImage = "No image available"

type (
	decideIntentMsg struct {
		id       string
		decision model.Status
	}
	backMsg   struct{}
	noticeMsg struct{ notice review.Notice }
)

// clipboardWrite is replaced in tests
var clipboardWrite = clipboard.WriteAll

// ReviewDetailModel shows one review and its approval actions
type ReviewDetailModel struct {
	ctrl     *review.Controller
	imageURL func(string) string

	review  model.Review
	loaded  bool
	loading bool
	err     string
	spinner spinner.Model

	viewport viewport.Model
	width    int
	height   int
	theme    Theme
}

// NewReviewDetailModel creates the detail screen. imageURL resolves a
// stored image path against the configured host.
func NewReviewDetailModel(ctrl *review.Controller, imageURL func(string) string, theme Theme) ReviewDetailModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if imageURL == nil {
		imageURL = func(p string) string { return p }
	}
	return ReviewDetailModel{
		ctrl:     ctrl,
		imageURL: imageURL,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		theme:    theme,
	}
}

// Open shows r immediately and marks a refresh as outstanding
func (m *ReviewDetailModel) Open(r model.Review) tea.Cmd {
	m.review = r
	m.loaded = r.ReviewID != ""
	m.loading = true
	m.err = ""
	m.viewport.GotoTop()
	m.refresh()
	return m.spinner.Tick
}

// SetReview replaces the shown review with server state
func (m *ReviewDetailModel) SetReview(r model.Review) {
	m.review = r
	m.loaded = true
	m.loading = false
	m.err = ""
	m.refresh()
}

// SetError ends the refresh with an error; a review already shown stays
func (m *ReviewDetailModel) SetError(msg string) {
	m.loading = false
	m.err = msg
	m.refresh()
}

// Review returns the review on screen
func (m ReviewDetailModel) Review() model.Review { return m.review }

// SetSize sets dimensions
func (m *ReviewDetailModel) SetSize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = height - 4
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.refresh()
}

func (m *ReviewDetailModel) refresh() {
	m.viewport.SetContent(m.renderBody())
}

// Update handles input
func (m ReviewDetailModel) Update(msg tea.Msg) (ReviewDetailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "backspace", "b":
			return m, emit(backMsg{})
		case "a":
			if m.loaded {
				return m, emit(decideIntentMsg{id: m.review.ReviewID, decision: model.StatusApproved})
			}
			return m, nil
		case "d":
			if m.loaded {
				return m, emit(decideIntentMsg{id: m.review.ReviewID, decision: model.StatusRejected})
			}
			return m, nil
		case "y":
			return m, m.copy("Review ID", m.review.ReviewID)
		case "i":
			return m, m.copy("Image URL", m.imageURL(m.review.ImageURL))
		}
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ReviewDetailModel) copy(what, value string) tea.Cmd {
	return func() tea.Msg {
		n := review.Notice{Level: review.LevelInfo, Title: what + " copied", Message: value, ReviewID: m.review.ReviewID, At: time.Now()}
		if value == "" {
			n.Level, n.Title, n.Message = review.LevelWarn, "Nothing to copy", what+" is empty"
		} else if err := clipboardWrite(value); err != nil {
			n.Level, n.Title, n.Message = review.LevelWarn, "Clipboard unavailable", err.Error()
		}
		return noticeMsg{notice: n}
	}
}

// View renders the header, body and action bar
func (m ReviewDetailModel) View() string {
	var b strings.Builder
	title := m.theme.Style().Bold(true).Foreground(m.theme.Primary).Render("Review " + m.review.ReviewID)
	b.WriteString(title + "  " + RenderStatusBadge(m.review.Status))
	switch {
	case m.loading:
		b.WriteString("  " + m.spinner.View() + " refreshing")
	case m.err != "":
		b.WriteString("  " + m.theme.Style().Foreground(m.theme.Danger).Render("✗ "+m.err))
	}
	b.WriteString("\n")
	b.WriteString(RenderDivider(m.width))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderActions())
	return b.String()
}

func (m ReviewDetailModel) renderActions() string {
	hint := m.theme.Style().Faint(true)
	keys := "[Esc] back  [y] copy id  [i] copy image URL"
	switch {
	case !m.loaded:
		return hint.Render(keys)
	case m.ctrl.InFlight(m.review.ReviewID):
		return m.theme.Style().Foreground(m.theme.Info).Render("Updating review...") + "  " + hint.Render(keys)
	case m.ctrl.CanDecide(m.review):
		approve := m.theme.Style().Bold(true).Foreground(m.theme.Approved).Render("[a] Approve")
		reject := m.theme.Style().Bold(true).Foreground(m.theme.Rejected).Render("[d] Reject")
		return approve + "  " + reject + "  " + hint.Render(keys)
	}
	return hint.Render(keys)
}

func (m ReviewDetailModel) renderBody() string {
	if !m.loaded {
		if m.err != "" {
			return m.theme.Style().Foreground(m.theme.Danger).Render(m.err)
		}
		return m.theme.Style().Foreground(m.theme.Muted).Render("Loading review...")
	}
	r := m.review

	label := m.theme.Style().Foreground(m.theme.Secondary).Width(16)
	value := m.theme.Style().Foreground(m.theme.Text)
	muted := m.theme.Style().Foreground(m.theme.Muted)

	reviewer, ok := r.Reviewer()
	if !ok {
		reviewer = "Unassigned"
	}
	image := m.imageURL(r.ImageURL)
	imageLine := value.Render(image)
	if image == "" {
		imageLine = muted.Render(noImage)
	}

	rows := []struct{ k, v string }{
		{"Review ID", r.ReviewID},
		{"Equipment ID", orDash(r.EquipmentID.String())},
		{"Barcode", orDash(r.Barcode)},
		{"Manufacturer", orDash(r.Manufacturer)},
		{"Model Number", orDash(r.ModelNumber)},
		{"Serial Number", orDash(r.SerialNumber)},
		{"Created By", orDash(r.CreatedBy)},
		{"Created At", formatTime(r.CreatedAt)},
		{"Reviewed By", reviewer},
		{"Reviewed At", formatTimePtr(r.ReviewedAt)},
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(label.Render(row.k) + value.Render(row.v) + "\n")
	}
	b.WriteString(label.Render("Status") + statusLabel(r.Status, m.theme) + "\n")
	b.WriteString(label.Render("Image") + imageLine + "\n\n")

	b.WriteString(m.theme.Style().Bold(true).Foreground(m.theme.Secondary).Render("Reviewed Data"))
	b.WriteString("\n")
	b.WriteString(renderReviewedData(r.ReviewedData.String(), m.width))
	return b.String()
}

// reviewedDataMarkdown formats reviewed data for display. Valid JSON is
// indented in a fenced block; anything else is shown as plain text.
func reviewedDataMarkdown(data string) string {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" {
		return "_No reviewed data_"
	}
	if json.Valid([]byte(data)) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(data), "", "  "); err == nil {
			fence := codeFence(buf.String())
			return fence + "json\n" + buf.String() + "\n" + fence
		}
	}
	fence := codeFence(data)
	return fence + "\n" + data + "\n" + fence
}

// codeFence returns a backtick fence longer than any backtick run in body
func codeFence(body string) string {
	longest, run := 0, 0
	for _, c := range body {
		if c != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return strings.Repeat("`", max(3, longest+1))
}

func renderReviewedData(data string, width int) string {
	md := reviewedDataMarkdown(data)
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

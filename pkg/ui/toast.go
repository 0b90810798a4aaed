package ui

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/itmstools/itms_console/pkg/review"
)

const maxToasts = 4

type toast struct {
	id     int
	notice review.Notice
}

type toastExpiredMsg struct{ id int }

// ToastStack holds non-blocking notices that expire on their own
type ToastStack struct {
	items    []toast
	nextID   int
	duration time.Duration
	theme    Theme
}

// NewToastStack creates a stack whose toasts last for d
func NewToastStack(d time.Duration, theme Theme) ToastStack {
	if d <= 0 {
		d = 4 * time.Second
	}
	return ToastStack{duration: d, theme: theme}
}

// SetDuration changes how long new toasts stay up
func (s *ToastStack) SetDuration(d time.Duration) {
	if d > 0 {
		s.duration = d
	}
}

// Push adds a notice and returns the command that will expire it
func (s *ToastStack) Push(n review.Notice) tea.Cmd {
	s.nextID++
	id := s.nextID
	s.items = append(s.items, toast{id: id, notice: n})
	if len(s.items) > maxToasts {
		s.items = s.items[len(s.items)-maxToasts:]
	}
	return tea.Tick(s.duration, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

// Expire removes the toast with the given id
func (s *ToastStack) Expire(id int) {
	for i, t := range s.items {
		if t.id == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Notices returns the visible notices, oldest first
func (s ToastStack) Notices() []review.Notice {
	out := make([]review.Notice, len(s.items))
	for i, t := range s.items {
		out[i] = t.notice
	}
	return out
}

// View renders the stack, or "" when empty
func (s ToastStack) View(width int) string {
	if len(s.items) == 0 {
		return ""
	}
	if width <= 0 || width > 48 {
		width = 48
	}
	boxes := make([]string, 0, len(s.items))
	for _, t := range s.items {
		color := levelColor(s.theme, t.notice.Level)
		body := s.theme.Style().Bold(true).Foreground(color).Render(t.notice.Title)
		if t.notice.Message != "" {
			body += "\n" + s.theme.Style().Foreground(s.theme.Text).Render(t.notice.Message)
		}
		boxes = append(boxes, s.theme.Style().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(0, 1).
			Width(width).
			Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Right, boxes...)
}

func levelColor(t Theme, l review.Level) lipgloss.AdaptiveColor {
	switch l {
	case review.LevelSuccess:
		return t.Success
	case review.LevelWarn:
		return t.Warning
	case review.LevelError:
		return t.Danger
	}
	return t.Info
}

// AlertModel is a blocking modal that must be dismissed
type AlertModel struct {
	title   string
	message string
	visible bool
	theme   Theme
}

// NewAlertModel creates a hidden alert
func NewAlertModel(theme Theme) AlertModel {
	return AlertModel{theme: theme}
}

// Show displays the alert
func (m *AlertModel) Show(title, message string) {
	m.title, m.message, m.visible = title, message, true
}

// IsVisible reports whether the alert is blocking input
func (m AlertModel) IsVisible() bool { return m.visible }

// Message returns the alert text
func (m AlertModel) Message() string { return m.message }

// Update dismisses the alert on enter or esc
func (m AlertModel) Update(msg tea.Msg) (AlertModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && m.visible {
		switch key.String() {
		case "enter", "esc", " ":
			m.visible = false
		}
	}
	return m, nil
}

// View renders the alert box
func (m AlertModel) View() string {
	if !m.visible {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.theme.Style().Bold(true).Foreground(m.theme.Danger).Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.theme.Style().Foreground(m.theme.Text).Width(40).Render(m.message))
	b.WriteString("\n\n")
	b.WriteString(m.theme.Style().Faint(true).Render("[Enter] OK"))
	return m.theme.Style().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(m.theme.Danger).
		Padding(1, 2).
		Render(b.String())
}

// noticeQueue collects notices raised off the UI goroutine until Update
// drains them
type noticeQueue struct {
	mu      sync.Mutex
	pending []review.Notice
}

func (q *noticeQueue) Notify(n review.Notice) {
	q.mu.Lock()
	q.pending = append(q.pending, n)
	q.mu.Unlock()
}

func (q *noticeQueue) drain() []review.Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// loginSubmitMsg asks the app to authenticate with the entered credentials
type loginSubmitMsg struct {
	email    string
	password string
}

// LoginModel is the sign-in screen
type LoginModel struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	spinner  spinner.Model
	busy     bool
	err      string
	width    int
	height   int
	theme    Theme
}

// NewLoginModel creates the sign-in form
func NewLoginModel(theme Theme) LoginModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254
	email.Width = 36
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 36

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return LoginModel{email: email, password: password, spinner: sp, theme: theme}
}

// Reset clears the form for a fresh sign-in
func (m *LoginModel) Reset() {
	m.email.Reset()
	m.password.Reset()
	m.err = ""
	m.busy = false
	m.setFocus(0)
}

// SetError shows an inline error and ends the busy state
func (m *LoginModel) SetError(msg string) {
	m.err = msg
	m.busy = false
	m.password.Reset()
	m.setFocus(1)
}

// Error returns the inline error, if any
func (m LoginModel) Error() string { return m.err }

// Busy reports whether a sign-in request is outstanding
func (m LoginModel) Busy() bool { return m.busy }

// SetSize sets dimensions
func (m *LoginModel) SetSize(width, height int) {
	m.width, m.height = width, height
}

func (m *LoginModel) setFocus(i int) {
	m.focus = i
	if i == 0 {
		m.email.Focus()
		m.password.Blur()
	} else {
		m.email.Blur()
		m.password.Focus()
	}
}

// Update handles input
func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab", "down", "shift+tab", "up":
			m.setFocus(1 - m.focus)
			return m, nil
		case "enter":
			if m.focus == 0 {
				m.setFocus(1)
				return m, nil
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m LoginModel) submit() (LoginModel, tea.Cmd) {
	email := strings.TrimSpace(m.email.Value())
	if email == "" || m.password.Value() == "" {
		m.err = "Email and password are required"
		return m, nil
	}
	m.err = ""
	m.busy = true
	submit := loginSubmitMsg{email: email, password: m.password.Value()}
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return submit })
}

// View renders the sign-in card
func (m LoginModel) View() string {
	var b strings.Builder

	b.WriteString(m.theme.Style().Bold(true).Foreground(m.theme.Primary).Render("ITMS Console"))
	b.WriteString("\n")
	b.WriteString(m.theme.Style().Foreground(m.theme.Muted).Render("Sign in to review equipment submissions"))
	b.WriteString("\n\n")

	label := m.theme.Style().Foreground(m.theme.Subtext)
	field := m.theme.Style().Border(lipgloss.NormalBorder(), false, false, true, false).Padding(0, 1)
	focused := field.BorderForeground(m.theme.Primary)
	blurred := field.BorderForeground(m.theme.Border)

	styles := [2]lipgloss.Style{blurred, blurred}
	styles[m.focus] = focused

	b.WriteString(label.Render("Email") + "\n")
	b.WriteString(styles[0].Render(m.email.View()) + "\n\n")
	b.WriteString(label.Render("Password") + "\n")
	b.WriteString(styles[1].Render(m.password.View()) + "\n\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " Signing in...")
	case m.err != "":
		b.WriteString(m.theme.Style().Foreground(m.theme.Danger).Render("✗ " + m.err))
	default:
		b.WriteString(m.theme.Style().Faint(true).Render("[Tab] Next field  [Enter] Sign in  [Ctrl+C] Quit"))
	}

	card := m.theme.Style().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Border).
		Padding(1, 3).
		Render(b.String())
	if m.width == 0 || m.height == 0 {
		return card
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, card)
}

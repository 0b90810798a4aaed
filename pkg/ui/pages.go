package ui

import (
	"fmt"
	"strings"

	"github.com/itmstools/itms_console/pkg/config"
	"github.com/itmstools/itms_console/pkg/model"
)

func (a *App) renderProfile(sess model.Session) string {
	t := a.theme
	label := t.Style().Foreground(t.Secondary).Width(14)
	value := t.Style().Foreground(t.Text)

	expires := "never"
	if !sess.ExpiresAt.IsZero() {
		expires = formatTime(sess.ExpiresAt)
	}
	rows := []struct{ k, v string }{
		{"Name", orDash(sess.Username)},
		{"Email", orDash(sess.Email)},
		{"Role", string(sess.Role)},
		{"User ID", orDash(sess.UserID)},
		{"Signed in", formatTime(sess.StartedAt)},
		{"Expires", expires},
	}

	var b strings.Builder
	b.WriteString(t.Style().Bold(true).Foreground(t.Primary).Render("Profile"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(label.Render(r.k) + value.Render(r.v) + "\n")
	}
	return b.String()
}

func renderSettings(cfg *config.Config, t Theme) string {
	label := t.Style().Foreground(t.Secondary).Width(16)
	value := t.Style().Foreground(t.Text)

	rows := []struct{ k, v string }{
		{"Config file", orDash(cfg.Path)},
		{"API", cfg.API.BaseURL},
		{"Image host", cfg.ImageHost()},
		{"Timeout", cfg.API.Timeout.String()},
		{"Export to", cfg.ExportPath()},
		{"Journal", cfg.JournalPath()},
		{"Log level", cfg.Log.Level},
		{"Toasts", cfg.UI.ToastDuration.String()},
	}

	var b strings.Builder
	b.WriteString(t.Style().Bold(true).Foreground(t.Primary).Render("Settings"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(label.Render(r.k) + value.Render(r.v) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(t.Style().Faint(true).Render("Edits to the config file are picked up while the console is running."))
	return b.String()
}

func renderUnavailable(title string, t Theme) string {
	return t.Style().Bold(true).Foreground(t.Primary).Render(title) + "\n\n" +
		t.Style().Foreground(t.Muted).Render(fmt.Sprintf("%s are managed from the web dashboard.", title))
}

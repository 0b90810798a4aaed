package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/itmstools/itms_console/pkg/config"
	"github.com/itmstools/itms_console/pkg/ui"
	"github.com/itmstools/itms_console/pkg/watcher"
)

// runConsole starts the TUI and feeds config file edits into it until the
// user quits.
func runConsole(ctx context.Context, e *env) error {
	opts := []ui.AppOption{ui.WithLogger(e.log)}
	if e.recorder != nil {
		opts = append(opts, ui.WithRecorder(e.recorder))
	}
	app := ui.NewApp(e.cfg, e.client, e.sessions, opts...)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	w := watcher.NewFileWatcher(e.cfg.Path, func(path string) {
		next, err := config.LoadFile(path)
		if err == nil {
			e.log.SetLevelString(next.Log.Level)
		}
		p.Send(ui.ConfigReloadedMsg{Config: next, Err: err})
	}, watcher.WithLogger(e.log))
	if err := w.Start(ctx); err != nil {
		e.log.WithError(err).Warn("config watcher disabled")
	} else {
		defer w.Stop()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}

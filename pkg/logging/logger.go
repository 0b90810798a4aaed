// Package logging writes the client's log to a file. The TUI owns the
// terminal, so nothing is logged to stdout or stderr.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileName is the log file inside <data dir>/logs
const FileName = "itms.log"

// Logger appends structured lines to <data dir>/logs/itms.log
type Logger struct {
	*logrus.Logger
	file *os.File
	path string
}

// New creates (or reuses) the log file under dataDir
func New(dataDir, level string) (*Logger, error) {
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	l := logrus.New()
	l.SetOutput(f)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	l.SetLevel(ParseLevel(level))
	return &Logger{Logger: l, file: f, path: path}, nil
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// Path returns the log file location, empty for a discarding logger
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// SetLevelString changes the level, e.g. after a config reload
func (l *Logger) SetLevelString(level string) {
	l.SetLevel(ParseLevel(level))
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a config level onto logrus, defaulting to info
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

type ctxKey struct{}

// WithContext stores an entry in ctx so request-scoped fields travel with it
func WithContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored by WithContext, or one built on fallback
func FromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return fallback
}

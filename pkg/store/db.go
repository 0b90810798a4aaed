// Package store is the client's local sqlite journal: the persisted login and
// a history of workflow actions. It never holds review state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
)

// FileName is the database file inside the data directory
const FileName = "itms.db"

// DefaultPath returns the database path inside dataDir
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// DB handles journal persistence
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates the journal database at the given path
func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	jdb := &DB{db: db}
	if err := jdb.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return jdb, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		email TEXT DEFAULT '',
		role TEXT NOT NULL,
		token TEXT NOT NULL,
		started_at TEXT NOT NULL,
		expires_at TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		review_id TEXT NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		actor TEXT NOT NULL,
		message TEXT DEFAULT '',
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_review_id ON actions(review_id);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT DEFAULT '',
		assigned INTEGER DEFAULT 0,
		approved INTEGER DEFAULT 0,
		rejected INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// SaveSession stores the single persisted login
func (d *DB) SaveSession(ctx context.Context, s model.Session) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO session (id, user_id, username, email, role, token, started_at, expires_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			email = excluded.email,
			role = excluded.role,
			token = excluded.token,
			started_at = excluded.started_at,
			expires_at = excluded.expires_at
	`, s.UserID, s.Username, s.Email, string(s.Role), s.Token, formatTime(s.StartedAt), formatTime(s.ExpiresAt))
	return err
}

// LoadSession returns the persisted login, if any
func (d *DB) LoadSession(ctx context.Context) (model.Session, bool, error) {
	var s model.Session
	var role, startedAt, expiresAt string
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, role, token, started_at, expires_at
		FROM session
		WHERE id = 1
	`).Scan(&s.UserID, &s.Username, &s.Email, &role, &s.Token, &startedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, err
	}
	s.Role = model.ParseRole(role)
	s.StartedAt = parseTime(startedAt)
	s.ExpiresAt = parseTime(expiresAt)
	return s, true, nil
}

// ClearSession removes the persisted login
func (d *DB) ClearSession(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM session`)
	return err
}

// RecordAction appends a workflow action to the history
func (d *DB) RecordAction(ctx context.Context, rec review.ActionRecord) error {
	at := rec.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO actions (review_id, action, outcome, actor, message, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ReviewID, string(rec.Action), rec.Outcome, rec.Actor, rec.Message, formatTime(at))
	return err
}

// RecentActions returns the newest actions first
func (d *DB) RecentActions(ctx context.Context, limit int) ([]review.ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return d.queryActions(ctx, `
		SELECT review_id, action, outcome, actor, message, at
		FROM actions
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
}

// ActionsForReview returns the history of one review, newest first
func (d *DB) ActionsForReview(ctx context.Context, reviewID string) ([]review.ActionRecord, error) {
	return d.queryActions(ctx, `
		SELECT review_id, action, outcome, actor, message, at
		FROM actions
		WHERE review_id = ?
		ORDER BY at DESC, id DESC
	`, reviewID)
}

func (d *DB) queryActions(ctx context.Context, query string, args ...any) ([]review.ActionRecord, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.ActionRecord
	for rows.Next() {
		var rec review.ActionRecord
		var action, at string
		if err := rows.Scan(&rec.ReviewID, &action, &rec.Outcome, &rec.Actor, &rec.Message, &at); err != nil {
			return nil, err
		}
		rec.Action = review.Action(action)
		rec.Timestamp = parseTime(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Run is one TUI or CLI session of workflow activity
type Run struct {
	ID          int64
	Actor       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Tally       review.Tally
}

// StartRun creates a new run row
func (d *DB) StartRun(ctx context.Context, actor string) (*Run, error) {
	now := time.Now()
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (actor, started_at)
		VALUES (?, ?)
	`, actor, formatTime(now))
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Run{ID: id, Actor: actor, StartedAt: now}, nil
}

// UpdateRunCounters stores the run's current tally
func (d *DB) UpdateRunCounters(ctx context.Context, run *Run) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE runs
		SET assigned = ?, approved = ?, rejected = ?, failed = ?
		WHERE id = ?
	`, run.Tally.Assigned, run.Tally.Approved, run.Tally.Rejected, run.Tally.Failed, run.ID)
	return err
}

// CompleteRun marks a run as finished
func (d *DB) CompleteRun(ctx context.Context, run *Run) error {
	now := time.Now()
	run.CompletedAt = &now
	_, err := d.db.ExecContext(ctx, `
		UPDATE runs
		SET completed_at = ?, assigned = ?, approved = ?, rejected = ?, failed = ?
		WHERE id = ?
	`, formatTime(now), run.Tally.Assigned, run.Tally.Approved, run.Tally.Rejected, run.Tally.Failed, run.ID)
	return err
}

// GetRun retrieves a run by ID
func (d *DB) GetRun(ctx context.Context, id int64) (*Run, error) {
	var r Run
	var startedAt, completedAt string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, actor, started_at, completed_at, assigned, approved, rejected, failed
		FROM runs
		WHERE id = ?
	`, id).Scan(&r.ID, &r.Actor, &startedAt, &completedAt, &r.Tally.Assigned, &r.Tally.Approved, &r.Tally.Rejected, &r.Tally.Failed)
	if err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(startedAt)
	if t := parseTime(completedAt); !t.IsZero() {
		r.CompletedAt = &t
	}
	return &r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

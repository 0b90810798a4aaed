package store

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/itmstools/itms_console/pkg/review"
)

// Recorder journals workflow actions and keeps the current run's counters
type Recorder struct {
	db  *DB
	log logrus.FieldLogger

	mu  sync.Mutex
	run *Run
}

// NewRecorder wraps an open database
func NewRecorder(db *DB, log logrus.FieldLogger) *Recorder {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Recorder{db: db, log: log}
}

// StartRun begins counting actions for actor
func (r *Recorder) StartRun(ctx context.Context, actor string) error {
	run, err := r.db.StartRun(ctx, actor)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.run = run
	r.mu.Unlock()
	return nil
}

// CurrentRun returns a copy of the active run, or nil
func (r *Recorder) CurrentRun() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return nil
	}
	cp := *r.run
	return &cp
}

// RecordAction writes the action and updates run counters
func (r *Recorder) RecordAction(ctx context.Context, rec review.ActionRecord) error {
	if err := r.db.RecordAction(ctx, rec); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return nil
	}
	switch rec.Outcome {
	case review.OutcomeSucceeded:
		switch rec.Action {
		case review.ActionAssign:
			r.run.Tally.Assigned++
		case review.ActionApprove:
			r.run.Tally.Approved++
		case review.ActionReject:
			r.run.Tally.Rejected++
		}
	case review.OutcomeFailed:
		r.run.Tally.Failed++
	}
	if err := r.db.UpdateRunCounters(ctx, r.run); err != nil {
		r.log.WithError(err).Warn("failed to update run counters")
	}
	return nil
}

// History returns a review's journal entries
func (r *Recorder) History(ctx context.Context, reviewID string) ([]review.ActionRecord, error) {
	return r.db.ActionsForReview(ctx, reviewID)
}

// CompleteRun marks the current run as finished
func (r *Recorder) CompleteRun(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return nil
	}
	err := r.db.CompleteRun(ctx, r.run)
	r.run = nil
	return err
}

// TryOpenRecorder opens the journal at path, logging errors but not failing.
// Workflow actions still work without a journal.
func TryOpenRecorder(path string, log logrus.FieldLogger) (*DB, *Recorder) {
	db, err := OpenDB(path)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("could not open journal database")
		}
		return nil, nil
	}
	return db, NewRecorder(db, log)
}

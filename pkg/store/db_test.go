package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "nested", FileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, ok, err := db.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := model.Session{
		UserID: "u1", Username: "admin", Email: "a@example.com", Role: model.RoleAdmin,
		Token: "tok", StartedAt: started, ExpiresAt: started.Add(time.Hour),
	}
	require.NoError(t, db.SaveSession(ctx, in))

	in.Username = "admin2"
	require.NoError(t, db.SaveSession(ctx, in), "second save replaces the row")

	out, ok, err := db.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "admin2", out.Username)
	assert.Equal(t, "tok", out.Token)
	assert.Equal(t, model.RoleAdmin, out.Role)
	assert.True(t, out.ExpiresAt.Equal(in.ExpiresAt))

	require.NoError(t, db.ClearSession(ctx))
	_, ok, err = db.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionWithoutExpiry(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveSession(ctx, model.Session{UserID: "u1", Username: "x", Role: model.RoleUser, StartedAt: time.Now()}))

	out, ok, err := db.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, out.ExpiresAt.IsZero())
}

func TestActions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	recs := []review.ActionRecord{
		{ReviewID: "r1", Action: review.ActionAssign, Outcome: review.OutcomeSucceeded, Actor: "admin", Timestamp: base},
		{ReviewID: "r2", Action: review.ActionApprove, Outcome: review.OutcomeFailed, Actor: "admin", Message: "boom", Timestamp: base.Add(time.Minute)},
		{ReviewID: "r1", Action: review.ActionApprove, Outcome: review.OutcomeSucceeded, Actor: "admin", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, r := range recs {
		require.NoError(t, db.RecordAction(ctx, r))
	}

	recent, err := db.RecentActions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, review.ActionApprove, recent[0].Action)
	assert.Equal(t, "r1", recent[0].ReviewID)
	assert.Equal(t, "boom", recent[1].Message)

	history, err := db.ActionsForReview(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, review.ActionAssign, history[1].Action)
	assert.True(t, history[1].Timestamp.Equal(base))
}

func TestRecorderCountsRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	rec := NewRecorder(db, nil)

	require.NoError(t, rec.RecordAction(ctx, review.ActionRecord{ReviewID: "r0", Action: review.ActionAssign, Outcome: review.OutcomeSucceeded}), "recording works without a run")
	require.NoError(t, rec.StartRun(ctx, "admin"))

	for _, r := range []review.ActionRecord{
		{ReviewID: "r1", Action: review.ActionAssign, Outcome: review.OutcomeSucceeded},
		{ReviewID: "r1", Action: review.ActionApprove, Outcome: review.OutcomeSucceeded},
		{ReviewID: "r2", Action: review.ActionReject, Outcome: review.OutcomeFailed},
	} {
		require.NoError(t, rec.RecordAction(ctx, r))
	}

	run := rec.CurrentRun()
	require.NotNil(t, run)
	assert.Equal(t, review.Tally{Assigned: 1, Approved: 1, Failed: 1}, run.Tally)

	require.NoError(t, rec.CompleteRun(ctx))
	assert.Nil(t, rec.CurrentRun())

	stored, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Tally, stored.Tally)
	assert.NotNil(t, stored.CompletedAt)

	history, err := rec.History(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

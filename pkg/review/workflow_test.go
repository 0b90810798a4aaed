package review

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/session"
)

type fakeGateway struct {
	mu sync.Mutex

	assignCalls int32
	statusCalls int32
	getCalls    int32

	assignErr  error
	statusErr  error
	getErr     error
	assignResp api.AssignResult
	detail     map[string]model.Review

	block chan struct{} // when set, gateway calls wait on it
}

func (g *fakeGateway) wait() {
	if g.block != nil {
		<-g.block
	}
}

func (g *fakeGateway) AssignReview(_ context.Context, req api.AssignRequest) (api.AssignResult, error) {
	atomic.AddInt32(&g.assignCalls, 1)
	g.wait()
	if g.assignErr != nil {
		return api.AssignResult{}, g.assignErr
	}
	return g.assignResp, nil
}

func (g *fakeGateway) UpdateReviewStatus(_ context.Context, req api.StatusRequest) (api.StatusResult, error) {
	atomic.AddInt32(&g.statusCalls, 1)
	g.wait()
	if g.statusErr != nil {
		return api.StatusResult{}, g.statusErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.detail[req.ID]; ok {
		r.Status = req.Status
		r.ReviewedBy = strptr("admin")
		r.ReviewedAt = timeptr(day(2024, 3, 1))
		g.detail[req.ID] = r
	}
	return api.StatusResult{Message: "Status updated"}, nil
}

func (g *fakeGateway) GetReview(_ context.Context, id string) (model.Review, error) {
	atomic.AddInt32(&g.getCalls, 1)
	if g.getErr != nil {
		return model.Review{}, g.getErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.detail[id]
	if !ok {
		return model.Review{}, &api.Error{Kind: api.KindFetch, Op: "get review", Status: 404, Err: api.ErrNotFound}
	}
	return r, nil
}

type noticeSink struct {
	mu      sync.Mutex
	notices []Notice
}

func (s *noticeSink) Notify(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *noticeSink) byLevel(l Level) []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notice
	for _, n := range s.notices {
		if n.Level == l {
			out = append(out, n)
		}
	}
	return out
}

type memJournal struct {
	mu      sync.Mutex
	records []ActionRecord
}

func (j *memJournal) RecordAction(_ context.Context, rec ActionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

type fixture struct {
	ctrl    *Controller
	gw      *fakeGateway
	proj    *Projection
	notices *noticeSink
	journal *memJournal
}

func newFixture(t *testing.T, role string) fixture {
	t.Helper()
	sessions := session.NewStore()
	_, err := sessions.Begin(context.Background(), model.LoginResult{UserID: "u1", Username: "admin", Role: role, Token: "opaque"})
	require.NoError(t, err)

	detail := make(map[string]model.Review)
	for _, r := range sampleReviews() {
		detail[r.ReviewID] = r
	}
	gw := &fakeGateway{detail: detail}
	proj := NewProjection()
	proj.SetSource(sampleReviews())
	notices := &noticeSink{}
	journal := &memJournal{}
	ctrl := NewController(sessions, gw, proj, WithNotifier(notices), WithJournal(journal))
	return fixture{ctrl: ctrl, gw: gw, proj: proj, notices: notices, journal: journal}
}

func TestAssignAppliesServerReviewer(t *testing.T) {
	f := newFixture(t, "admin")
	f.gw.assignResp = api.AssignResult{ReviewedBy: "Admin User"}

	out, err := f.ctrl.Assign(context.Background(), "r1", Confirmed)
	require.NoError(t, err)
	assert.False(t, out.Cancelled)

	r, _ := f.proj.Find("r1")
	name, ok := r.Reviewer()
	assert.True(t, ok)
	assert.Equal(t, "Admin User", name)
	assert.Equal(t, model.StatusPending, r.Status, "assignment must not change status")
	assert.Len(t, f.notices.byLevel(LevelSuccess), 1)
	require.Len(t, f.journal.records, 1)
	assert.Equal(t, OutcomeSucceeded, f.journal.records[0].Outcome)
	assert.Equal(t, 1, f.ctrl.Collector().Tally().Assigned)
}

func TestAssignFallsBackToSessionName(t *testing.T) {
	f := newFixture(t, "admin")

	_, err := f.ctrl.Assign(context.Background(), "r1", Confirmed)
	require.NoError(t, err)

	r, _ := f.proj.Find("r1")
	name, _ := r.Reviewer()
	assert.Equal(t, "admin", name)
}

func TestAssignAlreadyAssignedIsRejectedLocally(t *testing.T) {
	f := newFixture(t, "admin")
	before := f.proj.Source()

	_, err := f.ctrl.Assign(context.Background(), "r2", Confirmed)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.gw.assignCalls))
	assert.Equal(t, before, f.proj.Source())
	assert.False(t, f.ctrl.CanAssign(before[1]))
}

func TestAssignRequiresAdmin(t *testing.T) {
	f := newFixture(t, "user")

	_, err := f.ctrl.Assign(context.Background(), "r1", Confirmed)
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.gw.assignCalls))

	r, _ := f.proj.Find("r1")
	assert.False(t, f.ctrl.CanAssign(r))
	assert.False(t, f.ctrl.CanDecide(r))
}

func TestAssignCancelIssuesNoRequest(t *testing.T) {
	f := newFixture(t, "admin")
	var prompted Prompt
	decline := ConfirmFunc(func(_ context.Context, p Prompt) (bool, error) {
		prompted = p
		return false, nil
	})

	out, err := f.ctrl.Assign(context.Background(), "r1", decline)
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, "Confirm Assignment", prompted.Title)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.gw.assignCalls))

	r, _ := f.proj.Find("r1")
	assert.False(t, r.IsAssigned())
}

func TestAssignNilConfirmer(t *testing.T) {
	f := newFixture(t, "admin")
	_, err := f.ctrl.Assign(context.Background(), "r1", nil)
	assert.ErrorIs(t, err, ErrNoConfirmer)
}

func TestAssignFailureLeavesProjection(t *testing.T) {
	f := newFixture(t, "admin")
	f.gw.assignErr = &api.Error{Kind: api.KindAction, Op: "assign review", Status: 409, Message: "Review already assigned", Err: api.ErrUnsuccessful}
	before := f.proj.Source()

	_, err := f.ctrl.Assign(context.Background(), "r1", Confirmed)
	require.Error(t, err)
	assert.Equal(t, api.KindAction, api.KindOf(err))
	assert.Equal(t, before, f.proj.Source())

	errs := f.notices.byLevel(LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Review already assigned", errs[0].Message)
	assert.Equal(t, 1, f.ctrl.Collector().Tally().Failed)
}

func TestDecideRefetchesDetail(t *testing.T) {
	f := newFixture(t, "admin")
	var prompted Prompt
	confirm := ConfirmFunc(func(_ context.Context, p Prompt) (bool, error) {
		prompted = p
		return true, nil
	})

	out, err := f.ctrl.Decide(context.Background(), "r1", model.StatusApproved, confirm)
	require.NoError(t, err)
	assert.Equal(t, "Confirm Approval", prompted.Title)
	assert.Equal(t, "Are you sure you want to approve this review?", prompted.Question)
	assert.Equal(t, "Yes, Approve", prompted.Affirmative)
	assert.Equal(t, model.StatusApproved, out.Review.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.gw.getCalls))

	r, _ := f.proj.Find("r1")
	assert.Equal(t, model.StatusApproved, r.Status)
	assert.NotNil(t, r.ReviewedAt, "refetched server state replaces the projected entry")
	assert.False(t, f.ctrl.CanDecide(r))
}

func TestDecideFailureKeepsStatusAndNotifiesOnce(t *testing.T) {
	f := newFixture(t, "admin")
	f.gw.statusErr = &api.Error{Kind: api.KindAction, Op: "update review status", Status: 500, Err: errors.New("boom")}

	_, err := f.ctrl.Decide(context.Background(), "r1", model.StatusRejected, Confirmed)
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindAction))

	r, _ := f.proj.Find("r1")
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Len(t, f.notices.byLevel(LevelError), 1)
	assert.Len(t, f.notices.notices, 1, "exactly one notification")
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.gw.getCalls))
}

func TestDecideWrapsPlainGatewayErrors(t *testing.T) {
	f := newFixture(t, "admin")
	f.gw.statusErr = errors.New("connection reset")

	_, err := f.ctrl.Decide(context.Background(), "r1", model.StatusApproved, Confirmed)
	assert.Equal(t, api.KindAction, api.KindOf(err))
}

func TestDecidePreconditions(t *testing.T) {
	f := newFixture(t, "admin")

	_, err := f.ctrl.Decide(context.Background(), "r2", model.StatusRejected, Confirmed)
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	_, err = f.ctrl.Decide(context.Background(), "r1", model.StatusPending, Confirmed)
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = f.ctrl.Decide(context.Background(), "missing", model.StatusApproved, Confirmed)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int32(0), atomic.LoadInt32(&f.gw.statusCalls))
	assert.Empty(t, f.notices.notices)
}

func TestDecideRefetchFailure(t *testing.T) {
	f := newFixture(t, "admin")
	f.gw.getErr = &api.Error{Kind: api.KindFetch, Op: "get review", Status: 503, Err: errors.New("unavailable")}

	_, err := f.ctrl.Decide(context.Background(), "r1", model.StatusApproved, Confirmed)
	assert.Equal(t, api.KindFetch, api.KindOf(err))

	r, _ := f.proj.Find("r1")
	assert.Equal(t, model.StatusPending, r.Status, "projection only takes server-fetched state")
	assert.Len(t, f.notices.byLevel(LevelError), 1)
}

func TestDoubleSubmitIsSuppressed(t *testing.T) {
	f := newFixture(t, "admin")
	f.gw.block = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]Outcome, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.ctrl.Decide(context.Background(), "r1", model.StatusApproved, Confirmed)
	}()

	require.Eventually(t, func() bool { return f.ctrl.InFlight("r1") }, time.Second, 5*time.Millisecond)

	r, _ := f.proj.Find("r1")
	assert.False(t, f.ctrl.CanDecide(r), "affordance is disabled while in flight")

	_, err := f.ctrl.Assign(context.Background(), "r1", Confirmed)
	assert.ErrorIs(t, err, ErrBusy)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.ctrl.Decide(context.Background(), "r1", model.StatusApproved, Confirmed)
	}()

	time.Sleep(20 * time.Millisecond)
	close(f.gw.block)
	wg.Wait()

	require.NoError(t, errs[0])
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.gw.statusCalls), "only one request reaches the gateway")
	assert.False(t, f.ctrl.InFlight("r1"))

	final, _ := f.proj.Find("r1")
	assert.Equal(t, model.StatusApproved, final.Status)
	if errs[1] != nil {
		assert.ErrorIs(t, errs[1], ErrAlreadyDecided)
	} else {
		assert.Equal(t, results[0].Review.Status, results[1].Review.Status)
	}
}

func TestActionStartedDuringPromptIsBusy(t *testing.T) {
	f := newFixture(t, "admin")
	f.gw.block = make(chan struct{})

	prompted := make(chan struct{})
	release := make(chan struct{})
	slow := ConfirmFunc(func(context.Context, Prompt) (bool, error) {
		close(prompted)
		<-release
		return true, nil
	})

	var (
		decideErr error
		assignErr error
		wg        sync.WaitGroup
	)
	decided := make(chan struct{})
	go func() {
		defer close(decided)
		_, decideErr = f.ctrl.Decide(context.Background(), "r1", model.StatusApproved, slow)
	}()
	<-prompted

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, assignErr = f.ctrl.Assign(context.Background(), "r1", Confirmed)
	}()
	require.Eventually(t, func() bool { return f.ctrl.InFlight("r1") }, time.Second, 5*time.Millisecond)

	close(release)
	select {
	case <-decided:
	case <-time.After(time.Second):
		t.Fatal("decide joined the outstanding assign")
	}
	close(f.gw.block)
	wg.Wait()

	assert.ErrorIs(t, decideErr, ErrBusy)
	assert.True(t, IsPrecondition(decideErr))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.gw.statusCalls), "the decision never reaches the gateway")
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.gw.assignCalls))
	require.NoError(t, assignErr)

	r, _ := f.proj.Find("r1")
	assert.Equal(t, model.StatusPending, r.Status)
}

func TestNoSession(t *testing.T) {
	proj := NewProjection()
	proj.SetSource(sampleReviews())
	ctrl := NewController(session.NewStore(), &fakeGateway{}, proj)

	_, err := ctrl.Assign(context.Background(), "r1", Confirmed)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.True(t, IsPrecondition(err))
}

func TestCheck(t *testing.T) {
	f := newFixture(t, "admin")
	tests := []struct {
		action Action
		id     string
		want   error
	}{
		{ActionAssign, "r1", nil},
		{ActionAssign, "r2", ErrAlreadyAssigned},
		{ActionApprove, "r1", nil},
		{ActionReject, "r3", ErrAlreadyDecided},
		{ActionApprove, "missing", ErrNotFound},
		{Action("delete"), "r1", ErrInvalidDecision},
	}
	for _, tt := range tests {
		err := f.ctrl.Check(tt.action, tt.id)
		if tt.want == nil {
			assert.NoError(t, err, "%s %s", tt.action, tt.id)
			continue
		}
		assert.ErrorIs(t, err, tt.want, "%s %s", tt.action, tt.id)
	}

	user := newFixture(t, "user")
	assert.ErrorIs(t, user.ctrl.Check(ActionAssign, "r1"), ErrNotAdmin)
}

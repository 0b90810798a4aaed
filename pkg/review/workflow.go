package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/logging"
	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/session"
)

// Gateway is the part of the REST client the workflow needs
type Gateway interface {
	AssignReview(ctx context.Context, req api.AssignRequest) (api.AssignResult, error)
	UpdateReviewStatus(ctx context.Context, req api.StatusRequest) (api.StatusResult, error)
	GetReview(ctx context.Context, id string) (model.Review, error)
}

// Journal keeps a local history of workflow actions
type Journal interface {
	RecordAction(ctx context.Context, rec ActionRecord) error
}

// Outcome describes what a workflow call did
type Outcome struct {
	Action    Action
	ReviewID  string
	Review    model.Review // projected state after the action
	Cancelled bool         // the user declined the prompt; no request was sent
	Shared    bool         // joined a request already in flight
	Message   string       // server message, if any
}

// Controller runs the assign and decide transitions against the gateway and
// keeps the projection in step with what the server confirmed.
type Controller struct {
	sessions   *session.Store
	gateway    Gateway
	projection *Projection
	notifier   Notifier
	journal    Journal
	collector  *ActionCollector
	log        logrus.FieldLogger

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]Action
}

// Option configures a Controller
type Option func(*Controller)

// WithNotifier sets the notice sink
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithJournal records completed actions to persistent history
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCollector shares a run collector with the caller
func WithCollector(col *ActionCollector) Option {
	return func(c *Controller) {
		if col != nil {
			c.collector = col
		}
	}
}

// NewController creates a controller over an explicit session store
func NewController(sessions *session.Store, gw Gateway, proj *Projection, opts ...Option) *Controller {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Controller{
		sessions:   sessions,
		gateway:    gw,
		projection: proj,
		notifier:   discardNotifier{},
		collector:  NewActionCollector(),
		log:        discard,
		inflight:   make(map[string]Action),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Projection returns the projection the controller updates
func (c *Controller) Projection() *Projection {
	return c.projection
}

// Collector returns the run's action collector
func (c *Controller) Collector() *ActionCollector {
	return c.collector
}

// InFlight reports whether a request is outstanding for the review
func (c *Controller) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

// CanAssign reports whether "assign to me" should be offered for r
func (c *Controller) CanAssign(r model.Review) bool {
	sess, ok := c.sessions.Current()
	return ok && sess.IsAdmin() && !r.IsAssigned() && !c.InFlight(r.ReviewID)
}

// CanDecide reports whether approve/reject should be offered for r
func (c *Controller) CanDecide(r model.Review) bool {
	sess, ok := c.sessions.Current()
	return ok && sess.IsAdmin() && !r.Status.IsTerminal() && !c.InFlight(r.ReviewID)
}

// Check returns the precondition that would stop action on the review right
// now, or nil if it may start.
func (c *Controller) Check(action Action, id string) error {
	if _, err := c.actor(); err != nil {
		return err
	}
	r, ok := c.projection.Find(id)
	if !ok {
		return ErrNotFound
	}
	switch action {
	case ActionAssign:
		if r.IsAssigned() {
			return ErrAlreadyAssigned
		}
	case ActionApprove, ActionReject:
		if r.Status.IsTerminal() {
			return ErrAlreadyDecided
		}
	default:
		return ErrInvalidDecision
	}
	if c.InFlight(id) {
		return ErrBusy
	}
	return nil
}

// Assign binds the acting admin as the review's reviewer
func (c *Controller) Assign(ctx context.Context, id string, confirm Confirmer) (Outcome, error) {
	sess, err := c.actor()
	if err != nil {
		return c.reject(ActionAssign, id, err)
	}
	current, ok := c.projection.Find(id)
	if !ok {
		return c.reject(ActionAssign, id, ErrNotFound)
	}
	if current.IsAssigned() {
		return c.reject(ActionAssign, id, ErrAlreadyAssigned)
	}

	return c.run(ctx, ActionAssign, id, confirm, func(ctx context.Context) (Outcome, error) {
		// Re-check: an earlier request may have completed while we prompted.
		latest, ok := c.projection.Find(id)
		if !ok {
			return Outcome{}, ErrNotFound
		}
		if latest.IsAssigned() {
			return Outcome{}, ErrAlreadyAssigned
		}

		res, err := c.gateway.AssignReview(ctx, api.AssignRequest{ReviewID: id, AdminID: sess.UserID})
		if err != nil {
			return Outcome{}, c.fail(ctx, ActionAssign, id, sess, err)
		}

		switch {
		case res.Review != nil && res.Review.ReviewID == id && res.Review.IsAssigned():
			c.projection.Replace(*res.Review)
		case res.ReviewedBy != "":
			c.projection.ApplyAssignment(id, res.ReviewedBy)
		default:
			c.projection.ApplyAssignment(id, sess.Username)
		}

		updated, _ := c.projection.Find(id)
		reviewer, _ := updated.Reviewer()
		c.succeed(ctx, ActionAssign, id, sess, "Review assigned", fmt.Sprintf("Assigned to %s", reviewer))
		return Outcome{Action: ActionAssign, ReviewID: id, Review: updated, Message: res.Message}, nil
	})
}

// Decide approves or rejects a pending review, then re-fetches it so the
// projected state is the server's.
func (c *Controller) Decide(ctx context.Context, id string, decision model.Status, confirm Confirmer) (Outcome, error) {
	action, err := ActionFor(decision)
	if err != nil {
		return c.reject(ActionApprove, id, err)
	}
	sess, err := c.actor()
	if err != nil {
		return c.reject(action, id, err)
	}
	current, ok := c.projection.Find(id)
	if !ok {
		return c.reject(action, id, ErrNotFound)
	}
	if current.Status.IsTerminal() {
		return c.reject(action, id, ErrAlreadyDecided)
	}

	return c.run(ctx, action, id, confirm, func(ctx context.Context) (Outcome, error) {
		latest, ok := c.projection.Find(id)
		if !ok {
			return Outcome{}, ErrNotFound
		}
		if latest.Status.IsTerminal() {
			return Outcome{}, ErrAlreadyDecided
		}

		res, err := c.gateway.UpdateReviewStatus(ctx, api.StatusRequest{ID: id, AdminID: sess.UserID, Status: decision})
		if err != nil {
			return Outcome{}, c.fail(ctx, action, id, sess, err)
		}

		fresh, err := c.gateway.GetReview(ctx, id)
		if err != nil {
			// The decision is saved server-side; only the refresh failed.
			c.log.WithError(err).WithField("review_id", id).Warn("refetch after decision failed")
			c.record(ctx, ActionRecord{ReviewID: id, Action: action, Outcome: OutcomeSucceeded, Actor: sess.Username, Message: "refresh failed"})
			c.notifier.Notify(Notice{
				Level:    LevelError,
				Title:    "Could not refresh review",
				Message:  api.UserMessage(err),
				ReviewID: id,
				At:       time.Now(),
			})
			return Outcome{Action: action, ReviewID: id, Review: latest, Message: res.Message}, err
		}
		c.projection.Replace(fresh)

		title := "Review approved"
		if action == ActionReject {
			title = "Review rejected"
		}
		c.succeed(ctx, action, id, sess, title, res.Message)
		return Outcome{Action: action, ReviewID: id, Review: fresh, Message: res.Message}, nil
	})
}

// run asks for confirmation and then executes fn once per review, joining a
// request of the same action that is already outstanding. A different action
// on the same review is refused with ErrBusy.
func (c *Controller) run(ctx context.Context, action Action, id string, confirm Confirmer, fn func(context.Context) (Outcome, error)) (Outcome, error) {
	c.mu.Lock()
	pending, busy := c.inflight[id]
	c.mu.Unlock()
	if busy && pending != action {
		return c.reject(action, id, ErrBusy)
	}

	if !busy {
		if confirm == nil {
			return c.reject(action, id, ErrNoConfirmer)
		}
		ok, err := confirm.Confirm(ctx, PromptFor(action, id))
		if err != nil {
			return Outcome{}, fmt.Errorf("confirm %s: %w", action, err)
		}
		if !ok {
			c.collector.Record(ActionRecord{ReviewID: id, Action: action, Outcome: OutcomeCancelled})
			return Outcome{Action: action, ReviewID: id, Cancelled: true}, nil
		}
	}

	// A different action may have started while the prompt was open.
	c.mu.Lock()
	other, started := c.inflight[id]
	c.mu.Unlock()
	if started && other != action {
		return c.reject(action, id, ErrBusy)
	}

	// Keyed per action so a join never returns another action's result.
	v, err, shared := c.group.Do(id+"/"+string(action), func() (interface{}, error) {
		c.mu.Lock()
		if other, ok := c.inflight[id]; ok && other != action {
			c.mu.Unlock()
			return Outcome{}, ErrBusy
		}
		c.inflight[id] = action
		c.mu.Unlock()
		ctx := logging.WithContext(ctx, c.log.WithFields(logrus.Fields{"action": action, "review_id": id}))
		defer func() {
			c.mu.Lock()
			delete(c.inflight, id)
			c.mu.Unlock()
		}()
		return fn(ctx)
	})
	out, _ := v.(Outcome)
	out.Action, out.ReviewID = action, id
	out.Shared = shared && busy
	if err != nil && IsPrecondition(err) && !shared {
		return c.reject(action, id, err)
	}
	return out, err
}

func (c *Controller) actor() (model.Session, error) {
	sess, ok := c.sessions.Current()
	if !ok {
		return model.Session{}, ErrNoSession
	}
	if !sess.IsAdmin() {
		return model.Session{}, ErrNotAdmin
	}
	return sess, nil
}

// reject reports a local precondition failure. No request was issued and
// nothing changed.
func (c *Controller) reject(action Action, id string, err error) (Outcome, error) {
	c.log.WithFields(logrus.Fields{"action": action, "review_id": id}).Debugf("rejected: %v", err)
	return Outcome{Action: action, ReviewID: id}, err
}

func (c *Controller) fail(ctx context.Context, action Action, id string, sess model.Session, err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		err = &api.Error{Kind: api.KindAction, Op: string(action), Err: err}
	}
	c.log.WithError(err).WithFields(logrus.Fields{"action": action, "review_id": id}).Warn("workflow action failed")
	c.record(ctx, ActionRecord{ReviewID: id, Action: action, Outcome: OutcomeFailed, Actor: sess.Username, Message: api.UserMessage(err)})
	c.notifier.Notify(Notice{
		Level:    LevelError,
		Title:    failureTitle(action),
		Message:  api.UserMessage(err),
		ReviewID: id,
		At:       time.Now(),
	})
	return err
}

func (c *Controller) succeed(ctx context.Context, action Action, id string, sess model.Session, title, message string) {
	c.log.WithFields(logrus.Fields{"action": action, "review_id": id, "actor": sess.Username}).Info("workflow action succeeded")
	c.record(ctx, ActionRecord{ReviewID: id, Action: action, Outcome: OutcomeSucceeded, Actor: sess.Username, Message: message})
	c.notifier.Notify(Notice{Level: LevelSuccess, Title: title, Message: message, ReviewID: id, At: time.Now()})
}

func (c *Controller) record(ctx context.Context, rec ActionRecord) {
	rec.Timestamp = time.Now()
	c.collector.Record(rec)
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordAction(ctx, rec); err != nil {
		c.log.WithError(err).Warn("could not write action journal")
	}
}

func failureTitle(action Action) string {
	switch action {
	case ActionApprove:
		return "Failed to approve review"
	case ActionReject:
		return "Failed to reject review"
	}
	return "Failed to assign review"
}

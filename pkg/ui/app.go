// Package ui is the Bubble Tea front end of the console: a login screen and
// a sidebar-driven dashboard over the review workflow.
package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/config"
	"github.com/itmstools/itms_console/pkg/export"
	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
	"github.com/itmstools/itms_console/pkg/session"
	"github.com/itmstools/itms_console/pkg/stats"
	"github.com/itmstools/itms_console/pkg/store"
)

// appState represents which top-level screen is showing
type appState int

const (
	stateLogin     appState = iota // sign-in form
	stateDashboard                 // sidebar + routed content
)

// Gateway is the REST surface the console needs
type Gateway interface {
	review.Gateway
	session.Authenticator
	ListReviews(ctx context.Context) ([]model.Review, error)
	ExportReviews(ctx context.Context) ([]byte, error)
	ImageURL(path string) string
}

// reconfigurer is implemented by gateways that accept live option changes
type reconfigurer interface {
	Reconfigure(opts ...api.ClientOption)
}

// Async results
type (
	loginDoneMsg struct {
		sess model.Session
		err  error
	}
	reviewsLoadedMsg struct {
		reviews []model.Review
		err     error
	}
	detailLoadedMsg struct {
		id     string
		review model.Review
		err    error
	}
	actionDoneMsg struct {
		out review.Outcome
		err error
	}
	exportDoneMsg struct {
		path string
		err  error
	}
)

// ConfigReloadedMsg delivers a re-read config file to a running program
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// AppOption customizes App construction for tests and alternate runtimes
type AppOption func(*App)

// WithRecorder journals workflow actions and counts them per login
func WithRecorder(r *store.Recorder) AppOption {
	return func(a *App) { a.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) AppOption {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithTheme overrides the palette
func WithTheme(t Theme) AppOption {
	return func(a *App) { a.theme = t }
}

// App is the root model
type App struct {
	cfg      *config.Config
	gateway  Gateway
	sessions *session.Store
	ctrl     *review.Controller
	notices  *noticeQueue
	recorder *store.Recorder
	log      logrus.FieldLogger
	ctx      context.Context

	state  appState
	route  string
	width  int
	height int
	theme  Theme

	login    LoginModel
	sidebar  SidebarModel
	list     ReviewListModel
	detail   ReviewDetailModel
	overview OverviewModel
	help     HelpOverlayModel
	confirm  *ConfirmModel
	alert    AlertModel
	toasts   ToastStack
}

// NewApp wires the screens to the gateway and the session store
func NewApp(cfg *config.Config, gw Gateway, sessions *session.Store, opts ...AppOption) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	a := &App{
		cfg:      cfg,
		gateway:  gw,
		sessions: sessions,
		notices:  &noticeQueue{},
		log:      discard,
		ctx:      context.Background(),
		state:    stateLogin,
		route:    RouteLogin,
		theme:    DefaultTheme(nil),
	}
	for _, opt := range opts {
		opt(a)
	}

	ctrlOpts := []review.Option{review.WithNotifier(a.notices), review.WithLogger(a.log)}
	if a.recorder != nil {
		ctrlOpts = append(ctrlOpts, review.WithJournal(a.recorder))
	}
	a.ctrl = review.NewController(sessions, gw, review.NewProjection(), ctrlOpts...)

	a.login = NewLoginModel(a.theme)
	a.sidebar = NewSidebarModel(!cfg.UI.HideSidebar, a.theme)
	a.list = NewReviewListModel(a.ctrl, a.theme)
	a.detail = NewReviewDetailModel(a.ctrl, gw.ImageURL, a.theme)
	a.overview = NewOverviewModel(a.theme)
	a.help = NewHelpOverlayModel(a.theme)
	a.alert = NewAlertModel(a.theme)
	a.toasts = NewToastStack(cfg.UI.ToastDuration, a.theme)
	return a
}

// Controller exposes the workflow controller
func (a *App) Controller() *review.Controller { return a.ctrl }

// Route returns the current route
func (a *App) Route() string { return a.route }

// Init starts on the dashboard when a session was restored
func (a *App) Init() tea.Cmd {
	if sess, ok := a.sessions.Current(); ok {
		return a.enterDashboard(sess)
	}
	return nil
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.setSize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.handleKey(msg)

	case toastExpiredMsg:
		a.toasts.Expire(msg.id)
		return a, nil

	case noticeMsg:
		return a, a.toasts.Push(msg.notice)

	case ConfigReloadedMsg:
		return a, a.applyConfig(msg)

	case loginSubmitMsg:
		return a, a.doLogin(msg.email, msg.password)

	case loginDoneMsg:
		return a, a.handleLogin(msg)

	case reviewsLoadedMsg:
		return a, a.handleReviews(msg)

	case detailLoadedMsg:
		a.handleDetail(msg)
		return a, nil

	case openReviewMsg:
		return a, a.openReview(msg.id)

	case backMsg:
		a.route = RouteReviews
		return a, nil

	case assignIntentMsg:
		return a, a.askConfirm(review.ActionAssign, msg.id)

	case decideIntentMsg:
		action, err := review.ActionFor(msg.decision)
		if err != nil {
			return a, a.warn("Cannot update review", err)
		}
		return a, a.askConfirm(action, msg.id)

	case actionDoneMsg:
		return a, a.handleAction(msg)

	case exportIntentMsg:
		return a, a.doExport()

	case exportDoneMsg:
		return a, a.handleExport(msg)

	case reloadIntentMsg:
		return a, a.reload()
	}

	// spinner ticks and cursor blinks go to whichever screen is active
	var cmd tea.Cmd
	switch {
	case a.state == stateLogin:
		a.login, cmd = a.login.Update(msg)
	case a.route == RouteReviews:
		a.list, cmd = a.list.Update(msg)
	case a.isDetailRoute():
		a.detail, cmd = a.detail.Update(msg)
	}
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if a.alert.IsVisible() {
		a.alert, _ = a.alert.Update(msg)
		return nil
	}
	if a.confirm != nil {
		return a.updateConfirm(msg)
	}
	if a.help.IsVisible() {
		a.help, _ = a.help.Update(msg)
		return nil
	}

	if a.state == stateLogin {
		var cmd tea.Cmd
		a.login, cmd = a.login.Update(msg)
		return cmd
	}

	if a.route == RouteReviews && a.list.Editing() {
		var cmd tea.Cmd
		a.list, cmd = a.list.Update(msg)
		return cmd
	}

	key := msg.String()
	switch key {
	case "q":
		return tea.Quit
	case "?":
		a.help.Toggle()
		return nil
	case "s":
		a.sidebar.Toggle()
		a.layout()
		return nil
	case "L":
		return a.logout()
	case "0", "h":
		a.route = RouteDashboard
		return nil
	}
	if route, ok := RouteForKey(key); ok {
		a.route = route
		return nil
	}

	var cmd tea.Cmd
	switch {
	case a.route == RouteReviews:
		a.list, cmd = a.list.Update(msg)
	case a.isDetailRoute():
		a.detail, cmd = a.detail.Update(msg)
	case a.route == RouteDashboard:
		switch key {
		case "r":
			cmd = a.reload()
		case "enter":
			a.route = RouteReviews
		}
	}
	return cmd
}

func (a *App) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	m, _ := a.confirm.Update(msg)
	if !m.Done() {
		a.confirm = &m
		return nil
	}
	a.confirm = nil
	if m.IsCancelled() {
		a.ctrl.Collector().Record(review.ActionRecord{ReviewID: m.Prompt().ReviewID, Action: m.Prompt().Action, Outcome: review.OutcomeCancelled})
		return nil
	}
	return a.runAction(m.Prompt())
}

// askConfirm opens the modal when the action may start, otherwise explains
// why it cannot
func (a *App) askConfirm(action review.Action, id string) tea.Cmd {
	if err := a.ctrl.Check(action, id); err != nil {
		return a.warn("Cannot "+string(action)+" review", err)
	}
	m := NewConfirmModel(review.PromptFor(action, id), a.theme)
	m.SetSize(a.width, a.height)
	a.confirm = &m
	return nil
}

// runAction sends the confirmed action. The modal already asked, so the
// controller is given a confirmer that always agrees.
func (a *App) runAction(p review.Prompt) tea.Cmd {
	ctx, ctrl := a.ctx, a.ctrl
	return func() tea.Msg {
		var out review.Outcome
		var err error
		if p.Action == review.ActionAssign {
			out, err = ctrl.Assign(ctx, p.ReviewID, review.Confirmed)
		} else {
			decision := model.StatusApproved
			if p.Action == review.ActionReject {
				decision = model.StatusRejected
			}
			out, err = ctrl.Decide(ctx, p.ReviewID, decision, review.Confirmed)
		}
		return actionDoneMsg{out: out, err: err}
	}
}

func (a *App) handleAction(msg actionDoneMsg) tea.Cmd {
	cmds := a.drainNotices()
	if msg.err != nil && review.IsPrecondition(msg.err) {
		cmds = append(cmds, a.warn("Cannot "+string(msg.out.Action)+" review", msg.err))
	}
	if msg.err == nil && a.isDetailRoute() && a.detail.Review().ReviewID == msg.out.ReviewID {
		a.detail.SetReview(msg.out.Review)
	}
	a.list.clampCursor()
	return tea.Batch(cmds...)
}

func (a *App) drainNotices() []tea.Cmd {
	var cmds []tea.Cmd
	for _, n := range a.notices.drain() {
		cmds = append(cmds, a.toasts.Push(n))
	}
	return cmds
}

func (a *App) warn(title string, err error) tea.Cmd {
	return a.toasts.Push(review.Notice{Level: review.LevelWarn, Title: title, Message: preconditionMessage(err), At: time.Now()})
}

func preconditionMessage(err error) string {
	switch {
	case errors.Is(err, review.ErrNotAdmin):
		return "Only admins can do this"
	case errors.Is(err, review.ErrAlreadyAssigned):
		return "This review is already assigned"
	case errors.Is(err, review.ErrAlreadyDecided):
		return "This review has already been decided"
	case errors.Is(err, review.ErrBusy):
		return "Another action is still running for this review"
	case errors.Is(err, review.ErrNoSession):
		return "Please sign in again"
	case errors.Is(err, review.ErrNotFound):
		return "Review not found in the current list"
	}
	return api.UserMessage(err)
}

// ── login / logout ──────────────────────────────────────────────────────────

func (a *App) doLogin(email, password string) tea.Cmd {
	ctx, gw, sessions := a.ctx, a.gateway, a.sessions
	return func() tea.Msg {
		sess, err := session.Login(ctx, gw, sessions, email, password)
		return loginDoneMsg{sess: sess, err: err}
	}
}

func (a *App) handleLogin(msg loginDoneMsg) tea.Cmd {
	if msg.err != nil {
		text := api.UserMessage(msg.err)
		a.log.WithError(msg.err).Info("login failed")
		a.login.SetError(text)
		return a.toasts.Push(review.Notice{Level: review.LevelError, Title: "Login failed", Message: text, At: time.Now()})
	}
	a.log.WithField("user", msg.sess.Username).Info("signed in")
	welcome := a.toasts.Push(review.Notice{Level: review.LevelSuccess, Title: "Welcome, " + msg.sess.Username, At: time.Now()})
	return tea.Batch(a.enterDashboard(msg.sess), welcome)
}

func (a *App) enterDashboard(sess model.Session) tea.Cmd {
	a.state = stateDashboard
	a.login.Reset()
	if a.recorder != nil {
		if err := a.recorder.StartRun(a.ctx, sess.Username); err != nil {
			a.log.WithError(err).Warn("could not start journal run")
		}
	}
	cmds := []tea.Cmd{a.reload()}
	a.route = a.redirectRoute()
	if id, ok := reviewIDFromRoute(a.route); ok {
		cmds = append(cmds, a.openReview(id))
	}
	return tea.Batch(cmds...)
}

// redirectRoute resolves the configured post-login target, falling back to
// the dashboard for anything the console cannot show
func (a *App) redirectRoute() string {
	target := strings.TrimRight(strings.TrimSpace(a.cfg.UI.Redirect), "/")
	switch target {
	case RouteDashboard, RouteEquipments, RouteUsers, RouteReviews, RouteProfile, RouteSettings:
		return target
	}
	if _, ok := reviewIDFromRoute(target); ok {
		return target
	}
	return RouteDashboard
}

func (a *App) logout() tea.Cmd {
	if err := a.sessions.End(a.ctx); err != nil {
		a.log.WithError(err).Warn("could not clear persisted session")
	}
	if a.recorder != nil {
		if err := a.recorder.CompleteRun(a.ctx); err != nil {
			a.log.WithError(err).Warn("could not complete journal run")
		}
	}
	a.ctrl.Projection().Clear()
	a.ctrl.Collector().Clear()
	a.confirm = nil
	a.state = stateLogin
	a.route = RouteLogin
	a.login.Reset()
	return a.toasts.Push(review.Notice{Level: review.LevelInfo, Title: "Signed out", At: time.Now()})
}

// ── data ────────────────────────────────────────────────────────────────────

func (a *App) reload() tea.Cmd {
	tick := a.list.SetLoading()
	ctx, gw := a.ctx, a.gateway
	return tea.Batch(tick, func() tea.Msg {
		reviews, err := gw.ListReviews(ctx)
		return reviewsLoadedMsg{reviews: reviews, err: err}
	})
}

func (a *App) handleReviews(msg reviewsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		a.log.WithError(msg.err).Warn("could not load reviews")
		if errors.Is(msg.err, api.ErrUnauthorized) {
			cmd := a.logout()
			a.login.SetError(api.UserMessage(msg.err))
			return cmd
		}
		// A failed load leaves the list empty under the banner.
		a.ctrl.Projection().Clear()
		a.list.clampCursor()
		a.list.SetError(api.UserMessage(msg.err))
		return nil
	}
	a.ctrl.Projection().SetSource(msg.reviews)
	a.list.Loaded()
	return nil
}

func (a *App) openReview(id string) tea.Cmd {
	a.route = ReviewRoute(id)
	r, ok := a.ctrl.Projection().Find(id)
	if !ok {
		r = model.Review{ReviewID: id}
	}
	tick := a.detail.Open(r)
	ctx, gw := a.ctx, a.gateway
	return tea.Batch(tick, func() tea.Msg {
		fresh, err := gw.GetReview(ctx, id)
		return detailLoadedMsg{id: id, review: fresh, err: err}
	})
}

func (a *App) handleDetail(msg detailLoadedMsg) {
	if msg.err != nil {
		a.log.WithError(msg.err).WithField("review_id", msg.id).Warn("could not load review")
	} else {
		a.ctrl.Projection().Replace(msg.review)
	}
	if id, ok := reviewIDFromRoute(a.route); !ok || id != msg.id {
		return
	}
	if msg.err != nil {
		a.detail.SetError(api.UserMessage(msg.err))
		return
	}
	a.detail.SetReview(msg.review)
}

func (a *App) doExport() tea.Cmd {
	ctx, gw := a.ctx, a.gateway
	dir, name := a.cfg.Export.Dir, a.cfg.Export.FileName
	return func() tea.Msg {
		path, err := export.Download(ctx, gw, dir, name)
		return exportDoneMsg{path: path, err: err}
	}
}

func (a *App) handleExport(msg exportDoneMsg) tea.Cmd {
	if msg.err != nil {
		a.log.WithError(msg.err).Warn("export failed")
		a.alert.Show("Export failed", api.UserMessage(msg.err))
		return nil
	}
	return a.toasts.Push(review.Notice{Level: review.LevelSuccess, Title: "Export complete", Message: msg.path, At: time.Now()})
}

// applyConfig takes the settings that can change while running. The API base
// URL is fixed for the life of the program.
func (a *App) applyConfig(msg ConfigReloadedMsg) tea.Cmd {
	if msg.Err != nil {
		return a.toasts.Push(review.Notice{Level: review.LevelWarn, Title: "Config not reloaded", Message: msg.Err.Error(), At: time.Now()})
	}
	next := msg.Config
	if rc, ok := a.gateway.(reconfigurer); ok {
		rc.Reconfigure(api.WithImageHost(next.ImageHost()), api.WithTimeout(next.API.Timeout))
	}
	next.API.BaseURL = a.cfg.API.BaseURL
	a.cfg = next
	a.toasts.SetDuration(next.UI.ToastDuration)
	a.detail.refresh()
	a.log.WithField("path", next.Path).Info("configuration reloaded")
	return a.toasts.Push(review.Notice{Level: review.LevelInfo, Title: "Configuration reloaded", At: time.Now()})
}

// ── layout / view ───────────────────────────────────────────────────────────

func (a *App) isDetailRoute() bool {
	_, ok := reviewIDFromRoute(a.route)
	return ok
}

func (a *App) setSize(width, height int) {
	a.width, a.height = width, height
	a.login.SetSize(width, height)
	a.help.SetSize(width, height)
	a.layout()
}

func (a *App) layout() {
	contentWidth := a.width - a.sidebar.Width() - 2
	if contentWidth < MinBoxWidth {
		contentWidth = MinBoxWidth
	}
	contentHeight := a.height - 2
	if contentHeight < MinContentHeight {
		contentHeight = MinContentHeight
	}
	a.list.SetSize(contentWidth, contentHeight)
	a.detail.SetSize(contentWidth, contentHeight)
	a.overview.SetSize(contentWidth, contentHeight)
}

// View implements tea.Model
func (a *App) View() string {
	var base string
	if a.state == stateLogin {
		base = a.login.View()
	} else {
		base = a.renderDashboard()
	}

	switch {
	case a.alert.IsVisible():
		base = a.renderModalOverlay(base, a.alert.View())
	case a.confirm != nil:
		base = a.renderModalOverlay(base, a.confirm.View())
	case a.help.IsVisible():
		base = a.renderModalOverlay(base, a.help.View())
	}

	if toasts := a.toasts.View(a.width / 3); toasts != "" {
		base += "\n" + lipgloss.PlaceHorizontal(a.width, lipgloss.Right, toasts)
	}
	return base
}

func (a *App) renderDashboard() string {
	sess, _ := a.sessions.Current()

	var content string
	switch {
	case a.route == RouteDashboard:
		content = a.overview.View(stats.Summarize(a.ctrl.Projection().Source()), a.ctrl.Collector().Tally(), sess.Username)
	case a.route == RouteReviews:
		content = a.list.View()
	case a.isDetailRoute():
		content = a.detail.View()
	case a.route == RouteProfile:
		content = a.renderProfile(sess)
	case a.route == RouteSettings:
		content = renderSettings(a.cfg, a.theme)
	case a.route == RouteEquipments:
		content = renderUnavailable("Equipments", a.theme)
	case a.route == RouteUsers:
		content = renderUnavailable("Users", a.theme)
	}

	header := a.renderHeader(sess)
	body := content
	if a.sidebar.IsVisible() && a.width >= BreakpointNarrow {
		body = lipgloss.JoinHorizontal(lipgloss.Top, a.sidebar.View(a.route, sess.Username, a.height-1), " ", content)
	}
	return header + "\n" + body
}

func (a *App) renderHeader(sess model.Session) string {
	title := a.theme.Style().Bold(true).Foreground(a.theme.Primary).Render("ITMS Console")
	route := a.theme.Style().Foreground(a.theme.Muted).Render(" " + a.route)
	role := a.theme.Style().Foreground(a.theme.Subtext).Render(sess.Username + " (" + string(sess.Role) + ")")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(route) - lipgloss.Width(role)
	if gap < 1 {
		gap = 1
	}
	return title + route + strings.Repeat(" ", gap) + role
}

// renderModalOverlay renders a modal centered over the base view
func (a *App) renderModalOverlay(base, modal string) string {
	baseLines := strings.Split(base, "\n")
	modalLines := strings.Split(modal, "\n")

	startRow := (a.height - len(modalLines)) / 2
	startCol := (a.width - lipgloss.Width(modal)) / 2
	if startRow < 0 {
		startRow = 0
	}
	if startCol < 0 {
		startCol = 0
	}

	for len(baseLines) < startRow+len(modalLines) {
		baseLines = append(baseLines, "")
	}
	for i, line := range modalLines {
		baseLines[startRow+i] = strings.Repeat(" ", startCol) + line
	}
	return strings.Join(baseLines, "\n")
}

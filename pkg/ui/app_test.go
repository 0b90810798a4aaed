package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/config"
	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
	"github.com/itmstools/itms_console/pkg/session"
)

type fakeGateway struct {
	mu sync.Mutex

	reviews   map[string]model.Review
	order     []string
	listErr   error
	exportErr error
	assignErr error

	assignCalls int
	statusCalls int
	reconfig    int
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{reviews: make(map[string]model.Review)}
	created := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	bob := "bob"
	for _, r := range []model.Review{
		{ReviewID: "r1", EquipmentID: "1042", Barcode: "BC-ALPHA", CreatedBy: "alice", CreatedAt: created, Status: model.StatusPending},
		{ReviewID: "r2", EquipmentID: "2001", Barcode: "XY-2", CreatedBy: "carol", CreatedAt: created.Add(48 * time.Hour), ReviewedBy: &bob, Status: model.StatusPending},
		{ReviewID: "r3", EquipmentID: "3001", Barcode: "BC-GAMMA", CreatedBy: "dave", CreatedAt: created.Add(96 * time.Hour), ReviewedBy: &bob, Status: model.StatusApproved},
	} {
		g.reviews[r.ReviewID] = r
		g.order = append(g.order, r.ReviewID)
	}
	return g
}

func (g *fakeGateway) Login(_ context.Context, email, password string) (model.LoginResult, error) {
	switch {
	case email == "admin@example.com" && password == "secret":
		return model.LoginResult{UserID: "u1", Username: "admin", Email: email, Role: "admin", Token: "opaque"}, nil
	case email == "user@example.com" && password == "secret":
		return model.LoginResult{UserID: "u2", Username: "user", Email: email, Role: "user", Token: "opaque"}, nil
	}
	return model.LoginResult{}, &api.Error{Kind: api.KindAuth, Op: "login", Status: 401, Err: api.ErrInvalidCredentials}
}

func (g *fakeGateway) ListReviews(context.Context) ([]model.Review, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]model.Review, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.reviews[id])
	}
	return out, nil
}

func (g *fakeGateway) GetReview(_ context.Context, id string) (model.Review, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.reviews[id]
	if !ok {
		return model.Review{}, &api.Error{Kind: api.KindFetch, Op: "get review", Status: 404, Err: api.ErrNotFound}
	}
	r.Manufacturer = "Acme"
	return r, nil
}

func (g *fakeGateway) AssignReview(_ context.Context, req api.AssignRequest) (api.AssignResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignCalls++
	if g.assignErr != nil {
		return api.AssignResult{}, g.assignErr
	}
	r := g.reviews[req.ReviewID]
	name := "admin"
	r.ReviewedBy = &name
	g.reviews[req.ReviewID] = r
	return api.AssignResult{ReviewedBy: name}, nil
}

func (g *fakeGateway) UpdateReviewStatus(_ context.Context, req api.StatusRequest) (api.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	r := g.reviews[req.ID]
	r.Status = req.Status
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	r.ReviewedAt = &now
	g.reviews[req.ID] = r
	return api.StatusResult{Message: "Status updated"}, nil
}

func (g *fakeGateway) ExportReviews(context.Context) ([]byte, error) {
	if g.exportErr != nil {
		return nil, g.exportErr
	}
	return []byte("review_id\nr1\n"), nil
}

func (g *fakeGateway) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	return "https://img.example.com/" + path
}

func (g *fakeGateway) Reconfigure(...api.ClientOption) {
	g.reconfig++
}

func newTestApp(t *testing.T, gw *fakeGateway) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	cfg.UI.ToastDuration = time.Millisecond
	app := NewApp(cfg, gw, session.NewStore())
	app.setSize(140, 40)
	clipboardWrite = func(string) error { return nil }
	return app
}

// runCommands executes cmd and feeds the resulting messages back into the
// app until nothing is left. Timers and spinner ticks are dropped.
func runCommands(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatalf("commands did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := execute(next).(type) {
		case nil, spinner.TickMsg, toastExpiredMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, more := app.Update(msg)
			queue = append(queue, more)
		}
	}
}

func execute(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func press(t *testing.T, app *App, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, cmd := app.Update(keyMsg(k))
		runCommands(t, app, cmd)
	}
}

func login(t *testing.T, app *App, email, password string) {
	t.Helper()
	press(t, app, email, "enter", password, "enter")
}

func hasNotice(app *App, level review.Level, title string) bool {
	for _, n := range app.toasts.Notices() {
		if n.Level == level && strings.Contains(n.Title, title) {
			return true
		}
	}
	return false
}

func TestLoginNavigatesToRedirect(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)

	login(t, app, "admin@example.com", "secret")

	if app.state != stateDashboard {
		t.Fatalf("expected dashboard state after login")
	}
	if app.Route() != RouteDashboard {
		t.Fatalf("route = %q, want %q", app.Route(), RouteDashboard)
	}
	if _, total := app.ctrl.Projection().Len(); total != 3 {
		t.Fatalf("expected reviews to load after login, got %d", total)
	}
	if !strings.Contains(app.View(), "ITMS Console") {
		t.Fatalf("dashboard view missing header")
	}
}

func TestLoginRedirectsToConfiguredRoute(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)
	app.cfg.UI.Redirect = "/reviews/r1"

	login(t, app, "admin@example.com", "secret")

	if app.Route() != ReviewRoute("r1") {
		t.Fatalf("route = %q, want detail of r1", app.Route())
	}
	if app.detail.Review().Manufacturer != "Acme" {
		t.Fatalf("detail was not fetched")
	}

	other := newTestApp(t, gw)
	other.cfg.UI.Redirect = "/somewhere/else"
	login(t, other, "admin@example.com", "secret")
	if other.Route() != RouteDashboard {
		t.Fatalf("unknown redirect should land on the dashboard, got %q", other.Route())
	}
}

func TestInvalidLoginStaysOnLoginScreen(t *testing.T) {
	app := newTestApp(t, newFakeGateway())

	login(t, app, "admin@example.com", "wrong")

	if app.state != stateLogin || app.Route() != RouteLogin {
		t.Fatalf("failed login must not navigate, route=%q", app.Route())
	}
	if app.login.Error() != "Invalid email or password" {
		t.Fatalf("inline error = %q", app.login.Error())
	}
	if !hasNotice(app, review.LevelError, "Login failed") {
		t.Fatalf("expected a login failure toast, got %+v", app.toasts.Notices())
	}
	if _, ok := app.sessions.Current(); ok {
		t.Fatalf("failed login must not start a session")
	}
}

func TestEmptyLoginIsRejectedLocally(t *testing.T) {
	app := newTestApp(t, newFakeGateway())
	press(t, app, "enter", "enter")
	if app.login.Error() == "" || app.login.Busy() {
		t.Fatalf("expected a validation error without a request")
	}
}

func TestExportFailureShowsOneAlert(t *testing.T) {
	gw := newFakeGateway()
	gw.exportErr = &api.Error{Kind: api.KindExport, Op: "export reviews", Status: 500}
	app := newTestApp(t, gw)
	login(t, app, "admin@example.com", "secret")

	press(t, app, "3", "e")

	if !app.alert.IsVisible() {
		t.Fatalf("expected a blocking alert")
	}
	if app.alert.Message() != "Failed to export" {
		t.Fatalf("alert message = %q", app.alert.Message())
	}
	if _, err := os.Stat(filepath.Join(app.cfg.Export.Dir, "reviews.csv")); !os.IsNotExist(err) {
		t.Fatalf("failed export must not leave a file")
	}

	// The alert swallows keys until dismissed.
	press(t, app, "e")
	if hasNotice(app, review.LevelSuccess, "Export complete") {
		t.Fatalf("keys must not reach the list while the alert is up")
	}
	press(t, app, "enter")
	if app.alert.IsVisible() {
		t.Fatalf("enter should dismiss the alert")
	}
}

func TestExportWritesFile(t *testing.T) {
	app := newTestApp(t, newFakeGateway())
	login(t, app, "admin@example.com", "secret")

	press(t, app, "3", "e")

	data, err := os.ReadFile(filepath.Join(app.cfg.Export.Dir, "reviews.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "review_id\nr1\n" {
		t.Fatalf("export content = %q", data)
	}
	if !hasNotice(app, review.LevelSuccess, "Export complete") {
		t.Fatalf("expected success toast")
	}
}

func TestAssignToMeThroughConfirm(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3")

	press(t, app, "m")
	if app.confirm == nil {
		t.Fatalf("assign should open the confirmation modal")
	}
	if app.confirm.Prompt().Title != "Confirm Assignment" {
		t.Fatalf("prompt title = %q", app.confirm.Prompt().Title)
	}

	press(t, app, "y")
	if app.confirm != nil {
		t.Fatalf("modal should close after answering")
	}
	if gw.assignCalls != 1 {
		t.Fatalf("assign calls = %d, want 1", gw.assignCalls)
	}
	r, _ := app.ctrl.Projection().Find("r1")
	if name, ok := r.Reviewer(); !ok || name != "admin" {
		t.Fatalf("reviewer = %q, want admin", name)
	}
	if !hasNotice(app, review.LevelSuccess, "Review assigned") {
		t.Fatalf("expected success toast, got %+v", app.toasts.Notices())
	}
}

func TestAssignCancelSendsNothing(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3", "m", "esc")

	if gw.assignCalls != 0 {
		t.Fatalf("cancel must not call the gateway")
	}
	if r, _ := app.ctrl.Projection().Find("r1"); r.IsAssigned() {
		t.Fatalf("cancel must not change the projection")
	}
}

func TestAssignFailureNotifiesOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.assignErr = &api.Error{Kind: api.KindAction, Op: "assign review", Status: 409, Message: "Review already assigned"}
	app := newTestApp(t, gw)
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3", "m", "y")

	errorsShown := 0
	for _, n := range app.toasts.Notices() {
		if n.Level == review.LevelError {
			errorsShown++
		}
	}
	if errorsShown != 1 {
		t.Fatalf("expected exactly one error toast, got %d", errorsShown)
	}
	if r, _ := app.ctrl.Projection().Find("r1"); r.IsAssigned() {
		t.Fatalf("failure must leave the projection unchanged")
	}
}

func TestNonAdminCannotAssign(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)
	login(t, app, "user@example.com", "secret")
	press(t, app, "3", "m")

	if app.confirm != nil {
		t.Fatalf("non-admin must not get a confirmation modal")
	}
	if !hasNotice(app, review.LevelWarn, "Cannot assign") {
		t.Fatalf("expected a warning toast, got %+v", app.toasts.Notices())
	}
	if strings.Contains(app.list.View(), "Assign to Me") {
		t.Fatalf("assign affordance must be hidden for non-admins")
	}
}

func TestApproveFromDetailRefetches(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3", "enter")

	if app.Route() != ReviewRoute("r1") {
		t.Fatalf("enter should open the detail, route=%q", app.Route())
	}
	if !strings.Contains(app.detail.View(), "Approve") {
		t.Fatalf("admin should see approve on a pending review")
	}

	press(t, app, "a")
	if app.confirm == nil || app.confirm.Prompt().Affirmative != "Yes, Approve" {
		t.Fatalf("approve should ask for confirmation")
	}
	press(t, app, "y")

	if gw.statusCalls != 1 {
		t.Fatalf("status calls = %d", gw.statusCalls)
	}
	if got := app.detail.Review().Status; got != model.StatusApproved {
		t.Fatalf("detail status = %s, want Approved", got)
	}
	if r, _ := app.ctrl.Projection().Find("r1"); r.Status != model.StatusApproved || r.ReviewedAt == nil {
		t.Fatalf("projection should hold the refetched review: %+v", r)
	}
	if strings.Contains(app.detail.View(), "[a] Approve") {
		t.Fatalf("decided review must not offer approve again")
	}

	press(t, app, "esc")
	if app.Route() != RouteReviews {
		t.Fatalf("esc should go back to the list")
	}
}

func TestDetailShowsImagePlaceholder(t *testing.T) {
	app := newTestApp(t, newFakeGateway())
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3", "enter")

	if !strings.Contains(app.detail.renderBody(), noImage) {
		t.Fatalf("expected %q for a review without image", noImage)
	}
}

func TestFilterNarrowsList(t *testing.T) {
	app := newTestApp(t, newFakeGateway())
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3", "f", "bc-", "esc")

	visible, total := app.ctrl.Projection().Len()
	if visible != 2 || total != 3 {
		t.Fatalf("visible/total = %d/%d, want 2/3", visible, total)
	}

	press(t, app, "x")
	if visible, _ := app.ctrl.Projection().Len(); visible != 3 {
		t.Fatalf("clear should show all reviews, got %d", visible)
	}
}

func TestFuzzyJump(t *testing.T) {
	app := newTestApp(t, newFakeGateway())
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3", "/", "gamma", "enter")

	r, ok := app.list.Selected()
	if !ok || r.ReviewID != "r3" {
		t.Fatalf("jump selected %q, want r3", r.ReviewID)
	}
}

func TestLoadErrorShowsBanner(t *testing.T) {
	gw := newFakeGateway()
	gw.listErr = &api.Error{Kind: api.KindFetch, Op: "list reviews", Status: 500, Message: "Database unavailable"}
	app := newTestApp(t, gw)
	login(t, app, "admin@example.com", "secret")
	press(t, app, "3")

	if app.list.Err() != "Database unavailable" {
		t.Fatalf("banner = %q", app.list.Err())
	}
	if !strings.Contains(app.list.View(), "Database unavailable") {
		t.Fatalf("banner not rendered")
	}

	gw.listErr = nil
	press(t, app, "r")
	if app.list.Err() != "" || app.list.Loading() {
		t.Fatalf("reload should clear the banner")
	}
	if visible, total := app.ctrl.Projection().Len(); visible != 3 || total != 3 {
		t.Fatalf("Len() = %d, %d after a good reload", visible, total)
	}

	// A failed reload drops the rows it can no longer vouch for.
	gw.listErr = &api.Error{Kind: api.KindFetch, Op: "list reviews", Status: 500, Message: "Database unavailable"}
	press(t, app, "r")
	if visible, total := app.ctrl.Projection().Len(); visible != 0 || total != 0 {
		t.Fatalf("Len() = %d, %d, want 0, 0 after a failed reload", visible, total)
	}
	if _, ok := app.list.Selected(); ok {
		t.Fatalf("nothing should be selectable after a failed reload")
	}
	view := app.list.View()
	if !strings.Contains(view, "Database unavailable") {
		t.Fatalf("banner not rendered after reload")
	}
	for _, barcode := range []string{"BC-ALPHA", "XY-2", "BC-GAMMA"} {
		if strings.Contains(view, barcode) {
			t.Fatalf("stale row %s still rendered:\n%s", barcode, view)
		}
	}
}

func TestExpiredSessionReturnsToLogin(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)
	login(t, app, "admin@example.com", "secret")

	gw.listErr = &api.Error{Kind: api.KindFetch, Op: "list reviews", Status: 401, Err: api.ErrUnauthorized}
	press(t, app, "3", "r")

	if app.state != stateLogin {
		t.Fatalf("an unauthorized response should end the session")
	}
	if !strings.Contains(app.login.Error(), "expired") {
		t.Fatalf("login error = %q", app.login.Error())
	}
}

func TestLogoutClearsSession(t *testing.T) {
	app := newTestApp(t, newFakeGateway())
	login(t, app, "admin@example.com", "secret")
	press(t, app, "L")

	if app.Route() != RouteLogin {
		t.Fatalf("logout should return to login, route=%q", app.Route())
	}
	if _, ok := app.sessions.Current(); ok {
		t.Fatalf("session should be cleared")
	}
	if _, total := app.ctrl.Projection().Len(); total != 0 {
		t.Fatalf("projection should be cleared on logout")
	}
}

func TestSidebarNavigation(t *testing.T) {
	app := newTestApp(t, newFakeGateway())
	login(t, app, "admin@example.com", "secret")

	for key, route := range map[string]string{"1": RouteEquipments, "2": RouteUsers, "4": RouteProfile, "5": RouteSettings, "3": RouteReviews} {
		press(t, app, key)
		if app.Route() != route {
			t.Fatalf("key %s: route = %q, want %q", key, app.Route(), route)
		}
	}

	press(t, app, "s")
	if app.sidebar.IsVisible() {
		t.Fatalf("s should hide the sidebar")
	}
	press(t, app, "4")
	if !strings.Contains(app.View(), "admin@example.com") {
		t.Fatalf("profile should show the signed-in email")
	}
}

func TestConfigReload(t *testing.T) {
	gw := newFakeGateway()
	app := newTestApp(t, gw)
	baseURL := app.cfg.API.BaseURL

	next := config.Default()
	next.API.BaseURL = "https://other.example.com"
	next.API.ImageHost = "https://img2.example.com"
	_, cmd := app.Update(ConfigReloadedMsg{Config: next})
	runCommands(t, app, cmd)

	if gw.reconfig != 1 {
		t.Fatalf("gateway should be reconfigured once, got %d", gw.reconfig)
	}
	if app.cfg.API.BaseURL != baseURL {
		t.Fatalf("base URL must not change while running")
	}
	if app.cfg.ImageHost() != "https://img2.example.com" {
		t.Fatalf("image host not applied")
	}

	_, cmd = app.Update(ConfigReloadedMsg{Err: errors.New("bad yaml")})
	runCommands(t, app, cmd)
	if !hasNotice(app, review.LevelWarn, "Config not reloaded") {
		t.Fatalf("expected a warning for a bad reload")
	}
}

func TestReviewedDataMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "_No reviewed data_"},
		{"null", "_No reviewed data_"},
		{`{"ok":true}`, "```json\n{\n  \"ok\": true\n}\n```"},
		{`{"broken":`, "```\n{\"broken\":\n```"},
		{"plain words", "```\nplain words\n```"},
		{"see ```code``` here", "````\nsee ```code``` here\n````"},
		{"a `tick` and ````` five", "``````\na `tick` and ````` five\n``````"},
		{`{"note":"` + "```" + `"}`, "````json\n{\n  \"note\": \"```\"\n}\n````"},
	}
	for _, tt := range tests {
		if got := reviewedDataMarkdown(tt.in); got != tt.want {
			t.Errorf("reviewedDataMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

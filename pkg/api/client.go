package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/itmstools/itms_console/pkg/logging"
	"github.com/itmstools/itms_console/pkg/model"
)

// RequestIDHeader carries a per-request correlation id
const RequestIDHeader = "X-Request-ID"

// defaultMaxBodySize bounds how much of a response body is read
const defaultMaxBodySize = 32 << 20

// TokenSource supplies the bearer token for authenticated calls
type TokenSource interface {
	Token() string
}

// Endpoints holds the request paths. {id} is replaced with the escaped
// review ID.
type Endpoints struct {
	Login        string `yaml:"login" default:"/api/users/auth" validate:"required,startswith=/"`
	Reviews      string `yaml:"reviews" default:"/api/dashboard/reviews" validate:"required,startswith=/"`
	ReviewDetail string `yaml:"review_detail" default:"/api/dashboard/reviews/{id}" validate:"required,startswith=/,contains={id}"`
	Assign       string `yaml:"assign" default:"/api/dashboard/reviews/assign" validate:"required,startswith=/"`
	Status       string `yaml:"status" default:"/api/dashboard/reviews/status" validate:"required,startswith=/"`
	Export       string `yaml:"export" default:"/api/dashboard/export/review" validate:"required,startswith=/"`
}

// DefaultEndpoints returns the backend's standard routes
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:        "/api/users/auth",
		Reviews:      "/api/dashboard/reviews",
		ReviewDetail: "/api/dashboard/reviews/{id}",
		Assign:       "/api/dashboard/reviews/assign",
		Status:       "/api/dashboard/reviews/status",
		Export:       "/api/dashboard/export/review",
	}
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	endpoints  Endpoints
	imageHost  string
	tokens     TokenSource
	log        logrus.FieldLogger
	maxBody    int64
}

// ClientOption configures a Client
type ClientOption func(*options)

// WithHTTPClient overrides the underlying http.Client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each request
func WithTimeout(d time.Duration) ClientOption {
	return func(o *options) { o.timeout = d }
}

// WithEndpoints overrides the request paths
func WithEndpoints(e Endpoints) ClientOption {
	return func(o *options) { o.endpoints = e }
}

// WithImageHost sets the base host relative image paths resolve against
func WithImageHost(host string) ClientOption {
	return func(o *options) { o.imageHost = host }
}

// WithTokenSource sets where the bearer token comes from
func WithTokenSource(ts TokenSource) ClientOption {
	return func(o *options) { o.tokens = ts }
}

// WithMaxBodySize caps the response size; larger bodies fail with
// ErrResponseTooLarge
func WithMaxBodySize(n int64) ClientOption {
	return func(o *options) { o.maxBody = n }
}

// WithLogger sets the request logger
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(o *options) { o.log = l }
}

// Client talks to the review administration backend
type Client struct {
	baseURL *url.URL

	mu      sync.RWMutex
	options *options
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)
	o := &options{
		httpClient: &http.Client{},
		timeout:    15 * time.Second,
		endpoints:  DefaultEndpoints(),
		log:        discard,
		maxBody:    defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Client{baseURL: u, options: o}, nil
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Reconfigure applies options to a live client, e.g. after a config reload
func (c *Client) Reconfigure(opts ...ClientOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := *c.options
	for _, opt := range opts {
		opt(&o)
	}
	c.options = &o
}

func (c *Client) opts() options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.options
}

// envelope is the backend's standard response wrapper
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

func (e envelope) hasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, email, password string) (model.LoginResult, error) {
	const op = "login"
	body := map[string]string{"email": email, "password": password}
	status, raw, err := c.do(ctx, http.MethodPost, c.opts().endpoints.Login, body, false)
	if err != nil {
		return model.LoginResult{}, &Error{Kind: KindAuth, Op: op, Err: err}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusBadRequest || status == http.StatusForbidden:
		return model.LoginResult{}, &Error{Kind: KindAuth, Op: op, Status: status, Message: messageOf(raw), Err: ErrInvalidCredentials}
	case !ok(status):
		return model.LoginResult{}, &Error{Kind: KindAuth, Op: op, Status: status, Message: messageOf(raw), Err: ErrUnsuccessful}
	}

	var res model.LoginResult
	payload := raw
	var env envelope
	if json.Unmarshal(raw, &env) == nil {
		if env.failed() {
			return model.LoginResult{}, &Error{Kind: KindAuth, Op: op, Status: status, Message: env.Message, Err: ErrInvalidCredentials}
		}
		if env.hasData() {
			payload = env.Data
		}
	}
	if err := json.Unmarshal(payload, &res); err != nil {
		return model.LoginResult{}, &Error{Kind: KindAuth, Op: op, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	if strings.TrimSpace(res.UserID) == "" {
		return model.LoginResult{}, &Error{Kind: KindAuth, Op: op, Status: status, Err: errors.New("response carries no user id")}
	}
	if res.Email == "" {
		res.Email = email
	}
	return res, nil
}

// ListReviews fetches every review visible to the session
func (c *Client) ListReviews(ctx context.Context) ([]model.Review, error) {
	const op = "list reviews"
	status, raw, err := c.do(ctx, http.MethodGet, c.opts().endpoints.Reviews, nil, true)
	if err != nil {
		return nil, &Error{Kind: KindFetch, Op: op, Err: err}
	}
	if !ok(status) {
		return nil, &Error{Kind: KindFetch, Op: op, Status: status, Message: messageOf(raw), Err: statusErr(status)}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeReviews(op, status, trimmed)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Kind: KindFetch, Op: op, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.failed() {
		return nil, &Error{Kind: KindFetch, Op: op, Status: status, Message: env.Message, Err: ErrUnsuccessful}
	}
	if !env.hasData() {
		return []model.Review{}, nil
	}
	return decodeReviews(op, status, env.Data)
}

func decodeReviews(op string, status int, data []byte) ([]model.Review, error) {
	var reviews []model.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, &Error{Kind: KindFetch, Op: op, Status: status, Err: fmt.Errorf("decode reviews: %w", err)}
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return reviews, nil
}

// GetReview fetches a single review. Both enveloped and bare objects are
// accepted.
func (c *Client) GetReview(ctx context.Context, id string) (model.Review, error) {
	const op = "get review"
	path := expand(c.opts().endpoints.ReviewDetail, id)
	status, raw, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return model.Review{}, &Error{Kind: KindFetch, Op: op, Err: err}
	}
	if !ok(status) {
		return model.Review{}, &Error{Kind: KindFetch, Op: op, Status: status, Message: messageOf(raw), Err: statusErr(status)}
	}

	payload := raw
	var env envelope
	if json.Unmarshal(raw, &env) == nil {
		if env.failed() {
			return model.Review{}, &Error{Kind: KindFetch, Op: op, Status: status, Message: env.Message, Err: ErrUnsuccessful}
		}
		if env.hasData() {
			payload = env.Data
		}
	}
	var r model.Review
	if err := json.Unmarshal(payload, &r); err != nil {
		return model.Review{}, &Error{Kind: KindFetch, Op: op, Status: status, Err: fmt.Errorf("decode review: %w", err)}
	}
	if r.ReviewID == "" {
		r.ReviewID = id
	}
	return r, nil
}

// AssignRequest binds an admin as a review's reviewer
type AssignRequest struct {
	ReviewID string `json:"reviewId"`
	AdminID  string `json:"adminId"`
}

// AssignResult is what the server reported after an assignment
type AssignResult struct {
	Message    string
	ReviewedBy string        // reviewer name if the server echoed it
	Review     *model.Review // full record if the server returned one
}

// AssignReview asks the server to assign the review to the admin
func (c *Client) AssignReview(ctx context.Context, req AssignRequest) (AssignResult, error) {
	const op = "assign review"
	env, status, err := c.action(ctx, op, c.opts().endpoints.Assign, req)
	if err != nil {
		return AssignResult{}, err
	}
	res := AssignResult{Message: env.Message}
	if env.hasData() {
		var r model.Review
		if json.Unmarshal(env.Data, &r) == nil {
			if r.ReviewID != "" {
				res.Review = &r
			}
			if name, ok := r.Reviewer(); ok {
				res.ReviewedBy = name
			}
		}
	}
	c.opts().log.WithFields(logrus.Fields{"review_id": req.ReviewID, "status": status}).Debug("review assigned")
	return res, nil
}

// StatusRequest sets a review's decision
type StatusRequest struct {
	ID      string       `json:"id"`
	AdminID string       `json:"adminId"`
	Status  model.Status `json:"status"`
}

// StatusResult is what the server reported after a status change
type StatusResult struct {
	Message string
	Review  *model.Review
}

// UpdateReviewStatus asks the server to approve or reject the review
func (c *Client) UpdateReviewStatus(ctx context.Context, req StatusRequest) (StatusResult, error) {
	const op = "update review status"
	env, _, err := c.action(ctx, op, c.opts().endpoints.Status, req)
	if err != nil {
		return StatusResult{}, err
	}
	res := StatusResult{Message: env.Message}
	if env.hasData() {
		var r model.Review
		if json.Unmarshal(env.Data, &r) == nil && r.ReviewID != "" {
			res.Review = &r
		}
	}
	return res, nil
}

// action issues a PATCH and unwraps the envelope, classifying failures as
// KindAction.
func (c *Client) action(ctx context.Context, op, path string, body any) (envelope, int, error) {
	status, raw, err := c.do(ctx, http.MethodPatch, path, body, true)
	if err != nil {
		return envelope{}, 0, &Error{Kind: KindAction, Op: op, Err: err}
	}
	if !ok(status) {
		return envelope{}, status, &Error{Kind: KindAction, Op: op, Status: status, Message: messageOf(raw), Err: statusErr(status)}
	}
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return envelope{}, status, &Error{Kind: KindAction, Op: op, Status: status, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	if env.failed() {
		return envelope{}, status, &Error{Kind: KindAction, Op: op, Status: status, Message: env.Message, Err: ErrUnsuccessful}
	}
	return env, status, nil
}

// ExportReviews downloads the CSV export as raw bytes
func (c *Client) ExportReviews(ctx context.Context) ([]byte, error) {
	const op = "export reviews"
	status, raw, err := c.do(ctx, http.MethodGet, c.opts().endpoints.Export, nil, true)
	if err != nil {
		return nil, &Error{Kind: KindExport, Op: op, Err: err}
	}
	if !ok(status) {
		return nil, &Error{Kind: KindExport, Op: op, Status: status, Message: messageOf(raw), Err: statusErr(status)}
	}
	return raw, nil
}

// ImageURL resolves a review's image path against the image host. An empty
// path yields an empty URL so callers can show a placeholder.
func (c *Client) ImageURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return u.String()
	}
	host := c.opts().imageHost
	if host == "" {
		host = c.baseURL.String()
	}
	base, err := url.Parse(strings.TrimRight(host, "/") + "/")
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool) (int, []byte, error) {
	o := c.opts()
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}
	if auth && o.tokens != nil {
		if tok := o.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), o.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	log := logging.FromContext(ctx, o.log)
	start := time.Now()
	res, err := o.httpClient.Do(req)
	fields := logrus.Fields{
		"method":     method,
		"path":       req.URL.Path,
		"request_id": requestID,
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("api request failed")
		return 0, nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, o.maxBody+1))
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	fields["status"] = res.StatusCode
	if int64(len(raw)) > o.maxBody {
		log.WithFields(fields).Warnf("response larger than %d bytes", o.maxBody)
		return res.StatusCode, nil, fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, o.maxBody)
	}
	log.WithFields(fields).Debug("api request")
	return res.StatusCode, raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	u, err := c.baseURL.Parse(path)
	if err != nil {
		return nil, err
	}

	var reqBody io.ReadWriter
	if body != nil {
		reqBody = new(bytes.Buffer)
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func expand(path, id string) string {
	return strings.ReplaceAll(path, "{id}", url.PathEscape(id))
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func statusErr(status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return fmt.Errorf("unexpected status %d", status)
}

// messageOf extracts the message field from an error body, if any
func messageOf(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

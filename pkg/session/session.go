// Package session holds the authenticated user's identity. A Store is created
// once and handed to every component that needs identity or role.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/itmstools/itms_console/pkg/model"
)

const currentKey = "current"

// ErrExpired is returned when a login result carries an already expired token
var ErrExpired = errors.New("session token has expired")

// Persister keeps a session across process runs
type Persister interface {
	SaveSession(ctx context.Context, s model.Session) error
	LoadSession(ctx context.Context) (model.Session, bool, error)
	ClearSession(ctx context.Context) error
}

// Authenticator exchanges credentials for a login result
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.LoginResult, error)
}

// Store holds the current session. The entry expires with the token.
type Store struct {
	cache     *cache.Cache
	persister Persister
	now       func() time.Time
	log       logrus.FieldLogger
}

// Option configures a Store
type Option func(*Store)

// WithPersister shares the session with later runs
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates an empty session store
func NewStore(opts ...Option) *Store {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Store{
		cache: cache.New(cache.NoExpiration, time.Minute),
		now:   time.Now,
		log:   discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts a session from a login result
func (s *Store) Begin(ctx context.Context, res model.LoginResult) (model.Session, error) {
	now := s.now()
	sess := model.Session{
		UserID:    res.UserID,
		Username:  res.DisplayName(),
		Email:     res.Email,
		Role:      model.ParseRole(res.Role),
		Token:     res.Token,
		StartedAt: now,
		ExpiresAt: TokenExpiry(res.Token),
	}
	if sess.Expired(now) {
		return model.Session{}, ErrExpired
	}
	s.set(sess)

	if s.persister != nil {
		if err := s.persister.SaveSession(ctx, sess); err != nil {
			s.log.WithError(err).Warn("could not persist session")
		}
	}
	s.log.WithFields(logrus.Fields{"user": sess.Username, "role": sess.Role}).Info("session started")
	return sess, nil
}

// Restore loads a persisted session, discarding it if the token expired
func (s *Store) Restore(ctx context.Context) (model.Session, bool, error) {
	if s.persister == nil {
		return model.Session{}, false, nil
	}
	sess, ok, err := s.persister.LoadSession(ctx)
	if err != nil {
		return model.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return model.Session{}, false, nil
	}
	if sess.Expired(s.now()) {
		s.log.WithField("user", sess.Username).Info("persisted session expired")
		if err := s.persister.ClearSession(ctx); err != nil {
			s.log.WithError(err).Warn("could not clear expired session")
		}
		return model.Session{}, false, nil
	}
	s.set(sess)
	return sess, true, nil
}

func (s *Store) set(sess model.Session) {
	ttl := cache.NoExpiration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.now())
	}
	s.cache.Set(currentKey, sess, ttl)
}

// Current returns the active session
func (s *Store) Current() (model.Session, bool) {
	v, ok := s.cache.Get(currentKey)
	if !ok {
		return model.Session{}, false
	}
	sess := v.(model.Session)
	if sess.Expired(s.now()) {
		s.cache.Delete(currentKey)
		return model.Session{}, false
	}
	return sess, true
}

// IsAdmin reports whether the active session has the admin role
func (s *Store) IsAdmin() bool {
	sess, ok := s.Current()
	return ok && sess.IsAdmin()
}

// Token returns the bearer token of the active session, or ""
func (s *Store) Token() string {
	sess, ok := s.Current()
	if !ok {
		return ""
	}
	return sess.Token
}

// End destroys the session here and in the persister
func (s *Store) End(ctx context.Context) error {
	sess, had := s.Current()
	s.cache.Delete(currentKey)
	if had {
		s.log.WithField("user", sess.Username).Info("session ended")
	}
	if s.persister == nil {
		return nil
	}
	return s.persister.ClearSession(ctx)
}

// Login authenticates and starts a session
func Login(ctx context.Context, auth Authenticator, store *Store, email, password string) (model.Session, error) {
	email = strings.TrimSpace(email)
	res, err := auth.Login(ctx, email, password)
	if err != nil {
		return model.Session{}, err
	}
	return store.Begin(ctx, res)
}

// TokenExpiry reads the exp claim without verifying the signature; the
// server owns verification. Opaque tokens and tokens without exp yield zero.
func TokenExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

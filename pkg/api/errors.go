package api

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures by how the UI must surface them
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth is shown inline on the login form and as a toast
	KindAuth
	// KindFetch is shown as an inline banner; the list is left empty
	KindFetch
	// KindAction is shown as a non-blocking notification
	KindAction
	// KindExport is shown as a blocking alert
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindFetch:
		return "FetchError"
	case KindAction:
		return "ActionError"
	case KindExport:
		return "ExportError"
	}
	return "UnknownError"
}

var (
	// ErrInvalidCredentials is returned by Login for a rejected email/password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when the server has no such review
	ErrNotFound = errors.New("not found")
	// ErrUnsuccessful is returned when the envelope reports success=false
	ErrUnsuccessful = errors.New("request was not successful")
	// ErrUnauthorized is returned when the token is missing or rejected
	ErrUnauthorized = errors.New("unauthorized")
	// ErrResponseTooLarge is returned when a body exceeds the client's limit
	ErrResponseTooLarge = errors.New("response too large")
)

// Error is a classified gateway failure
type Error struct {
	Kind    Kind
	Op      string
	Status  int    // HTTP status, 0 for transport failures
	Message string // server supplied message, if any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a gateway error, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a gateway error of kind k
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// UserMessage returns text suitable for a toast or banner
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	switch {
	case errors.Is(e.Err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(e.Err, ErrNotFound):
		return "Review not found"
	case errors.Is(e.Err, ErrUnauthorized):
		return "Your session has expired, please log in again"
	case errors.Is(e.Err, ErrResponseTooLarge):
		return "The server's response was too large"
	}
	switch e.Kind {
	case KindAuth:
		return "Login failed"
	case KindFetch:
		return "Failed to load reviews"
	case KindAction:
		return "The action could not be completed"
	case KindExport:
		return "Failed to export"
	}
	return e.Error()
}

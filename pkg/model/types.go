package model

import (
	"strings"
	"time"
)

// Role gates the admin-only review actions
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// IsValid returns true if the role is a recognized value
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

// ParseRole normalizes a role string from the auth service. Anything that is
// not "admin" is treated as a plain user.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// LoginResult is what the authentication service returns on success
type LoginResult struct {
	UserID   string `json:"_id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// DisplayName prefers the username and falls back to name, then email
func (l LoginResult) DisplayName() string {
	for _, candidate := range []string{l.Username, l.Name, l.Email} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return l.UserID
}

// Session is the authenticated user's identity on this client
type Session struct {
	UserID    string    `json:"user_id" yaml:"user_id"`
	Username  string    `json:"username" yaml:"username"`
	Email     string    `json:"email,omitempty" yaml:"email,omitempty"`
	Role      Role      `json:"role" yaml:"role"`
	Token     string    `json:"-" yaml:"-"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// IsAdmin reports whether the session may assign and decide reviews
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Expired reports whether the token expiry has passed. Sessions without an
// expiry never expire on the client.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// FilterCriteria narrows the review list. Every field is optional free text;
// dates are YYYY-MM-DD or RFC 3339.
type FilterCriteria struct {
	Barcode     string `json:"barcode,omitempty"`
	EquipmentID string `json:"equipment_id,omitempty"`
	Username    string `json:"username,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

// IsEmpty returns true when no criterion is set
func (c FilterCriteria) IsEmpty() bool {
	return strings.TrimSpace(c.Barcode) == "" &&
		strings.TrimSpace(c.EquipmentID) == "" &&
		strings.TrimSpace(c.Username) == "" &&
		strings.TrimSpace(c.StartDate) == "" &&
		strings.TrimSpace(c.EndDate) == ""
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Review is a submitted equipment inspection record. The server owns it; the
// client only ever changes ReviewedBy and Status through the workflow.
type Review struct {
	ReviewID     string     `json:"review_id"`
	EquipmentID  Text       `json:"equipment_id"`
	Barcode      string     `json:"barcode"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	ReviewedBy   *string    `json:"reviewed_by"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	Status       Status     `json:"status"`
	ReviewedData Text       `json:"reviewed_data,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`

	// Present on the detail endpoint only.
	Manufacturer string `json:"manufacturer,omitempty"`
	ModelNumber  string `json:"model_number,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// Reviewer returns the assigned reviewer. An empty name counts as unassigned.
func (r Review) Reviewer() (string, bool) {
	if r.ReviewedBy == nil || strings.TrimSpace(*r.ReviewedBy) == "" {
		return "", false
	}
	return *r.ReviewedBy, true
}

// IsAssigned reports whether a reviewer is bound to the review
func (r Review) IsAssigned() bool {
	_, ok := r.Reviewer()
	return ok
}

// Clone creates a deep copy of the review
func (r Review) Clone() Review {
	clone := r
	if r.ReviewedBy != nil {
		v := *r.ReviewedBy
		clone.ReviewedBy = &v
	}
	if r.ReviewedAt != nil {
		v := *r.ReviewedAt
		clone.ReviewedAt = &v
	}
	return clone
}

// Validate checks the fields the client relies on. A missing status is
// allowed; an unrecognized one is not.
func (r *Review) Validate() error {
	if strings.TrimSpace(r.ReviewID) == "" {
		return fmt.Errorf("review ID cannot be empty")
	}
	if r.Status != "" && !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %q", r.Status)
	}
	return nil
}

// UnmarshalJSON accepts the timestamp layouts the backend has been seen to
// emit; a timestamp that does not parse is left zero rather than failing the
// whole listing.
func (r *Review) UnmarshalJSON(data []byte) error {
	type alias Review
	var wire struct {
		alias
		CreatedAt  *string `json:"created_at"`
		ReviewedAt *string `json:"reviewed_at"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = Review(wire.alias)
	r.CreatedAt = time.Time{}
	r.ReviewedAt = nil
	if wire.CreatedAt != nil {
		if t, ok := ParseTimestamp(*wire.CreatedAt); ok {
			r.CreatedAt = t
		}
	}
	if wire.ReviewedAt != nil {
		if t, ok := ParseTimestamp(*wire.ReviewedAt); ok {
			r.ReviewedAt = &t
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a server or user supplied timestamp. Layouts without a
// zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Status represents the approval state of a review
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// IsValid returns true if the status is a recognized value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true once a decision has been made
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Text is a wire value held as text. JSON strings are decoded; numbers,
// objects and arrays keep their raw JSON form; null is empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(trimmed)
	return nil
}

// String returns the text form
func (t Text) String() string {
	return string(t)
}

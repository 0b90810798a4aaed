package review

import (
	"strings"
	"time"

	"github.com/itmstools/itms_console/pkg/model"
)

// Criteria is a compiled FilterCriteria. Build one with Compile and reuse it
// across lists; it is immutable.
type Criteria struct {
	raw         model.FilterCriteria
	barcode     string
	equipmentID string
	username    string
	start       *time.Time
	end         *time.Time
	invalid     []string
}

// Compile normalizes the criteria for matching. Text criteria are trimmed and
// lowercased; a blank criterion is inactive. A date criterion that does not
// parse is also inactive and is listed by Invalid.
func Compile(c model.FilterCriteria) Criteria {
	cc := Criteria{
		raw:         c,
		barcode:     normalize(c.Barcode),
		equipmentID: normalize(c.EquipmentID),
		username:    normalize(c.Username),
	}
	if s := strings.TrimSpace(c.StartDate); s != "" {
		if t, ok := model.ParseTimestamp(s); ok {
			cc.start = &t
		} else {
			cc.invalid = append(cc.invalid, "start_date")
		}
	}
	if s := strings.TrimSpace(c.EndDate); s != "" {
		if t, ok := model.ParseTimestamp(s); ok {
			cc.end = &t
		} else {
			cc.invalid = append(cc.invalid, "end_date")
		}
	}
	return cc
}

// Raw returns the criteria as entered
func (c Criteria) Raw() model.FilterCriteria {
	return c.raw
}

// Invalid returns the names of date criteria that could not be parsed
func (c Criteria) Invalid() []string {
	if len(c.invalid) == 0 {
		return nil
	}
	out := make([]string, len(c.invalid))
	copy(out, c.invalid)
	return out
}

// Active reports whether any criterion narrows the list
func (c Criteria) Active() bool {
	return c.barcode != "" || c.equipmentID != "" || c.username != "" || c.start != nil || c.end != nil
}

// Match reports whether r satisfies every active criterion
func (c Criteria) Match(r model.Review) bool {
	return c.matchBarcode(r) &&
		c.matchEquipment(r) &&
		c.matchUsername(r) &&
		c.matchStart(r) &&
		c.matchEnd(r)
}

func (c Criteria) matchBarcode(r model.Review) bool {
	return c.barcode == "" || contains(r.Barcode, c.barcode)
}

func (c Criteria) matchEquipment(r model.Review) bool {
	return c.equipmentID == "" || contains(r.EquipmentID.String(), c.equipmentID)
}

// The reviewed_by side only counts when a reviewer is present.
func (c Criteria) matchUsername(r model.Review) bool {
	if c.username == "" {
		return true
	}
	if contains(r.CreatedBy, c.username) {
		return true
	}
	if reviewer, ok := r.Reviewer(); ok {
		return contains(reviewer, c.username)
	}
	return false
}

// Date bounds match on either timestamp: created_at, or reviewed_at when set.
func (c Criteria) matchStart(r model.Review) bool {
	if c.start == nil {
		return true
	}
	if !r.CreatedAt.IsZero() && !r.CreatedAt.Before(*c.start) {
		return true
	}
	return r.ReviewedAt != nil && !r.ReviewedAt.Before(*c.start)
}

func (c Criteria) matchEnd(r model.Review) bool {
	if c.end == nil {
		return true
	}
	if !r.CreatedAt.IsZero() && !r.CreatedAt.After(*c.end) {
		return true
	}
	return r.ReviewedAt != nil && !r.ReviewedAt.After(*c.end)
}

// Filter returns the reviews matching every active criterion in their
// original order. The input slice is never modified.
func Filter(reviews []model.Review, c model.FilterCriteria) []model.Review {
	return Compile(c).Apply(reviews)
}

// Apply filters reviews with the compiled criteria
func (c Criteria) Apply(reviews []model.Review) []model.Review {
	if reviews == nil {
		return nil
	}
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		if c.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contains(value, needle string) bool {
	return strings.Contains(strings.ToLower(value), needle)
}

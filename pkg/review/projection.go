package review

import (
	"sync"
	"time"

	"github.com/itmstools/itms_console/pkg/model"
)

// Projection is the client-local view of the last fetched review list. The
// visible list is recomputed on every source or criteria change and is always
// a subset of the source.
type Projection struct {
	mu        sync.RWMutex
	source    []model.Review
	index     map[string]int // review ID -> position in source
	criteria  Criteria
	visible   []model.Review
	fetchedAt time.Time
}

// NewProjection creates an empty projection with no criteria
func NewProjection() *Projection {
	return &Projection{
		index:    make(map[string]int),
		criteria: Compile(model.FilterCriteria{}),
	}
}

// SetSource replaces the fetched list
func (p *Projection) SetSource(reviews []model.Review) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.source = make([]model.Review, len(reviews))
	p.index = make(map[string]int, len(reviews))
	for i, r := range reviews {
		p.source[i] = r.Clone()
		p.index[r.ReviewID] = i
	}
	p.fetchedAt = time.Now()
	p.recompute()
}

// Clear drops the fetched list, e.g. after a failed reload
func (p *Projection) Clear() {
	p.SetSource(nil)
}

// SetCriteria replaces the filter criteria and returns the compiled form
func (p *Projection) SetCriteria(c model.FilterCriteria) Criteria {
	compiled := Compile(c)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.criteria = compiled
	p.recompute()
	return compiled
}

// Criteria returns the active criteria
func (p *Projection) Criteria() Criteria {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.criteria
}

// Visible returns a copy of the filtered list
func (p *Projection) Visible() []model.Review {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneAll(p.visible)
}

// Source returns a copy of the full fetched list
func (p *Projection) Source() []model.Review {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneAll(p.source)
}

// Len returns the number of visible and fetched reviews
func (p *Projection) Len() (visible, total int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.visible), len(p.source)
}

// FetchedAt returns when the source was last replaced
func (p *Projection) FetchedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fetchedAt
}

// Find looks a review up by ID in the source list
func (p *Projection) Find(id string) (model.Review, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[id]
	if !ok {
		return model.Review{}, false
	}
	return p.source[i].Clone(), true
}

// ApplyAssignment records a server-confirmed reviewer. Status is untouched.
func (p *Projection) ApplyAssignment(id, reviewer string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[id]
	if !ok {
		return false
	}
	name := reviewer
	p.source[i].ReviewedBy = &name
	p.recompute()
	return true
}

// Replace swaps in a server-fetched copy of a review already in the source.
// Reviews not in the source are ignored so the projection never grows
// outside a list fetch.
func (p *Projection) Replace(r model.Review) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[r.ReviewID]
	if !ok {
		return false
	}
	p.source[i] = r.Clone()
	p.recompute()
	return true
}

// recompute must be called with the write lock held
func (p *Projection) recompute() {
	p.visible = p.criteria.Apply(p.source)
	if p.visible == nil {
		p.visible = []model.Review{}
	}
}

func cloneAll(reviews []model.Review) []model.Review {
	out := make([]model.Review, len(reviews))
	for i, r := range reviews {
		out[i] = r.Clone()
	}
	return out
}

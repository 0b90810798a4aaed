package review

import (
	"sync"
	"time"
)

// Outcome of a workflow action as recorded locally
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// ActionRecord is one workflow action taken during this run
type ActionRecord struct {
	ReviewID  string
	Action    Action
	Outcome   string
	Actor     string
	Message   string
	Timestamp time.Time
}

// Tally counts the actions taken during a run
type Tally struct {
	Assigned int
	Approved int
	Rejected int
	Failed   int
}

// Total returns the number of successful actions
func (t Tally) Total() int {
	return t.Assigned + t.Approved + t.Rejected
}

// ActionCollector accumulates workflow actions during a run
type ActionCollector struct {
	mu      sync.Mutex
	actions []ActionRecord
	byKey   map[string]int // "reviewID/action" -> index in actions
}

// NewActionCollector creates a new collector
func NewActionCollector() *ActionCollector {
	return &ActionCollector{
		actions: make([]ActionRecord, 0),
		byKey:   make(map[string]int),
	}
}

// Record adds or updates an action.
// Repeating the same action on a review keeps only the last outcome.
func (c *ActionCollector) Record(rec ActionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	key := rec.ReviewID + "/" + string(rec.Action)
	if idx, exists := c.byKey[key]; exists {
		c.actions[idx] = rec
		return
	}
	c.byKey[key] = len(c.actions)
	c.actions = append(c.actions, rec)
}

// Actions returns all collected actions
func (c *ActionCollector) Actions() []ActionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]ActionRecord, len(c.actions))
	copy(result, c.actions)
	return result
}

// Count returns the number of recorded actions
func (c *ActionCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.actions)
}

// Tally summarizes the recorded actions
func (c *ActionCollector) Tally() Tally {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t Tally
	for _, a := range c.actions {
		switch a.Outcome {
		case OutcomeSucceeded:
			switch a.Action {
			case ActionAssign:
				t.Assigned++
			case ActionApprove:
				t.Approved++
			case ActionReject:
				t.Rejected++
			}
		case OutcomeFailed:
			t.Failed++
		}
	}
	return t
}

// Clear removes all recorded actions
func (c *ActionCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = make([]ActionRecord, 0)
	c.byKey = make(map[string]int)
}

package review

import "errors"

var (
	// ErrNoSession is returned when no one is logged in
	ErrNoSession = errors.New("not logged in")
	// ErrNotAdmin is returned when a non-admin attempts a workflow action
	ErrNotAdmin = errors.New("admin role required")
	// ErrNotFound is returned for a review outside the fetched list
	ErrNotFound = errors.New("review not found")
	// ErrAlreadyAssigned is returned when the review already has a reviewer
	ErrAlreadyAssigned = errors.New("review already assigned")
	// ErrAlreadyDecided is returned when the review status is terminal
	ErrAlreadyDecided = errors.New("review already decided")
	// ErrInvalidDecision is returned for a decision other than Approved or Rejected
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrBusy is returned when a different action is in flight for the review
	ErrBusy = errors.New("another action is in progress for this review")
	// ErrNoConfirmer is returned when an action is attempted without a confirmation step
	ErrNoConfirmer = errors.New("confirmation required")
)

// IsPrecondition reports whether err was a local rejection that issued no
// request.
func IsPrecondition(err error) bool {
	for _, target := range []error{ErrNoSession, ErrNotAdmin, ErrNotFound, ErrAlreadyAssigned, ErrAlreadyDecided, ErrInvalidDecision, ErrBusy, ErrNoConfirmer} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package review

import (
	"context"
	"fmt"

	"github.com/itmstools/itms_console/pkg/model"
)

// Action names a workflow transition
type Action string

const (
	ActionAssign  Action = "assign"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ActionFor maps a decision onto its workflow action
func ActionFor(decision model.Status) (Action, error) {
	switch decision {
	case model.StatusApproved:
		return ActionApprove, nil
	case model.StatusRejected:
		return ActionReject, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
}

// Prompt is the two-choice confirmation shown before a request is issued
type Prompt struct {
	Action      Action
	ReviewID    string
	Title       string
	Question    string
	Affirmative string
	Negative    string
}

// PromptFor builds the confirmation wording for an action
func PromptFor(action Action, reviewID string) Prompt {
	p := Prompt{Action: action, ReviewID: reviewID, Negative: "Cancel"}
	switch action {
	case ActionApprove:
		p.Title = "Confirm Approval"
		p.Question = "Are you sure you want to approve this review?"
		p.Affirmative = "Yes, Approve"
	case ActionReject:
		p.Title = "Confirm Rejection"
		p.Question = "Are you sure you want to reject this review?"
		p.Affirmative = "Yes, Reject"
	default:
		p.Title = "Confirm Assignment"
		p.Question = "Assign this review to yourself?"
		p.Affirmative = "Yes, Assign"
	}
	return p
}

// Confirmer asks the user to proceed or cancel. Returning false issues no
// request.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// Confirmed is used when the prompt was already answered, e.g. by a modal
// on screen or a --yes flag.
var Confirmed Confirmer = ConfirmFunc(func(context.Context, Prompt) (bool, error) {
	return true, nil
})

package assessment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrSessionExpired    = errors.New("session expired")
	// ErrEvaluation is an internal-consistency fault: a snapshot that passed
	// creation-time validation could not be graded.
	ErrEvaluation        = errors.New("evaluation error")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("concurrent modification")

	ErrAlreadyStarted     = &TransitionError{Op: "start", Reason: "session already started"}
	ErrUnansweredQuestion = &TransitionError{Op: "advance", Reason: "current question has no saved answer"}
)

// SelectionError carries the per-type shortfall behind ErrInvalidSelection.
type SelectionError struct {
	Shortfall []Shortfall
	Reason    string
}

func (e *SelectionError) Error() string {
	if len(e.Shortfall) == 0 {
		return "invalid selection: " + e.Reason
	}
	parts := make([]string, 0, len(e.Shortfall))
	for _, s := range e.Shortfall {
		parts = append(parts, fmt.Sprintf("%s %d/%d", s.Type, s.Available, s.Requested))
	}
	return "invalid selection: not enough questions (" + strings.Join(parts, ", ") + ")"
}

func (e *SelectionError) Unwrap() error { return ErrInvalidSelection }

// TransitionError describes an operation that is not legal in the
// session's current state.
type TransitionError struct {
	Op     string
	From   Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("illegal transition: %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("illegal transition: %s from %s: %s", e.Op, e.From, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Is lets errors.Is(err, ErrUnansweredQuestion) match any TransitionError
// with the same Op and Reason regardless of From.
func (e *TransitionError) Is(target error) bool {
	t, ok := target.(*TransitionError)
	if !ok {
		return false
	}
	return t.Op == e.Op && t.Reason == e.Reason
}

func illegal(op string, from Status, reason string) error {
	return &TransitionError{Op: op, From: from, Reason: reason}
}

package assessment

import (
	"context"
	"errors"
	"time"
)

// Event types emitted by the engine.
const (
	EventCreated     = "session.created"
	EventStarted     = "session.started"
	EventPaused      = "session.paused"
	EventResumed     = "session.resumed"
	EventCompleted   = "session.completed"
	EventExpired     = "session.expired"
	EventAbandoned   = "session.abandoned"
	EventAnswerSaved = "session.answer_saved"
)

// Event is a lifecycle fact about one session. Sinks must tolerate
// duplicates; Key is the session id.
type Event struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	LearnerID     string    `json:"learner_id"`
	Mode          Mode      `json:"mode"`
	From          Status    `json:"from,omitempty"`
	To            Status    `json:"to,omitempty"`
	QuestionID    string    `json:"question_id,omitempty"`
	AttemptNumber int       `json:"attempt_number"`
	LineageID     string    `json:"lineage_id"`
	At            time.Time `json:"at"`
}

// EventSink receives events after the state they describe is persisted.
// Emit errors are logged, never returned to the learner.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// Observer receives in-process measurements (metrics).
type Observer interface {
	Transitioned(mode Mode, from, to Status)
	Answered(t QuestionType, correct bool, matchPercent *float64)
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) error { return nil }

type nopObserver struct{}

func (nopObserver) Transitioned(Mode, Status, Status) {}

func (nopObserver) Answered(QuestionType, bool, *float64) {}

// eventType names the event for a recorded transition.
func eventType(t Transition) string {
	switch t.To {
	case StatusInProgress:
		if t.From == StatusPaused {
			return EventResumed
		}
		return EventStarted
	case StatusPaused:
		return EventPaused
	case StatusCompleted:
		return EventCompleted
	case StatusExpired:
		return EventExpired
	case StatusAbandoned:
		return EventAbandoned
	}
	return "session." + string(t.To)
}

func newEvent(typ string, s *Session, at time.Time) Event {
	return Event{
		Type:          typ,
		SessionID:     s.ID,
		LearnerID:     s.LearnerID,
		Mode:          s.Mode,
		AttemptNumber: s.AttemptNumber,
		LineageID:     s.LineageID,
		At:            at,
	}
}

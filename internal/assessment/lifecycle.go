package assessment

import "time"

// allowed lists every legal status change. Terminal states have no entry.
var allowed = map[Status][]Status{
	StatusNotStarted: {StatusInProgress, StatusAbandoned},
	StatusInProgress: {StatusPaused, StatusCompleted, StatusExpired, StatusAbandoned},
	StatusPaused:     {StatusInProgress, StatusCompleted, StatusExpired, StatusAbandoned},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition moves s to `to` and records the edge. Completed and expired
// are only reachable after at least one in_progress interval.
func (s *Session) transition(op string, to Status, now time.Time) error {
	if !CanTransition(s.Status, to) {
		return illegal(op, s.Status, "not allowed")
	}
	if (to == StatusCompleted || to == StatusExpired) && !s.wasInProgress() {
		return illegal(op, s.Status, "session never ran")
	}
	s.Transitions = append(s.Transitions, Transition{From: s.Status, To: to, At: now})
	s.Status = to
	s.touch(now)
	if to.Terminal() {
		t := now
		s.FinishedAt = &t
		s.QuestionShownAt = nil
	}
	return nil
}

func (s *Session) wasInProgress() bool {
	for _, t := range s.Transitions {
		if t.To == StatusInProgress {
			return true
		}
	}
	return false
}

// Deadline returns when an interview session runs out of time. ok is false
// for sessions without a time limit or not yet started.
func (s *Session) Deadline() (deadline time.Time, ok bool) {
	if s.Mode != ModeInterview || s.TimeLimitSec == nil || s.StartedAt == nil {
		return time.Time{}, false
	}
	return s.StartedAt.Add(time.Duration(*s.TimeLimitSec) * time.Second), true
}

// Expired is the pure expiry predicate: now has passed startedAt+limit.
func (s *Session) Expired(now time.Time) bool {
	d, ok := s.Deadline()
	return ok && now.After(d)
}

// Start moves a fresh session to in_progress and opens the timing interval
// for the first question.
func (s *Session) Start(now time.Time) error {
	if s.Status != StatusNotStarted {
		return illegal("start", s.Status, ErrAlreadyStarted.Reason)
	}
	if err := s.transition("start", StatusInProgress, now); err != nil {
		return err
	}
	t := now
	s.StartedAt = &t
	s.openInterval(now)
	return nil
}

// Pause is practice-only; an interview clock must not be stoppable. The
// open interval is kept and shifted by the paused stretch on Resume.
func (s *Session) Pause(now time.Time) error {
	if s.Mode != ModePractice {
		return illegal("pause", s.Status, "only practice sessions can be paused")
	}
	if s.Status != StatusInProgress {
		return illegal("pause", s.Status, "session is not in progress")
	}
	return s.transition("pause", StatusPaused, now)
}

func (s *Session) Resume(now time.Time) error {
	if s.Mode != ModePractice {
		return illegal("resume", s.Status, "only practice sessions can be paused")
	}
	if s.Status != StatusPaused {
		return illegal("resume", s.Status, "session is not paused")
	}
	pausedAt := s.Transitions[len(s.Transitions)-1].At
	if err := s.transition("resume", StatusInProgress, now); err != nil {
		return err
	}
	if s.QuestionShownAt == nil {
		s.openInterval(now)
		return nil
	}
	t := s.QuestionShownAt.Add(now.Sub(pausedAt))
	s.QuestionShownAt = &t
	return nil
}

// Advance moves the cursor to the next question. answered reports whether
// the current question has a saved answer.
func (s *Session) Advance(answered bool, now time.Time) error {
	if s.Status != StatusInProgress {
		return illegal("advance", s.Status, "session is not in progress")
	}
	if !answered {
		return illegal("advance", s.Status, ErrUnansweredQuestion.Reason)
	}
	if s.CurrentIndex >= len(s.Snapshots)-1 {
		return illegal("advance", s.Status, "already at the last question")
	}
	s.CurrentIndex++
	s.touch(now)
	s.openInterval(now)
	return nil
}

// Finish ends the session: expired when an interview ran out of time,
// otherwise completed once every question has an answer.
func (s *Session) Finish(answeredCount int, now time.Time) error {
	if s.Status != StatusInProgress && s.Status != StatusPaused {
		return illegal("finish", s.Status, "session is not running")
	}
	if s.Expired(now) {
		return s.transition("finish", StatusExpired, now)
	}
	if answeredCount < len(s.Snapshots) {
		return illegal("finish", s.Status, "unanswered questions remain")
	}
	return s.transition("finish", StatusCompleted, now)
}

// Expire forces an interview past its deadline into expired.
func (s *Session) Expire(now time.Time) error {
	return s.transition("expire", StatusExpired, now)
}

// Abandon is applied by external cleanup policy to idle sessions.
func (s *Session) Abandon(now time.Time) error {
	if s.Status.Terminal() {
		return illegal("abandon", s.Status, "session already finished")
	}
	return s.transition("abandon", StatusAbandoned, now)
}

// Current returns the snapshot under the cursor.
func (s *Session) Current() *Snapshot {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Snapshots) {
		return nil
	}
	return &s.Snapshots[s.CurrentIndex]
}

// IndexOf finds a question in the session, -1 when absent.
func (s *Session) IndexOf(questionID string) int {
	for i, sn := range s.Snapshots {
		if sn.QuestionID == questionID {
			return i
		}
	}
	return -1
}

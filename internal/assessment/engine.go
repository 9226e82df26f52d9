package assessment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-prep/internal/bank"
	"github.com/mind-engage/mindengage-prep/internal/grading"
)

// Engine runs assessment sessions: selection at creation, the lifecycle
// state machine, evaluation with time tracking, summaries and retakes.
// Every mutation of one session runs under that session's lock and is
// persisted before the call returns.
type Engine struct {
	store  Store
	bank   bank.Bank
	eval   *Evaluator
	locker Locker
	sink   EventSink
	obs    Observer
	now    func() time.Time
	newID  func() string
	seed   func() int64
}

// EngineOption customizes an Engine built by NewEngine.
type EngineOption func(*Engine)

func WithEvaluator(ev *Evaluator) EngineOption {
	return func(e *Engine) { e.eval = ev }
}

// WithLocker replaces the in-process lock, e.g. with a RedisLocker when
// several replicas serve the same sessions.
func WithLocker(l Locker) EngineOption {
	return func(e *Engine) { e.locker = l }
}

func WithEventSink(s EventSink) EngineOption {
	return func(e *Engine) { e.sink = s }
}

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.obs = o }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(f func() string) EngineOption {
	return func(e *Engine) { e.newID = f }
}

func WithSeedSource(f func() int64) EngineOption {
	return func(e *Engine) { e.seed = f }
}

func NewEngine(store Store, b bank.Bank, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		bank:   b,
		eval:   NewEvaluator(nil, grading.DefaultThresholds()),
		locker: NewLocalLocker(),
		sink:   nopSink{},
		obs:    nopObserver{},
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		seed:   randomSeed,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func randomSeed() int64 {
	for {
		if s := rand.Int63(); s != 0 {
			return s
		}
	}
}

// CreateSession selects questions for criteria and stores a not_started
// session holding their snapshots. timeLimitSec only applies to interview
// sessions.
func (e *Engine) CreateSession(ctx context.Context, learnerID string, c Criteria, mode Mode, timeLimitSec *int) (*Session, error) {
	if learnerID == "" {
		return nil, &SelectionError{Reason: "learner id is required"}
	}
	if !mode.Valid() {
		return nil, &SelectionError{Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	if timeLimitSec != nil {
		if mode != ModeInterview {
			return nil, &SelectionError{Reason: "time limit only applies to interview sessions"}
		}
		if *timeLimitSec <= 0 {
			return nil, &SelectionError{Reason: "time limit must be positive"}
		}
	}
	return e.create(ctx, draft{learnerID: learnerID, criteria: c, mode: mode, timeLimitSec: timeLimitSec})
}

type draft struct {
	learnerID    string
	criteria     Criteria
	mode         Mode
	timeLimitSec *int
	source       *Session
	attempt      int
}

func (e *Engine) create(ctx context.Context, d draft) (*Session, error) {
	c := d.criteria
	if c.Seed == 0 {
		c.Seed = e.seed()
	}
	candidates, err := e.bank.FetchQuestionsByCriteria(ctx, c.Filter())
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	snaps, shortfall, err := SelectQuestions(candidates, c)
	if err != nil {
		return nil, err
	}

	now := e.now()
	s := &Session{
		ID:            e.newID(),
		LearnerID:     d.learnerID,
		Mode:          d.mode,
		Status:        StatusNotStarted,
		Criteria:      c,
		Snapshots:     snaps,
		Shortfall:     shortfall,
		CreatedAt:     now,
		UpdatedAt:     now,
		TimeLimitSec:  d.timeLimitSec,
		AttemptNumber: 1,
		Transitions:   []Transition{},
	}
	s.LineageID = s.ID
	if d.source != nil {
		src := d.source.ID
		s.SourceSessionID = &src
		s.LineageID = d.source.LineageID
		s.AttemptNumber = d.attempt
	}
	if err := e.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	log.Info().Str("session_id", s.ID).Str("learner_id", s.LearnerID).Str("mode", string(s.Mode)).
		Int("questions", len(s.Snapshots)).Int("attempt", s.AttemptNumber).Msg("session created")
	e.emit(ctx, newEvent(EventCreated, s, now))
	return s, nil
}

func (e *Engine) GetSession(ctx context.Context, id string) (*Session, error) {
	return e.store.GetSession(ctx, id)
}

func (e *Engine) ListSessions(ctx context.Context, opts ListOpts) ([]Session, error) {
	return e.store.ListSessions(ctx, opts)
}

func (e *Engine) StartSession(ctx context.Context, id string) (*Session, error) {
	return e.withSession(ctx, id, func(s *Session, now time.Time) error {
		return s.Start(now)
	})
}

func (e *Engine) PauseSession(ctx context.Context, id string) (*Session, error) {
	return e.withSession(ctx, id, func(s *Session, now time.Time) error {
		if err := guardRunning(s, now); err != nil {
			return err
		}
		return s.Pause(now)
	})
}

func (e *Engine) ResumeSession(ctx context.Context, id string) (*Session, error) {
	return e.withSession(ctx, id, func(s *Session, now time.Time) error {
		if err := guardRunning(s, now); err != nil {
			return err
		}
		return s.Resume(now)
	})
}

// SubmitAnswer evaluates and saves the answer for questionID. An empty
// submission is a skip and is graded incorrect. elapsed is the client's
// measurement of the interval; zero lets the server measure it.
//
// Saving a question the cursor has already moved past, or re-sending the
// exact stored submission, returns the stored answer unchanged. Changing
// the answer to the current question re-evaluates it and adds another
// interval to its time.
func (e *Engine) SubmitAnswer(ctx context.Context, id, questionID string, sub Submission, elapsed time.Duration) (Answer, error) {
	var out Answer
	_, err := e.withSession(ctx, id, func(s *Session, now time.Time) error {
		idx := s.IndexOf(questionID)
		if idx < 0 {
			return fmt.Errorf("%w: question %s is not part of session %s", ErrNotFound, questionID, s.ID)
		}
		prev, err := e.store.GetAnswer(ctx, s.ID, questionID)
		found := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if found && (idx < s.CurrentIndex || s.Status.Terminal()) {
			out = prev
			return nil
		}
		if err := guardRunning(s, now); err != nil {
			return err
		}
		if s.Status != StatusInProgress {
			return illegal("submit", s.Status, "session is not in progress")
		}
		if idx != s.CurrentIndex {
			return illegal("submit", s.Status, "question is not the current one")
		}

		snap := s.Snapshots[idx]
		sub = inferKind(sub, snap.Type)
		if found && prev.Submission.equal(sub) {
			out = prev
			return nil
		}
		ans, err := e.eval.Evaluate(s.Mode, snap, sub)
		if err != nil {
			return err
		}
		ans.SessionID = s.ID
		ans.Index = idx
		ans.SavedAt = now
		if found {
			ans.TimeMs = prev.TimeMs
			ans.Intervals = prev.Intervals
		}
		ans.addInterval(s.intervalAt(elapsed, now))
		if err := e.store.PutAnswer(ctx, ans); err != nil {
			return err
		}
		// a later re-save of this question only counts the new stretch
		s.openInterval(now)
		out = ans
		e.obs.Answered(snap.Type, ans.IsCorrect, ans.MatchPercent)
		ev := newEvent(EventAnswerSaved, s, now)
		ev.QuestionID = questionID
		e.emit(ctx, ev)
		return nil
	})
	if err != nil {
		return Answer{}, err
	}
	return out, nil
}

// inferKind fills in a missing kind: from whichever half is set, or from
// the question type for a bare skip.
func inferKind(sub Submission, t QuestionType) Submission {
	switch {
	case sub.Kind != "":
	case len(sub.OptionIDs) > 0:
		sub.Kind = SubmissionChoice
	case sub.Text != "":
		sub.Kind = SubmissionWritten
	case t == TypeWritten:
		sub.Kind = SubmissionWritten
	default:
		sub.Kind = SubmissionChoice
	}
	return sub
}

// Advance moves to the next question once the current one has an answer.
func (e *Engine) Advance(ctx context.Context, id string) (*Session, error) {
	return e.withSession(ctx, id, func(s *Session, now time.Time) error {
		if err := guardRunning(s, now); err != nil {
			return err
		}
		cur := s.Current()
		if cur == nil {
			return illegal("advance", s.Status, "session has no questions")
		}
		_, err := e.store.GetAnswer(ctx, s.ID, cur.QuestionID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return s.Advance(err == nil, now)
	})
}

// FinishSession ends the session at now (the engine clock when zero). An
// interview past its deadline becomes expired regardless of answers;
// otherwise every question must be answered. Finishing a session that has
// already ended returns it unchanged.
func (e *Engine) FinishSession(ctx context.Context, id string, now time.Time) (*Session, error) {
	return e.withSessionAt(ctx, id, now, func(s *Session, now time.Time) error {
		if s.Status.Terminal() {
			return nil
		}
		answers, err := e.store.ListAnswers(ctx, s.ID)
		if err != nil {
			return err
		}
		return s.Finish(len(answers), now)
	})
}

// CheckExpiry moves an interview past its deadline to expired. It is what
// a background sweep or a heartbeat calls; the session is returned either
// way.
func (e *Engine) CheckExpiry(ctx context.Context, id string) (*Session, error) {
	return e.withSession(ctx, id, func(s *Session, now time.Time) error {
		if s.Status.Terminal() || !s.Expired(now) {
			return nil
		}
		return s.Expire(now)
	})
}

// Abandon ends an idle session. Abandoning an abandoned session is a no-op.
func (e *Engine) Abandon(ctx context.Context, id string) (*Session, error) {
	return e.withSession(ctx, id, func(s *Session, now time.Time) error {
		if s.Status == StatusAbandoned {
			return nil
		}
		return s.Abandon(now)
	})
}

// AbandonStale abandons every non-terminal session untouched for idleFor.
// Interviews already past their deadline are expired instead. Idleness is
// checked again under the session lock, so a session that saw activity
// after the listing is left alone.
func (e *Engine) AbandonStale(ctx context.Context, idleFor time.Duration) (int, error) {
	cutoff := e.now().Add(-idleFor)
	stale, err := e.store.ListSessions(ctx, ListOpts{ActiveOnly: true, UpdatedBefore: cutoff})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, st := range stale {
		ended := false
		_, err := e.withSession(ctx, st.ID, func(s *Session, now time.Time) error {
			if s.Status.Terminal() || !s.UpdatedAt.Before(cutoff) {
				return nil
			}
			ended = true
			if s.Expired(now) {
				return s.Expire(now)
			}
			return s.Abandon(now)
		})
		if err != nil {
			return n, err
		}
		if ended {
			n++
		}
	}
	return n, nil
}

// GetSummary recomputes the summary of a finished session from its stored
// answers. Calling it repeatedly yields identical results.
func (e *Engine) GetSummary(ctx context.Context, id string) (Summary, error) {
	s, err := e.store.GetSession(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	if !s.Status.Terminal() {
		return Summary{}, illegal("summary", s.Status, "session is not finished")
	}
	answers, err := e.store.ListAnswers(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return BuildSummary(s, answers), nil
}

// persistSummary stores the summary computed when a session ends.
func (e *Engine) persistSummary(ctx context.Context, s *Session) error {
	answers, err := e.store.ListAnswers(ctx, s.ID)
	if err != nil {
		return err
	}
	return e.store.SaveSummary(ctx, BuildSummary(s, answers))
}

// guardRunning rejects mutations on an expired interview, expiring it
// first when the deadline has passed since the last call.
func guardRunning(s *Session, now time.Time) error {
	if s.Status == StatusExpired {
		return ErrSessionExpired
	}
	if !s.Status.Terminal() && s.Expired(now) {
		if err := s.Expire(now); err != nil {
			return err
		}
		return ErrSessionExpired
	}
	return nil
}

func (e *Engine) withSession(ctx context.Context, id string, fn func(s *Session, now time.Time) error) (*Session, error) {
	return e.withSessionAt(ctx, id, time.Time{}, fn)
}

// withSessionAt loads a session under its lock, applies fn and persists
// the session if fn changed it, even when fn also returned an error (an
// expiry discovered on the way is still recorded). A session that just
// ended gets its summary stored.
func (e *Engine) withSessionAt(ctx context.Context, id string, at time.Time, fn func(s *Session, now time.Time) error) (*Session, error) {
	unlock, err := e.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", id, err)
	}
	defer unlock()

	s, err := e.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	now := at
	if now.IsZero() {
		now = e.now()
	}
	mark := len(s.Transitions)
	opErr := fn(s, now)
	if s.dirty {
		s.dirty = false
		if err := e.store.UpdateSession(ctx, s); err != nil {
			return nil, err
		}
		for _, t := range s.Transitions[mark:] {
			e.obs.Transitioned(s.Mode, t.From, t.To)
			ev := newEvent(eventType(t), s, t.At)
			ev.From, ev.To = t.From, t.To
			e.emit(ctx, ev)
			log.Debug().Str("session_id", s.ID).Str("from", string(t.From)).Str("to", string(t.To)).Msg("session transition")
		}
		if len(s.Transitions) > mark && s.Status.Terminal() {
			if err := e.persistSummary(ctx, s); err != nil {
				return s, fmt.Errorf("store summary for %s: %w", s.ID, err)
			}
		}
	}
	if opErr != nil {
		return s, opErr
	}
	return s, nil
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	if err := e.sink.Emit(ctx, ev); err != nil {
		log.Warn().Err(err).Str("session_id", ev.SessionID).Str("type", ev.Type).Msg("event sink failed")
	}
}

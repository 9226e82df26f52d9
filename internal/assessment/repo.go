package assessment

import (
	"context"
	"sort"
	"sync"
	"time"
)

type ListOpts struct {
	LearnerID     string
	LineageID     string
	Status        Status
	ActiveOnly    bool      // non-terminal sessions only
	UpdatedBefore time.Time // zero = no bound
	Limit         int
	Offset        int
}

// Store persists sessions, answers and computed summaries. A write must be
// durable when the call returns.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	// UpdateSession writes s only if the stored version still equals
	// s.Version (ErrConflict otherwise) and then increments s.Version.
	UpdateSession(ctx context.Context, s *Session) error
	ListSessions(ctx context.Context, opts ListOpts) ([]Session, error)
	// MaxAttempt returns the highest attempt number recorded in a lineage.
	MaxAttempt(ctx context.Context, lineageID string) (int, error)

	PutAnswer(ctx context.Context, a Answer) error
	GetAnswer(ctx context.Context, sessionID, questionID string) (Answer, error)
	ListAnswers(ctx context.Context, sessionID string) ([]Answer, error)

	SaveSummary(ctx context.Context, sum Summary) error
}

type memoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	answers   map[string]map[string]Answer
	summaries map[string]Summary
}

func NewInMemoryStore() Store {
	return &memoryStore{
		sessions:  map[string]Session{},
		answers:   map[string]map[string]Answer{},
		summaries: map[string]Summary{},
	}
}

func (m *memoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrConflict
	}
	if s.Version == 0 {
		s.Version = 1
	}
	m.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneSession(s)
	return &c, nil
}

func (m *memoryStore) UpdateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != s.Version {
		return ErrConflict
	}
	s.Version++
	m.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (m *memoryStore) ListSessions(_ context.Context, opts ListOpts) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0)
	for _, s := range m.sessions {
		if opts.LearnerID != "" && s.LearnerID != opts.LearnerID {
			continue
		}
		if opts.LineageID != "" && s.LineageID != opts.LineageID {
			continue
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		if opts.ActiveOnly && s.Status.Terminal() {
			continue
		}
		if !opts.UpdatedBefore.IsZero() && !s.UpdatedAt.Before(opts.UpdatedBefore) {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, opts.Offset, opts.Limit), nil
}

func (m *memoryStore) MaxAttempt(_ context.Context, lineageID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	highest := 0
	for _, s := range m.sessions {
		if s.LineageID == lineageID && s.AttemptNumber > highest {
			highest = s.AttemptNumber
		}
	}
	return highest, nil
}

func (m *memoryStore) PutAnswer(_ context.Context, a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[a.SessionID]; !ok {
		return ErrNotFound
	}
	byQ := m.answers[a.SessionID]
	if byQ == nil {
		byQ = map[string]Answer{}
		m.answers[a.SessionID] = byQ
	}
	byQ[a.QuestionID] = a
	return nil
}

func (m *memoryStore) GetAnswer(_ context.Context, sessionID, questionID string) (Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.answers[sessionID][questionID]
	if !ok {
		return Answer{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) ListAnswers(_ context.Context, sessionID string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Answer, 0, len(m.answers[sessionID]))
	for _, a := range m.answers[sessionID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *memoryStore) SaveSummary(_ context.Context, sum Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[sum.SessionID] = sum
	return nil
}

func cloneSession(s Session) Session {
	s.dirty = false
	s.Transitions = append([]Transition(nil), s.Transitions...)
	s.Shortfall = append([]Shortfall(nil), s.Shortfall...)
	s.Criteria.TopicIDs = append([]string(nil), s.Criteria.TopicIDs...)
	s.Criteria.Levels = append([]string(nil), s.Criteria.Levels...)
	return s
}

func page[T any](in []T, offset, limit int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

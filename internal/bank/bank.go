// Package bank is the read side of the live question bank. The engine only
// ever looks questions up through Bank; authoring lives elsewhere.
package bank

import (
	"context"
	"sort"
	"sync"
)

type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"` // single_choice | multi_choice | written
	Text           string   `json:"text"`
	Options        []Option `json:"options,omitempty"`
	OfficialAnswer string   `json:"official_answer,omitempty"`
	TopicID        string   `json:"topic_id"`
	TopicName      string   `json:"topic_name"`
	Level          string   `json:"level"`
}

// Filter narrows a bank lookup. Empty slices match everything.
type Filter struct {
	Types    []string
	TopicIDs []string
	Levels   []string
}

// Bank answers question lookups for session creation.
type Bank interface {
	FetchQuestionsByCriteria(ctx context.Context, f Filter) ([]Question, error)
}

// Matches reports whether q passes f.
func (f Filter) Matches(q Question) bool {
	return contains(f.Types, q.Type) && contains(f.TopicIDs, q.TopicID) && contains(f.Levels, q.Level)
}

func contains(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type MemoryBank struct {
	mu        sync.RWMutex
	questions map[string]Question
}

// NewMemoryBank returns an in-process bank seeded with qs.
func NewMemoryBank(qs ...Question) *MemoryBank {
	b := &MemoryBank{questions: map[string]Question{}}
	for _, q := range qs {
		b.questions[q.ID] = q
	}
	return b
}

// Put inserts or replaces a question.
func (b *MemoryBank) Put(q Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions[q.ID] = q
}

func (b *MemoryBank) FetchQuestionsByCriteria(_ context.Context, f Filter) ([]Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Question, 0, len(b.questions))
	for _, q := range b.questions {
		if f.Matches(q) {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneQuestion(q Question) Question {
	if q.Options != nil {
		q.Options = append([]Option(nil), q.Options...)
	}
	return q
}

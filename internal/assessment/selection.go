package assessment

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-prep/internal/bank"
	"github.com/mind-engage/mindengage-prep/internal/grading"
)

// Filter turns criteria into a bank lookup.
func (c Criteria) Filter() bank.Filter {
	var types []string
	for _, t := range questionTypes {
		if c.Counts.For(t) > 0 {
			types = append(types, string(t))
		}
	}
	return bank.Filter{Types: types, TopicIDs: c.TopicIDs, Levels: c.Levels}
}

func (c Criteria) validate() error {
	if c.Counts.SingleChoice < 0 || c.Counts.MultiChoice < 0 || c.Counts.Written < 0 {
		return &SelectionError{Reason: "negative question count"}
	}
	if c.Counts.Total() == 0 {
		return &SelectionError{Reason: "no questions requested"}
	}
	return nil
}

// SelectQuestions picks and snapshots questions from candidates. Per type,
// exactly Counts.For(type) questions whose topic and level are in the
// criteria are chosen; ties are broken by a shuffle seeded from c.Seed, so
// the same candidates and seed always give the same session.
//
// When a type is short the call fails with a *SelectionError unless
// c.AllowShortfall is set, in which case the gap is returned alongside the
// shorter list.
func SelectQuestions(candidates []bank.Question, c Criteria) ([]Snapshot, []Shortfall, error) {
	if err := c.validate(); err != nil {
		return nil, nil, err
	}
	filter := c.Filter()

	byType := map[QuestionType][]bank.Question{}
	seen := map[string]bool{}
	for _, q := range candidates {
		if seen[q.ID] || !filter.Matches(q) {
			continue
		}
		if err := grading.Validate(gradingQ(q)); err != nil {
			log.Warn().Err(err).Str("question_id", q.ID).Msg("skipping malformed question")
			continue
		}
		seen[q.ID] = true
		t := QuestionType(q.Type)
		byType[t] = append(byType[t], q)
	}

	rng := rand.New(rand.NewSource(c.Seed))
	var (
		picked    []bank.Question
		shortfall []Shortfall
	)
	for _, t := range questionTypes {
		want := c.Counts.For(t)
		if want == 0 {
			continue
		}
		pool := byType[t]
		sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		if len(pool) < want {
			shortfall = append(shortfall, Shortfall{Type: t, Requested: want, Available: len(pool)})
			want = len(pool)
		}
		picked = append(picked, pool[:want]...)
	}

	if len(shortfall) > 0 && (!c.AllowShortfall || len(picked) == 0) {
		return nil, nil, &SelectionError{Shortfall: shortfall}
	}
	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })

	snaps := make([]Snapshot, len(picked))
	for i, q := range picked {
		snaps[i] = snapshotOf(q)
	}
	return snaps, shortfall, nil
}

// snapshotOf copies the gradable fields of q by value.
func snapshotOf(q bank.Question) Snapshot {
	s := Snapshot{
		QuestionID: q.ID,
		Type:       QuestionType(q.Type),
		Text:       q.Text,
		TopicID:    q.TopicID,
		TopicName:  q.TopicName,
		Level:      q.Level,
	}
	if s.Type.IsChoice() {
		s.Options = make([]Option, len(q.Options))
		for i, o := range q.Options {
			s.Options[i] = Option{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect}
		}
	} else {
		s.OfficialAnswer = q.OfficialAnswer
	}
	return s
}

func gradingQ(q bank.Question) grading.Q {
	opts := make([]grading.Option, len(q.Options))
	for i, o := range q.Options {
		opts[i] = grading.Option{ID: o.ID, IsCorrect: o.IsCorrect}
	}
	return grading.Q{Type: q.Type, Options: opts, OfficialAnswer: q.OfficialAnswer}
}

func (s Snapshot) gradingQ() grading.Q {
	opts := make([]grading.Option, len(s.Options))
	for i, o := range s.Options {
		opts[i] = grading.Option{ID: o.ID, IsCorrect: o.IsCorrect}
	}
	return grading.Q{Type: string(s.Type), Options: opts, OfficialAnswer: s.OfficialAnswer}
}

// validateSubmission checks that sub is the right variant for the snapshot
// and only names options that exist.
func (s Snapshot) validateSubmission(sub Submission) error {
	switch s.Type {
	case TypeSingleChoice, TypeMultiChoice:
		if sub.Kind != SubmissionChoice {
			return fmt.Errorf("%w: %s question needs a choice submission", ErrInvalidSubmission, s.Type)
		}
		known := make(map[string]bool, len(s.Options))
		for _, o := range s.Options {
			known[o.ID] = true
		}
		for _, id := range sub.OptionIDs {
			if !known[id] {
				return fmt.Errorf("%w: unknown option %q", ErrInvalidSubmission, id)
			}
		}
	case TypeWritten:
		if sub.Kind != SubmissionWritten {
			return fmt.Errorf("%w: written question needs a text submission", ErrInvalidSubmission)
		}
	default:
		return fmt.Errorf("%w: snapshot %s has unknown type %q", ErrEvaluation, s.QuestionID, s.Type)
	}
	return nil
}

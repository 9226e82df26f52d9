package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceQ(typ string, correct ...string) Q {
	opts := []Option{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
	for i := range opts {
		for _, c := range correct {
			if opts[i].ID == c {
				opts[i].IsCorrect = true
			}
		}
	}
	return Q{Type: typ, Options: opts}
}

func TestSingleChoice(t *testing.T) {
	g := NewDefaultGrader()
	q := choiceQ(SingleChoice, "B")

	tests := []struct {
		name string
		ids  []string
		want bool
	}{
		{"exact", []string{"B"}, true},
		{"wrong", []string{"A"}, false},
		{"empty", nil, false},
		{"two selected", []string{"B", "A"}, false},
		{"duplicate of correct", []string{"B", "B"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.Grade(q, Response{OptionIDs: tt.ids}, DefaultPracticeThreshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.IsCorrect)
		})
	}
}

func TestMultiChoice_NoPartialCredit(t *testing.T) {
	g := NewDefaultGrader()
	q := choiceQ(MultiChoice, "A", "B")

	res, err := g.Grade(q, Response{OptionIDs: []string{"A"}}, DefaultPracticeThreshold)
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0.0, res.MatchPercent)

	res, err = g.Grade(q, Response{OptionIDs: []string{"B", "A"}}, DefaultPracticeThreshold)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)

	res, err = g.Grade(q, Response{OptionIDs: []string{"A", "B", "C"}}, DefaultPracticeThreshold)
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
}

func TestWritten_ThresholdBoundary(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: Written, OfficialAnswer: "the quick brown fox"}

	res, err := g.Grade(q, Response{Text: "the quick brown fox"}, DefaultPracticeThreshold)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.MatchPercent)
	assert.True(t, res.IsCorrect)

	res, err = g.Grade(q, Response{Text: "the quick brown"}, DefaultPracticeThreshold)
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.MatchPercent)
	assert.False(t, res.IsCorrect)
}

func TestWritten_InterviewNeedsFullCoverage(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: Written, OfficialAnswer: "a b c d e"}
	th := DefaultThresholds()

	res, err := g.Grade(q, Response{Text: "a b c d"}, th.For("practice"))
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.MatchPercent)
	assert.True(t, res.IsCorrect)

	res, err = g.Grade(q, Response{Text: "a b c d"}, th.For("interview"))
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
}

func TestWritten_NormalizationAndOrder(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: Written, OfficialAnswer: "The Quick, brown fox!"}

	res, err := g.Grade(q, Response{Text: "  fox   BROWN quick... the "}, DefaultInterviewThreshold)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.MatchPercent)
	assert.True(t, res.IsCorrect)
}

func TestWritten_MultisetCoverage(t *testing.T) {
	// a single submitted "the" covers only one of the two official ones
	assert.Equal(t, 75.0, MatchPercent([]string{"the", "cat", "the", "hat"}, []string{"the", "cat", "hat"}))
	assert.Equal(t, 33.33, MatchPercent([]string{"a", "b", "c"}, []string{"a"}))
}

func TestWritten_EmptySubmission(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: Written, OfficialAnswer: "anything"}

	res, err := g.Grade(q, Response{Text: "   "}, DefaultPracticeThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.MatchPercent)
	assert.False(t, res.IsCorrect)
}

func TestGrade_Deterministic(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: Written, OfficialAnswer: "goroutines are multiplexed onto threads"}
	r := Response{Text: "threads multiplex goroutines"}

	first, err := g.Grade(q, r, DefaultPracticeThreshold)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := g.Grade(q, r, DefaultPracticeThreshold)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMalformedQuestions(t *testing.T) {
	g := NewDefaultGrader()

	_, err := g.Grade(choiceQ(SingleChoice), Response{OptionIDs: []string{"A"}}, 80)
	assert.ErrorIs(t, err, ErrMalformedQuestion)

	_, err = g.Grade(choiceQ(MultiChoice), Response{OptionIDs: []string{"A"}}, 80)
	assert.ErrorIs(t, err, ErrMalformedQuestion)

	_, err = g.Grade(Q{Type: Written, OfficialAnswer: "?!"}, Response{Text: "x"}, 80)
	assert.ErrorIs(t, err, ErrMalformedQuestion)

	_, err = g.Grade(Q{Type: "essay"}, Response{}, 80)
	assert.ErrorIs(t, err, ErrMalformedQuestion)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(choiceQ(SingleChoice, "A")))
	assert.ErrorIs(t, Validate(choiceQ(SingleChoice, "A", "B")), ErrMalformedQuestion)
	assert.NoError(t, Validate(choiceQ(MultiChoice, "A", "B")))
	assert.ErrorIs(t, Validate(choiceQ(MultiChoice)), ErrMalformedQuestion)
	assert.NoError(t, Validate(Q{Type: Written, OfficialAnswer: "x"}))
	assert.ErrorIs(t, Validate(Q{Type: Written}), ErrMalformedQuestion)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("  Hello,\tWORLD!! "))
	assert.Nil(t, Tokenize(" ... "))
	assert.Equal(t, []string{"apples", "oranges", "a", "b"}, Tokenize("apples,oranges (a/b)"))
}

func TestWritten_PunctuationSeparatesWords(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: Written, OfficialAnswer: "apples oranges"}

	res, err := g.Grade(q, Response{Text: "Apples,oranges."}, DefaultInterviewThreshold)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.MatchPercent)
	assert.True(t, res.IsCorrect)
}

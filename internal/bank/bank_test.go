package bank

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-prep/internal/db"
)

var fixtures = []Question{
	{ID: "sc1", Type: "single_choice", Text: "pick", TopicID: "arrays", TopicName: "Arrays", Level: "easy",
		Options: []Option{{ID: "b", Text: "no"}, {ID: "a", Text: "yes", IsCorrect: true}}},
	{ID: "mc1", Type: "multi_choice", Text: "pick all", TopicID: "graphs", Level: "medium",
		Options: []Option{{ID: "a", IsCorrect: true}, {ID: "b", IsCorrect: true}}},
	{ID: "w1", Type: "written", Text: "explain", TopicID: "arrays", Level: "medium",
		OfficialAnswer: "halve the range"},
}

func ids(qs []Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestFilterMatches(t *testing.T) {
	q := fixtures[0]
	assert.True(t, Filter{}.Matches(q))
	assert.True(t, Filter{Types: []string{"single_choice", "written"}, Levels: []string{"easy"}}.Matches(q))
	assert.False(t, Filter{TopicIDs: []string{"graphs"}}.Matches(q))
}

func TestMemoryBank(t *testing.T) {
	b := NewMemoryBank(fixtures...)
	ctx := context.Background()

	all, err := b.FetchQuestionsByCriteria(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mc1", "sc1", "w1"}, ids(all))

	got, err := b.FetchQuestionsByCriteria(ctx, Filter{TopicIDs: []string{"arrays"}, Levels: []string{"medium"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, ids(got))

	// Returned questions are copies.
	all[1].Options[0].IsCorrect = true
	again, _ := b.FetchQuestionsByCriteria(ctx, Filter{Types: []string{"single_choice"}})
	assert.False(t, again[0].Options[0].IsCorrect)
}

func TestSQLBank(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "bank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	b := NewSQLBank(conn)
	for _, q := range fixtures {
		require.NoError(t, b.Put(ctx, q))
	}

	sc := fixtures[0]
	sc.Text = "pick one"
	sc.Options = sc.Options[1:]
	require.NoError(t, b.Put(ctx, sc), "put is an upsert")

	got, err := b.FetchQuestionsByCriteria(ctx, Filter{Types: []string{"single_choice", "multi_choice"}})
	require.NoError(t, err)
	require.Equal(t, []string{"mc1", "sc1"}, ids(got))
	assert.Equal(t, "pick one", got[1].Text)
	assert.Equal(t, []Option{{ID: "a", Text: "yes", IsCorrect: true}}, got[1].Options)
	assert.Len(t, got[0].Options, 2)

	got, err = b.FetchQuestionsByCriteria(ctx, Filter{TopicIDs: []string{"none"}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = b.FetchQuestionsByCriteria(ctx, Filter{Levels: []string{"medium"}, TopicIDs: []string{"arrays"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "halve the range", got[0].OfficialAnswer)
	assert.Nil(t, got[0].Options)
}

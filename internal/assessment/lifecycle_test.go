package assessment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusNotStarted, StatusInProgress, true},
		{StatusNotStarted, StatusAbandoned, true},
		{StatusNotStarted, StatusCompleted, false},
		{StatusInProgress, StatusPaused, true},
		{StatusInProgress, StatusExpired, true},
		{StatusPaused, StatusInProgress, true},
		{StatusPaused, StatusCompleted, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusExpired, StatusCompleted, false},
		{StatusAbandoned, StatusInProgress, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func newRunning(mode Mode, limitSec *int, n int, now time.Time) *Session {
	s := &Session{ID: "x", Mode: mode, Status: StatusNotStarted, TimeLimitSec: limitSec}
	for i := 0; i < n; i++ {
		s.Snapshots = append(s.Snapshots, Snapshot{QuestionID: string(rune('a' + i))})
	}
	_ = s.Start(now)
	return s
}

func TestExpiredPredicate(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := 90

	iv := newRunning(ModeInterview, &limit, 1, t0)
	assert.False(t, iv.Expired(t0.Add(90*time.Second)), "deadline itself is still in time")
	assert.True(t, iv.Expired(t0.Add(91*time.Second)))

	pr := newRunning(ModePractice, nil, 1, t0)
	assert.False(t, pr.Expired(t0.Add(1000*time.Hour)))

	fresh := &Session{Mode: ModeInterview, TimeLimitSec: &limit}
	assert.False(t, fresh.Expired(t0.Add(time.Hour)), "not started")
}

func TestTransitionsAreRecorded(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newRunning(ModePractice, nil, 2, t0)
	require.NoError(t, s.Pause(t0.Add(time.Second)))
	require.NoError(t, s.Resume(t0.Add(2*time.Second)))
	require.NoError(t, s.Advance(true, t0.Add(3*time.Second)))
	require.Error(t, s.Advance(true, t0.Add(4*time.Second)), "no question past the last")
	require.NoError(t, s.Finish(2, t0.Add(5*time.Second)))

	var tos []Status
	for _, tr := range s.Transitions {
		tos = append(tos, tr.To)
	}
	assert.Equal(t, []Status{StatusInProgress, StatusPaused, StatusInProgress, StatusCompleted}, tos)
	require.NotNil(t, s.FinishedAt)
	assert.Nil(t, s.QuestionShownAt)
	assert.Equal(t, 1, s.CurrentIndex)
}

func TestFinishFromPaused(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newRunning(ModePractice, nil, 1, t0)
	require.NoError(t, s.Pause(t0))
	require.NoError(t, s.Finish(1, t0.Add(time.Minute)))
	assert.Equal(t, StatusCompleted, s.Status)
}

func TestAbandonTerminalIsIllegal(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newRunning(ModePractice, nil, 1, t0)
	require.NoError(t, s.Abandon(t0))
	assert.ErrorIs(t, s.Abandon(t0), ErrIllegalTransition)
	assert.ErrorIs(t, s.Start(t0), ErrAlreadyStarted)
}

func TestResumeShiftsOpenInterval(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newRunning(ModePractice, nil, 1, t0)
	require.NoError(t, s.Pause(t0.Add(4*time.Second)))
	require.NoError(t, s.Resume(t0.Add(time.Minute)))
	shown := *s.QuestionShownAt
	d := s.intervalAt(0, t0.Add(time.Minute+6*time.Second))
	assert.Equal(t, 10*time.Second, d)
	assert.Equal(t, shown, *s.QuestionShownAt, "measuring leaves the interval open")
}

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
	"github.com/mind-engage/mindengage-prep/internal/bank"
)

func TestSweepAbandonsUntilCancelled(t *testing.T) {
	created := time.Now().UTC().Add(-2 * time.Hour)
	clock := func() time.Time { return created }
	b := bank.NewMemoryBank(bank.Question{ID: "w1", Type: "written", OfficialAnswer: "halve the range"})
	eng := assessment.NewEngine(assessment.NewInMemoryStore(), b, assessment.WithClock(func() time.Time { return clock() }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := eng.CreateSession(ctx, "ann", assessment.Criteria{Counts: assessment.TypeCounts{Written: 1}}, assessment.ModePractice, nil)
	require.NoError(t, err)
	clock = func() time.Time { return time.Now().UTC() }

	done := make(chan struct{})
	go func() {
		sweep(ctx, eng, 5*time.Millisecond, time.Hour)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		got, err := eng.GetSession(context.Background(), s.ID)
		return err == nil && got.Status == assessment.StatusAbandoned
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop")
	}
}

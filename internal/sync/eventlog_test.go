package syncx

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
	"github.com/mind-engage/mindengage-prep/internal/db"
)

func TestEventRepo_EmitAndSince(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	repo := NewEventRepo(conn, "")
	var sink assessment.EventSink = repo

	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Emit(ctx, assessment.Event{Type: assessment.EventStarted, SessionID: "s1", At: at}))
	require.NoError(t, sink.Emit(ctx, assessment.Event{Type: assessment.EventCompleted, SessionID: "s1", At: at}))

	evs, err := repo.Since(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "local", evs[0].SiteID)
	assert.Equal(t, assessment.EventStarted, evs[0].Type)
	assert.Equal(t, "s1", evs[0].Key)

	var decoded assessment.Event
	require.NoError(t, json.Unmarshal([]byte(evs[1].DataJSON), &decoded))
	assert.Equal(t, assessment.EventCompleted, decoded.Type)
	assert.True(t, at.Equal(decoded.At))

	rest, err := repo.Since(ctx, evs[0].Seq, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
)

func TestObserverCounts(t *testing.T) {
	m := New()
	var obs assessment.Observer = m

	obs.Transitioned(assessment.ModeInterview, assessment.StatusInProgress, assessment.StatusExpired)
	obs.Transitioned(assessment.ModeInterview, assessment.StatusInProgress, assessment.StatusExpired)
	pct := 75.0
	obs.Answered(assessment.TypeWritten, false, &pct)
	obs.Answered(assessment.TypeSingleChoice, true, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("interview", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("written", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("single_choice", "true")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prep_written_match_percent_count 1")
}

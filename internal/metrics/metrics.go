// Package metrics exposes engine activity as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
)

// Metrics implements assessment.Observer.
type Metrics struct {
	gatherer    prometheus.Gatherer
	transitions *prometheus.CounterVec
	answers     *prometheus.CounterVec
	writtenPct  prometheus.Histogram
}

// New registers the engine series on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prep_session_transitions_total",
				Help: "Session status changes by mode and target status",
			},
			[]string{"mode", "to"},
		),
		answers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prep_answers_total",
				Help: "Evaluated answers by question type and verdict",
			},
			[]string{"type", "correct"},
		),
		writtenPct: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prep_written_match_percent",
				Help:    "Token match percent of written answers",
				Buckets: []float64{10, 25, 50, 60, 70, 80, 90, 95, 100},
			},
		),
	}
}

func (m *Metrics) Transitioned(mode assessment.Mode, _, to assessment.Status) {
	m.transitions.WithLabelValues(string(mode), string(to)).Inc()
}

func (m *Metrics) Answered(t assessment.QuestionType, correct bool, matchPercent *float64) {
	m.answers.WithLabelValues(string(t), strconv.FormatBool(correct)).Inc()
	if matchPercent != nil {
		m.writtenPct.Observe(*matchPercent)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

package assessment

import "time"

// openInterval marks the current question as shown at now.
func (s *Session) openInterval(now time.Time) {
	t := now
	s.QuestionShownAt = &t
	s.touch(now)
}

// intervalAt measures the interval that ends at now without touching the
// session. A positive reported duration (measured by the client) wins over
// the server-side measurement. The caller restarts the interval with
// openInterval once the answer is stored.
func (s *Session) intervalAt(reported time.Duration, now time.Time) time.Duration {
	d := reported
	if d <= 0 && s.QuestionShownAt != nil {
		d = now.Sub(*s.QuestionShownAt)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// addInterval accumulates one timing interval into the answer.
func (a *Answer) addInterval(d time.Duration) {
	a.TimeMs += d.Milliseconds()
	a.Intervals++
}

// TotalTime sums the time attributed to every answer.
func TotalTime(answers []Answer) time.Duration {
	var ms int64
	for _, a := range answers {
		ms += a.TimeMs
	}
	return time.Duration(ms) * time.Millisecond
}

package assessment

import "sort"

type tally struct {
	label   string
	correct int
	total   int
}

// BuildSummary folds a session's stored answers into totals and per-topic,
// per-type and per-level accuracy. It is a pure function of its inputs:
// questions without an answer count as incorrect with no time, and every
// breakdown is sorted by key so the encoded result is stable.
func BuildSummary(s *Session, answers []Answer) Summary {
	byQuestion := make(map[string]Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	topics := map[string]*tally{}
	types := map[string]*tally{}
	levels := map[string]*tally{}
	bump := func(m map[string]*tally, key, label string, correct bool) {
		t := m[key]
		if t == nil {
			t = &tally{label: label}
			m[key] = t
		}
		t.total++
		if correct {
			t.correct++
		}
	}

	sum := Summary{SessionID: s.ID, TotalItems: len(s.Snapshots)}
	for _, sn := range s.Snapshots {
		a, ok := byQuestion[sn.QuestionID]
		correct := ok && a.IsCorrect
		if correct {
			sum.CorrectCount++
		}
		if ok {
			sum.TotalTimeMs += a.TimeMs
		}
		bump(topics, sn.TopicID, sn.TopicName, correct)
		bump(types, string(sn.Type), "", correct)
		bump(levels, sn.Level, "", correct)
	}
	sum.IncorrectCount = sum.TotalItems - sum.CorrectCount
	sum.Score = ratio(sum.CorrectCount, sum.TotalItems)
	sum.ByTopic = slices(topics)
	sum.ByType = slices(types)
	sum.ByLevel = slices(levels)
	return sum
}

func slices(m map[string]*tally) []Slice {
	out := make([]Slice, 0, len(m))
	for k, t := range m {
		out = append(out, Slice{
			Key:      k,
			Label:    t.label,
			Correct:  t.correct,
			Total:    t.total,
			Accuracy: ratio(t.correct, t.total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

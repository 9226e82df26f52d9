package assessment

import "context"

// Review pairs every snapshot of a finished session with the learner's
// answer, official answers included. Unfinished sessions are refused so a
// learner cannot read the key mid-session.
func (e *Engine) Review(ctx context.Context, id string) ([]ReviewItem, error) {
	s, err := e.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Status.Terminal() {
		return nil, illegal("review", s.Status, "session is not finished")
	}
	answers, err := e.store.ListAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildReview(s, answers), nil
}

func BuildReview(s *Session, answers []Answer) []ReviewItem {
	byQuestion := make(map[string]Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	out := make([]ReviewItem, 0, len(s.Snapshots))
	for i, sn := range s.Snapshots {
		item := ReviewItem{
			Index:          i,
			QuestionID:     sn.QuestionID,
			Type:           sn.Type,
			Text:           sn.Text,
			Options:        append([]Option(nil), sn.Options...),
			OfficialAnswer: sn.OfficialAnswer,
			TopicID:        sn.TopicID,
			Level:          sn.Level,
		}
		if a, ok := byQuestion[sn.QuestionID]; ok {
			sub := a.Submission
			item.Answered = true
			item.Submission = &sub
			item.IsCorrect = a.IsCorrect
			item.MatchPercent = a.MatchPercent
			item.TimeMs = a.TimeMs
		}
		out = append(out, item)
	}
	return out
}

// Redacted returns a copy of the session safe to show while it is still
// running: correct-option flags and official answers are removed.
func (s Session) Redacted() Session {
	if s.Status.Terminal() {
		return s
	}
	snaps := make([]Snapshot, len(s.Snapshots))
	for i, sn := range s.Snapshots {
		sn.OfficialAnswer = ""
		opts := make([]Option, len(sn.Options))
		for j, o := range sn.Options {
			o.IsCorrect = false
			opts[j] = o
		}
		sn.Options = opts
		snaps[i] = sn
	}
	s.Snapshots = snaps
	return s
}

package assessment

import (
	"fmt"

	"github.com/mind-engage/mindengage-prep/internal/grading"
)

// Evaluator grades submissions against snapshots. It holds no state beyond
// its configuration and never touches the snapshot it is given.
type Evaluator struct {
	grader     grading.Grader
	thresholds grading.Thresholds
}

func NewEvaluator(g grading.Grader, th grading.Thresholds) *Evaluator {
	if g == nil {
		g = grading.NewDefaultGrader()
	}
	return &Evaluator{grader: g, thresholds: th}
}

// Evaluate returns an Answer carrying the verdict for sub. Timing and
// session bookkeeping are left to the caller.
func (e *Evaluator) Evaluate(mode Mode, snap Snapshot, sub Submission) (Answer, error) {
	if err := snap.validateSubmission(sub); err != nil {
		return Answer{}, err
	}
	var r grading.Response
	switch sub.Kind {
	case SubmissionChoice:
		r.OptionIDs = sub.OptionIDs
	case SubmissionWritten:
		r.Text = sub.Text
	}
	res, err := e.grader.Grade(snap.gradingQ(), r, e.thresholds.For(string(mode)))
	if err != nil {
		return Answer{}, fmt.Errorf("%w: question %s: %v", ErrEvaluation, snap.QuestionID, err)
	}
	a := Answer{
		QuestionID: snap.QuestionID,
		Submission: sub,
		IsCorrect:  res.IsCorrect,
	}
	if snap.Type == TypeWritten {
		pct := res.MatchPercent
		a.MatchPercent = &pct
	}
	return a, nil
}

// Threshold exposes the written-answer pass mark used for mode.
func (e *Evaluator) Threshold(mode Mode) float64 {
	return e.thresholds.For(string(mode))
}

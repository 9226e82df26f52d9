package grading

import (
	"errors"
	"fmt"
	"math"
)

// Question types understood by the grader.
const (
	SingleChoice = "single_choice"
	MultiChoice  = "multi_choice"
	Written      = "written"
)

// Default written-answer thresholds, in percent.
const (
	DefaultPracticeThreshold  = 80.0
	DefaultInterviewThreshold = 100.0
)

// ErrMalformedQuestion is returned when a question cannot be graded at all
// (no correct option, empty official answer, unknown type).
var ErrMalformedQuestion = errors.New("malformed question")

// Option is the gradable part of a choice option.
type Option struct {
	ID        string
	IsCorrect bool
}

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type           string
	Options        []Option
	OfficialAnswer string
}

// Response is what the learner submitted. Choice questions read OptionIDs,
// written questions read Text.
type Response struct {
	OptionIDs []string
	Text      string
}

// Result is the outcome of grading a single question response.
type Result struct {
	IsCorrect    bool
	MatchPercent float64
}

// Thresholds holds the pass mark for written answers per assessment mode.
type Thresholds struct {
	Practice  float64
	Interview float64
}

// DefaultThresholds returns the practice/interview pass marks.
func DefaultThresholds() Thresholds {
	return Thresholds{Practice: DefaultPracticeThreshold, Interview: DefaultInterviewThreshold}
}

// For returns the threshold for mode ("practice" or "interview"). Unknown
// modes get the strict interview threshold.
func (t Thresholds) For(mode string) float64 {
	if mode == "practice" {
		return t.Practice
	}
	return t.Interview
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(q Q, r Response, threshold float64) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q Q, r Response, threshold float64) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, r Response, threshold float64) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown type %q", ErrMalformedQuestion, q.Type)
	}
	return s.Grade(q, r, threshold)
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			SingleChoice: singleChoiceStrategy{},
			MultiChoice:  multiChoiceStrategy{},
			Written:      writtenStrategy{},
		},
	}
}

// Validate checks the structural invariants a question must hold before it
// can be graded.
func Validate(q Q) error {
	switch q.Type {
	case SingleChoice:
		if n := len(correctSet(q.Options)); n != 1 {
			return fmt.Errorf("%w: single choice needs exactly one correct option, has %d", ErrMalformedQuestion, n)
		}
	case MultiChoice:
		if len(correctSet(q.Options)) == 0 {
			return fmt.Errorf("%w: multi choice has no correct option", ErrMalformedQuestion)
		}
	case Written:
		if len(Tokenize(q.OfficialAnswer)) == 0 {
			return fmt.Errorf("%w: written question has empty official answer", ErrMalformedQuestion)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedQuestion, q.Type)
	}
	return nil
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q Q, r Response, _ float64) (Result, error) {
	correct := correctSet(q.Options)
	if len(correct) != 1 {
		return Result{}, fmt.Errorf("%w: single choice needs exactly one correct option", ErrMalformedQuestion)
	}
	resp := toSet(r.OptionIDs)
	if len(resp) == 1 && setEqual(correct, resp) {
		return Result{IsCorrect: true, MatchPercent: 100}, nil
	}
	return Result{}, nil
}

// multiChoiceStrategy awards nothing unless the selection equals the correct
// set exactly.
type multiChoiceStrategy struct{}

func (multiChoiceStrategy) Grade(q Q, r Response, _ float64) (Result, error) {
	correct := correctSet(q.Options)
	if len(correct) == 0 {
		return Result{}, fmt.Errorf("%w: multi choice has no correct option", ErrMalformedQuestion)
	}
	if setEqual(correct, toSet(r.OptionIDs)) {
		return Result{IsCorrect: true, MatchPercent: 100}, nil
	}
	return Result{}, nil
}

type writtenStrategy struct{}

func (writtenStrategy) Grade(q Q, r Response, threshold float64) (Result, error) {
	official := Tokenize(q.OfficialAnswer)
	if len(official) == 0 {
		return Result{}, fmt.Errorf("%w: written question has empty official answer", ErrMalformedQuestion)
	}
	pct := MatchPercent(official, Tokenize(r.Text))
	return Result{IsCorrect: pct >= threshold, MatchPercent: pct}, nil
}

// MatchPercent is the share of official tokens found in the submission's
// token multiset, 0-100 rounded to two decimals. Each submitted token can
// cover at most one official token.
func MatchPercent(official, submitted []string) float64 {
	if len(official) == 0 || len(submitted) == 0 {
		return 0
	}
	avail := make(map[string]int, len(submitted))
	for _, t := range submitted {
		avail[t]++
	}
	covered := 0
	for _, t := range official {
		if avail[t] > 0 {
			avail[t]--
			covered++
		}
	}
	pct := 100 * float64(covered) / float64(len(official))
	return math.Round(pct*100) / 100
}

// helpers

func correctSet(opts []Option) map[string]struct{} {
	m := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		if o.IsCorrect {
			m[o.ID] = struct{}{}
		}
	}
	return m
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

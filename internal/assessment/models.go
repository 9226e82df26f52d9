package assessment

import (
	"time"

	"github.com/mind-engage/mindengage-prep/internal/grading"
)

type Mode string

const (
	ModePractice  Mode = "practice"
	ModeInterview Mode = "interview"
)

func (m Mode) Valid() bool { return m == ModePractice || m == ModeInterview }

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
	StatusAbandoned  Status = "abandoned"
)

// Terminal reports whether no transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusAbandoned
}

type QuestionType string

const (
	TypeSingleChoice QuestionType = grading.SingleChoice
	TypeMultiChoice  QuestionType = grading.MultiChoice
	TypeWritten      QuestionType = grading.Written
)

// questionTypes is the fixed order used when selecting and reporting.
var questionTypes = []QuestionType{TypeSingleChoice, TypeMultiChoice, TypeWritten}

func (t QuestionType) IsChoice() bool { return t == TypeSingleChoice || t == TypeMultiChoice }

// TypeCounts is the number of questions requested per type.
type TypeCounts struct {
	SingleChoice int `json:"single_choice"`
	MultiChoice  int `json:"multi_choice"`
	Written      int `json:"written"`
}

func (c TypeCounts) For(t QuestionType) int {
	switch t {
	case TypeSingleChoice:
		return c.SingleChoice
	case TypeMultiChoice:
		return c.MultiChoice
	case TypeWritten:
		return c.Written
	}
	return 0
}

func (c TypeCounts) Total() int { return c.SingleChoice + c.MultiChoice + c.Written }

// Criteria is the selection request a session was created from. It is
// copied verbatim on retake.
type Criteria struct {
	TopicIDs []string   `json:"topic_ids,omitempty"`
	Levels   []string   `json:"levels,omitempty"`
	Counts   TypeCounts `json:"counts"`
	// Seed drives tie-breaking among eligible questions. Zero means "assign
	// one at creation"; the assigned value is stored on the session.
	Seed int64 `json:"seed"`
	// AllowShortfall accepts a session shorter than requested and records
	// the gap in Session.Shortfall instead of failing.
	AllowShortfall bool `json:"allow_shortfall,omitempty"`
}

type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Snapshot is the session-scoped, by-value copy of a question's gradable
// content.
type Snapshot struct {
	QuestionID     string       `json:"question_id"`
	Type           QuestionType `json:"type"`
	Text           string       `json:"text"`
	Options        []Option     `json:"options,omitempty"`
	OfficialAnswer string       `json:"official_answer,omitempty"`
	TopicID        string       `json:"topic_id"`
	TopicName      string       `json:"topic_name"`
	Level          string       `json:"level"`
}

// Shortfall records a per-type gap between requested and selected items.
type Shortfall struct {
	Type      QuestionType `json:"type"`
	Requested int          `json:"requested"`
	Available int          `json:"available"`
}

type Transition struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

type Session struct {
	ID              string       `json:"id"`
	LearnerID       string       `json:"learner_id"`
	Mode            Mode         `json:"mode"`
	Status          Status       `json:"status"`
	Criteria        Criteria     `json:"criteria"`
	Snapshots       []Snapshot   `json:"snapshots"`
	Shortfall       []Shortfall  `json:"shortfall,omitempty"`
	CurrentIndex    int          `json:"current_index"`
	CreatedAt       time.Time    `json:"created_at"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	FinishedAt      *time.Time   `json:"finished_at,omitempty"`
	QuestionShownAt *time.Time   `json:"question_shown_at,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
	TimeLimitSec    *int         `json:"time_limit_sec,omitempty"`
	SourceSessionID *string      `json:"source_session_id,omitempty"`
	LineageID       string       `json:"lineage_id"`
	AttemptNumber   int          `json:"number_attempts"`
	Transitions     []Transition `json:"transitions"`
	Version         int64        `json:"version"`

	dirty bool
}

// touch marks s as modified at now; the engine persists dirty sessions.
func (s *Session) touch(now time.Time) {
	s.UpdatedAt = now
	s.dirty = true
}

// SubmissionKind tags which half of a Submission is meaningful.
type SubmissionKind string

const (
	SubmissionChoice  SubmissionKind = "choice"
	SubmissionWritten SubmissionKind = "written"
)

// Submission is what a learner sent for one question: a set of option ids
// for choice questions or free text for written ones.
type Submission struct {
	Kind      SubmissionKind `json:"kind"`
	OptionIDs []string       `json:"option_ids,omitempty"`
	Text      string         `json:"text,omitempty"`
}

func ChoiceSubmission(ids ...string) Submission {
	return Submission{Kind: SubmissionChoice, OptionIDs: ids}
}

func WrittenSubmission(text string) Submission {
	return Submission{Kind: SubmissionWritten, Text: text}
}

// Empty reports whether nothing was selected or typed (a skip).
func (s Submission) Empty() bool {
	switch s.Kind {
	case SubmissionChoice:
		return len(s.OptionIDs) == 0
	case SubmissionWritten:
		return grading.Tokenize(s.Text) == nil
	}
	return true
}

// equal compares option ids as a set; order and repeats do not matter.
func (s Submission) equal(o Submission) bool {
	if s.Kind != o.Kind || s.Text != o.Text {
		return false
	}
	a, b := idSet(s.OptionIDs), idSet(o.OptionIDs)
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func idSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

type Answer struct {
	SessionID    string     `json:"session_id"`
	QuestionID   string     `json:"question_id"`
	Index        int        `json:"index"`
	Submission   Submission `json:"submission"`
	IsCorrect    bool       `json:"is_correct"`
	MatchPercent *float64   `json:"match_percent,omitempty"`
	TimeMs       int64      `json:"time_ms"`
	Intervals    int        `json:"intervals"`
	SavedAt      time.Time  `json:"saved_at"`
}

// Slice is one row of a summary breakdown.
type Slice struct {
	Key      string  `json:"key"`
	Label    string  `json:"label,omitempty"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

type Summary struct {
	SessionID      string  `json:"session_id"`
	TotalItems     int     `json:"total_items"`
	CorrectCount   int     `json:"correct_count"`
	IncorrectCount int     `json:"incorrect_count"`
	Score          float64 `json:"score"`
	TotalTimeMs    int64   `json:"total_time_ms"`
	ByTopic        []Slice `json:"by_topic"`
	ByType         []Slice `json:"by_type"`
	ByLevel        []Slice `json:"by_level"`
}

// ReviewItem pairs a snapshot with what the learner did on it.
type ReviewItem struct {
	Index          int          `json:"index"`
	QuestionID     string       `json:"question_id"`
	Type           QuestionType `json:"type"`
	Text           string       `json:"text"`
	Options        []Option     `json:"options,omitempty"`
	OfficialAnswer string       `json:"official_answer,omitempty"`
	TopicID        string       `json:"topic_id"`
	Level          string       `json:"level"`
	Answered       bool         `json:"answered"`
	Submission     *Submission  `json:"submission,omitempty"`
	IsCorrect      bool         `json:"is_correct"`
	MatchPercent   *float64     `json:"match_percent,omitempty"`
	TimeMs         int64        `json:"time_ms"`
}

// RetakeResult is what Retake hands back to the caller.
type RetakeResult struct {
	NewSessionID   string   `json:"new_session_id"`
	NumberAttempts int      `json:"number_attempts"`
	Session        *Session `json:"session"`
}

package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore keeps sessions, answers and summaries in the tables created by
// db.EnsureSchema. Nested values (criteria, snapshots, transitions) are
// stored as JSON text; instants are unix milliseconds.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const sessionCols = `id,learner_id,mode,status,criteria_json,snapshots_json,shortfall_json,transitions_json,
	current_index,created_at,started_at,finished_at,question_shown_at,updated_at,time_limit_sec,
	source_session_id,lineage_id,attempt_number,version`

func (s *SQLStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.Version == 0 {
		sess.Version = 1
	}
	row, err := encodeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		sess.ID, sess.LearnerID, string(sess.Mode), string(sess.Status), row.criteria, row.snapshots,
		row.shortfall, row.transitions, sess.CurrentIndex, millis(sess.CreatedAt), optMillis(sess.StartedAt),
		optMillis(sess.FinishedAt), optMillis(sess.QuestionShownAt), millis(sess.UpdatedAt),
		sess.TimeLimitSec, sess.SourceSessionID, sess.LineageID, sess.AttemptNumber, sess.Version)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id=$1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// UpdateSession rewrites the mutable columns guarded by the version the
// caller read.
func (s *SQLStore) UpdateSession(ctx context.Context, sess *Session) error {
	row, err := encodeSession(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status=$1, shortfall_json=$2, transitions_json=$3,
		current_index=$4, started_at=$5, finished_at=$6, question_shown_at=$7, updated_at=$8, version=version+1
		WHERE id=$9 AND version=$10`,
		string(sess.Status), row.shortfall, row.transitions, sess.CurrentIndex, optMillis(sess.StartedAt),
		optMillis(sess.FinishedAt), optMillis(sess.QuestionShownAt), millis(sess.UpdatedAt), sess.ID, sess.Version)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=$1`, sess.ID).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return ErrConflict
	}
	sess.Version++
	return nil
}

func (s *SQLStore) ListSessions(ctx context.Context, opts ListOpts) ([]Session, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if opts.LearnerID != "" {
		add("learner_id=$%d", opts.LearnerID)
	}
	if opts.LineageID != "" {
		add("lineage_id=$%d", opts.LineageID)
	}
	if opts.Status != "" {
		add("status=$%d", string(opts.Status))
	}
	if opts.ActiveOnly {
		where = append(where, "status IN ('not_started','in_progress','paused')")
	}
	if !opts.UpdatedBefore.IsZero() {
		add("updated_at<$%d", millis(opts.UpdatedBefore))
	}
	q := `SELECT ` + sessionCols + ` FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			q += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 && opts.Offset > 0 {
		return page(out, opts.Offset, 0), nil
	}
	return out, nil
}

func (s *SQLStore) MaxAttempt(ctx context.Context, lineageID string) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(attempt_number) FROM sessions WHERE lineage_id=$1`, lineageID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return int(n.Int64), nil
}

func (s *SQLStore) PutAnswer(ctx context.Context, a Answer) error {
	sub, err := json.Marshal(a.Submission)
	if err != nil {
		return err
	}
	var mp sql.NullFloat64
	if a.MatchPercent != nil {
		mp = sql.NullFloat64{Float64: *a.MatchPercent, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO answers (session_id,question_id,idx,submission_json,is_correct,match_percent,time_ms,intervals,saved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (session_id,question_id) DO UPDATE SET idx=EXCLUDED.idx, submission_json=EXCLUDED.submission_json,
		  is_correct=EXCLUDED.is_correct, match_percent=EXCLUDED.match_percent, time_ms=EXCLUDED.time_ms,
		  intervals=EXCLUDED.intervals, saved_at=EXCLUDED.saved_at`,
		a.SessionID, a.QuestionID, a.Index, string(sub), boolInt(a.IsCorrect), mp, a.TimeMs, a.Intervals, millis(a.SavedAt))
	if err != nil {
		return fmt.Errorf("save answer %s/%s: %w", a.SessionID, a.QuestionID, err)
	}
	return nil
}

const answerCols = `session_id,question_id,idx,submission_json,is_correct,match_percent,time_ms,intervals,saved_at`

func (s *SQLStore) GetAnswer(ctx context.Context, sessionID, questionID string) (Answer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+answerCols+` FROM answers WHERE session_id=$1 AND question_id=$2`,
		sessionID, questionID)
	a, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Answer{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) ListAnswers(ctx context.Context, sessionID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+answerCols+` FROM answers WHERE session_id=$1 ORDER BY idx`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Answer, 0)
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveSummary replaces the stored summary as one row; readers never see a
// partially written result.
func (s *SQLStore) SaveSummary(ctx context.Context, sum Summary) error {
	buf, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO summaries (session_id,summary_json,computed_at) VALUES ($1,$2,$3)
		ON CONFLICT (session_id) DO UPDATE SET summary_json=EXCLUDED.summary_json, computed_at=EXCLUDED.computed_at`,
		sum.SessionID, string(buf), millis(time.Now()))
	return err
}

type sessionJSON struct {
	criteria, snapshots, shortfall, transitions string
}

func encodeSession(s *Session) (sessionJSON, error) {
	var out sessionJSON
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&out.criteria, s.Criteria},
		{&out.snapshots, nonNil(s.Snapshots)},
		{&out.shortfall, nonNil(s.Shortfall)},
		{&out.transitions, nonNil(s.Transitions)},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return out, fmt.Errorf("encode session %s: %w", s.ID, err)
		}
		*f.dst = string(b)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (*Session, error) {
	var (
		s                               Session
		mode, status                    string
		crit, snaps, short, trans       string
		created, updated                int64
		started, finished, shown, limit sql.NullInt64
		source                          sql.NullString
	)
	err := r.Scan(&s.ID, &s.LearnerID, &mode, &status, &crit, &snaps, &short, &trans,
		&s.CurrentIndex, &created, &started, &finished, &shown, &updated, &limit,
		&source, &s.LineageID, &s.AttemptNumber, &s.Version)
	if err != nil {
		return nil, err
	}
	s.Mode = Mode(mode)
	s.Status = Status(status)
	s.CreatedAt = time.UnixMilli(created).UTC()
	s.UpdatedAt = time.UnixMilli(updated).UTC()
	s.StartedAt = fromMillis(started)
	s.FinishedAt = fromMillis(finished)
	s.QuestionShownAt = fromMillis(shown)
	if limit.Valid {
		v := int(limit.Int64)
		s.TimeLimitSec = &v
	}
	if source.Valid {
		v := source.String
		s.SourceSessionID = &v
	}
	if err := json.Unmarshal([]byte(crit), &s.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria for %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(snaps), &s.Snapshots); err != nil {
		return nil, fmt.Errorf("decode snapshots for %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(short), &s.Shortfall); err != nil {
		return nil, fmt.Errorf("decode shortfall for %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(trans), &s.Transitions); err != nil {
		return nil, fmt.Errorf("decode transitions for %s: %w", s.ID, err)
	}
	return &s, nil
}

func scanAnswer(r scanner) (Answer, error) {
	var (
		a       Answer
		sub     string
		correct int
		mp      sql.NullFloat64
		saved   int64
	)
	if err := r.Scan(&a.SessionID, &a.QuestionID, &a.Index, &sub, &correct, &mp, &a.TimeMs, &a.Intervals, &saved); err != nil {
		return Answer{}, err
	}
	if err := json.Unmarshal([]byte(sub), &a.Submission); err != nil {
		return Answer{}, fmt.Errorf("decode submission %s/%s: %w", a.SessionID, a.QuestionID, err)
	}
	a.IsCorrect = correct != 0
	if mp.Valid {
		v := mp.Float64
		a.MatchPercent = &v
	}
	a.SavedAt = time.UnixMilli(saved).UTC()
	return a, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func optMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

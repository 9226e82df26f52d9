package bank

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLBank reads questions from the questions/question_options tables.
type SQLBank struct {
	db *sql.DB
}

func NewSQLBank(db *sql.DB) *SQLBank {
	return &SQLBank{db: db}
}

// Put upserts a question and replaces its options.
func (b *SQLBank) Put(ctx context.Context, q Question) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `INSERT INTO questions (id,type,text,official_answer,topic_id,topic_name,level,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET type=EXCLUDED.type, text=EXCLUDED.text, official_answer=EXCLUDED.official_answer,
		  topic_id=EXCLUDED.topic_id, topic_name=EXCLUDED.topic_name, level=EXCLUDED.level`,
		q.ID, q.Type, q.Text, q.OfficialAnswer, q.TopicID, q.TopicName, q.Level, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM question_options WHERE question_id=$1`, q.ID); err != nil {
		return err
	}
	for i, o := range q.Options {
		_, err := tx.ExecContext(ctx, `INSERT INTO question_options (question_id,position,id,text,is_correct)
			VALUES ($1,$2,$3,$4,$5)`, q.ID, i, o.ID, o.Text, boolInt(o.IsCorrect))
		if err != nil {
			return fmt.Errorf("insert option %s/%s: %w", q.ID, o.ID, err)
		}
	}
	return tx.Commit()
}

func (b *SQLBank) FetchQuestionsByCriteria(ctx context.Context, f Filter) ([]Question, error) {
	var (
		where []string
		args  []any
	)
	addIn := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		ph := make([]string, len(vals))
		for i, v := range vals {
			args = append(args, v)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, col+" IN ("+strings.Join(ph, ",")+")")
	}
	addIn("type", f.Types)
	addIn("topic_id", f.TopicIDs)
	addIn("level", f.Levels)

	q := `SELECT id,type,text,official_answer,topic_id,topic_name,level FROM questions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	index := map[string]int{}
	for rows.Next() {
		var qq Question
		if err := rows.Scan(&qq.ID, &qq.Type, &qq.Text, &qq.OfficialAnswer, &qq.TopicID, &qq.TopicName, &qq.Level); err != nil {
			return nil, err
		}
		index[qq.ID] = len(out)
		out = append(out, qq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := b.loadOptions(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *SQLBank) loadOptions(ctx context.Context, qs []Question, index map[string]int) error {
	ph := make([]string, len(qs))
	args := make([]any, len(qs))
	for i, q := range qs {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = q.ID
	}
	rows, err := b.db.QueryContext(ctx, `SELECT question_id,id,text,is_correct FROM question_options
		WHERE question_id IN (`+strings.Join(ph, ",")+`) ORDER BY question_id, position`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			qid     string
			o       Option
			correct int
		)
		if err := rows.Scan(&qid, &o.ID, &o.Text, &correct); err != nil {
			return err
		}
		o.IsCorrect = correct != 0
		if i, ok := index[qid]; ok {
			qs[i].Options = append(qs[i].Options, o)
		}
	}
	return rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-prep/internal/bank"
	"github.com/mind-engage/mindengage-prep/internal/grading"
)

var skipInvalid bool

var loadQuestionsCmd = &cobra.Command{
	Use:   "load-questions <file.json>",
	Short: "Upsert questions from a JSON array into the bank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		dbh, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer dbh.Close()

		n, err := loadQuestions(cmd.Context(), bank.NewSQLBank(dbh), f, skipInvalid)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d questions\n", n)
		return nil
	},
}

func init() {
	loadQuestionsCmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "skip malformed questions instead of failing")
}

type questionWriter interface {
	Put(ctx context.Context, q bank.Question) error
}

// loadQuestions validates every question before writing any of them.
func loadQuestions(ctx context.Context, w questionWriter, r io.Reader, skip bool) (int, error) {
	var qs []bank.Question
	if err := json.NewDecoder(r).Decode(&qs); err != nil {
		return 0, fmt.Errorf("decode questions: %w", err)
	}
	valid := qs[:0]
	for _, q := range qs {
		err := validateQuestion(q)
		if err == nil {
			valid = append(valid, q)
			continue
		}
		if !skip {
			return 0, err
		}
		log.Warn().Err(err).Str("question_id", q.ID).Msg("skipping malformed question")
	}
	for i, q := range valid {
		if err := w.Put(ctx, q); err != nil {
			return i, err
		}
	}
	return len(valid), nil
}

func validateQuestion(q bank.Question) error {
	if q.ID == "" {
		return errors.New("question without id")
	}
	gq := grading.Q{Type: q.Type, OfficialAnswer: q.OfficialAnswer}
	for _, o := range q.Options {
		gq.Options = append(gq.Options, grading.Option{ID: o.ID, IsCorrect: o.IsCorrect})
	}
	if err := grading.Validate(gq); err != nil {
		return fmt.Errorf("question %s: %w", q.ID, err)
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
	"github.com/mind-engage/mindengage-prep/internal/bank"
	"github.com/mind-engage/mindengage-prep/internal/config"
	"github.com/mind-engage/mindengage-prep/internal/db"
	"github.com/mind-engage/mindengage-prep/internal/grading"
	"github.com/mind-engage/mindengage-prep/internal/logging"
	syncx "github.com/mind-engage/mindengage-prep/internal/sync"
)

var cfg = config.FromEnv()

var rootCmd = &cobra.Command{
	Use:           "prepctl",
	Short:         "Operate the interview-prep session store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(cfg.LogLevel, cfg.LogPretty)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "database driver (sqlite|postgres), overrides DB_DRIVER")
	rootCmd.PersistentFlags().StringVar(&cfg.DBDSN, "dsn", cfg.DBDSN, "database DSN, overrides DB_DSN")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(loadQuestionsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(abandonStaleCmd)
}

// openDB opens the configured database; the schema is created on open.
func openDB(ctx context.Context) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
}

func newEngine(dbh *sql.DB) *assessment.Engine {
	th := grading.Thresholds{Practice: cfg.PracticeThreshold, Interview: cfg.InterviewThreshold}
	return assessment.NewEngine(
		assessment.NewSQLStore(dbh),
		bank.NewSQLBank(dbh),
		assessment.WithEvaluator(assessment.NewEvaluator(nil, th)),
		assessment.WithEventSink(syncx.NewEventRepo(dbh, cfg.SiteID)),
	)
}

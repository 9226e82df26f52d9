package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:mindengage-prep.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/mindengage_prep?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer; avoids SQLITE_BUSY under concurrent session writes
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  text TEXT NOT NULL,
  official_answer TEXT NOT NULL DEFAULT '',
  topic_id TEXT NOT NULL,
  topic_name TEXT NOT NULL DEFAULT '',
  level TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS question_options (
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  id TEXT NOT NULL,
  text TEXT NOT NULL,
  is_correct INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (question_id, id)
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  status TEXT NOT NULL,
  criteria_json TEXT NOT NULL,
  snapshots_json TEXT NOT NULL,
  shortfall_json TEXT NOT NULL DEFAULT '[]',
  transitions_json TEXT NOT NULL DEFAULT '[]',
  current_index INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  started_at INTEGER,
  finished_at INTEGER,
  question_shown_at INTEGER,
  updated_at INTEGER NOT NULL,
  time_limit_sec INTEGER,
  source_session_id TEXT,
  lineage_id TEXT NOT NULL,
  attempt_number INTEGER NOT NULL DEFAULT 1,
  version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS sessions_learner_idx ON sessions(learner_id, created_at);
CREATE INDEX IF NOT EXISTS sessions_lineage_idx ON sessions(lineage_id);

CREATE TABLE IF NOT EXISTS answers (
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  idx INTEGER NOT NULL,
  submission_json TEXT NOT NULL,
  is_correct INTEGER NOT NULL,
  match_percent REAL,
  time_ms INTEGER NOT NULL,
  intervals INTEGER NOT NULL DEFAULT 1,
  saved_at INTEGER NOT NULL,
  PRIMARY KEY (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS summaries (
  session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
  summary_json TEXT NOT NULL,
  computed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., session.completed
  key TEXT NOT NULL,                         -- natural key: session id
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  text TEXT NOT NULL,
  official_answer TEXT NOT NULL DEFAULT '',
  topic_id TEXT NOT NULL,
  topic_name TEXT NOT NULL DEFAULT '',
  level TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS question_options (
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  id TEXT NOT NULL,
  text TEXT NOT NULL,
  is_correct INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (question_id, id)
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  status TEXT NOT NULL,
  criteria_json TEXT NOT NULL,
  snapshots_json TEXT NOT NULL,
  shortfall_json TEXT NOT NULL DEFAULT '[]',
  transitions_json TEXT NOT NULL DEFAULT '[]',
  current_index INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  started_at BIGINT,
  finished_at BIGINT,
  question_shown_at BIGINT,
  updated_at BIGINT NOT NULL,
  time_limit_sec INTEGER,
  source_session_id TEXT,
  lineage_id TEXT NOT NULL,
  attempt_number INTEGER NOT NULL DEFAULT 1,
  version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS sessions_learner_idx ON sessions(learner_id, created_at);
CREATE INDEX IF NOT EXISTS sessions_lineage_idx ON sessions(lineage_id);

CREATE TABLE IF NOT EXISTS answers (
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  idx INTEGER NOT NULL,
  submission_json TEXT NOT NULL,
  is_correct INTEGER NOT NULL,
  match_percent DOUBLE PRECISION,
  time_ms BIGINT NOT NULL,
  intervals INTEGER NOT NULL DEFAULT 1,
  saved_at BIGINT NOT NULL,
  PRIMARY KEY (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS summaries (
  session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
  summary_json TEXT NOT NULL,
  computed_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`

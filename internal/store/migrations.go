package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "quiz_sessions: quiz session lifecycle",
		SQL: `
CREATE TABLE quiz_sessions (
    id               TEXT PRIMARY KEY,
    resource_path    TEXT NOT NULL,
    started_at       INTEGER NOT NULL,
    completed_at     INTEGER,
    total_questions  INTEGER NOT NULL CHECK (total_questions > 0),
    correct_answers  INTEGER NOT NULL DEFAULT 0,
    score            INTEGER,
    status           TEXT NOT NULL DEFAULT 'in_progress' CHECK (status IN ('in_progress', 'completed'))
);

CREATE INDEX idx_quiz_sessions_resource ON quiz_sessions(resource_path);
CREATE INDEX idx_quiz_sessions_status   ON quiz_sessions(status);
`,
	},
	{
		Version:     2,
		Description: "quiz_answers: one graded answer per question",
		SQL: `
CREATE TABLE quiz_answers (
    id              INTEGER PRIMARY KEY,
    session_id      TEXT NOT NULL,
    question_index  INTEGER NOT NULL,
    question        TEXT NOT NULL,
    question_type   TEXT NOT NULL,
    user_answer     TEXT NOT NULL,
    score           INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
    correct         INTEGER NOT NULL DEFAULT 0,
    feedback        TEXT,
    answered_at     INTEGER NOT NULL,

    UNIQUE (session_id, question_index),
    FOREIGN KEY (session_id) REFERENCES quiz_sessions(id)
);

CREATE INDEX idx_quiz_answers_session ON quiz_answers(session_id);
`,
	},
	{
		Version:     3,
		Description: "nudges: generated re-engagement messages",
		SQL: `
CREATE TABLE nudges (
    id             INTEGER PRIMARY KEY,
    resource_path  TEXT NOT NULL,
    nudge_type     TEXT NOT NULL,
    message        TEXT NOT NULL,
    fallback       INTEGER NOT NULL DEFAULT 0,
    delivered      INTEGER NOT NULL DEFAULT 0,
    delivered_at   INTEGER,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_nudges_pending ON nudges(delivered, created_at DESC);
`,
	},
	{
		Version:     4,
		Description: "learning_log: append-only learning activity",
		SQL: `
CREATE TABLE learning_log (
    id                INTEGER PRIMARY KEY,
    resource_path     TEXT NOT NULL,
    action            TEXT NOT NULL,
    duration_minutes  REAL NOT NULL DEFAULT 0,
    score             INTEGER,
    metadata          TEXT,
    created_at        INTEGER NOT NULL
);

CREATE INDEX idx_learning_log_resource ON learning_log(resource_path, created_at DESC);
`,
	},
	{
		Version:     5,
		Description: "quiz_answers.difficulty, learning_log time index for stats",
		SQL: `
ALTER TABLE quiz_answers ADD COLUMN difficulty TEXT NOT NULL DEFAULT 'medium';

CREATE INDEX idx_learning_log_created   ON learning_log(created_at);
CREATE INDEX idx_quiz_sessions_started  ON quiz_sessions(started_at);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

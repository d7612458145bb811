package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
)

// ErrSessionNotInProgress is returned when completing a session that is
// missing or already completed.
var ErrSessionNotInProgress = errors.New("quiz session is not in progress")

// QuizSession is one run of a quiz over a single resource.
type QuizSession struct {
	ID             string
	ResourcePath   string
	StartedAt      int64
	CompletedAt    *int64
	TotalQuestions int
	CorrectAnswers int
	Score          *int
	Status         string
}

const quizSessionColumns = `id, resource_path, started_at, completed_at, total_questions, correct_answers, score, status`

func scanQuizSession(row interface{ Scan(...any) error }) (*QuizSession, error) {
	var s QuizSession
	err := row.Scan(&s.ID, &s.ResourcePath, &s.StartedAt, &s.CompletedAt, &s.TotalQuestions, &s.CorrectAnswers, &s.Score, &s.Status)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func createQuizSession(ctx context.Context, q querier, s *QuizSession) error {
	if s.Status == "" {
		s.Status = SessionInProgress
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO quiz_sessions (id, resource_path, started_at, total_questions, correct_answers, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.ResourcePath, s.StartedAt, s.TotalQuestions, s.CorrectAnswers, s.Status)
	if err != nil {
		return fmt.Errorf("insert quiz session: %w", err)
	}
	return nil
}

func getQuizSession(ctx context.Context, q querier, id string) (*QuizSession, error) {
	s, err := scanQuizSession(q.QueryRowContext(ctx,
		`SELECT `+quizSessionColumns+` FROM quiz_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz session: %w", err)
	}
	return s, nil
}

func incrementCorrectAnswers(ctx context.Context, q querier, id string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE quiz_sessions SET correct_answers = correct_answers + 1
		WHERE id = ? AND status = 'in_progress'
	`, id)
	if err != nil {
		return fmt.Errorf("increment correct answers: %w", err)
	}
	return nil
}

// completeQuizSession only transitions an in-progress session, so a
// session can be completed at most once.
func completeQuizSession(ctx context.Context, q querier, id string, score int, completedAt int64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE quiz_sessions SET status = 'completed', score = ?, completed_at = ?
		WHERE id = ? AND status = 'in_progress'
	`, score, completedAt, id)
	if err != nil {
		return fmt.Errorf("complete quiz session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSessionNotInProgress
	}
	return nil
}

// CreateQuizSession inserts a new in-progress session.
func (db *DB) CreateQuizSession(ctx context.Context, s *QuizSession) error {
	return createQuizSession(ctx, db, s)
}

// GetQuizSession returns a session by id, or nil if it does not exist.
func (db *DB) GetQuizSession(ctx context.Context, id string) (*QuizSession, error) {
	return getQuizSession(ctx, db, id)
}

// SessionFilter narrows ListQuizSessions. Zero fields do not filter; the
// Since/Until window applies to started_at, Since inclusive, Until exclusive.
type SessionFilter struct {
	ResourcePath string
	Status       string
	Since        int64
	Until        int64
	Limit        int
}

// ListQuizSessions returns matching sessions, newest first.
func (db *DB) ListQuizSessions(ctx context.Context, f SessionFilter) ([]QuizSession, error) {
	var where []string
	var args []any
	if f.ResourcePath != "" {
		where = append(where, "resource_path = ?")
		args = append(args, f.ResourcePath)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Since > 0 {
		where = append(where, "started_at >= ?")
		args = append(args, f.Since)
	}
	if f.Until > 0 {
		where = append(where, "started_at < ?")
		args = append(args, f.Until)
	}
	query := `SELECT ` + quizSessionColumns + ` FROM quiz_sessions` + whereClause(where) +
		` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limitArg(f.Limit))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quiz sessions: %w", err)
	}
	defer rows.Close()

	var sessions []QuizSession
	for rows.Next() {
		s, err := scanQuizSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteQuizSession removes an in-progress session that has no answers yet.
// It reports whether a row was removed.
func (db *DB) DeleteQuizSession(ctx context.Context, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `
		DELETE FROM quiz_sessions
		WHERE id = ? AND status = 'in_progress'
		  AND NOT EXISTS (SELECT 1 FROM quiz_answers WHERE session_id = quiz_sessions.id)
	`, id)
	if err != nil {
		return false, fmt.Errorf("delete quiz session: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (tx *Tx) CreateQuizSession(ctx context.Context, s *QuizSession) error {
	return createQuizSession(ctx, tx.tx, s)
}

func (tx *Tx) GetQuizSession(ctx context.Context, id string) (*QuizSession, error) {
	return getQuizSession(ctx, tx.tx, id)
}

func (tx *Tx) IncrementCorrectAnswers(ctx context.Context, id string) error {
	return incrementCorrectAnswers(ctx, tx.tx, id)
}

// CompleteQuizSession marks the session completed with its final score.
// Returns ErrSessionNotInProgress if it was already completed.
func (tx *Tx) CompleteQuizSession(ctx context.Context, id string, score int, completedAt int64) error {
	return completeQuizSession(ctx, tx.tx, id, score, completedAt)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateAnswer is returned when a question index was already answered
// in the session.
var ErrDuplicateAnswer = errors.New("question already answered")

// QuizAnswer is a graded answer to one question of a session.
type QuizAnswer struct {
	ID            int64
	SessionID     string
	QuestionIndex int
	Question      string
	QuestionType  string
	Difficulty    string
	UserAnswer    string
	Score         int
	Correct       bool
	Feedback      string
	AnsweredAt    int64
}

func insertQuizAnswer(ctx context.Context, q querier, a *QuizAnswer) error {
	if a.Difficulty == "" {
		a.Difficulty = "medium"
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO quiz_answers (session_id, question_index, question, question_type, difficulty, user_answer, score, correct, feedback, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.SessionID, a.QuestionIndex, a.Question, a.QuestionType, a.Difficulty, a.UserAnswer, a.Score, a.Correct, a.Feedback, a.AnsweredAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateAnswer
		}
		return fmt.Errorf("insert quiz answer: %w", err)
	}
	a.ID, _ = result.LastInsertId()
	return nil
}

func countQuizAnswers(ctx context.Context, q querier, sessionID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_answers WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count quiz answers: %w", err)
	}
	return n, nil
}

func listQuizAnswers(ctx context.Context, q querier, sessionID string) ([]QuizAnswer, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, session_id, question_index, question, question_type, difficulty, user_answer, score, correct, COALESCE(feedback, ''), answered_at
		FROM quiz_answers WHERE session_id = ? ORDER BY question_index
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list quiz answers: %w", err)
	}
	defer rows.Close()

	var answers []QuizAnswer
	for rows.Next() {
		var a QuizAnswer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionIndex, &a.Question, &a.QuestionType, &a.Difficulty,
			&a.UserAnswer, &a.Score, &a.Correct, &a.Feedback, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan quiz answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListQuizAnswers returns a session's answers ordered by question index.
func (db *DB) ListQuizAnswers(ctx context.Context, sessionID string) ([]QuizAnswer, error) {
	return listQuizAnswers(ctx, db, sessionID)
}

// CountQuizAnswers returns how many questions of the session were answered.
func (db *DB) CountQuizAnswers(ctx context.Context, sessionID string) (int, error) {
	return countQuizAnswers(ctx, db, sessionID)
}

// InsertQuizAnswer records an answer. Returns ErrDuplicateAnswer if the
// question index was already answered.
func (tx *Tx) InsertQuizAnswer(ctx context.Context, a *QuizAnswer) error {
	return insertQuizAnswer(ctx, tx.tx, a)
}

func (tx *Tx) CountQuizAnswers(ctx context.Context, sessionID string) (int, error) {
	return countQuizAnswers(ctx, tx.tx, sessionID)
}

func (tx *Tx) ListQuizAnswers(ctx context.Context, sessionID string) ([]QuizAnswer, error) {
	return listQuizAnswers(ctx, tx.tx, sessionID)
}

package store

import (
	"context"
	"errors"
	"testing"
)

func seedSession(t *testing.T, db *DB, id string, total int) {
	t.Helper()
	err := db.CreateQuizSession(context.Background(), &QuizSession{
		ID: id, ResourcePath: "04_resources/go.md", StartedAt: 1000, TotalQuestions: total,
	})
	if err != nil {
		t.Fatalf("CreateQuizSession: %v", err)
	}
}

func TestCreateAndGetQuizSession(t *testing.T) {
	db := testDB(t)
	seedSession(t, db, "quiz_a", 3)

	s, err := db.GetQuizSession(context.Background(), "quiz_a")
	if err != nil {
		t.Fatalf("GetQuizSession: %v", err)
	}
	if s == nil {
		t.Fatal("GetQuizSession returned nil")
	}
	if s.Status != SessionInProgress {
		t.Errorf("Status = %q, want in_progress", s.Status)
	}
	if s.TotalQuestions != 3 {
		t.Errorf("TotalQuestions = %d, want 3", s.TotalQuestions)
	}
	if s.Score != nil || s.CompletedAt != nil {
		t.Errorf("Score/CompletedAt set on new session: %v %v", s.Score, s.CompletedAt)
	}
}

func TestGetQuizSessionNotFound(t *testing.T) {
	db := testDB(t)

	s, err := db.GetQuizSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetQuizSession: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil, got %+v", s)
	}
}

func TestCompleteQuizSessionOnce(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedSession(t, db, "quiz_c", 2)

	err := db.InTx(ctx, func(tx *Tx) error {
		if err := tx.IncrementCorrectAnswers(ctx, "quiz_c"); err != nil {
			return err
		}
		return tx.CompleteQuizSession(ctx, "quiz_c", 76, 5000)
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	s, _ := db.GetQuizSession(ctx, "quiz_c")
	if s.Status != SessionCompleted {
		t.Errorf("Status = %q, want completed", s.Status)
	}
	if s.Score == nil || *s.Score != 76 {
		t.Errorf("Score = %v, want 76", s.Score)
	}
	if s.CompletedAt == nil || *s.CompletedAt != 5000 {
		t.Errorf("CompletedAt = %v, want 5000", s.CompletedAt)
	}
	if s.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1", s.CorrectAnswers)
	}

	err = db.InTx(ctx, func(tx *Tx) error {
		return tx.CompleteQuizSession(ctx, "quiz_c", 10, 6000)
	})
	if !errors.Is(err, ErrSessionNotInProgress) {
		t.Errorf("second complete err = %v, want ErrSessionNotInProgress", err)
	}

	s, _ = db.GetQuizSession(ctx, "quiz_c")
	if *s.Score != 76 {
		t.Errorf("Score changed after second complete: %d", *s.Score)
	}
}

func TestListQuizSessions(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i, id := range []string{"q1", "q2", "q3"} {
		path := "a.md"
		if id == "q3" {
			path = "b.md"
		}
		if err := db.CreateQuizSession(ctx, &QuizSession{ID: id, ResourcePath: path, StartedAt: int64(1000 + i), TotalQuestions: 1}); err != nil {
			t.Fatalf("CreateQuizSession: %v", err)
		}
	}

	all, err := db.ListQuizSessions(ctx, SessionFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListQuizSessions: %v", err)
	}
	if len(all) != 3 || all[0].ID != "q3" {
		t.Errorf("ListQuizSessions all = %+v", all)
	}

	forA, _ := db.ListQuizSessions(ctx, SessionFilter{ResourcePath: "a.md", Limit: 10})
	if len(forA) != 2 || forA[0].ID != "q2" {
		t.Errorf("ListQuizSessions a.md = %+v", forA)
	}

	err = db.InTx(ctx, func(tx *Tx) error { return tx.CompleteQuizSession(ctx, "q1", 80, 5000) })
	if err != nil {
		t.Fatalf("CompleteQuizSession: %v", err)
	}
	done, _ := db.ListQuizSessions(ctx, SessionFilter{Status: SessionCompleted})
	if len(done) != 1 || done[0].ID != "q1" {
		t.Errorf("ListQuizSessions completed = %+v", done)
	}

	window, _ := db.ListQuizSessions(ctx, SessionFilter{Since: 1001, Until: 1002})
	if len(window) != 1 || window[0].ID != "q2" {
		t.Errorf("ListQuizSessions window = %+v", window)
	}
}

func TestDeleteQuizSession(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedSession(t, db, "quiz_empty", 2)
	seedSession(t, db, "quiz_answered", 2)

	err := db.InTx(ctx, func(tx *Tx) error {
		return tx.InsertQuizAnswer(ctx, &QuizAnswer{
			SessionID: "quiz_answered", QuestionIndex: 1, Question: "q", QuestionType: "recall", UserAnswer: "a", AnsweredAt: 2000,
		})
	})
	if err != nil {
		t.Fatalf("InsertQuizAnswer: %v", err)
	}

	removed, err := db.DeleteQuizSession(ctx, "quiz_empty")
	if err != nil || !removed {
		t.Fatalf("DeleteQuizSession(empty) = %v, %v; want true", removed, err)
	}
	if s, _ := db.GetQuizSession(ctx, "quiz_empty"); s != nil {
		t.Errorf("session still present: %+v", s)
	}

	removed, err = db.DeleteQuizSession(ctx, "quiz_answered")
	if err != nil || removed {
		t.Errorf("DeleteQuizSession(answered) = %v, %v; want false", removed, err)
	}
	if s, _ := db.GetQuizSession(ctx, "quiz_answered"); s == nil {
		t.Error("answered session was deleted")
	}
}

func TestQuizAnswerDifficulty(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedSession(t, db, "quiz_h", 2)

	err := db.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertQuizAnswer(ctx, &QuizAnswer{
			SessionID: "quiz_h", QuestionIndex: 1, Question: "q1", QuestionType: "application",
			Difficulty: "hard", UserAnswer: "a", Score: 60, AnsweredAt: 2000,
		}); err != nil {
			return err
		}
		return tx.InsertQuizAnswer(ctx, &QuizAnswer{
			SessionID: "quiz_h", QuestionIndex: 2, Question: "q2", QuestionType: "recall", UserAnswer: "b", AnsweredAt: 2001,
		})
	})
	if err != nil {
		t.Fatalf("InsertQuizAnswer: %v", err)
	}

	answers, err := db.ListQuizAnswers(ctx, "quiz_h")
	if err != nil {
		t.Fatalf("ListQuizAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(answers))
	}
	if answers[0].Difficulty != "hard" {
		t.Errorf("answers[0].Difficulty = %q, want hard", answers[0].Difficulty)
	}
	if answers[1].Difficulty != "medium" {
		t.Errorf("answers[1].Difficulty = %q, want medium default", answers[1].Difficulty)
	}
}

func TestInsertQuizAnswerDuplicate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedSession(t, db, "quiz_d", 3)

	insert := func(index, score int) error {
		return db.InTx(ctx, func(tx *Tx) error {
			return tx.InsertQuizAnswer(ctx, &QuizAnswer{
				SessionID: "quiz_d", QuestionIndex: index, Question: "q", QuestionType: "recall",
				UserAnswer: "a", Score: score, Correct: score >= 70, AnsweredAt: 2000,
			})
		})
	}

	if err := insert(1, 90); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(1, 40); !errors.Is(err, ErrDuplicateAnswer) {
		t.Errorf("duplicate insert err = %v, want ErrDuplicateAnswer", err)
	}
	if err := insert(2, 40); err != nil {
		t.Fatalf("second index insert: %v", err)
	}

	n, err := db.CountQuizAnswers(ctx, "quiz_d")
	if err != nil {
		t.Fatalf("CountQuizAnswers: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	answers, _ := db.ListQuizAnswers(ctx, "quiz_d")
	if len(answers) != 2 || !answers[0].Correct || answers[1].Correct {
		t.Errorf("answers = %+v", answers)
	}
}

func TestInsertQuizAnswerUnknownSession(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(tx *Tx) error {
		return tx.InsertQuizAnswer(ctx, &QuizAnswer{
			SessionID: "nope", QuestionIndex: 1, Question: "q", QuestionType: "recall", UserAnswer: "a", AnsweredAt: 1,
		})
	})
	if err == nil {
		t.Error("expected foreign key error, got nil")
	}
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/sparkcoach/internal/apperr"
	"github.com/lazypower/sparkcoach/internal/llm"
	"github.com/lazypower/sparkcoach/internal/store"
	"github.com/lazypower/sparkcoach/internal/vault"
)

const (
	questionMaxTokens = 2048
	scoreMaxTokens    = 512
)

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

// StartRequest opens a quiz on one resource.
type StartRequest struct {
	ResourcePath string `json:"resource_path"`
	NumQuestions int    `json:"num_questions,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
}

// StartResult is returned by Start.
type StartResult struct {
	SessionID       string   `json:"session_id"`
	Resource        string   `json:"resource"`
	ResourcePath    string   `json:"resource_path"`
	TotalQuestions  int      `json:"total_questions"`
	CurrentQuestion Question `json:"current_question"`
}

// AnswerRequest submits an answer to one question of a session.
type AnswerRequest struct {
	SessionID     string `json:"session_id"`
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
}

// Progress counts answers within a session.
type Progress struct {
	Answered     int `json:"answered"`
	Remaining    int `json:"remaining"`
	CorrectSoFar int `json:"correct_so_far"`
}

// AnswerResult is returned by Answer. NextQuestion is set while the quiz is
// running; FinalScore and RetentionUpdated once it completes.
type AnswerResult struct {
	Correct          bool      `json:"correct"`
	Score            int       `json:"score"`
	Feedback         string    `json:"feedback"`
	SessionProgress  Progress  `json:"session_progress"`
	QuizComplete     bool      `json:"quiz_complete"`
	NextQuestion     *Question `json:"next_question,omitempty"`
	FinalScore       *int      `json:"final_score,omitempty"`
	RetentionUpdated *bool     `json:"retention_updated,omitempty"`
	NewRetention     *int      `json:"new_retention,omitempty"`
	NextReview       string    `json:"next_review,omitempty"`
}

// quizLogMeta is the learning log metadata of a completed quiz.
type quizLogMeta struct {
	SessionID string `json:"session_id"`
	Questions int    `json:"questions"`
}

// SessionStatus describes a stored session.
type SessionStatus struct {
	SessionID      string `json:"session_id"`
	ResourcePath   string `json:"resource_path"`
	Status         string `json:"status"`
	TotalQuestions int    `json:"total_questions"`
	Answered       int    `json:"answered"`
	CorrectAnswers int    `json:"correct_answers"`
	Score          *int   `json:"score,omitempty"`
	StartedAt      int64  `json:"started_at"`
	CompletedAt    *int64 `json:"completed_at,omitempty"`
}

type generatedQuestions struct {
	Questions []struct {
		Question   string `json:"question"`
		Type       string `json:"type"`
		Difficulty string `json:"difficulty"`
		Hints      string `json:"expected_answer_hints"`
	} `json:"questions"`
}

type grade struct {
	Score    int    `json:"score"`
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

// QuizManager runs quiz sessions: start, answer, finalize.
type QuizManager struct {
	deps  *Deps
	opts  Options
	locks *keyedMutex
}

// Start reads the resource, picks or generates questions, and opens a
// session. Nothing is stored when any step fails.
func (m *QuizManager) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	const op = "quiz.start"

	req.ResourcePath = strings.TrimSpace(req.ResourcePath)
	if req.ResourcePath == "" {
		return nil, apperr.InvalidArgument(op, "resource_path is required")
	}
	if req.NumQuestions == 0 {
		req.NumQuestions = m.opts.DefaultQuestions
	}
	if req.NumQuestions < 1 || req.NumQuestions > m.opts.MaxQuestions {
		return nil, apperr.InvalidArgument(op, "num_questions out of range")
	}
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	if !difficulties[req.Difficulty] {
		return nil, apperr.InvalidArgument(op, "difficulty must be easy, medium or hard")
	}

	r, err := m.readResource(ctx, op, req.ResourcePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Content) == "" {
		return nil, apperr.InvalidArgument(op, "resource has no content")
	}

	questions, err := m.questionsFor(ctx, op, r, req.NumQuestions, req.Difficulty)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, apperr.InvalidArgument(op, "no questions could be produced for this resource")
	}

	session := &store.QuizSession{
		ID:             "quiz_" + uuid.NewString(),
		ResourcePath:   r.Path,
		StartedAt:      m.deps.now().UnixMilli(),
		TotalQuestions: len(questions),
		Status:         store.SessionInProgress,
	}
	if err := m.deps.Store.CreateQuizSession(ctx, session); err != nil {
		return nil, apperr.Internal(op, err)
	}
	if err := m.deps.Cache.Put(ctx, session.ID, questions); err != nil {
		// Without its questions the session can never be answered.
		if _, derr := m.deps.Store.DeleteQuizSession(context.WithoutCancel(ctx), session.ID); derr != nil {
			m.deps.log().Warn("drop orphaned quiz session failed", "session_id", session.ID, "error", derr)
		}
		return nil, apperr.Internal(op, err)
	}

	m.deps.log().Info("quiz started", "session_id", session.ID, "path", r.Path, "questions", len(questions))
	return &StartResult{
		SessionID:       session.ID,
		Resource:        r.Title,
		ResourcePath:    r.Path,
		TotalQuestions:  len(questions),
		CurrentQuestion: questions[0],
	}, nil
}

func (m *QuizManager) readResource(ctx context.Context, op, path string) (Resource, error) {
	note, err := m.deps.Vault.Read(ctx, path)
	if errors.Is(err, vault.ErrNotFound) {
		return Resource{}, apperr.NotFound(op, "resource not found: "+path)
	}
	if err != nil {
		return Resource{}, apperr.Upstream(op, err)
	}
	return ResourceFromNote(note), nil
}

// questionsFor uses the resource's own key_questions when there are enough,
// and asks the text generator otherwise.
func (m *QuizManager) questionsFor(ctx context.Context, op string, r Resource, n int, difficulty string) ([]Question, error) {
	var qs []Question
	if len(r.KeyQuestions) >= n {
		qs = append(qs, r.KeyQuestions[:n]...)
	} else {
		if m.deps.LLM == nil {
			return nil, apperr.Upstream(op, errors.New("no text generation provider configured"))
		}
		var out generatedQuestions
		err := llm.CompleteStructured(llm.WithPurpose(ctx, llm.PurposeQuizQuestions), m.deps.LLM,
			llm.QuestionSystemPrompt, llm.QuestionPrompt(r.Title, r.Content, n, difficulty),
			questionMaxTokens, llm.QuestionsSchema, &out)
		if err != nil {
			return nil, llmError(op, err)
		}
		for _, g := range out.Questions {
			if len(qs) == n {
				break
			}
			if strings.TrimSpace(g.Question) == "" {
				continue
			}
			q := Question{Question: strings.TrimSpace(g.Question), Type: g.Type, Difficulty: g.Difficulty, Hints: g.Hints}
			if q.Type == "" {
				q.Type = "recall"
			}
			if q.Difficulty == "" {
				q.Difficulty = difficulty
			}
			qs = append(qs, q)
		}
	}
	for i := range qs {
		qs[i].Index = i + 1
	}
	return qs, nil
}

func llmError(op string, err error) error {
	var inv *llm.ErrInvalidResponse
	if errors.As(err, &inv) {
		return apperr.Parse(op, err)
	}
	return apperr.Upstream(op, err)
}

// Answer grades one answer and records it. The answer row, the session
// counters and, on the last answer, the completion and learning-log entry
// are written in one transaction. The vault retention update happens after
// commit and only affects RetentionUpdated.
func (m *QuizManager) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	const op = "quiz.answer"

	unlock := m.locks.Lock(req.SessionID)
	defer unlock()

	session, err := m.deps.Store.GetQuizSession(ctx, req.SessionID)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if session == nil {
		return nil, apperr.NotFound(op, "quiz session not found")
	}
	if session.Status == store.SessionCompleted {
		return nil, apperr.InvalidState(op, "quiz session already completed")
	}

	questions, ok, err := m.deps.Cache.Get(ctx, session.ID)
	if err != nil {
		return nil, apperr.Upstream(op, err)
	}
	if !ok {
		return nil, apperr.NotFound(op, "quiz questions expired; start a new quiz")
	}
	if req.QuestionIndex < 1 || req.QuestionIndex > session.TotalQuestions || req.QuestionIndex > len(questions) {
		return nil, apperr.InvalidArgument(op, "question_index out of range")
	}
	q := questions[req.QuestionIndex-1]

	r, err := m.readResource(ctx, op, session.ResourcePath)
	if err != nil {
		return nil, err
	}
	if m.deps.LLM == nil {
		return nil, apperr.Upstream(op, errors.New("no text generation provider configured"))
	}
	var g grade
	err = llm.CompleteStructured(llm.WithPurpose(ctx, llm.PurposeQuizScore), m.deps.LLM,
		llm.ScoreSystemPrompt, llm.ScorePrompt(q.Question, q.Hints, req.Answer, r.Content),
		scoreMaxTokens, llm.ScoreSchema, &g)
	if err != nil {
		return nil, llmError(op, err)
	}
	g.Score = clampScore(g.Score)

	now := m.deps.now()
	result := &AnswerResult{Correct: g.Correct, Score: g.Score, Feedback: g.Feedback}
	var answered []store.QuizAnswer
	var finalScore int
	var complete bool

	err = m.deps.Store.InTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetQuizSession(ctx, session.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != store.SessionInProgress {
			return apperr.InvalidState(op, "quiz session already completed")
		}

		answer := &store.QuizAnswer{
			SessionID:     session.ID,
			QuestionIndex: req.QuestionIndex,
			Question:      q.Question,
			QuestionType:  q.Type,
			Difficulty:    q.Difficulty,
			UserAnswer:    req.Answer,
			Score:         g.Score,
			Correct:       g.Correct,
			Feedback:      g.Feedback,
			AnsweredAt:    now.UnixMilli(),
		}
		if err := tx.InsertQuizAnswer(ctx, answer); err != nil {
			if errors.Is(err, store.ErrDuplicateAnswer) {
				return apperr.InvalidArgument(op, "question already answered")
			}
			return err
		}
		correct := current.CorrectAnswers
		if g.Correct {
			if err := tx.IncrementCorrectAnswers(ctx, session.ID); err != nil {
				return err
			}
			correct++
		}

		answered, err = tx.ListQuizAnswers(ctx, session.ID)
		if err != nil {
			return err
		}
		result.SessionProgress = Progress{
			Answered:     len(answered),
			Remaining:    max(current.TotalQuestions-len(answered), 0),
			CorrectSoFar: correct,
		}
		complete = len(answered) >= current.TotalQuestions
		if !complete {
			return nil
		}

		sum := 0
		for _, a := range answered {
			sum += a.Score
		}
		finalScore = sum / len(answered)
		if err := tx.CompleteQuizSession(ctx, session.ID, finalScore, now.UnixMilli()); err != nil {
			if errors.Is(err, store.ErrSessionNotInProgress) {
				return apperr.InvalidState(op, "quiz session already completed")
			}
			return err
		}
		meta, err := json.Marshal(quizLogMeta{SessionID: session.ID, Questions: current.TotalQuestions})
		if err != nil {
			return err
		}
		score := finalScore
		return tx.AppendLearningLog(ctx, &store.LearningLogEntry{
			ResourcePath:    session.ResourcePath,
			Action:          "quiz",
			DurationMinutes: float64(now.UnixMilli()-current.StartedAt) / float64(time.Minute/time.Millisecond),
			Score:           &score,
			Metadata:        string(meta),
			CreatedAt:       now.UnixMilli(),
		})
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Internal(op, err)
	}

	result.QuizComplete = complete
	if !complete {
		result.NextQuestion = nextQuestion(questions, answered, req.QuestionIndex)
		return result, nil
	}

	result.FinalScore = &finalScore
	if err := m.deps.Cache.Delete(ctx, session.ID); err != nil {
		m.deps.log().Warn("drop quiz questions failed", "session_id", session.ID, "error", err)
	}
	updated := m.updateRetention(ctx, r, finalScore, now, result)
	result.RetentionUpdated = &updated

	m.deps.log().Info("quiz completed", "session_id", session.ID, "path", session.ResourcePath,
		"final_score", finalScore, "retention_updated", updated)
	return result, nil
}

// nextQuestion returns the first unanswered question after index, wrapping
// around to earlier ones.
func nextQuestion(questions []Question, answered []store.QuizAnswer, index int) *Question {
	done := make(map[int]bool, len(answered))
	for _, a := range answered {
		done[a.QuestionIndex] = true
	}
	for step := 1; step <= len(questions); step++ {
		i := (index-1+step)%len(questions) + 1
		if !done[i] {
			q := questions[i-1]
			return &q
		}
	}
	return nil
}

// RetentionAfterQuiz blends a quiz score into the stored retention estimate.
func RetentionAfterQuiz(finalScore, oldRetention int) int {
	return clampScore((clampScore(finalScore)*7 + clampScore(oldRetention)*3) / 10)
}

func (m *QuizManager) updateRetention(ctx context.Context, r Resource, finalScore int, now time.Time, result *AnswerResult) bool {
	retention := RetentionAfterQuiz(finalScore, r.RetentionScore)
	next := NextReview(retention, now).Format(DateLayout)
	patch := map[string]any{
		fmRetention:    retention,
		fmLastReviewed: now.Format(DateLayout),
		fmNextReview:   next,
		fmReviewCount:  r.ReviewCount + 1,
	}
	if err := m.deps.Vault.Update(ctx, r.Path, patch); err != nil {
		m.deps.log().Warn("retention update failed", "path", r.Path, "error", err)
		return false
	}
	result.NewRetention = &retention
	result.NextReview = next
	return true
}

// Session reports a session's status and answer count.
func (m *QuizManager) Session(ctx context.Context, id string) (*SessionStatus, error) {
	const op = "quiz.session"
	s, err := m.deps.Store.GetQuizSession(ctx, id)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if s == nil {
		return nil, apperr.NotFound(op, "quiz session not found")
	}
	n, err := m.deps.Store.CountQuizAnswers(ctx, id)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	return &SessionStatus{
		SessionID:      s.ID,
		ResourcePath:   s.ResourcePath,
		Status:         s.Status,
		TotalQuestions: s.TotalQuestions,
		Answered:       n,
		CorrectAnswers: s.CorrectAnswers,
		Score:          s.Score,
		StartedAt:      s.StartedAt,
		CompletedAt:    s.CompletedAt,
	}, nil
}

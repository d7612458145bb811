package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lazypower/sparkcoach/internal/vault"
)

func TestResourceDefaults(t *testing.T) {
	r := ResourceFromNote(&vault.Note{Path: "04_resources/Deep Work.md", Frontmatter: map[string]any{}})
	assert.Equal(t, "Deep Work", r.Title)
	assert.Equal(t, StatusInProgress, r.CompletionStatus)
	assert.Equal(t, 0.0, r.HoursInvested)
	assert.Equal(t, 1.0, r.EstimatedHours)
	assert.Equal(t, 50, r.RetentionScore)
	assert.Equal(t, 0, r.ReviewCount)
	assert.True(t, r.Active())
}

func TestResourceFromFrontmatter(t *testing.T) {
	r := ResourceFromNote(&vault.Note{
		Path:    "04_resources/go.md",
		Content: "body",
		Frontmatter: map[string]any{
			"title":              "Go Concurrency",
			"completion_status":  "completed",
			"hours_invested":     2.5,
			"estimated_hours":    "10",
			"last_reviewed":      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			"retention_score":    140,
			"review_count":       3,
			"abandonment_risk":   "High",
			"key_insights":       []any{"channels", "select"},
			"learning_path":      "Backend",
			"learning_status":    "paused",
			"unrelated_metadata": "kept elsewhere",
		},
	})
	assert.Equal(t, "Go Concurrency", r.Title)
	assert.Equal(t, StatusCompleted, r.CompletionStatus)
	assert.Equal(t, 2.5, r.HoursInvested)
	assert.Equal(t, 10.0, r.EstimatedHours)
	assert.Equal(t, "2024-06-01", r.LastReviewed)
	assert.Equal(t, 100, r.RetentionScore)
	assert.Equal(t, 3, r.ReviewCount)
	assert.Equal(t, RiskHigh, r.AbandonmentRisk)
	assert.Equal(t, []string{"channels", "select"}, r.KeyInsights)
	assert.Equal(t, "Backend", r.LearningPath)
	assert.False(t, r.Active())
	assert.Equal(t, "body", r.Content)
}

func TestNormalizeKeyQuestions(t *testing.T) {
	qs := normalizeQuestions([]any{
		"What is a goroutine?",
		map[string]any{"question": "When would you use select?", "type": "application", "difficulty": "hard", "expected_answer_hints": "multiple channels"},
		map[string]any{"type": "recall"},
		"  ",
	})
	assert.Equal(t, []Question{
		{Question: "What is a goroutine?", Type: "recall", Difficulty: "medium"},
		{Question: "When would you use select?", Type: "application", Difficulty: "hard", Hints: "multiple channels"},
	}, qs)

	assert.Nil(t, normalizeQuestions("not a list"))
}

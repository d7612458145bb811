package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/sparkcoach/internal/vault"
)

// Frontmatter keys read and written by the engine.
const (
	fmTitle            = "title"
	fmCompletionStatus = "completion_status"
	fmHoursInvested    = "hours_invested"
	fmEstimatedHours   = "estimated_hours"
	fmLastReviewed     = "last_reviewed"
	fmNextReview       = "next_review"
	fmRetention        = "retention_score"
	fmReviewCount      = "review_count"
	fmAbandonmentRisk  = "abandonment_risk"
	fmKeyInsights      = "key_insights"
	fmLearningPath     = "learning_path"
	fmKeyQuestions     = "key_questions"
	fmLearningStatus   = "learning_status"
)

const defaultRetention = 50

// Resource is a learning resource as described by its note frontmatter.
type Resource struct {
	Path             string
	Title            string
	CompletionStatus string
	HoursInvested    float64
	EstimatedHours   float64
	LastReviewed     string
	NextReview       string
	RetentionScore   int
	ReviewCount      int
	AbandonmentRisk  RiskLevel
	KeyInsights      []string
	LearningPath     string
	KeyQuestions     []Question
	LearningStatus   string
	Content          string
}

// ResourceFromNote applies defaults to a note's frontmatter.
func ResourceFromNote(n *vault.Note) Resource {
	fm := n.Frontmatter
	r := Resource{
		Path:             n.Path,
		Title:            fmString(fm[fmTitle]),
		CompletionStatus: fmString(fm[fmCompletionStatus]),
		HoursInvested:    fmFloat(fm[fmHoursInvested], 0),
		EstimatedHours:   fmFloat(fm[fmEstimatedHours], 1),
		LastReviewed:     fmString(fm[fmLastReviewed]),
		NextReview:       fmString(fm[fmNextReview]),
		RetentionScore:   clampScore(int(fmFloat(fm[fmRetention], defaultRetention))),
		ReviewCount:      int(fmFloat(fm[fmReviewCount], 0)),
		AbandonmentRisk:  RiskLevel(strings.ToLower(fmString(fm[fmAbandonmentRisk]))),
		KeyInsights:      fmStrings(fm[fmKeyInsights]),
		LearningPath:     fmString(fm[fmLearningPath]),
		KeyQuestions:     normalizeQuestions(fm[fmKeyQuestions]),
		LearningStatus:   fmString(fm[fmLearningStatus]),
		Content:          n.Content,
	}
	if r.Title == "" {
		r.Title = vault.TitleFromPath(n.Path)
	}
	if r.CompletionStatus == "" {
		r.CompletionStatus = StatusInProgress
	}
	if r.HoursInvested < 0 {
		r.HoursInvested = 0
	}
	if r.EstimatedHours < 0 {
		r.EstimatedHours = 0
	}
	if r.ReviewCount < 0 {
		r.ReviewCount = 0
	}
	return r
}

// Activity returns the fields the risk classifier reads.
func (r Resource) Activity() Activity {
	return Activity{
		LastReviewed:     r.LastReviewed,
		CompletionStatus: r.CompletionStatus,
		HoursInvested:    r.HoursInvested,
		EstimatedHours:   r.EstimatedHours,
	}
}

// Active reports whether the resource is tracked. A missing learning_status
// counts as active.
func (r Resource) Active() bool {
	return r.LearningStatus == "" || strings.EqualFold(r.LearningStatus, "active")
}

func fmString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(DateLayout)
	default:
		return fmt.Sprint(t)
	}
}

func fmFloat(v any, def float64) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

func fmStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := fmString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	}
	return nil
}

// normalizeQuestions turns key_questions entries into questions. Plain
// strings become recall questions of medium difficulty.
func normalizeQuestions(v any) []Question {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var qs []Question
	for _, item := range items {
		q := Question{Type: "recall", Difficulty: "medium"}
		switch t := item.(type) {
		case string:
			q.Question = strings.TrimSpace(t)
		case map[string]any:
			q.Question = fmString(t["question"])
			if s := fmString(t["type"]); s != "" {
				q.Type = s
			}
			if s := fmString(t["difficulty"]); s != "" {
				q.Difficulty = s
			}
			q.Hints = fmString(t["expected_answer_hints"])
		}
		if q.Question == "" {
			continue
		}
		qs = append(qs, q)
	}
	return qs
}

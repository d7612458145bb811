package engine

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is how likely a resource is to be abandoned.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders levels low < medium < high. Unknown levels rank below low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// ParseRiskLevel accepts low, medium or high in any case.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if r.Rank() == 0 {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return r, nil
}

// Completion statuses tracked in resource frontmatter.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// DateLayout is the frontmatter date format.
const DateLayout = "2006-01-02"

// Activity is the subset of resource state that drives risk.
type Activity struct {
	LastReviewed     string // YYYY-MM-DD, may be empty
	CompletionStatus string
	HoursInvested    float64
	EstimatedHours   float64
}

// CompletionPct is hours invested as a percentage of the estimate, or 0
// when there is no estimate.
func (a Activity) CompletionPct() float64 {
	if a.EstimatedHours <= 0 {
		return 0
	}
	return a.HoursInvested / a.EstimatedHours * 100
}

// ParseDate parses a frontmatter date. Full timestamps are accepted and
// truncated to their date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// DaysSince is the number of calendar days between lastReviewed and now.
// Absent or malformed dates and future dates give 0. Both the risk level and
// the reported days_inactive come from this one computation.
func DaysSince(lastReviewed string, now time.Time) int {
	t, ok := ParseDate(lastReviewed)
	if !ok {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(t).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// RiskPolicy tunes classification.
type RiskPolicy struct {
	// UnreviewedRisk is the level given to resources with no usable
	// last_reviewed date. Empty means the day thresholds apply with
	// days_since = 0, which is always low.
	UnreviewedRisk RiskLevel
}

// Classify applies the default policy.
func Classify(a Activity, now time.Time) RiskLevel {
	return RiskPolicy{}.Classify(a, now)
}

// Classify returns the abandonment risk for a. It is a pure function of its
// inputs.
func (p RiskPolicy) Classify(a Activity, now time.Time) RiskLevel {
	if _, ok := ParseDate(a.LastReviewed); !ok && p.UnreviewedRisk.Rank() > 0 {
		return p.UnreviewedRisk
	}
	return classifyDays(a, DaysSince(a.LastReviewed, now))
}

func classifyDays(a Activity, days int) RiskLevel {
	if a.CompletionStatus == StatusInProgress {
		switch {
		case days >= 10:
			return RiskHigh
		case days >= 7 && a.CompletionPct() < 50:
			return RiskHigh
		case days >= 5:
			return RiskMedium
		}
	}
	if days >= 5 {
		return RiskMedium
	}
	return RiskLow
}

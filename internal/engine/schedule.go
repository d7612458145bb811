package engine

import "time"

// IntervalDays is the review interval for a retention score. Scores are
// clamped to [0,100].
func IntervalDays(retention int) int {
	switch r := clampScore(retention); {
	case r <= 30:
		return 1
	case r <= 60:
		return 3
	case r <= 85:
		return 7
	default:
		return 30
	}
}

// NextReview returns the date of the next review after base. A zero base
// means today. The result is a date at midnight UTC.
func NextReview(retention int, base time.Time) time.Time {
	if base.IsZero() {
		base = time.Now()
	}
	day := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, IntervalDays(retention))
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

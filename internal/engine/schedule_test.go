package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextReviewBands(t *testing.T) {
	base := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		score int
		days  int
	}{
		{25, 1}, {45, 3}, {70, 7}, {90, 30},
		{0, 1}, {30, 1}, {31, 3}, {60, 3}, {61, 7}, {85, 7}, {86, 30}, {100, 30},
		{-20, 1}, {150, 30},
	}
	for _, c := range cases {
		got := NextReview(c.score, base)
		assert.Equal(t, base.AddDate(0, 0, c.days), got, "score %d", c.score)
		assert.False(t, got.Before(base))
	}
}

func TestNextReviewDropsTimeOfDay(t *testing.T) {
	got := NextReview(70, time.Date(2024, 6, 20, 18, 45, 0, 0, time.UTC))
	assert.Equal(t, "2024-06-27", got.Format(DateLayout))
	assert.Equal(t, 0, got.Hour())
}

func TestNextReviewZeroBaseIsToday(t *testing.T) {
	today := time.Now()
	got := NextReview(90, time.Time{})
	want := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 30)
	assert.Equal(t, want, got)
}

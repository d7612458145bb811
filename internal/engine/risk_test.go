package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2024, 6, 20, 15, 30, 0, 0, time.UTC)

func daysAgo(n int) string {
	return testNow.AddDate(0, 0, -n).Format(DateLayout)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   Activity
		want RiskLevel
	}{
		{"eleven days in progress", Activity{daysAgo(11), StatusInProgress, 2, 10}, RiskHigh},
		{"ten days well along", Activity{daysAgo(10), StatusInProgress, 9, 10}, RiskHigh},
		{"seven days low completion", Activity{daysAgo(7), StatusInProgress, 2, 10}, RiskHigh},
		{"seven days past half", Activity{daysAgo(7), StatusInProgress, 6, 10}, RiskMedium},
		{"six days defaults", Activity{daysAgo(6), StatusInProgress, 0, 1}, RiskMedium},
		{"five days", Activity{daysAgo(5), StatusInProgress, 0, 1}, RiskMedium},
		{"four days", Activity{daysAgo(4), StatusInProgress, 0, 1}, RiskLow},
		{"completed long ago", Activity{daysAgo(30), StatusCompleted, 10, 10}, RiskMedium},
		{"not started eight days", Activity{daysAgo(8), StatusNotStarted, 0, 5}, RiskMedium},
		{"never reviewed", Activity{"", StatusInProgress, 0, 1}, RiskLow},
		{"malformed date", Activity{"last tuesday", StatusInProgress, 0, 1}, RiskLow},
		{"future date", Activity{"2030-01-01", StatusInProgress, 0, 1}, RiskLow},
		{"no estimate", Activity{daysAgo(8), StatusInProgress, 3, 0}, RiskHigh},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.in, testNow))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	a := Activity{daysAgo(8), StatusInProgress, 1, 4}
	first := Classify(a, testNow)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify(a, testNow))
	}
}

func TestRiskPolicyUnreviewed(t *testing.T) {
	p := RiskPolicy{UnreviewedRisk: RiskMedium}
	assert.Equal(t, RiskMedium, p.Classify(Activity{CompletionStatus: StatusInProgress}, testNow))
	assert.Equal(t, RiskMedium, p.Classify(Activity{LastReviewed: "garbage"}, testNow))
	// a real date still goes through the thresholds
	assert.Equal(t, RiskLow, p.Classify(Activity{daysAgo(1), StatusInProgress, 0, 1}, testNow))
	assert.Equal(t, RiskHigh, p.Classify(Activity{daysAgo(12), StatusInProgress, 0, 1}, testNow))
}

func TestDaysSince(t *testing.T) {
	assert.Equal(t, 11, DaysSince(daysAgo(11), testNow))
	assert.Equal(t, 0, DaysSince(testNow.Format(DateLayout), testNow))
	assert.Equal(t, 0, DaysSince("", testNow))
	assert.Equal(t, 0, DaysSince("2024-13-45", testNow))
	assert.Equal(t, 0, DaysSince("2024-07-01", testNow))
	assert.Equal(t, 1, DaysSince("2024-06-19T23:59:00Z", testNow))

	// calendar days, not 24h periods
	lateNight := time.Date(2024, 6, 20, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysSince("2024-06-19", lateNight))
}

func TestCompletionPct(t *testing.T) {
	assert.InDelta(t, 20.0, Activity{HoursInvested: 2, EstimatedHours: 10}.CompletionPct(), 1e-9)
	assert.Equal(t, 0.0, Activity{HoursInvested: 2}.CompletionPct())
}

func TestParseRiskLevel(t *testing.T) {
	r, err := ParseRiskLevel(" High ")
	assert.NoError(t, err)
	assert.Equal(t, RiskHigh, r)

	_, err = ParseRiskLevel("severe")
	assert.Error(t, err)

	assert.Greater(t, RiskHigh.Rank(), RiskMedium.Rank())
	assert.Greater(t, RiskMedium.Rank(), RiskLow.Rank())
}

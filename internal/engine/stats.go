package engine

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/lazypower/sparkcoach/internal/apperr"
	"github.com/lazypower/sparkcoach/internal/store"
)

const (
	masteredRetention = 85
	// trendDelta is the score change between a resource's last two quizzes
	// that counts as improving or declining.
	trendDelta      = 10
	trendListLen    = 3
	retentionWindow = 30 * 24 * time.Hour
	onTrackFraction = 0.7
)

// Streak counts consecutive UTC days with learning activity.
type Streak struct {
	CurrentDays int `json:"current_days"`
	LongestEver int `json:"longest_ever"`
}

// LearningHours compares this week's logged time with the previous week.
type LearningHours struct {
	ThisWeek     float64 `json:"this_week"`
	Target       float64 `json:"target"`
	Trend        string  `json:"trend"` // "up", "down" or "flat"
	PreviousWeek float64 `json:"previous_week"`
}

// RetentionTrend summarizes completed quizzes of the last thirty days
// before the week start.
type RetentionTrend struct {
	AverageScore int      `json:"average_score"`
	Improving    []string `json:"improving"`
	Declining    []string `json:"declining"`
}

type ResourceCounts struct {
	Active   int `json:"active"`
	AtRisk   int `json:"at_risk"`
	Mastered int `json:"mastered"`
}

type QuizStats struct {
	CompletedThisWeek      int `json:"completed_this_week"`
	AverageScore           int `json:"average_score"`
	TotalQuestionsAnswered int `json:"total_questions_answered"`
}

// Dashboard is the aggregated view for the current ISO week. Resources is
// nil when the vault could not be listed.
type Dashboard struct {
	Period        string          `json:"period"`
	Streaks       Streak          `json:"streaks"`
	LearningHours LearningHours   `json:"learning_hours"`
	Retention     RetentionTrend  `json:"retention"`
	Resources     *ResourceCounts `json:"resources"`
	Quizzes       QuizStats       `json:"quizzes"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// WeeklySummary is the condensed weekly view.
type WeeklySummary struct {
	Week             string  `json:"week"`
	QuizzesCompleted int     `json:"quizzes_completed"`
	AverageScore     int     `json:"average_score"`
	HoursInvested    float64 `json:"hours_invested"`
	CurrentStreak    int     `json:"current_streak"`
	OnTrack          bool    `json:"on_track"`
}

// Stats reports learning progress from the quiz sessions and learning log.
type Stats struct {
	deps    *Deps
	tracker *Tracker
	opts    Options
}

// weekStart returns 00:00 UTC of the Monday of t's week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Streak returns the current and longest learning streaks. The current
// streak is zero unless there was activity today.
func (s *Stats) Streak(ctx context.Context) (Streak, error) {
	days, err := s.deps.Store.LearningDays(ctx)
	if err != nil {
		return Streak{}, apperr.Internal("stats.streak", err)
	}
	return streakFrom(days, s.deps.now()), nil
}

// streakFrom expects distinct YYYY-MM-DD days, newest first.
func streakFrom(days []string, now time.Time) Streak {
	if len(days) == 0 {
		return Streak{}
	}
	var dates []time.Time
	for _, d := range days {
		if t, err := time.Parse(time.DateOnly, d); err == nil {
			dates = append(dates, t)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	var st Streak
	check := now.UTC().Truncate(24 * time.Hour)
	for _, d := range dates {
		if d.Equal(check) {
			st.CurrentDays++
			check = check.AddDate(0, 0, -1)
		} else if d.Before(check) {
			break
		}
	}

	run := 0
	for i, d := range dates {
		if i > 0 && dates[i-1].Sub(d) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		st.LongestEver = max(st.LongestEver, run)
	}
	st.LongestEver = max(st.LongestEver, st.CurrentDays)
	return st
}

func (s *Stats) learningHours(ctx context.Context, week time.Time) (LearningHours, error) {
	this, err := s.hoursBetween(ctx, week, week.AddDate(0, 0, 7))
	if err != nil {
		return LearningHours{}, err
	}
	prev, err := s.hoursBetween(ctx, week.AddDate(0, 0, -7), week)
	if err != nil {
		return LearningHours{}, err
	}
	h := LearningHours{ThisWeek: this, Target: s.opts.WeeklyTargetHours, PreviousWeek: prev, Trend: "flat"}
	switch {
	case this > prev:
		h.Trend = "up"
	case this < prev:
		h.Trend = "down"
	}
	return h, nil
}

func (s *Stats) hoursBetween(ctx context.Context, from, to time.Time) (float64, error) {
	entries, err := s.deps.Store.ListLearningLog(ctx, store.LogFilter{Since: from.UnixMilli(), Until: to.UnixMilli()})
	if err != nil {
		return 0, err
	}
	var minutes float64
	for _, e := range entries {
		minutes += e.DurationMinutes
	}
	return math.Round(minutes/60*10) / 10, nil
}

func (s *Stats) quizStats(ctx context.Context, week time.Time) (QuizStats, error) {
	sessions, err := s.deps.Store.ListQuizSessions(ctx, store.SessionFilter{
		Status: store.SessionCompleted,
		Since:  week.UnixMilli(),
		Until:  week.AddDate(0, 0, 7).UnixMilli(),
	})
	if err != nil {
		return QuizStats{}, err
	}
	qs := QuizStats{CompletedThisWeek: len(sessions), AverageScore: averageScore(sessions)}
	for _, sess := range sessions {
		qs.TotalQuestionsAnswered += sess.TotalQuestions
	}
	return qs, nil
}

func (s *Stats) retention(ctx context.Context, week time.Time) (RetentionTrend, error) {
	sessions, err := s.deps.Store.ListQuizSessions(ctx, store.SessionFilter{
		Status: store.SessionCompleted,
		Since:  week.Add(-retentionWindow).UnixMilli(),
	})
	if err != nil {
		return RetentionTrend{}, err
	}
	rt := RetentionTrend{AverageScore: averageScore(sessions), Improving: []string{}, Declining: []string{}}

	// sessions arrive newest first
	byPath := map[string][]int{}
	var paths []string
	for _, sess := range sessions {
		if sess.Score == nil {
			continue
		}
		if _, ok := byPath[sess.ResourcePath]; !ok {
			paths = append(paths, sess.ResourcePath)
		}
		byPath[sess.ResourcePath] = append(byPath[sess.ResourcePath], *sess.Score)
	}
	sort.Strings(paths)
	for _, p := range paths {
		scores := byPath[p]
		if len(scores) < 2 {
			continue
		}
		recent, previous := scores[0], scores[1]
		switch {
		case recent > previous+trendDelta && len(rt.Improving) < trendListLen:
			rt.Improving = append(rt.Improving, resourceName(p))
		case recent < previous-trendDelta && len(rt.Declining) < trendListLen:
			rt.Declining = append(rt.Declining, resourceName(p))
		}
	}
	return rt, nil
}

func (s *Stats) resourceCounts(ctx context.Context) (*ResourceCounts, error) {
	resources, err := s.tracker.activeResources(ctx)
	if err != nil {
		return nil, err
	}
	rc := &ResourceCounts{Active: len(resources)}
	for _, r := range resources {
		if r.AbandonmentRisk.Rank() >= RiskMedium.Rank() {
			rc.AtRisk++
		}
		if r.RetentionScore > masteredRetention {
			rc.Mastered++
		}
	}
	return rc, nil
}

// WeeklySummary condenses the current week. A week is on track at 70% of
// the weekly hour target.
func (s *Stats) WeeklySummary(ctx context.Context) (*WeeklySummary, error) {
	const op = "stats.weekly_summary"
	week := weekStart(s.deps.now())

	quizzes, err := s.quizStats(ctx, week)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	hours, err := s.learningHours(ctx, week)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	streak, err := s.Streak(ctx)
	if err != nil {
		return nil, err
	}
	return &WeeklySummary{
		Week:             "Week of " + week.Format("Jan 02"),
		QuizzesCompleted: quizzes.CompletedThisWeek,
		AverageScore:     quizzes.AverageScore,
		HoursInvested:    hours.ThisWeek,
		CurrentStreak:    streak.CurrentDays,
		OnTrack:          hours.ThisWeek >= hours.Target*onTrackFraction,
	}, nil
}

// Dashboard aggregates streaks, hours, retention trends, resource counts
// and quiz stats for the current week. A vault failure only drops the
// resource counts.
func (s *Stats) Dashboard(ctx context.Context) (*Dashboard, error) {
	const op = "stats.dashboard"
	now := s.deps.now()
	week := weekStart(now)
	year, wk := week.ISOWeek()

	d := &Dashboard{Period: fmt.Sprintf("%d-W%02d", year, wk), GeneratedAt: now.UTC()}
	var err error
	if d.Streaks, err = s.Streak(ctx); err != nil {
		return nil, err
	}
	if d.LearningHours, err = s.learningHours(ctx, week); err != nil {
		return nil, apperr.Internal(op, err)
	}
	if d.Retention, err = s.retention(ctx, week); err != nil {
		return nil, apperr.Internal(op, err)
	}
	if d.Quizzes, err = s.quizStats(ctx, week); err != nil {
		return nil, apperr.Internal(op, err)
	}
	d.Resources, err = s.resourceCounts(ctx)
	if err != nil {
		s.deps.log().Warn("dashboard resource counts unavailable", "error", err)
	}
	return d, nil
}

func averageScore(sessions []store.QuizSession) int {
	sum, n := 0, 0
	for _, s := range sessions {
		if s.Score != nil {
			sum += *s.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// resourceName turns "04_resources/go-concurrency.md" into "go concurrency".
func resourceName(p string) string {
	return strings.ReplaceAll(strings.TrimSuffix(path.Base(p), ".md"), "-", " ")
}

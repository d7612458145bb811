package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/sparkcoach/internal/apperr"
	"github.com/lazypower/sparkcoach/internal/llm"
	"github.com/lazypower/sparkcoach/internal/vault"
)

func TestSweepHighRiskCreatesNudge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.put("go", "Notes on channels.",
		"title: Go Concurrency",
		"completion_status: in_progress",
		"hours_invested: 2",
		"estimated_hours: 10",
		"last_reviewed: "+daysAgo(11),
		"key_insights:\n  - channels are typed conduits\n  - select multiplexes\n  - third insight")
	f.llm.AddText("Your channel notes are waiting. Spend five minutes sketching a pipeline.")

	res, err := f.eng.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, SweepCompleted, res.Status)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.AtRiskCount)
	assert.Equal(t, 1, res.NudgesCreated)
	require.Len(t, res.Resources, 1)
	rr := res.Resources[0]
	assert.Equal(t, p, rr.Path)
	assert.Equal(t, "Go Concurrency", rr.Title)
	assert.Equal(t, RiskHigh, rr.RiskLevel)
	assert.Equal(t, 11, rr.DaysInactive)
	assert.True(t, rr.NudgeSent)

	fm := f.frontmatter(t, p)
	assert.Equal(t, "high", fm["abandonment_risk"])
	assert.Equal(t, 2, fm["hours_invested"])

	pending, err := f.eng.Nudges.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rr.NudgeID, pending[0].ID)
	assert.Equal(t, "Your channel notes are waiting. Spend five minutes sketching a pipeline.", pending[0].Message)
	assert.False(t, pending[0].Fallback)
	assert.Equal(t, NudgeTypeAbandonment, pending[0].NudgeType)

	require.Equal(t, 1, f.llm.CallCount())
	call := f.llm.Calls[0]
	assert.Equal(t, llm.NudgeMaxTokens, call.MaxTokens)
	user := call.Messages[0].Content
	assert.Contains(t, user, "Days inactive: 11")
	assert.Contains(t, user, "channels are typed conduits; select multiplexes")
	assert.NotContains(t, user, "third insight")

	atRisk, err := f.eng.Tracker.AtRisk(ctx, RiskHigh)
	require.NoError(t, err)
	require.Len(t, atRisk, 1)
	assert.Equal(t, p, atRisk[0].Path)
}

func TestSweepMediumRiskUpdatesWithoutNudge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.put("sql", "Joins.", "last_reviewed: "+daysAgo(6))

	res, err := f.eng.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, res.Resources, 1)
	assert.Equal(t, RiskMedium, res.Resources[0].RiskLevel)
	assert.False(t, res.Resources[0].NudgeSent)
	assert.Equal(t, 0, res.NudgesCreated)

	assert.Equal(t, "medium", f.frontmatter(t, p)["abandonment_risk"])
	assert.Equal(t, 0, f.llm.CallCount())

	pending, err := f.eng.Nudges.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweepSkipsLowAndInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put("fresh", "x", "last_reviewed: "+daysAgo(2))
	f.put("never", "x")
	f.vault.Put("04_resources/paused.md", note("x", "learning_status: paused", "last_reviewed: "+daysAgo(30)))

	res, err := f.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Empty(t, res.Resources)
	assert.Equal(t, 0, f.vault.Updates())
}

func TestSweepFallbackNudge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put("rust", "Ownership.", "title: Rust Book", "last_reviewed: "+daysAgo(14), "learning_path: Systems")
	f.llm.AddError(&llm.ErrProviderUnavailable{Err: errors.New("connection refused")})

	res, err := f.eng.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, res.Resources, 1)
	assert.True(t, res.Resources[0].NudgeSent)

	pending, err := f.eng.Nudges.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Fallback)
	assert.Equal(t, FallbackNudge("Rust Book", 14), pending[0].Message)
	assert.Contains(t, pending[0].Message, `"Rust Book"`)
	assert.Contains(t, pending[0].Message, "14 days")
}

func TestComposeWithoutProvider(t *testing.T) {
	n := &Nudger{deps: &Deps{}}
	msg := n.Compose(context.Background(), Resource{Title: "Deep Work"}, 12)
	assert.True(t, msg.Fallback)
	assert.NoError(t, msg.Err)
	assert.Equal(t, FallbackNudge("Deep Work", 12), msg.Text)
}

func TestComposeEmptyTextFallsBack(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddText("   ")
	n := &Nudger{deps: &Deps{LLM: mock}}
	msg := n.Compose(context.Background(), Resource{Title: "Deep Work", LearningPath: "Focus"}, 12)
	assert.True(t, msg.Fallback)
	assert.Error(t, msg.Err)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "Part of their Focus learning path")
}

func TestSweepIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := f.put("a-bad", "x", "last_reviewed: "+daysAgo(12))
	good := f.put("b-good", "x", "last_reviewed: "+daysAgo(12))
	unreadable := f.put("c-unreadable", "x", "last_reviewed: "+daysAgo(12))
	f.vault.UpdateErr[bad] = errors.New("vault write timeout")
	f.vault.ReadErr[unreadable] = errors.New("vault read timeout")

	res, err := f.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepPartial, res.Status)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, bad, res.Failures[0].Path)
	assert.Contains(t, res.Failures[0].Error, "vault write timeout")
	assert.Equal(t, unreadable, res.Failures[1].Path)

	require.Len(t, res.Resources, 1)
	assert.Equal(t, good, res.Resources[0].Path)
	assert.Equal(t, "high", f.frontmatter(t, good)["abandonment_risk"])

	pending, err := f.eng.Nudges.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, good, pending[0].ResourcePath)
}

// dupSearch returns every search hit twice.
type dupSearch struct{ *vault.Memory }

func (d dupSearch) Search(ctx context.Context, query, folder string) ([]vault.NoteRef, error) {
	refs, err := d.Memory.Search(ctx, query, folder)
	return append(refs, refs...), err
}

func TestSweepOneNudgePerResourcePerPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.eng = New(Deps{Vault: dupSearch{f.vault}, Store: f.db, Now: f.clock}, Options{})
	p := f.put("go", "x", "last_reviewed: "+daysAgo(20))

	first, err := f.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Scanned)
	assert.Equal(t, 1, first.NudgesCreated)

	second, err := f.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Resources[0].RiskLevel, second.Resources[0].RiskLevel)
	assert.Equal(t, 1, second.NudgesCreated)
	assert.Equal(t, "high", f.frontmatter(t, p)["abandonment_risk"])
}

func TestSweepSearchFailure(t *testing.T) {
	f := newFixture(t)
	f.eng = New(Deps{Vault: failingSearch{f.vault}, Store: f.db, Now: f.clock}, Options{})

	_, err := f.eng.Sweep(context.Background())
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestSweepUnreviewedPolicy(t *testing.T) {
	f := newFixture(t)
	f.eng = New(Deps{Vault: f.vault, Store: f.db, Now: f.clock}, Options{Policy: RiskPolicy{UnreviewedRisk: RiskMedium}})
	p := f.put("never", "x")

	res, err := f.eng.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Resources, 1)
	assert.Equal(t, RiskMedium, res.Resources[0].RiskLevel)
	assert.Equal(t, 0, res.Resources[0].DaysInactive)
	assert.Equal(t, "medium", f.frontmatter(t, p)["abandonment_risk"])
}

func TestAtRiskAndDueForReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put("a", "x", "abandonment_risk: medium", "next_review: 2024-06-25")
	f.put("b", "x", "abandonment_risk: high", "next_review: 2024-06-18")
	f.put("c", "x", "abandonment_risk: low", "next_review: 2024-06-20")
	f.put("d", "x")

	atRisk, err := f.eng.Tracker.AtRisk(ctx, "")
	require.NoError(t, err)
	require.Len(t, atRisk, 2)
	assert.Equal(t, "04_resources/b.md", atRisk[0].Path)
	assert.Equal(t, "04_resources/a.md", atRisk[1].Path)

	due, err := f.eng.Tracker.DueForReview(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "04_resources/b.md", due[0].Path)
	assert.Equal(t, "04_resources/c.md", due[1].Path)

	due, err = f.eng.Tracker.DueForReview(ctx, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestPendingAndMarkDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []int64
	for i, title := range []string{"one", "two", "three"} {
		f.setNow(testNow.Add(time.Duration(i) * time.Minute))
		n, err := f.eng.Nudges.Create(ctx, Resource{Path: "04_resources/" + title + ".md", Title: title}, 11)
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	pending, err := f.eng.Nudges.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[2], pending[0].ID)
	assert.Equal(t, ids[1], pending[1].ID)

	updated, err := f.eng.Nudges.MarkDelivered(ctx, []int64{ids[0], ids[2], 9999})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	pending, err = f.eng.Nudges.Pending(ctx, 500)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[1], pending[0].ID)

	got, err := f.db.GetNudge(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, got.Delivered)
	require.NotNil(t, got.DeliveredAt)
	assert.Equal(t, f.clock().UnixMilli(), *got.DeliveredAt)
}

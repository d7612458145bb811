package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/sparkcoach/internal/apperr"
)

// activeQuery is the search term that finds tracked resources.
const activeQuery = "learning_status"

// Sweep outcome statuses.
const (
	SweepCompleted = "completed"
	SweepPartial   = "completed_with_errors"
)

// ResourceResult is the per-resource outcome of a sweep.
type ResourceResult struct {
	Path         string    `json:"path"`
	Title        string    `json:"title"`
	RiskLevel    RiskLevel `json:"risk_level"`
	DaysInactive int       `json:"days_inactive"`
	NudgeSent    bool      `json:"nudge_sent"`
	NudgeID      int64     `json:"nudge_id,omitempty"`
}

// SweepFailure records a resource that could not be processed.
type SweepFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SweepResult summarizes one sweep. Resources lists only medium and high
// risk resources, sorted by path.
type SweepResult struct {
	Status        string           `json:"status"`
	Scanned       int              `json:"scanned"`
	AtRiskCount   int              `json:"at_risk_count"`
	NudgesCreated int              `json:"nudges_created"`
	Resources     []ResourceResult `json:"resources"`
	Failures      []SweepFailure   `json:"failures"`
	StartedAt     time.Time        `json:"started_at"`
	DurationMS    int64            `json:"duration_ms"`
}

// ResourceSummary is a tracked resource as listed by AtRisk and DueForReview.
type ResourceSummary struct {
	Path            string    `json:"path"`
	Title           string    `json:"title"`
	AbandonmentRisk RiskLevel `json:"abandonment_risk,omitempty"`
	DaysInactive    int       `json:"days_inactive"`
	LastReviewed    string    `json:"last_reviewed,omitempty"`
	NextReview      string    `json:"next_review,omitempty"`
	RetentionScore  int       `json:"retention_score"`
}

// Tracker classifies tracked resources and records their abandonment risk.
type Tracker struct {
	deps   *Deps
	nudges *Nudger
	opts   Options

	sweepMu sync.Mutex
}

// Sweep classifies every active resource, writes abandonment_risk back for
// medium and high risk, and stores a nudge for each high-risk resource.
// Failures on one resource are recorded and do not stop the others. Sweeps
// run one at a time.
func (t *Tracker) Sweep(ctx context.Context) (*SweepResult, error) {
	t.sweepMu.Lock()
	defer t.sweepMu.Unlock()

	log := t.deps.log()
	start := t.deps.now()
	result := &SweepResult{
		Status:    SweepCompleted,
		Resources: []ResourceResult{},
		Failures:  []SweepFailure{},
		StartedAt: start,
	}

	paths, err := t.activePaths(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	fail := func(path string, err error) {
		log.Warn("sweep: resource failed", "path", path, "error", err)
		mu.Lock()
		result.Failures = append(result.Failures, SweepFailure{Path: path, Error: err.Error()})
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(t.opts.Concurrency)
	for _, p := range paths {
		g.Go(func() error {
			note, err := t.deps.Vault.Read(ctx, p)
			if err != nil {
				fail(p, err)
				return nil
			}
			r := ResourceFromNote(note)
			if !r.Active() {
				return nil
			}
			mu.Lock()
			result.Scanned++
			mu.Unlock()

			rr, err := t.process(ctx, r, start)
			if err != nil {
				fail(p, err)
				return nil
			}
			if rr == nil {
				return nil
			}
			mu.Lock()
			result.Resources = append(result.Resources, *rr)
			if rr.NudgeSent {
				result.NudgesCreated++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(result.Resources, func(i, j int) bool { return result.Resources[i].Path < result.Resources[j].Path })
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].Path < result.Failures[j].Path })
	result.AtRiskCount = len(result.Resources)
	if len(result.Failures) > 0 {
		result.Status = SweepPartial
	}
	result.DurationMS = t.deps.now().Sub(start).Milliseconds()

	log.Info("sweep finished",
		"scanned", result.Scanned,
		"at_risk", result.AtRiskCount,
		"nudges", result.NudgesCreated,
		"failures", len(result.Failures))
	return result, nil
}

// process handles one resource. It returns nil for low risk.
func (t *Tracker) process(ctx context.Context, r Resource, now time.Time) (*ResourceResult, error) {
	days := DaysSince(r.LastReviewed, now)
	risk := t.opts.Policy.Classify(r.Activity(), now)
	if risk == RiskLow {
		return nil, nil
	}

	if err := t.deps.Vault.Update(ctx, r.Path, map[string]any{fmAbandonmentRisk: string(risk)}); err != nil {
		return nil, err
	}
	rr := &ResourceResult{Path: r.Path, Title: r.Title, RiskLevel: risk, DaysInactive: days}
	if risk != RiskHigh {
		return rr, nil
	}

	nudge, err := t.nudges.Create(ctx, r, days)
	if err != nil {
		return nil, err
	}
	rr.NudgeSent = true
	rr.NudgeID = nudge.ID
	return rr, nil
}

// activePaths returns the de-duplicated paths of tracked resources.
func (t *Tracker) activePaths(ctx context.Context) ([]string, error) {
	refs, err := t.deps.Vault.Search(ctx, activeQuery, t.opts.ResourcesFolder)
	if err != nil {
		return nil, apperr.Upstream("search resources", err)
	}
	seen := make(map[string]bool, len(refs))
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Path == "" || seen[ref.Path] {
			continue
		}
		seen[ref.Path] = true
		paths = append(paths, ref.Path)
	}
	sort.Strings(paths)
	return paths, nil
}

// activeResources reads every tracked resource. Unreadable notes are logged
// and skipped.
func (t *Tracker) activeResources(ctx context.Context) ([]Resource, error) {
	paths, err := t.activePaths(ctx)
	if err != nil {
		return nil, err
	}
	resources := make([]*Resource, len(paths))

	var g errgroup.Group
	g.SetLimit(t.opts.Concurrency)
	for i, p := range paths {
		g.Go(func() error {
			note, err := t.deps.Vault.Read(ctx, p)
			if err != nil {
				t.deps.log().Warn("skipping unreadable resource", "path", p, "error", err)
				return nil
			}
			r := ResourceFromNote(note)
			if r.Active() {
				resources[i] = &r
			}
			return nil
		})
	}
	g.Wait()

	out := make([]Resource, 0, len(paths))
	for _, r := range resources {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func summarize(r Resource, now time.Time) ResourceSummary {
	return ResourceSummary{
		Path:            r.Path,
		Title:           r.Title,
		AbandonmentRisk: r.AbandonmentRisk,
		DaysInactive:    DaysSince(r.LastReviewed, now),
		LastReviewed:    r.LastReviewed,
		NextReview:      r.NextReview,
		RetentionScore:  r.RetentionScore,
	}
}

// AtRisk lists tracked resources whose stored abandonment_risk is at least
// minLevel, highest risk first.
func (t *Tracker) AtRisk(ctx context.Context, minLevel RiskLevel) ([]ResourceSummary, error) {
	if minLevel.Rank() == 0 {
		minLevel = RiskMedium
	}
	resources, err := t.activeResources(ctx)
	if err != nil {
		return nil, err
	}
	now := t.deps.now()
	out := []ResourceSummary{}
	for _, r := range resources {
		if r.AbandonmentRisk.Rank() >= minLevel.Rank() {
			out = append(out, summarize(r, now))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AbandonmentRisk.Rank() > out[j].AbandonmentRisk.Rank()
	})
	return out, nil
}

// DueForReview lists tracked resources whose next_review is on or before
// date, earliest first. A zero date means today.
func (t *Tracker) DueForReview(ctx context.Context, date time.Time) ([]ResourceSummary, error) {
	now := t.deps.now()
	if date.IsZero() {
		date = now
	}
	cutoff := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	resources, err := t.activeResources(ctx)
	if err != nil {
		return nil, err
	}
	out := []ResourceSummary{}
	for _, r := range resources {
		next, ok := ParseDate(r.NextReview)
		if ok && !next.After(cutoff) {
			out = append(out, summarize(r, now))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextReview < out[j].NextReview })
	return out, nil
}

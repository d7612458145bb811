package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"

	"github.com/lazypower/sparkcoach/internal/llm"
	"github.com/lazypower/sparkcoach/internal/logger"
	"github.com/lazypower/sparkcoach/internal/store"
	"github.com/lazypower/sparkcoach/internal/vault"
)

// Deps are the collaborators shared by the tracker, nudger and quiz manager.
type Deps struct {
	Vault vault.Gateway
	LLM   llm.Provider // may be nil; nudges then always use the template
	Store *store.DB
	Cache QuestionCache
	Log   *logger.Logger
	Now   func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) log() *logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}

// Options tune engine behavior.
type Options struct {
	ResourcesFolder   string
	Concurrency       int
	Policy            RiskPolicy
	DefaultQuestions  int
	MaxQuestions      int
	SweepSchedule     string        // 6-field cron spec; empty disables
	SweepTimeout      time.Duration // bound on a scheduled sweep
	WeeklyTargetHours float64
}

func (o *Options) setDefaults() {
	if o.ResourcesFolder == "" {
		o.ResourcesFolder = "04_resources"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.DefaultQuestions <= 0 {
		o.DefaultQuestions = 3
	}
	if o.MaxQuestions <= 0 {
		o.MaxQuestions = 10
	}
	if o.SweepTimeout <= 0 {
		o.SweepTimeout = 15 * time.Minute
	}
	if o.WeeklyTargetHours <= 0 {
		o.WeeklyTargetHours = 5
	}
}

// Engine wires the retention components together and runs the scheduled
// sweep.
type Engine struct {
	Tracker *Tracker
	Nudges  *Nudger
	Quiz    *QuizManager
	Stats   *Stats

	deps   *Deps
	opts   Options
	cron   *cron.Cron
	stopCh chan struct{}
}

// New creates an engine. d.Store and d.Vault are required.
func New(d Deps, opts Options) *Engine {
	opts.setDefaults()
	if d.Cache == nil {
		d.Cache = NewMemoryQuestionCache(DefaultQuestionTTL)
	}
	deps := &d
	nudges := &Nudger{deps: deps}
	tracker := &Tracker{deps: deps, nudges: nudges, opts: opts}
	return &Engine{
		Tracker: tracker,
		Nudges:  nudges,
		Quiz:    &QuizManager{deps: deps, opts: opts, locks: newKeyedMutex()},
		Stats:   &Stats{deps: deps, tracker: tracker, opts: opts},
		deps:    deps,
		opts:    opts,
		stopCh:  make(chan struct{}),
	}
}

// Sweep runs one pass of the resource state tracker.
func (e *Engine) Sweep(ctx context.Context) (*SweepResult, error) {
	return e.Tracker.Sweep(ctx)
}

// StartScheduler runs the sweep on the configured schedule and prunes the
// question cache hourly.
func (e *Engine) StartScheduler() error {
	c := cron.New()
	if e.opts.SweepSchedule != "" {
		if err := c.AddFunc(e.opts.SweepSchedule, e.scheduledSweep); err != nil {
			return fmt.Errorf("sweep schedule %q: %w", e.opts.SweepSchedule, err)
		}
	}
	if err := c.AddFunc("@every 1h", e.pruneCache); err != nil {
		return fmt.Errorf("prune schedule: %w", err)
	}
	c.Start()
	e.cron = c
	e.deps.log().Info("scheduler started", "sweep_schedule", e.opts.SweepSchedule)
	return nil
}

func (e *Engine) scheduledSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.SweepTimeout)
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := e.Tracker.Sweep(ctx)
	if err != nil {
		e.deps.log().Error("scheduled sweep failed", "error", err)
		return
	}
	e.deps.log().Info("scheduled sweep done",
		"scanned", result.Scanned,
		"at_risk", result.AtRiskCount,
		"nudges", result.NudgesCreated,
		"failures", len(result.Failures))
}

func (e *Engine) pruneCache() {
	n, err := e.deps.Cache.Prune(context.Background())
	if err != nil {
		e.deps.log().Warn("question cache prune failed", "error", err)
		return
	}
	if n > 0 {
		e.deps.log().Debug("pruned expired quiz questions", "count", n)
	}
}

// Stop halts the scheduler and cancels a running scheduled sweep.
func (e *Engine) Stop() {
	select {
	case <-e.stopCh:
		return
	default:
		close(e.stopCh)
	}
	if e.cron != nil {
		e.cron.Stop()
	}
}

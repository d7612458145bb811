package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/sparkcoach/internal/llm"
	"github.com/lazypower/sparkcoach/internal/logger"
	"github.com/lazypower/sparkcoach/internal/store"
	"github.com/lazypower/sparkcoach/internal/vault"
)

type fixture struct {
	eng   *Engine
	vault *vault.Memory
	llm   *llm.MockProvider
	db    *store.DB
	cache *MemoryQuestionCache

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		vault: vault.NewMemory(),
		llm:   llm.NewMockProvider(),
		db:    db,
		cache: NewMemoryQuestionCache(time.Hour),
		now:   testNow,
	}
	f.eng = New(Deps{
		Vault: f.vault,
		LLM:   f.llm,
		Store: db,
		Cache: f.cache,
		Log:   logger.Nop(),
		Now:   f.clock,
	}, Options{Concurrency: 4})
	return f
}

// note renders frontmatter lines and a body as note text.
func note(body string, fields ...string) string {
	return "---\n" + strings.Join(fields, "\n") + "\n---\n" + body
}

// put stores a tracked resource under 04_resources.
func (f *fixture) put(name, body string, fields ...string) string {
	p := "04_resources/" + name + ".md"
	f.vault.Put(p, note(body, append([]string{"learning_status: active"}, fields...)...))
	return p
}

func (f *fixture) frontmatter(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, ok := f.vault.Raw(path)
	require.True(t, ok, "missing note %s", path)
	fm, _, err := vault.ParseFrontmatter(raw)
	require.NoError(t, err)
	return fm
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	e := New(Deps{Vault: vault.NewMemory(), Store: db}, Options{SweepSchedule: "every evening"})
	assert.Error(t, e.StartScheduler())
}

func TestSchedulerStartStop(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	e := New(Deps{Vault: vault.NewMemory(), Store: db}, Options{SweepSchedule: "0 0 20 * * *"})
	require.NoError(t, e.StartScheduler())
	e.Stop()
	e.Stop()
}

func TestScheduledSweepLogsAndSurvivesErrors(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	e := New(Deps{Vault: failingSearch{vault.NewMemory()}, Store: db}, Options{})
	e.scheduledSweep()
	e.pruneCache()
}

type failingSearch struct{ *vault.Memory }

func (failingSearch) Search(ctx context.Context, query, folder string) ([]vault.NoteRef, error) {
	return nil, fmt.Errorf("vault offline")
}

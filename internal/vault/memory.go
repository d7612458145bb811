package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Gateway. It backs tests and dry runs.
type Memory struct {
	mu    sync.Mutex
	notes map[string]string

	// ReadErr and UpdateErr, when set, are returned for matching paths.
	ReadErr   map[string]error
	UpdateErr map[string]error
	PingErr   error

	updates int
}

// NewMemory returns an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{
		notes:     map[string]string{},
		ReadErr:   map[string]error{},
		UpdateErr: map[string]error{},
	}
}

// Put stores raw note text at path, replacing anything there.
func (m *Memory) Put(path, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[path] = raw
}

// Raw returns the stored text for path.
func (m *Memory) Raw(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.notes[path]
	return raw, ok
}

// Updates returns how many successful Update calls were made.
func (m *Memory) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func (m *Memory) Search(ctx context.Context, query, folder string) ([]NoteRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := strings.TrimSuffix(folder, "/")
	q := strings.ToLower(query)
	var refs []NoteRef
	for p, raw := range m.notes {
		if prefix != "" && !strings.HasPrefix(p, prefix+"/") {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(raw), q) && !strings.Contains(strings.ToLower(p), q) {
			continue
		}
		refs = append(refs, NoteRef{Path: p, Title: TitleFromPath(p)})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func (m *Memory) Read(ctx context.Context, path string) (*Note, error) {
	m.mu.Lock()
	err := m.ReadErr[path]
	raw, ok := m.notes[path]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	return parseNote(path, raw)
}

func (m *Memory) Update(ctx context.Context, path string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.UpdateErr[path]; err != nil {
		return err
	}
	raw, ok := m.notes[path]
	if !ok {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	merged, err := MergeFrontmatter(raw, patch)
	if err != nil {
		return err
	}
	m.notes[path] = merged
	m.updates++
	return nil
}

func (m *Memory) Create(ctx context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[path]; ok {
		return fmt.Errorf("create %s: note exists", path)
	}
	m.notes[path] = content
	return nil
}

func (m *Memory) Append(ctx context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.notes[path]
	if !ok {
		return fmt.Errorf("append %s: %w", path, ErrNotFound)
	}
	m.notes[path] = raw + content
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

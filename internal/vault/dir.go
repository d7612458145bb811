package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Dir is a Gateway over a local directory of markdown files. Paths are
// slash-separated and relative to the root.
type Dir struct {
	root string
	mu   sync.Mutex // serializes read-modify-write on notes
}

// NewDir returns a vault rooted at root. The directory must exist.
func NewDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", root)
	}
	return &Dir{root: root}, nil
}

// resolve maps a vault path to a file path, refusing escapes from the root.
func (d *Dir) resolve(p string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid note path %q", p)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean[1:])), nil
}

func (d *Dir) Search(ctx context.Context, query, folder string) ([]NoteRef, error) {
	base := d.root
	if folder != "" {
		var err error
		if base, err = d.resolve(folder); err != nil {
			return nil, err
		}
	}
	q := strings.ToLower(query)

	var refs []NoteRef
	err := filepath.WalkDir(base, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if q != "" && !strings.Contains(strings.ToLower(rel), q) {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			if !strings.Contains(strings.ToLower(string(data)), q) {
				return nil
			}
		}
		refs = append(refs, NoteRef{Path: rel, Title: TitleFromPath(rel)})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func (d *Dir) Read(ctx context.Context, p string) (*Note, error) {
	file, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return parseNote(p, string(data))
}

func (d *Dir) Update(ctx context.Context, p string, patch map[string]any) error {
	file, err := d.resolve(p)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("update %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", p, err)
	}
	merged, err := MergeFrontmatter(string(data), patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", p, err)
	}
	return writeAtomic(file, []byte(merged))
}

func (d *Dir) Create(ctx context.Context, p, content string) error {
	file, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

func (d *Dir) Append(ctx context.Context, p, content string) error {
	file, err := d.resolve(p)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("append %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("append %s: %w", p, err)
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

func (d *Dir) Ping(ctx context.Context) error {
	_, err := os.Stat(d.root)
	return err
}

func writeAtomic(file string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), ".spark-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), file)
}

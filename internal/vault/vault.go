// Package vault reads and updates learning resources stored as markdown
// notes with YAML frontmatter.
package vault

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned when a note does not exist.
var ErrNotFound = errors.New("note not found")

// NoteRef identifies a note returned by a search.
type NoteRef struct {
	Path  string
	Title string
}

// Note is a parsed note.
type Note struct {
	Path        string
	Content     string         // body without frontmatter
	Frontmatter map[string]any // never nil
	Raw         string         // full text including frontmatter
}

// Gateway is the vault capability the engine depends on.
type Gateway interface {
	// Search returns notes under folder whose text contains query.
	Search(ctx context.Context, query, folder string) ([]NoteRef, error)
	// Read returns the note at path or ErrNotFound.
	Read(ctx context.Context, path string) (*Note, error)
	// Update merges patch into the note's frontmatter. Fields not named in
	// patch are preserved.
	Update(ctx context.Context, path string, patch map[string]any) error
	// Create writes a new note.
	Create(ctx context.Context, path, content string) error
	// Append adds content to the end of an existing note.
	Append(ctx context.Context, path, content string) error
	// Ping checks the vault is reachable.
	Ping(ctx context.Context) error
}

// parseNote builds a Note from raw text.
func parseNote(notePath, raw string) (*Note, error) {
	fm, body, err := ParseFrontmatter(raw)
	if err != nil {
		return nil, err
	}
	return &Note{Path: notePath, Content: body, Frontmatter: fm, Raw: raw}, nil
}

// TitleFromPath returns the file name of p without its .md extension.
func TitleFromPath(p string) string {
	return strings.TrimSuffix(path.Base(p), ".md")
}

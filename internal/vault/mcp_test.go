package vault

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/sparkcoach/internal/logger"
)

// fakeObsidian is an in-process MCP server exposing the Obsidian note tools.
type fakeObsidian struct {
	mu    sync.Mutex
	notes map[string]string
	auth  []string
}

func (f *fakeObsidian) read(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := req.GetString("path", "")
	f.mu.Lock()
	raw, ok := f.notes[p]
	f.mu.Unlock()
	if !ok {
		return mcp.NewToolResultError("Note not found: " + p), nil
	}
	return mcp.NewToolResultText("# Content of " + p + "\n\n" + raw), nil
}

func (f *fakeObsidian) update(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := req.GetString("path", "")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[p]; !ok {
		return mcp.NewToolResultError("Note not found: " + p), nil
	}
	f.notes[p] = req.GetString("content", "")
	return mcp.NewToolResultText("Updated " + p), nil
}

func (f *fakeObsidian) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("Found 2 notes for %q\n\n### 1. Go Concurrency.md\n**Path:** 04_resources/go.md\n\n### 2. sql.md\n**Path:** 04_resources/sql.md\n",
		req.GetString("keyword", ""))
	return mcp.NewToolResultText(text), nil
}

func (f *fakeObsidian) write(appendMode bool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p := req.GetString("path", "")
		f.mu.Lock()
		defer f.mu.Unlock()
		if appendMode {
			f.notes[p] += req.GetString("content", "")
		} else {
			f.notes[p] = req.GetString("content", "")
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func newFakeObsidian(t *testing.T) (*fakeObsidian, *MCP) {
	t.Helper()
	f := &fakeObsidian{notes: map[string]string{"04_resources/go.md": goNote}}

	s := server.NewMCPServer("obsidian-test", "0.0.1", server.WithToolCapabilities(true), server.WithRecovery())
	pathArg := mcp.WithString("path", mcp.Required())
	s.AddTool(mcp.NewTool(toolRead, pathArg), f.read)
	s.AddTool(mcp.NewTool(toolUpdate, pathArg, mcp.WithString("content", mcp.Required())), f.update)
	s.AddTool(mcp.NewTool(toolSearch, mcp.WithString("keyword", mcp.Required()), mcp.WithString("folder")), f.search)
	s.AddTool(mcp.NewTool(toolCreate, pathArg, mcp.WithString("content")), f.write(false))
	s.AddTool(mcp.NewTool(toolAppend, pathArg, mcp.WithString("content")), f.write(true))

	h := server.NewStreamableHTTPServer(s)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	gw := NewMCP(ts.URL+"/mcp", "secret-key", 5*time.Second, logger.Nop(), "test")
	t.Cleanup(func() { gw.Close() })
	return f, gw
}

func TestMCPReadStripsHeader(t *testing.T) {
	f, gw := newFakeObsidian(t)

	note, err := gw.Read(context.Background(), "04_resources/go.md")
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", note.Frontmatter["title"])
	assert.NotContains(t, note.Raw, "# Content of")

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.auth)
	assert.Equal(t, "Bearer secret-key", f.auth[0])
}

func TestMCPReadNotFound(t *testing.T) {
	_, gw := newFakeObsidian(t)
	_, err := gw.Read(context.Background(), "04_resources/missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMCPUpdateMergesFrontmatter(t *testing.T) {
	f, gw := newFakeObsidian(t)
	ctx := context.Background()

	require.NoError(t, gw.Update(ctx, "04_resources/go.md", map[string]any{
		"abandonment_risk": "high",
		"review_count":     2,
	}))

	f.mu.Lock()
	raw := f.notes["04_resources/go.md"]
	f.mu.Unlock()

	fm, body, err := ParseFrontmatter(raw)
	require.NoError(t, err)
	assert.Equal(t, "high", fm["abandonment_risk"])
	assert.Equal(t, 2, fm["review_count"])
	assert.Equal(t, "Go Concurrency", fm["title"])
	assert.Contains(t, body, "Notes about channels.")
}

func TestMCPSearch(t *testing.T) {
	_, gw := newFakeObsidian(t)

	refs, err := gw.Search(context.Background(), "channels", "04_resources")
	require.NoError(t, err)
	assert.Equal(t, []NoteRef{
		{Path: "04_resources/go.md", Title: "Go Concurrency"},
		{Path: "04_resources/sql.md", Title: "sql"},
	}, refs)
}

func TestMCPCreateAppendPing(t *testing.T) {
	f, gw := newFakeObsidian(t)
	ctx := context.Background()

	require.NoError(t, gw.Ping(ctx))
	require.NoError(t, gw.Create(ctx, "05_log/a.md", "one"))
	require.NoError(t, gw.Append(ctx, "05_log/a.md", " two"))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "one two", f.notes["05_log/a.md"])
}

func TestMCPUnreachable(t *testing.T) {
	gw := NewMCP("http://127.0.0.1:1/mcp", "", time.Second, nil, "test")
	_, err := gw.Read(context.Background(), "x.md")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestParseSearchFallsBackToPath(t *testing.T) {
	refs := parseSearch("**Path:** 04_resources/Deep Work.md\n**Path:**\n")
	assert.Equal(t, []NoteRef{{Path: "04_resources/Deep Work.md", Title: "Deep Work"}}, refs)
}

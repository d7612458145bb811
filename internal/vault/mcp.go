package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/sparkcoach/internal/logger"
)

// Tool names exposed by the Obsidian MCP server.
const (
	toolSearch = "obs_keyword_search"
	toolRead   = "obs_read_note"
	toolUpdate = "obs_update_note"
	toolCreate = "obs_create_note"
	toolAppend = "obs_append_note"
)

// MCP is a Gateway backed by an Obsidian MCP server over streamable HTTP.
type MCP struct {
	url     string
	apiKey  string
	timeout time.Duration
	log     *logger.Logger
	version string

	mu     sync.Mutex
	client *client.Client
	// serializes updates; each one rewrites the whole note
	writeMu sync.Mutex
}

// NewMCP returns a gateway for the server at url. The connection is opened
// on first use.
func NewMCP(url, apiKey string, timeout time.Duration, log *logger.Logger, version string) *MCP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MCP{url: url, apiKey: apiKey, timeout: timeout, log: log, version: version}
}

// conn returns an initialized client, connecting if needed.
func (m *MCP) conn(ctx context.Context) (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}

	var opts []transport.StreamableHTTPCOption
	if m.apiKey != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + m.apiKey,
		}))
	}
	c, err := client.NewStreamableHttpClient(m.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("mcp client: %w", err)
	}
	if err := c.Start(context.Background()); err != nil {
		c.Close()
		return nil, fmt.Errorf("mcp start: %w", err)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "sparkcoach", Version: m.version}
	if _, err := c.Initialize(ctx, init); err != nil {
		c.Close()
		return nil, fmt.Errorf("mcp initialize: %w", err)
	}
	m.client = c
	return c, nil
}

// reset drops the cached client so the next call reconnects.
func (m *MCP) reset(c *client.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == c {
		m.client.Close()
		m.client = nil
	}
}

// Close releases the underlying connection.
func (m *MCP) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

// call invokes a tool and returns its text output.
func (m *MCP) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	c, err := m.conn(ctx)
	if err != nil {
		return "", err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	start := time.Now()
	res, err := c.CallTool(ctx, req)
	if err != nil {
		m.log.Warn("mcp call failed", "tool", tool, "error", err)
		if ctx.Err() == nil {
			m.reset(c)
		}
		return "", fmt.Errorf("%s: %w", tool, err)
	}
	text := resultText(res)
	m.log.Debug("mcp call", "tool", tool, "duration_ms", time.Since(start).Milliseconds())

	if res.IsError {
		if isNotFound(text) {
			return "", fmt.Errorf("%s: %w", tool, ErrNotFound)
		}
		return "", fmt.Errorf("%s: %s", tool, strings.TrimSpace(text))
	}
	return text, nil
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func isNotFound(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "no such file")
}

func (m *MCP) Search(ctx context.Context, query, folder string) ([]NoteRef, error) {
	args := map[string]any{"keyword": query}
	if folder != "" {
		args["folder"] = folder
	}
	text, err := m.call(ctx, toolSearch, args)
	if err != nil {
		return nil, err
	}
	return parseSearch(text), nil
}

// parseSearch extracts note refs from the server's markdown listing: a
// "### N. Title.md" heading followed by a "**Path:** ..." line.
func parseSearch(text string) []NoteRef {
	lines := strings.Split(text, "\n")
	var refs []NoteRef
	for i, line := range lines {
		if !strings.HasPrefix(line, "**Path:**") {
			continue
		}
		p := strings.TrimSpace(strings.TrimPrefix(line, "**Path:**"))
		if p == "" {
			continue
		}
		title := ""
		if i > 0 && strings.HasPrefix(lines[i-1], "###") {
			title = strings.TrimSpace(strings.TrimPrefix(lines[i-1], "###"))
			title = strings.ReplaceAll(title, ".md", "")
			if idx := strings.LastIndex(title, ". "); idx >= 0 {
				title = title[idx+2:]
			}
		}
		if title == "" {
			title = TitleFromPath(p)
		}
		refs = append(refs, NoteRef{Path: p, Title: title})
	}
	return refs
}

func (m *MCP) Read(ctx context.Context, path string) (*Note, error) {
	text, err := m.call(ctx, toolRead, map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	return parseNote(path, stripReadHeader(text))
}

// stripReadHeader drops the "# Content of <path>" line the server prefixes
// to note text.
func stripReadHeader(text string) string {
	if !strings.HasPrefix(text, "# Content of") {
		return text
	}
	_, rest, found := strings.Cut(text, "\n")
	if !found {
		return ""
	}
	return strings.TrimLeft(rest, "\n")
}

func (m *MCP) Update(ctx context.Context, path string, patch map[string]any) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	note, err := m.Read(ctx, path)
	if err != nil {
		return err
	}
	merged, err := MergeFrontmatter(note.Raw, patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	_, err = m.call(ctx, toolUpdate, map[string]any{"path": path, "content": merged})
	return err
}

func (m *MCP) Create(ctx context.Context, path, content string) error {
	_, err := m.call(ctx, toolCreate, map[string]any{"path": path, "content": content})
	return err
}

func (m *MCP) Append(ctx context.Context, path, content string) error {
	_, err := m.call(ctx, toolAppend, map[string]any{"path": path, "content": content})
	return err
}

func (m *MCP) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	c, err := m.conn(ctx)
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			m.reset(c)
		}
		return fmt.Errorf("mcp ping: %w", err)
	}
	return nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI calls the Claude CLI (`claude -p`) as a subprocess.
type ClaudeCLI struct {
	binary  string
	model   string
	timeout time.Duration
}

// NewClaudeCLI creates a new Claude CLI provider.
func NewClaudeCLI(model string) *ClaudeCLI {
	if model == "" {
		model = "haiku"
	}
	return &ClaudeCLI{
		binary:  "claude",
		model:   model,
		timeout: 120 * time.Second,
	}
}

// Generate flattens the request into a single prompt on stdin. The CLI has
// no structured output mode, so the schema is described in the prompt and
// the reply is cleaned and validated.
func (c *ClaudeCLI) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt, err := cliPrompt(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.binary, "-p", "--model", c.model, "--max-turns", "1")
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = filterEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ErrProviderUnavailable{Err: fmt.Errorf("claude cli: %w (stderr: %s)", err, stderr.String())}
	}

	out := strings.TrimSpace(stdout.String())
	content := json.RawMessage(out)
	if req.Schema != nil {
		content = json.RawMessage(cleanJSON(out))
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}

	return &Response{Content: content, Model: c.model, StopReason: "end"}, nil
}

func (c *ClaudeCLI) ModelID() string {
	return c.model
}

func cliPrompt(req Request) (string, error) {
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	if req.Schema != nil {
		def, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return "", fmt.Errorf("marshal schema: %w", err)
		}
		fmt.Fprintf(&b, "Respond with ONLY a JSON value matching this JSON Schema, no other text:\n%s\n", def)
	}
	return b.String(), nil
}

// filterEnv removes CLAUDE_* environment variables so the subprocess does
// not inherit the parent session.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "CLAUDE_") {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

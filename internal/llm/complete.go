package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Complete asks for free text and returns it trimmed.
func Complete(ctx context.Context, p Provider, system, user string, maxTokens int, temperature float64) (string, error) {
	resp, err := p.Generate(ctx, userRequest(system, user, maxTokens, temperature))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(textContent(resp.Content)), nil
}

// CompleteStructured asks for JSON matching schema and decodes it into out.
// Output that cannot be decoded is reported as *ErrInvalidResponse.
func CompleteStructured(ctx context.Context, p Provider, system, user string, maxTokens int, schema *Schema, out any) error {
	req := userRequest(system, user, maxTokens, 0)
	req.Schema = schema

	resp, err := p.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Content, out); err != nil {
		return &ErrInvalidResponse{Schema: schema.Name, Content: resp.Content, Err: err}
	}
	return nil
}

// textContent returns free text carried in Content. Providers store raw
// text, but a JSON string literal is unwrapped as well.
func textContent(raw json.RawMessage) string {
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

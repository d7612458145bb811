package vault

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fence = "---"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// splitFrontmatter separates the YAML block from the body. The body starts
// right after the closing fence's line break and is otherwise untouched. ok
// is false when the text has no frontmatter.
func splitFrontmatter(raw string) (front, body string, ok bool) {
	text := strings.TrimPrefix(raw, "\ufeff")
	if !strings.HasPrefix(text, fence+"\n") && !strings.HasPrefix(text, fence+"\r\n") {
		return "", raw, false
	}
	rest := text[strings.IndexByte(text, '\n')+1:]

	// closing fence on its own line; an empty block closes immediately
	if strings.HasPrefix(rest, fence) {
		if after, ok := afterFence(rest[len(fence):]); ok {
			return "", after, true
		}
	}
	idx := strings.Index(rest, "\n"+fence)
	for idx >= 0 {
		end := idx + 1 + len(fence)
		if after, ok := afterFence(rest[end:]); ok {
			return rest[:idx+1], after, true
		}
		next := strings.Index(rest[end:], "\n"+fence)
		if next < 0 {
			break
		}
		idx = end + next
	}
	return "", raw, false
}

// afterFence reports whether s continues a fence line and returns the text
// after that line's terminator.
func afterFence(s string) (string, bool) {
	switch {
	case s == "":
		return "", true
	case strings.HasPrefix(s, "\r\n"):
		return s[2:], true
	case s[0] == '\n':
		return s[1:], true
	}
	return "", false
}

// ParseFrontmatter decodes the YAML frontmatter of raw into a map and
// returns the remaining body. Notes without frontmatter yield an empty map.
func ParseFrontmatter(raw string) (map[string]any, string, error) {
	front, body, ok := splitFrontmatter(raw)
	fm := map[string]any{}
	if !ok || strings.TrimSpace(front) == "" {
		return fm, strings.TrimSpace(body), nil
	}
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	for k, v := range fm {
		fm[k] = plainDates(v)
	}
	return fm, strings.TrimSpace(body), nil
}

// plainDates turns decoded timestamps back into the text form they have in
// the note: YYYY-MM-DD for midnight UTC, RFC3339 otherwise.
func plainDates(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.Equal(t.Truncate(24*time.Hour)) && t.Location() == time.UTC {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	case []any:
		for i := range t {
			t[i] = plainDates(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = plainDates(t[k])
		}
	}
	return v
}

// MergeFrontmatter applies patch to raw's frontmatter and returns the new
// note text. Existing keys keep their position, comments and untouched
// values; new keys are appended in sorted order. The body is unchanged.
func MergeFrontmatter(raw string, patch map[string]any) (string, error) {
	front, body, ok := splitFrontmatter(raw)

	var doc yaml.Node
	if ok && strings.TrimSpace(front) != "" {
		if err := yaml.Unmarshal([]byte(front), &doc); err != nil {
			return "", fmt.Errorf("parse frontmatter: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return "", fmt.Errorf("frontmatter is not a mapping")
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val, err := valueNode(patch[k])
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", k, err)
		}
		replaced := false
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == k {
				val.LineComment = mapping.Content[i+1].LineComment
				mapping.Content[i+1] = val
				replaced = true
				break
			}
		}
		if !replaced {
			mapping.Content = append(mapping.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, val)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	enc.Close()

	var out strings.Builder
	out.WriteString(fence + "\n")
	out.Write(buf.Bytes())
	out.WriteString(fence + "\n")
	if body != "" {
		out.WriteString(body)
	}
	return out.String(), nil
}

// valueNode encodes v, keeping YYYY-MM-DD strings as plain dates rather
// than quoted strings.
func valueNode(v any) (*yaml.Node, error) {
	if s, ok := v.(string); ok && dateRe.MatchString(s) {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: s}, nil
	}
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return &n, nil
}

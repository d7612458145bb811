package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goNote = `---
title: Go Concurrency
learning_status: active # tracked
last_reviewed: 2024-06-01
retention_estimate: 40
key_insights:
  - channels are typed conduits
  - goroutines are cheap
---
# Go Concurrency

Notes about channels.
`

func TestParseFrontmatter(t *testing.T) {
	fm, body, err := ParseFrontmatter(goNote)
	require.NoError(t, err)

	assert.Equal(t, "Go Concurrency", fm["title"])
	assert.Equal(t, "active", fm["learning_status"])
	assert.Equal(t, "2024-06-01", fm["last_reviewed"])
	assert.Equal(t, 40, fm["retention_estimate"])
	assert.Len(t, fm["key_insights"], 2)
	assert.True(t, strings.HasPrefix(body, "# Go Concurrency"))
}

func TestParseFrontmatterMissing(t *testing.T) {
	fm, body, err := ParseFrontmatter("just a body\n")
	require.NoError(t, err)
	assert.Empty(t, fm)
	assert.Equal(t, "just a body", body)

	fm, body, err = ParseFrontmatter("---\n---\nbody")
	require.NoError(t, err)
	assert.Empty(t, fm)
	assert.Equal(t, "body", body)
}

func TestParseFrontmatterInvalid(t *testing.T) {
	_, _, err := ParseFrontmatter("---\ntitle: [unclosed\n---\nbody")
	assert.Error(t, err)
}

func TestMergeFrontmatterPreservesFields(t *testing.T) {
	out, err := MergeFrontmatter(goNote, map[string]any{
		"abandonment_risk": "high",
		"last_reviewed":    "2024-06-10",
		"review_count":     3,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "last_reviewed: 2024-06-10\n")
	assert.NotContains(t, out, `"2024-06-10"`)
	assert.Contains(t, out, "abandonment_risk: high")
	assert.Contains(t, out, "review_count: 3")
	assert.Contains(t, out, "learning_status: active # tracked")
	assert.Contains(t, out, "# Go Concurrency\n\nNotes about channels.")

	// original key order is kept, new keys follow
	assert.Less(t, strings.Index(out, "title:"), strings.Index(out, "last_reviewed:"))
	assert.Less(t, strings.Index(out, "key_insights:"), strings.Index(out, "abandonment_risk:"))
	assert.Less(t, strings.Index(out, "abandonment_risk:"), strings.Index(out, "review_count:"))

	fm, _, err := ParseFrontmatter(out)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", fm["last_reviewed"])
	assert.Equal(t, 40, fm["retention_estimate"])
	assert.Len(t, fm["key_insights"], 2)
}

func TestMergeFrontmatterNoExistingBlock(t *testing.T) {
	out, err := MergeFrontmatter("plain body", map[string]any{"abandonment_risk": "low"})
	require.NoError(t, err)
	assert.Equal(t, "---\nabandonment_risk: low\n---\nplain body", out)
}

func TestMergeFrontmatterKeepsBodySeparator(t *testing.T) {
	raw := "---\ntitle: Go\n---\n\n# Heading\n\ntext\n"
	out, err := MergeFrontmatter(raw, map[string]any{"abandonment_risk": "high"})
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Go\nabandonment_risk: high\n---\n\n# Heading\n\ntext\n", out)

	// a second write leaves the body alone as well
	again, err := MergeFrontmatter(out, map[string]any{"abandonment_risk": "low"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(again, "---\n\n# Heading\n\ntext\n"))
}

func TestMergeFrontmatterCRLF(t *testing.T) {
	out, err := MergeFrontmatter("---\r\ntitle: Go\r\n---\r\n\r\nbody", map[string]any{"review_count": 1})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "---\n\r\nbody"), out)
}

func TestParseFrontmatterBOM(t *testing.T) {
	fm, body, err := ParseFrontmatter("\ufeff---\ntitle: Go\n---\nbody")
	require.NoError(t, err)
	assert.Equal(t, "Go", fm["title"])
	assert.Equal(t, "body", body)
}

func TestParseFrontmatterDates(t *testing.T) {
	fm, _, err := ParseFrontmatter("---\nlast_reviewed: 2024-06-01\nnext_review: \"2024-06-08\"\nseen_at: 2024-06-01T10:30:00Z\nreviews:\n  - 2024-05-01\n---\n")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", fm["last_reviewed"])
	assert.Equal(t, "2024-06-08", fm["next_review"])
	assert.Equal(t, "2024-06-01T10:30:00Z", fm["seen_at"])
	assert.Equal(t, []any{"2024-05-01"}, fm["reviews"])
}

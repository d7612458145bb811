package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lazypower/sparkcoach/internal/llm"
	"github.com/lazypower/sparkcoach/internal/store"
)

// NudgeTypeAbandonment marks nudges raised for high-risk resources.
const NudgeTypeAbandonment = "abandonment"

const (
	DefaultNudgeLimit = 10
	MaxNudgeLimit     = 100
)

// NudgeMessage is the outcome of composing a nudge. Fallback is set when the
// text came from the template; Err then holds the generation failure, if any.
type NudgeMessage struct {
	Text     string
	Fallback bool
	Err      error
}

// Nudger writes and tracks re-engagement nudges.
type Nudger struct {
	deps *Deps
}

// FallbackNudge is the message used when text generation is unavailable.
func FallbackNudge(title string, days int) string {
	return fmt.Sprintf("It's been %d days since you last reviewed \"%s\". Ready to pick up where you left off? Just 5 minutes to refresh your memory.", days, title)
}

// motivation describes why the learner cared about r.
func motivation(r Resource) string {
	if len(r.KeyInsights) > 0 {
		insights := r.KeyInsights
		if len(insights) > 2 {
			insights = insights[:2]
		}
		return "Key insights they noted: " + strings.Join(insights, "; ")
	}
	if r.LearningPath != "" {
		return fmt.Sprintf("Part of their %s learning path", r.LearningPath)
	}
	return "A resource they chose to study"
}

// Compose asks the text generator for a nudge and falls back to the
// template on any failure. It never fails.
func (n *Nudger) Compose(ctx context.Context, r Resource, days int) NudgeMessage {
	if n.deps.LLM == nil {
		return NudgeMessage{Text: FallbackNudge(r.Title, days), Fallback: true}
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeNudge)
	text, err := llm.Complete(ctx, n.deps.LLM, llm.NudgeSystemPrompt,
		llm.NudgePrompt(r.Title, days, motivation(r)), llm.NudgeMaxTokens, llm.NudgeTemperature)
	if err == nil && text == "" {
		err = errors.New("empty nudge text")
	}
	if err != nil {
		n.deps.log().Warn("nudge generation failed, using template", "path", r.Path, "error", err)
		return NudgeMessage{Text: FallbackNudge(r.Title, days), Fallback: true, Err: err}
	}
	return NudgeMessage{Text: text}
}

// Create composes and stores an undelivered nudge for r.
func (n *Nudger) Create(ctx context.Context, r Resource, days int) (*store.Nudge, error) {
	msg := n.Compose(ctx, r, days)
	nudge := &store.Nudge{
		ResourcePath: r.Path,
		NudgeType:    NudgeTypeAbandonment,
		Message:      msg.Text,
		Fallback:     msg.Fallback,
		CreatedAt:    n.deps.now().UnixMilli(),
	}
	if err := n.deps.Store.CreateNudge(ctx, nudge); err != nil {
		return nil, err
	}
	return nudge, nil
}

// Pending returns undelivered nudges, newest first. limit defaults to 10 and
// is capped at 100.
func (n *Nudger) Pending(ctx context.Context, limit int) ([]store.Nudge, error) {
	if limit <= 0 {
		limit = DefaultNudgeLimit
	}
	if limit > MaxNudgeLimit {
		limit = MaxNudgeLimit
	}
	return n.deps.Store.ListPendingNudges(ctx, limit)
}

// MarkDelivered flags the given nudges as delivered now. Unknown or already
// delivered ids are ignored. It returns how many nudges changed.
func (n *Nudger) MarkDelivered(ctx context.Context, ids []int64) (int, error) {
	return n.deps.Store.MarkNudgesDelivered(ctx, ids, n.deps.now().UnixMilli())
}

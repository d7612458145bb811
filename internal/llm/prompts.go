package llm

import (
	"fmt"
	"strings"
)

const (
	QuestionContentLimit = 3000
	ScoringContentLimit  = 1500
)

// QuestionsSchema constrains generated quiz questions.
var QuestionsSchema = &Schema{
	Name:        "quiz-questions",
	Description: "Quiz questions testing understanding of a learning resource",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question":              map[string]any{"type": "string", "minLength": 1},
						"type":                  map[string]any{"type": "string", "enum": []any{"recall", "application", "connection"}},
						"difficulty":            map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
						"expected_answer_hints": map[string]any{"type": "string"},
					},
					"required":             []any{"question", "type", "difficulty", "expected_answer_hints"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

// ScoreSchema constrains answer grading output.
var ScoreSchema = &Schema{
	Name:        "quiz-score",
	Description: "Grade of a learner's answer to a quiz question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"correct":  map[string]any{"type": "boolean"},
			"feedback": map[string]any{"type": "string"},
		},
		"required":             []any{"score", "correct", "feedback"},
		"additionalProperties": false,
	},
}

const QuestionSystemPrompt = `You are a learning coach writing quiz questions that test real understanding of a resource the learner has studied. Mix question types:
- recall: remember a key fact or definition
- application: apply a concept to a new situation
- connection: relate an idea to something else the learner knows
Questions must be answerable from the resource. Return only JSON.`

// QuestionPrompt builds the user prompt for question generation.
func QuestionPrompt(title, content string, n int, difficulty string) string {
	return fmt.Sprintf(`Resource: %q

Content:
%s

Write %d %s-difficulty questions about this resource. For each give the question, its type (recall, application or connection), its difficulty, and short hints describing what a good answer should include.`,
		title, Truncate(content, QuestionContentLimit), n, difficulty)
}

const ScoreSystemPrompt = `You are grading a learner's answer to a quiz question about material they studied. Score from 0 to 100:
- 90-100: excellent, complete and accurate
- 70-89: good, mostly correct with minor gaps
- 50-69: partial, some understanding but notable gaps
- 30-49: weak, significant misunderstanding
- 0-29: incorrect or unrelated
Mark correct true when the score is 70 or above. Give one or two sentences of encouraging, specific feedback. Return only JSON.`

// ScorePrompt builds the user prompt for grading one answer.
func ScorePrompt(question, hints, answer, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	if hints != "" {
		fmt.Fprintf(&b, "Expected answer should include: %s\n\n", hints)
	}
	fmt.Fprintf(&b, "Learner's answer: %s\n\n", answer)
	fmt.Fprintf(&b, "Source material:\n%s", Truncate(content, ScoringContentLimit))
	return b.String()
}

const (
	NudgeSystemPrompt = `You are a supportive learning coach. Write a short, warm nudge (2-3 sentences) encouraging the learner to return to a resource they have not touched in a while. Reference why it interested them and suggest one concrete micro-action they can do in five minutes. No guilt, no greeting, no sign-off.`
	NudgeMaxTokens    = 256
	NudgeTemperature  = 0.9
)

// NudgePrompt builds the user prompt for a re-engagement nudge.
func NudgePrompt(title string, daysInactive int, motivation string) string {
	return fmt.Sprintf("Resource: %q\nDays inactive: %d\nMotivation: %s", title, daysInactive, motivation)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

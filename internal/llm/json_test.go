package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", `Sure! Here you go: {"a":"}"} hope that helps`, `{"a":"}"}`},
		{"nested", `x {"a":{"b":[1,{"c":2}]}} y`, `{"a":{"b":[1,{"c":2}]}}`},
		{"escaped quote", `ok {"a":"say \"hi\" }"} done`, `{"a":"say \"hi\" }"}`},
		{"no json", `nothing here`, `nothing here`},
		{"unbalanced", `{"a":1`, `{"a":1`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, cleanJSON(c.in))
		})
	}
}

func TestValidateResponse(t *testing.T) {
	good := json.RawMessage(`{"questions":[{"question":"What is a goroutine?","type":"recall","difficulty":"easy","expected_answer_hints":"lightweight thread"}]}`)
	assert.NoError(t, validateResponse(QuestionsSchema, good))

	badEnum := json.RawMessage(`{"questions":[{"question":"Q","type":"essay","difficulty":"easy","expected_answer_hints":""}]}`)
	var inv *ErrInvalidResponse
	assert.ErrorAs(t, validateResponse(QuestionsSchema, badEnum), &inv)

	assert.ErrorAs(t, validateResponse(QuestionsSchema, json.RawMessage(`not json`)), &inv)
	assert.NoError(t, validateResponse(nil, json.RawMessage(`anything`)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
}

func TestPromptsIncludeInputs(t *testing.T) {
	q := QuestionPrompt("Go Concurrency", "channels and goroutines", 3, "medium")
	assert.Contains(t, q, `"Go Concurrency"`)
	assert.Contains(t, q, "3 medium-difficulty")

	s := ScorePrompt("What is a channel?", "typed conduit", "a pipe", "content")
	assert.Contains(t, s, "Expected answer should include: typed conduit")
	assert.Contains(t, s, "Learner's answer: a pipe")

	noHints := ScorePrompt("Q", "", "A", "C")
	assert.NotContains(t, noHints, "Expected answer")

	n := NudgePrompt("Go Concurrency", 15, "Part of their Backend learning journey")
	assert.Contains(t, n, "Days inactive: 15")
}

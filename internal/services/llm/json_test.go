package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONDirect(t *testing.T) {
	result, err := ExtractJSON(`{"answer": [[1, 2]], "reasoning": "mirror"}`)
	require.NoError(t, err)
	assert.Equal(t, "mirror", result["reasoning"])
}

func TestExtractJSONFencedBlock(t *testing.T) {
	text := "Here is my answer:\n```json\n{\"answer\": \"blue\", \"confidence\": 0.9}\n```\nHope that helps."
	result, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "blue", result["answer"])
	assert.Equal(t, 0.9, result["confidence"])
}

func TestExtractJSONFencedWithoutLanguageTag(t *testing.T) {
	text := "```\n{\"rule\": \"rotate 90\"}\n```"
	result, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "rotate 90", result["rule"])
}

func TestExtractJSONLeadingProse(t *testing.T) {
	text := `After studying the examples, the transformation is a reflection.
{"answer": [[0]], "reasoning": "reflection across the vertical axis"}`
	result, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Contains(t, result, "answer")
}

func TestExtractJSONNestedBracesInStrings(t *testing.T) {
	text := `{"reasoning": "the pattern {a} maps to {b}", "answer": "ok"}`
	result, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "ok", result["answer"])
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("I cannot solve this puzzle.")
	require.Error(t, err)
}

func TestBuildSystemInstructionCustomOverrides(t *testing.T) {
	config := testJobConfig("solver")
	config.CustomPrompt = "Answer with a haiku."
	assert.Equal(t, "Answer with a haiku.", buildSystemInstruction(config))
}

func TestBuildSystemInstructionUnknownFallsBack(t *testing.T) {
	known := buildSystemInstruction(testJobConfig("solver"))
	unknown := buildSystemInstruction(testJobConfig("no-such-prompt"))
	assert.Equal(t, known, unknown)

	classifier := buildSystemInstruction(testJobConfig("classifier"))
	assert.NotEqual(t, known, classifier)
}

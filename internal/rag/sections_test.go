package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAnswer(t *testing.T) {
	text := `## Answer
Versioning keeps every revision of an object.

## Key Points
- Enabled per bucket
- Suspending keeps existing versions

## Recommendations
Enable versioning before writing production data.

## Sources
Source 1, Source 3

## Related Questions
How do I delete a specific object version?`

	s := SplitAnswer(text)

	assert.Equal(t, "Versioning keeps every revision of an object.", s.Answer)
	assert.Contains(t, s.KeyPoints, "Enabled per bucket")
	assert.Contains(t, s.Recommendations, "Enable versioning")
	assert.Equal(t, "Source 1, Source 3", s.Sources)
	assert.Contains(t, s.RelatedQuestions, "delete a specific object version")
}

func TestSplitAnswer_PreambleAndMissingSections(t *testing.T) {
	s := SplitAnswer("The excerpts do not cover this topic.")

	assert.Equal(t, "The excerpts do not cover this topic.", s.Answer)
	assert.Empty(t, s.KeyPoints)
	assert.Empty(t, s.Sources)
}

func TestSplitAnswer_UnknownHeadingStaysInPlace(t *testing.T) {
	text := `## Answer
Use lifecycle rules.

## Caveats
Transitions are not instant.`

	s := SplitAnswer(text)

	assert.Contains(t, s.Answer, "Use lifecycle rules.")
	assert.Contains(t, s.Answer, "## Caveats")
	assert.Contains(t, s.Answer, "Transitions are not instant.")
}

func TestSplitAnswer_HeadingCaseInsensitive(t *testing.T) {
	s := SplitAnswer("## answer\nYes.\n\n## KEY POINTS\n- one")

	assert.Equal(t, "Yes.", s.Answer)
	assert.Equal(t, "- one", s.KeyPoints)
}

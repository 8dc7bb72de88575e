package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		fallback string
		want     string
	}{
		{
			name:     "level-1 heading on first line",
			content:  "# Amazon S3 User Guide\n\nSome intro text.",
			fallback: "doc-1",
			want:     "Amazon S3 User Guide",
		},
		{
			name:     "level-1 heading after preamble",
			content:  "Generated 2024-01-01.\n\n# EC2 Instances\n\nBody.",
			fallback: "doc-2",
			want:     "EC2 Instances",
		},
		{
			name:     "only deeper headings falls back",
			content:  "## Section One\n\nBody text.",
			fallback: "doc-3",
			want:     "doc-3",
		},
		{
			name:     "no headings at all falls back",
			content:  "Plain text without structure.",
			fallback: "doc-4",
			want:     "doc-4",
		},
		{
			name:     "empty content falls back",
			content:  "",
			fallback: "doc-5",
			want:     "doc-5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentTitle(tt.content, tt.fallback))
		})
	}
}

func TestParseSections(t *testing.T) {
	t.Run("splits on headings up to level 3", func(t *testing.T) {
		content := "# Guide\n\nIntro paragraph.\n\n## Setup\n\nSetup text.\n\n### Details\n\nDetail text.\n"

		sections := ParseSections(content, "doc-1")

		require.Len(t, sections, 3)
		assert.Equal(t, "Guide", sections[0].Title)
		assert.Equal(t, 1, sections[0].Level)
		assert.Equal(t, "Setup", sections[1].Title)
		assert.Equal(t, 2, sections[1].Level)
		assert.Equal(t, "Details", sections[2].Title)
		assert.Equal(t, 3, sections[2].Level)
	})

	t.Run("deep headings stay inside the parent body", func(t *testing.T) {
		content := "## Limits\n\nGeneral limits.\n\n#### Per-region\n\nRegion limits.\n"

		sections := ParseSections(content, "doc-1")

		require.Len(t, sections, 1)
		assert.Contains(t, sections[0].Body, "#### Per-region")
		assert.Contains(t, sections[0].Body, "Region limits.")
	})

	t.Run("preamble becomes a leading section titled like the document", func(t *testing.T) {
		content := "Release notes preamble.\n\n# CloudFront Guide\n\nBody text.\n"

		sections := ParseSections(content, "doc-1")

		require.Len(t, sections, 2)
		assert.Equal(t, "CloudFront Guide", sections[0].Title)
		assert.Contains(t, sections[0].Body, "Release notes preamble.")
		assert.Equal(t, "CloudFront Guide", sections[1].Title)
	})

	t.Run("ordinals are contiguous from zero", func(t *testing.T) {
		content := "# A\n\ntext\n\n## B\n\ntext\n\n## C\n\ntext\n"

		sections := ParseSections(content, "doc-1")

		require.Len(t, sections, 3)
		for i, sec := range sections {
			assert.Equal(t, i, sec.Ordinal)
		}
	})

	t.Run("section body keeps its heading line", func(t *testing.T) {
		sections := ParseSections("## Pricing\n\nPer request.\n", "doc-1")

		require.Len(t, sections, 1)
		assert.True(t, strings.HasPrefix(sections[0].Body, "## Pricing"))
	})

	t.Run("empty and whitespace content yield no sections", func(t *testing.T) {
		assert.Nil(t, ParseSections("", "doc-1"))
		assert.Nil(t, ParseSections("  \n\t\n", "doc-1"))
	})

	t.Run("malformed heading marker is body text", func(t *testing.T) {
		content := "# Real Heading\n\n#NotAHeading no space after marker.\n"

		sections := ParseSections(content, "doc-1")

		require.Len(t, sections, 1)
		assert.Contains(t, sections[0].Body, "#NotAHeading")
	})
}

func TestSplitParagraphs(t *testing.T) {
	t.Run("splits on blank lines", func(t *testing.T) {
		paragraphs := splitParagraphs("First paragraph.\n\nSecond paragraph.\n\nThird.")

		require.Len(t, paragraphs, 3)
		assert.Equal(t, "First paragraph.", paragraphs[0])
	})

	t.Run("fenced code block with blank lines stays whole", func(t *testing.T) {
		body := "Intro.\n\n```go\nfunc a() {}\n\nfunc b() {}\n```\n\nOutro."

		paragraphs := splitParagraphs(body)

		require.Len(t, paragraphs, 3)
		assert.Contains(t, paragraphs[1], "func a() {}")
		assert.Contains(t, paragraphs[1], "func b() {}")
	})

	t.Run("unclosed fence is emitted rather than dropped", func(t *testing.T) {
		paragraphs := splitParagraphs("```\ncode start\n\nmore code")

		require.Len(t, paragraphs, 1)
		assert.Contains(t, paragraphs[0], "more code")
	})

	t.Run("blank input yields nothing", func(t *testing.T) {
		assert.Empty(t, splitParagraphs("\n\n  \n\n"))
	})
}

func TestSplitSentences(t *testing.T) {
	t.Run("splits at terminator followed by whitespace", func(t *testing.T) {
		sentences := splitSentences("First sentence. Second sentence! Third one?")

		require.Len(t, sentences, 3)
		assert.Equal(t, "First sentence.", sentences[0])
		assert.Equal(t, "Second sentence!", sentences[1])
		assert.Equal(t, "Third one?", sentences[2])
	})

	t.Run("terminator without following space does not split", func(t *testing.T) {
		sentences := splitSentences("Version 1.2 supports this")

		require.Len(t, sentences, 1)
	})

	t.Run("paragraph without terminators is one sentence", func(t *testing.T) {
		sentences := splitSentences("a bare fragment with no ending")

		require.Len(t, sentences, 1)
		assert.Equal(t, "a bare fragment with no ending", sentences[0])
	})
}

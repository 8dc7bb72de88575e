package chunk

import (
	"regexp"
	"strings"
)

// headingPattern matches markdown headings: # Title, ## Title, etc.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// maxBoundaryLevel is the deepest heading level that starts a new section.
// Deeper headings are kept as body content so small subsections stay with
// their parent.
const maxBoundaryLevel = 3

// DocumentTitle extracts the main title from markdown content: the first
// level-1 heading, or fallback if none exists.
func DocumentTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if m := headingPattern.FindStringSubmatch(line); m != nil && len(m[1]) == 1 {
			return strings.TrimSpace(m[2])
		}
	}
	return fallback
}

// ParseSections splits markdown content into heading-delimited sections.
// Headings of level 1-3 start a new section; deeper headings are body
// content. A section's body runs from its heading up to (but excluding)
// the next boundary heading. Text before the first heading becomes a
// leading section titled with the document title so no content is lost.
// Malformed heading markers are treated literally; an empty document
// yields no sections.
func ParseSections(content, docID string) []Section {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	title := DocumentTitle(content, docID)
	lines := strings.Split(content, "\n")

	var sections []Section
	var current *Section
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimRight(body.String(), "\n")
		if strings.TrimSpace(current.Body) != "" {
			current.Ordinal = len(sections)
			sections = append(sections, *current)
		}
		body.Reset()
		current = nil
	}

	for _, line := range lines {
		m := headingPattern.FindStringSubmatch(strings.TrimRight(line, " \t"))
		if m != nil && len(m[1]) <= maxBoundaryLevel {
			flush()
			current = &Section{
				DocID: docID,
				Title: strings.TrimSpace(m[2]),
				Level: len(m[1]),
			}
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}

		if current == nil {
			// Preamble before the first boundary heading.
			current = &Section{
				DocID: docID,
				Title: title,
				Level: 1,
			}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// splitParagraphs splits a body into paragraphs on blank lines, keeping
// fenced code blocks intact even when they contain blank lines.
func splitParagraphs(body string) []string {
	parts := strings.Split(body, "\n\n")

	var paragraphs []string
	var fence strings.Builder
	inFence := false

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		if inFence {
			fence.WriteString("\n\n")
			fence.WriteString(trimmed)
			if strings.Count(trimmed, "```")%2 == 1 {
				paragraphs = append(paragraphs, fence.String())
				fence.Reset()
				inFence = false
			}
			continue
		}

		if strings.Count(trimmed, "```")%2 == 1 {
			inFence = true
			fence.WriteString(trimmed)
			continue
		}

		paragraphs = append(paragraphs, trimmed)
	}

	// Unclosed fence: emit what we have rather than dropping it.
	if inFence {
		paragraphs = append(paragraphs, fence.String())
	}

	return paragraphs
}

// splitSentences splits a paragraph at sentence boundaries: a terminator
// (. ! ?) followed by whitespace. The terminator stays with its sentence.
func splitSentences(paragraph string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(paragraph)
	for i, r := range runes {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(runes) && isSpace(runes[i+1]) {
				s := strings.TrimSpace(current.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

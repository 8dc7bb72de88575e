package rag

import "strings"

// Sections is the generated answer decomposed along the headings the
// prompt asks for. A section the model omitted stays empty.
type Sections struct {
	Answer           string `json:"answer"`
	KeyPoints        string `json:"key_points"`
	Recommendations  string `json:"recommendations"`
	Sources          string `json:"sources"`
	RelatedQuestions string `json:"related_questions"`
}

// SplitAnswer decomposes generated text along its "## " headings. Text
// before the first heading, and any unrecognized heading, folds into the
// Answer section so nothing the model wrote is lost.
func SplitAnswer(text string) Sections {
	var s Sections
	bufs := map[string]*strings.Builder{
		"answer":            {},
		"key points":        {},
		"recommendations":   {},
		"sources":           {},
		"related questions": {},
	}

	current := "answer"
	for _, line := range strings.Split(text, "\n") {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "## "); ok {
			key := strings.ToLower(strings.TrimSpace(title))
			if _, known := bufs[key]; known {
				current = key
				continue
			}
			// Unknown heading stays in the current section verbatim.
		}
		buf := bufs[current]
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
	}

	s.Answer = strings.TrimSpace(bufs["answer"].String())
	s.KeyPoints = strings.TrimSpace(bufs["key points"].String())
	s.Recommendations = strings.TrimSpace(bufs["recommendations"].String())
	s.Sources = strings.TrimSpace(bufs["sources"].String())
	s.RelatedQuestions = strings.TrimSpace(bufs["related questions"].String())
	return s
}

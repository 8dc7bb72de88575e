package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vibhup/docrag/internal/errors"
	"github.com/vibhup/docrag/internal/token"
)

// Chunker transforms documents into token-bounded, overlap-preserving
// chunks. It performs no I/O and holds no mutable state across calls, so
// one Chunker may be shared by concurrent document workers.
type Chunker struct {
	opts    Options
	counter token.Counter
}

// New creates a chunker using the given token counter.
func New(counter token.Counter, opts Options) *Chunker {
	return &Chunker{
		opts:    opts.withDefaults(),
		counter: counter,
	}
}

// unit is an indivisible span accumulated into a chunk buffer: a whole
// paragraph, or a single sentence when the paragraph alone exceeds the
// chunk ceiling.
type unit struct {
	text     string
	tokens   int
	sentence bool // joined with a space instead of a blank line
}

// piece is a chunk before ordinals and totals are assigned.
type piece struct {
	section      int
	sectionTitle string
	body         string
	tokens       int
	overlap      bool
	oversized    bool
}

// ChunkDocument splits one document into chunks. An empty document yields
// no chunks and no error. Ordinals and the total chunk count are assigned
// only once the whole document has been processed.
func (c *Chunker) ChunkDocument(doc Document) ([]Chunk, error) {
	if doc.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidDocument, "document has no identifier", nil)
	}

	sections := ParseSections(doc.Content, doc.ID)
	if len(sections) == 0 {
		return nil, nil
	}

	var pieces []piece
	for _, sec := range sections {
		pieces = append(pieces, c.chunkSection(sec)...)
	}

	pieces = c.mergeSmall(pieces)

	return c.finalize(doc, pieces), nil
}

// chunkSection emits one or more pieces for a section. A section that fits
// within MaxTokens becomes a single piece; larger sections are split at
// paragraph boundaries, falling back to sentence boundaries for paragraphs
// that alone exceed the ceiling.
func (c *Chunker) chunkSection(sec Section) []piece {
	secTokens := c.counter.Count(sec.Body)
	if secTokens <= c.opts.MaxTokens {
		return []piece{{
			section:      sec.Ordinal,
			sectionTitle: sec.Title,
			body:         sec.Body,
			tokens:       secTokens,
		}}
	}

	units := c.sectionUnits(sec.Body)

	var pieces []piece
	var buf []unit
	bufTokens := 0
	carried := false
	part := 1

	closeBuf := func(carryForward bool) {
		if len(buf) == 0 {
			return
		}
		pieces = append(pieces, piece{
			section:      sec.Ordinal,
			sectionTitle: partTitle(sec.Title, part),
			body:         joinUnits(buf),
			tokens:       bufTokens,
			overlap:      carried,
		})
		part++

		var next []unit
		nextTokens := 0
		if carryForward {
			next, _ = c.overlapTail(buf)
			if len(next) > 0 {
				// The carried prefix is accounted as its joined text so the
				// separators it will be emitted with are charged too.
				nextTokens = c.counter.Count(joinUnits(next))
			}
		}
		buf = next
		bufTokens = nextTokens
		carried = len(next) > 0
	}

	// joinCost is the token price of appending u to the current buffer,
	// including the separator it will be joined with.
	joinCost := func(u unit) int {
		if len(buf) == 0 {
			return u.tokens
		}
		if u.sentence {
			return c.counter.Count(" ") + u.tokens
		}
		return c.counter.Count("\n\n") + u.tokens
	}

	for _, u := range units {
		// One unbreakable sentence over the ceiling: emit it whole with a
		// violation flag. Dropping content is worse than an oversized chunk.
		if u.tokens > c.opts.MaxTokens {
			closeBuf(false)
			pieces = append(pieces, piece{
				section:      sec.Ordinal,
				sectionTitle: partTitle(sec.Title, part),
				body:         u.text,
				tokens:       u.tokens,
				oversized:    true,
			})
			part++
			carried = false
			continue
		}

		if len(buf) > 0 && bufTokens+joinCost(u) > c.opts.MaxTokens {
			closeBuf(true)
			// The carry is best-effort: drop it when even the carried
			// prefix plus this unit would break the ceiling.
			if len(buf) > 0 && bufTokens+joinCost(u) > c.opts.MaxTokens {
				buf = nil
				bufTokens = 0
				carried = false
			}
		}

		bufTokens += joinCost(u)
		buf = append(buf, u)
	}
	closeBuf(false)

	return pieces
}

// sectionUnits decomposes a section body into accumulation units:
// paragraphs, with oversized paragraphs expanded to sentences.
func (c *Chunker) sectionUnits(body string) []unit {
	var units []unit
	for _, para := range splitParagraphs(body) {
		pTokens := c.counter.Count(para)
		if pTokens <= c.opts.MaxTokens {
			units = append(units, unit{text: para, tokens: pTokens})
			continue
		}

		for i, sent := range splitSentences(para) {
			units = append(units, unit{
				text:     sent,
				tokens:   c.counter.Count(sent),
				sentence: i > 0,
			})
		}
	}
	return units
}

// overlapTail returns the trailing units of a closed buffer whose combined
// token count fits within OverlapTokens, to be carried as the prefix of
// the next chunk. Returns nothing when even the last unit is larger than
// the overlap window. The carry is always a proper suffix: the first
// buffered unit never carries, so consecutive chunks cannot repeat each
// other wholesale however large the window is.
func (c *Chunker) overlapTail(buf []unit) ([]unit, int) {
	total := 0
	start := len(buf)
	for i := len(buf) - 1; i >= 1; i-- {
		if total+buf[i].tokens > c.opts.OverlapTokens {
			break
		}
		total += buf[i].tokens
		start = i
	}
	if start == len(buf) {
		return nil, 0
	}

	tail := make([]unit, len(buf)-start)
	copy(tail, buf[start:])
	return tail, total
}

// mergeSmall merges sub-minimum pieces with a neighbor: a small trailing
// remainder rejoins its own section's previous piece, and two adjacent
// small pieces from different sections merge when their sum stays under
// the ceiling. Section boundaries are otherwise kept intact, and the final
// piece of a document may legitimately stay below the minimum.
func (c *Chunker) mergeSmall(pieces []piece) []piece {
	if len(pieces) < 2 {
		return pieces
	}

	sepTokens := c.counter.Count("\n\n")

	out := make([]piece, 0, len(pieces))
	for _, p := range pieces {
		if len(out) > 0 && !p.oversized {
			prev := &out[len(out)-1]
			sameSection := prev.section == p.section
			bothSmall := prev.tokens < c.opts.MinChunkTokens && p.tokens < c.opts.MinChunkTokens
			trailingSmall := sameSection && p.tokens < c.opts.MinChunkTokens

			if !prev.oversized && (trailingSmall || bothSmall) &&
				prev.tokens+sepTokens+p.tokens <= c.opts.MaxTokens {
				prev.body = prev.body + "\n\n" + p.body
				prev.tokens += sepTokens + p.tokens
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// finalize assigns identifiers, ordinals and the document-wide total, and
// recounts tokens after merging. The total is known only at this point.
func (c *Chunker) finalize(doc Document, pieces []piece) []Chunk {
	if len(pieces) == 0 {
		return nil
	}

	docTitle := DocumentTitle(doc.Content, doc.ID)
	idBase := chunkIDBase(doc.ID)

	meta := doc.Meta
	if meta.SourceFile == "" {
		meta.SourceFile = doc.SourceFile
	}
	if meta.ProcessedAt.IsZero() {
		meta.ProcessedAt = time.Now().UTC()
	}

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		// The recount on the joined body is authoritative. A recount over
		// the ceiling carries the violation flag rather than a silent lie.
		tokens := c.counter.Count(p.body)
		chunks[i] = Chunk{
			ID:           fmt.Sprintf("%s_%03d", idBase, i+1),
			DocID:        doc.ID,
			DocTitle:     docTitle,
			SectionTitle: p.sectionTitle,
			Body:         p.body,
			TokenCount:   tokens,
			CharCount:    len(p.body),
			Ordinal:      i + 1,
			TotalChunks:  len(pieces),
			Overlap:      p.overlap,
			Oversized:    p.oversized || tokens > c.opts.MaxTokens,
			Metadata:     meta,
		}
	}
	return chunks
}

// chunkIDBase derives a stable ID prefix from the document identifier.
func chunkIDBase(docID string) string {
	sum := sha256.Sum256([]byte(docID))
	return hex.EncodeToString(sum[:])[:8]
}

// partTitle names continuation pieces of a split section.
func partTitle(title string, part int) string {
	if part == 1 {
		return title
	}
	return fmt.Sprintf("%s (Part %d)", title, part)
}

// joinUnits reassembles buffered units: paragraphs separated by blank
// lines, continuation sentences by a space.
func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			if u.sentence {
				b.WriteString(" ")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}

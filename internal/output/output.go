// Package output provides consistent CLI output formatting for query
// responses and indexing runs.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vibhup/docrag/internal/index"
	"github.com/vibhup/docrag/internal/rag"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Rule prints a horizontal separator.
func (w *Writer) Rule() {
	_, _ = fmt.Fprintln(w.out, strings.Repeat("─", 60))
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Response prints a query response: the synthesized answer followed by
// the retrieved sources. With verbose set, the execution trace is
// appended.
func (w *Writer) Response(resp *rag.Response, verbose bool) {
	_, _ = fmt.Fprintln(w.out, resp.Answer)
	w.Newline()

	if len(resp.Sources) > 0 {
		w.Rule()
		_, _ = fmt.Fprintf(w.out, "Retrieved %d document(s)\n", resp.DocumentsRetrieved)
		for _, src := range resp.Sources {
			_, _ = fmt.Fprintf(w.out, "  [%d] %s", src.Number, src.Title)
			if src.Section != "" && src.Section != src.Title {
				_, _ = fmt.Fprintf(w.out, " › %s", src.Section)
			}
			_, _ = fmt.Fprintf(w.out, " (%.1f%%)\n", src.Similarity)
			if src.SourceFile != "" {
				_, _ = fmt.Fprintf(w.out, "      %s\n", src.SourceFile)
			}
		}
	}

	if verbose {
		w.Newline()
		w.Rule()
		w.trace(resp)
	}
}

func (w *Writer) trace(resp *rag.Response) {
	t := resp.TechnicalDetails
	_, _ = fmt.Fprintf(w.out, "Model: %s\n", resp.ModelUsed)
	_, _ = fmt.Fprintf(w.out, "Total: %.2fs\n", t.TotalDuration)
	for _, step := range t.Steps {
		_, _ = fmt.Fprintf(w.out, "  %6.2fs  %-12s %s\n", step.SinceStart, step.Status, step.Step)
	}
	for _, call := range t.APICalls {
		_, _ = fmt.Fprintf(w.out, "  %6.2fs  api          %s/%s\n", call.SinceStart, call.Service, call.Operation)
	}
	for name, value := range t.Metrics {
		_, _ = fmt.Fprintf(w.out, "  metric  %s=%g\n", name, value)
	}
}

// Stats prints an indexing run summary.
func (w *Writer) Stats(stats *index.Stats) {
	w.Rule()
	_, _ = fmt.Fprintf(w.out, "Documents processed: %d\n", stats.DocumentsProcessed)
	if stats.DocumentsFailed > 0 {
		_, _ = fmt.Fprintf(w.out, "Documents failed:    %d\n", stats.DocumentsFailed)
	}
	_, _ = fmt.Fprintf(w.out, "Chunks created:      %d\n", stats.ChunksCreated)
	_, _ = fmt.Fprintf(w.out, "Vectors indexed:     %d\n", stats.VectorsIndexed)
	if stats.OversizedChunks > 0 {
		_, _ = fmt.Fprintf(w.out, "Oversized chunks:    %d\n", stats.OversizedChunks)
	}
	_, _ = fmt.Fprintf(w.out, "Tokens embedded:     %d\n", stats.TokensEmbedded)
	_, _ = fmt.Fprintf(w.out, "Duration:            %.2fs\n", stats.DurationSeconds)

	for _, f := range stats.Failures {
		w.Errorf("%s: %s", f.File, f.Error)
	}
}

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/authcrawl/internal/model"
)

// TextWriter prints each result on its own line, in discovery order.
// With WithSummary it also prints a short run summary after the results.
type TextWriter struct {
	baseWriter

	summary bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithSummary appends the run summary after the results.
func WithSummary(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.summary = show
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the results of report.
func (w *TextWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder
	for _, result := range report.Results {
		sb.WriteString(result)
		sb.WriteString("\n")
	}
	if w.summary {
		w.writeSummary(&sb, report)
	}
	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Run:      %s\n", report.RunID)
	fmt.Fprintf(sb, "Host:     %s\n", report.Host)
	fmt.Fprintf(sb, "Status:   %s\n", report.Status())
	fmt.Fprintf(sb, "Results:  %d/%d\n", len(report.Results), report.TargetCount)
	fmt.Fprintf(sb, "Requests: %d (retries %d, reconnects %d)\n",
		report.Stats.Requests, report.Stats.Retries, report.Stats.Reconnects)
	fmt.Fprintf(sb, "Pages:    %d accepted, %d skipped, %d redirected\n",
		report.Stats.Accepted, report.Stats.Skipped, report.Stats.Redirected)
	fmt.Fprintf(sb, "Duration: %s\n", report.Duration().Round(time.Millisecond))
	if report.Error != "" {
		fmt.Fprintf(sb, "Error:    %s\n", report.Error)
	}
}

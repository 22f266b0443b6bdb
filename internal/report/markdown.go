package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/authcrawl/internal/model"
)

// maxVisitRows bounds the visits table; longer runs are summarized.
const maxVisitRows = 200

// MarkdownWriter outputs reports in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeResults(md, report)
	w.writeStats(md, report)
	w.writeVisits(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + report.RunID + "`"},
			{"Host", "`" + report.Host + "`"},
			{"Start Path", "`" + report.StartPath + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	switch report.Status() {
	case "aborted":
		md.Cautionf("The crawl was aborted after %d result(s): %s", len(report.Results), report.Error)
	case "partial":
		md.Warningf("The frontier was exhausted with %d of %d result(s).", len(report.Results), report.TargetCount)
	default:
		md.Tip("All requested results were found.")
	}
	md.PlainText("")
}

// statusText returns the status with a visual indicator.
func statusText(report *model.CrawlReport) string {
	switch report.Status() {
	case "aborted":
		return "❌ Aborted"
	case "partial":
		return "⚠️ Partial"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Results")
	md.PlainText("")

	if len(report.Results) == 0 {
		md.PlainText("No results found.")
		md.PlainText("")
		return
	}

	items := make([]string, len(report.Results))
	for i, r := range report.Results {
		items[i] = "`" + r + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, report *model.CrawlReport) {
	s := report.Stats

	md.H2("Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Requests", strconv.Itoa(s.Requests)},
			{"Accepted", strconv.Itoa(s.Accepted)},
			{"Skipped", strconv.Itoa(s.Skipped)},
			{"Redirected", strconv.Itoa(s.Redirected)},
			{"Retries", strconv.Itoa(s.Retries)},
			{"Reconnects", strconv.Itoa(s.Reconnects)},
		},
	})
	md.PlainText("")

	if s.Accepted+s.Skipped+s.Redirected == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)
	if s.Accepted > 0 {
		chart.LabelAndIntValue("Accepted", uint64(s.Accepted))
	}
	if s.Skipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(s.Skipped))
	}
	if s.Redirected > 0 {
		chart.LabelAndIntValue("Redirected", uint64(s.Redirected))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeVisits(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Visits) == 0 {
		return
	}

	md.H2("Visits")
	md.PlainText("")

	visits := report.Visits
	if len(visits) > maxVisitRows {
		visits = visits[:maxVisitRows]
	}

	rows := make([][]string, len(visits))
	for i, v := range visits {
		rows[i] = []string{
			"`" + v.Path + "`",
			v.Status,
			v.Outcome.String(),
			strconv.Itoa(v.Attempts),
			orDash(v.Location),
			orDash(v.Marker),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Path", "Status", "Outcome", "Attempts", "Location", "Result"},
		Rows:   rows,
	})
	md.PlainText("")

	if n := len(report.Visits) - len(visits); n > 0 {
		md.Note(strconv.Itoa(n) + " more visit(s) omitted. Use the JSON report for the full list.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [authcrawl](https://github.com/nao1215/authcrawl)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

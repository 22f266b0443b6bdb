// Package report renders a model.CrawlReport.
//
// Writers:
//   - TextWriter: one result per line, optionally followed by a summary
//   - JSONWriter / FullJSONWriter: machine readable output
//   - MarkdownWriter: a shareable document with tables and a mermaid chart
//
// All writers implement Writer and can be combined with MultiWriter.
// NewWriter selects a writer by Format.
package report

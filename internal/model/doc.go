// Package model defines the data structures shared by the crawler, the
// database and the report writers.
//
// This package contains the following main types:
//   - Outcome: the terminal state of a crawled path
//   - Visit: one path that reached a terminal outcome
//   - CrawlReport: the result of a whole crawl run
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model

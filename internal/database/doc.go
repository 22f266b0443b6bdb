// Package database provides SQLite-based crawl history for authcrawl.
//
// This package implements the CrawlDB, which stores:
//   - Runs: one row per crawl with its settings, status and full report
//   - Visits: every target that reached a terminal outcome
//   - Results: the unique marker values found by a run
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file and the binary cross-compiles.
//
// CrawlDB satisfies the crawler's Recorder interface, so visits and results
// are written while the crawl is running and survive an aborted run.
package database

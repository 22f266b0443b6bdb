package model

import (
	"time"

	"github.com/google/uuid"
)

// CrawlReport is the result of one crawl run.
type CrawlReport struct {
	// RunID uniquely identifies the run in the database.
	RunID string `json:"run_id"`

	// Host is the crawled host name.
	Host string `json:"host"`

	// StartPath is the first path placed in the frontier.
	StartPath string `json:"start_path"`

	// TargetCount is the number of results the run was looking for.
	TargetCount int `json:"target_count"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Results holds the unique result strings in discovery order.
	Results []string `json:"results"`

	// Visits holds every target that reached a terminal outcome.
	Visits []Visit `json:"visits,omitempty"`

	// Stats summarizes the run.
	Stats Stats `json:"stats"`

	// Complete is true when TargetCount results were found.
	Complete bool `json:"complete"`

	// Error is set when the run was aborted.
	Error string `json:"error,omitempty"`
}

// Stats counts what happened during a run.
type Stats struct {
	Requests   int `json:"requests"`
	Accepted   int `json:"accepted"`
	Skipped    int `json:"skipped"`
	Redirected int `json:"redirected"`
	Retries    int `json:"retries"`
	Reconnects int `json:"reconnects"`
}

// NewCrawlReport creates a report with a fresh run ID.
func NewCrawlReport(host, startPath string, targetCount int) *CrawlReport {
	return &CrawlReport{
		RunID:       uuid.NewString(),
		Host:        host,
		StartPath:   startPath,
		TargetCount: targetCount,
		StartedAt:   time.Now(),
		Results:     make([]string, 0),
		Visits:      make([]Visit, 0),
	}
}

// Duration returns how long the run took.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status returns a one-word summary of the run.
func (r *CrawlReport) Status() string {
	switch {
	case r.Error != "":
		return "aborted"
	case r.Complete:
		return "complete"
	default:
		return "partial"
	}
}

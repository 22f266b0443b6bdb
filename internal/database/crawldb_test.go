package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/authcrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newRun creates and starts a run in db.
func newRun(t *testing.T, db *CrawlDB, host string) *model.CrawlReport {
	t.Helper()

	report := model.NewCrawlReport(host, "/fakebook/", 2)
	if err := db.StartRun(context.Background(), report); err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		report := newRun(t, db, "example.com")
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].ID != report.RunID {
			t.Errorf("expected the stored run, got %+v", runs)
		}
	})
}

// TestRunLifecycle tests storing a run from start to finish.
func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	report := newRun(t, db, "fring.ccs.neu.edu")

	visits := []model.Visit{
		{Path: "/fakebook/", Status: "200", Outcome: model.OutcomeAccepted, Attempts: 1, Marker: "flag1", Hash: "abc", Timestamp: time.Now()},
		{Path: "/old/", Status: "301", Outcome: model.OutcomeRedirected, Attempts: 1, Location: "/new/", Timestamp: time.Now()},
		{Path: "/gone/", Status: "404", Outcome: model.OutcomeSkipped, Attempts: 2, Timestamp: time.Now()},
	}
	for _, v := range visits {
		if err := db.RecordVisit(ctx, report.RunID, v); err != nil {
			t.Fatalf("failed to record visit: %v", err)
		}
	}
	for _, value := range []string{"flag1", "flag2", "flag1"} {
		if err := db.RecordResult(ctx, report.RunID, value, "/fakebook/"); err != nil {
			t.Fatalf("failed to record result: %v", err)
		}
	}

	report.Results = []string{"flag1", "flag2"}
	report.Complete = true
	report.FinishedAt = time.Now()
	if err := db.FinishRun(ctx, report); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	t.Run("results are unique and ordered", func(t *testing.T) {
		t.Parallel()

		results, err := db.GetResults(ctx, report.RunID)
		if err != nil {
			t.Fatalf("failed to get results: %v", err)
		}
		got := make([]string, 0, len(results))
		for _, r := range results {
			got = append(got, r.Value)
		}
		if diff := cmp.Diff([]string{"flag1", "flag2"}, got); diff != "" {
			t.Errorf("results mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("visits round trip", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetVisits(ctx, report.RunID)
		if err != nil {
			t.Fatalf("failed to get visits: %v", err)
		}
		if len(got) != len(visits) {
			t.Fatalf("expected %d visits, got %d", len(visits), len(got))
		}
		if got[1].Outcome != model.OutcomeRedirected || got[1].Location != "/new/" {
			t.Errorf("unexpected redirect visit %+v", got[1])
		}
		if got[0].Marker != "flag1" || got[0].Hash != "abc" {
			t.Errorf("unexpected accepted visit %+v", got[0])
		}
		if got[2].Attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", got[2].Attempts)
		}
	})

	t.Run("summary reflects the finished run", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, 10)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		r := runs[0]
		if r.Status != "complete" || r.ResultCount != 2 || r.FinishedAt.IsZero() {
			t.Errorf("unexpected summary %+v", r)
		}
	})

	t.Run("stored report", func(t *testing.T) {
		t.Parallel()

		stored, err := db.GetRunReport(ctx, report.RunID)
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}
		if diff := cmp.Diff(report.Results, stored.Results); diff != "" {
			t.Errorf("results mismatch (-want +got):\n%s", diff)
		}
		if stored.Host != "fring.ccs.neu.edu" {
			t.Errorf("unexpected host %q", stored.Host)
		}
	})
}

// TestGetRunReport tests lookups of unknown and unfinished runs.
func TestGetRunReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	if _, err := db.GetRunReport(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	report := newRun(t, db, "example.com")
	if _, err := db.GetRunReport(ctx, report.RunID); err == nil {
		t.Error("expected error for an unfinished run")
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if runs[0].Status != "running" {
		t.Errorf("expected running status, got %q", runs[0].Status)
	}
}

// TestFinishRunUnknown tests finishing a run that was never started.
func TestFinishRunUnknown(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	report := model.NewCrawlReport("example.com", "/", 1)
	if err := db.FinishRun(context.Background(), report); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// TestListRuns tests ordering and limits.
func TestListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	var ids []string
	for i := range 3 {
		report := model.NewCrawlReport("example.com", "/", 1)
		report.StartedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if err := db.StartRun(ctx, report); err != nil {
			t.Fatalf("failed to start run: %v", err)
		}
		ids = append(ids, report.RunID)
	}

	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	got := []string{runs[0].ID, runs[1].ID}
	if diff := cmp.Diff([]string{ids[2], ids[1]}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

// TestKnownResults tests aggregation of results across runs of a host.
func TestKnownResults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	first := newRun(t, db, "a.example")
	second := newRun(t, db, "a.example")
	other := newRun(t, db, "b.example")

	record := func(run *model.CrawlReport, value string) {
		t.Helper()
		if err := db.RecordResult(ctx, run.RunID, value, "/"); err != nil {
			t.Fatalf("failed to record result: %v", err)
		}
	}
	record(first, "x")
	record(first, "y")
	record(second, "y")
	record(second, "z")
	record(other, "w")

	got, err := db.KnownResults(ctx, "a.example")
	if err != nil {
		t.Fatalf("failed to get known results: %v", err)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, got); diff != "" {
		t.Errorf("known results mismatch (-want +got):\n%s", diff)
	}
}

// TestParseTimestamp tests parsing stored timestamps.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	if got := parseTimestamp(formatTimestamp(want)); !got.Equal(want) {
		t.Errorf("round trip mismatch: got %v, want %v", got, want)
	}
	if got := parseTimestamp("2026-03-04 05:06:07"); got.IsZero() {
		t.Error("expected SQLite datetime format to parse")
	}
	if got := parseTimestamp("garbage"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}

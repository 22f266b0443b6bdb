package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/authcrawl/internal/config"
	"github.com/nao1215/authcrawl/internal/database"
	"github.com/nao1215/authcrawl/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded crawl runs",
		Long: `History reads the crawl database written by 'authcrawl crawl'.

Without arguments it lists the most recent runs. With a run ID it prints
the results of that run, or its full report with --json or --markdown.

Examples:
  # List the last 20 runs
  authcrawl history

  # Print the results of a run
  authcrawl history 0b5e2c4e-8a59-4df4-9a7e-3c1f4f0d2a11

  # Print the visits of a run
  authcrawl history --visits 0b5e2c4e-8a59-4df4-9a7e-3c1f4f0d2a11

  # Every result ever found on a host
  authcrawl history --host fring.ccs.neu.edu`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Number of runs to list (0 lists all)")
	cmd.Flags().String("host", "", "Print every result recorded for this host")
	cmd.Flags().Bool("visits", false, "Print the visits of the run instead of its results")
	cmd.Flags().BoolP("json", "j", false, "Print the stored report as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Print the stored report as Markdown")
	cmd.Flags().String("db-dir", "", "Directory of the crawl history database (default: XDG data directory)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	host, err := flags.GetString("host")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	showVisits, err := flags.GetBool("visits")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	// Validate arguments before opening the database
	if host != "" && len(args) > 0 {
		return fmt.Errorf("--host and a run ID cannot be combined")
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case host != "":
		return printKnownResults(ctx, out, db, host)
	case len(args) == 0:
		return printRuns(ctx, out, db, limit)
	case showVisits:
		return printVisits(ctx, out, db, args[0])
	case jsonOutput:
		return printStoredReport(ctx, out, db, args[0], report.FormatJSON)
	case markdownOutput:
		return printStoredReport(ctx, out, db, args[0], report.FormatMarkdown)
	default:
		return printResults(ctx, out, db, args[0])
	}
}

// printRuns lists stored runs, newest first.
func printRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		fmt.Fprintln(out, "\nUse 'authcrawl crawl <username> <password>' to start one.")
		return nil
	}

	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-7s  %s\n", "ID", "Started", "Status", "Results", "Host")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 96))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-7s  %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			fmt.Sprintf("%d/%d", r.ResultCount, r.TargetCount),
			r.Host,
		)
	}
	return nil
}

// printResults prints the results of a run, one per line.
func printResults(ctx context.Context, out io.Writer, db *database.CrawlDB, runID string) error {
	results, err := db.GetResults(ctx, runID)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintln(out, r.Value)
	}
	return nil
}

// printVisits prints every recorded visit of a run.
func printVisits(ctx context.Context, out io.Writer, db *database.CrawlDB, runID string) error {
	visits, err := db.GetVisits(ctx, runID)
	if err != nil {
		return err
	}
	for _, v := range visits {
		line := fmt.Sprintf("%-10s %s %s", v.Outcome, v.Status, v.Path)
		if v.Location != "" {
			line += " -> " + v.Location
		}
		if v.Marker != "" {
			line += " [" + v.Marker + "]"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// printStoredReport renders the stored report of a finished run.
func printStoredReport(ctx context.Context, out io.Writer, db *database.CrawlDB, runID string, format report.Format) error {
	stored, err := db.GetRunReport(ctx, runID)
	if err != nil {
		return err
	}
	w, err := report.NewWriter(format, out, getVersion())
	if err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// printKnownResults prints every distinct result recorded for host.
func printKnownResults(ctx context.Context, out io.Writer, db *database.CrawlDB, host string) error {
	values, err := db.KnownResults(ctx, host)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		fmt.Fprintf(out, "No results recorded for %s\n", host)
		return nil
	}
	for _, v := range values {
		fmt.Fprintln(out, v)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/authcrawl/internal/config"
	"github.com/nao1215/authcrawl/internal/crawler"
	"github.com/nao1215/authcrawl/internal/database"
	"github.com/nao1215/authcrawl/internal/log"
	"github.com/nao1215/authcrawl/internal/metrics"
	"github.com/nao1215/authcrawl/internal/model"
	"github.com/nao1215/authcrawl/internal/report"
	"github.com/nao1215/authcrawl/internal/session"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [username] [password]",
		Short: "Log in and crawl a site for marked results",
		Long: `Crawl logs in with the given account, then visits every page reachable
from the start path breadth-first, printing the text of each element
carrying the marker class until the target count is reached.

Pages answering 500 are retried, 403 and 404 are skipped and 301 is
followed through its Location header. Links to other hosts are never
followed.

Examples:
  # Crawl the default host
  authcrawl crawl alice s3cret

  # Crawl a local server with four connections
  authcrawl crawl --host 127.0.0.1 --port 8080 --workers 4 alice s3cret

  # Keep the password out of the process list
  AUTHCRAWL_PASSWORD=s3cret authcrawl crawl alice

  # Reuse an existing session instead of logging in
  authcrawl crawl --cookie "sessionid=abc123"

  # Write a Markdown report to a file
  authcrawl crawl -m -o report.md alice s3cret`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .authcrawl in current or home directory)")

	// Target
	cmd.Flags().StringP("host", "H", config.DefaultHost, "Host to crawl")
	cmd.Flags().IntP("port", "P", config.DefaultPort, "TCP port of the host")
	cmd.Flags().String("cookie", "", "Session cookie to start with (name=value; name=value)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")

	// Crawl behavior
	cmd.Flags().StringP("start", "s", config.DefaultStartPath, "First path to crawl")
	cmd.Flags().String("marker", config.DefaultMarkerClass, "Class of the element holding a result")
	cmd.Flags().IntP("target", "n", config.DefaultTargetCount, "Stop after this many results (0 crawls everything)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Number of concurrent connections")
	cmd.Flags().Int("max-retries", 0, "Retries of a page answering 500 (0 is unlimited)")
	cmd.Flags().Duration("retry-backoff", 0, "Initial delay between retries of a page answering 500")
	cmd.Flags().Duration("delay", 0, "Minimum interval between requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout of each dial, send and receive")
	cmd.Flags().Int("buffer-size", config.DefaultBufferSize, "Size of each socket read")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path; results are still printed (creates directories if needed)")

	// History
	cmd.Flags().String("db-dir", "", "Directory of the crawl history database (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the history database")

	// Metrics
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics of the run to this file (node_exporter textfile format)")

	// Logging
	cmd.Flags().String("log-format", config.LogFormatText, "Log format written to stderr (text or json)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a logger that masks session secrets, writing JSON
// lines when format is config.LogFormatJSON.
func setupLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	if format == config.LogFormatJSON {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// buildConfig layers defaults, the configuration file, the environment,
// explicitly set flags and the positional credentials, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path must exist; otherwise a missing file means defaults
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}
	config.ApplyEnv(cfg, os.Getenv)

	stringFlags := map[string]*string{
		"host":         &cfg.Host,
		"cookie":       &cfg.Cookie,
		"proxy":        &cfg.ProxyAddress,
		"start":        &cfg.StartPath,
		"marker":       &cfg.MarkerClass,
		"db-dir":       &cfg.DBDir,
		"metrics-file": &cfg.MetricsFile,
		"log-format":   &cfg.LogFormat,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	intFlags := map[string]*int{
		"port":        &cfg.Port,
		"target":      &cfg.TargetCount,
		"workers":     &cfg.Workers,
		"max-retries": &cfg.MaxRetries,
		"buffer-size": &cfg.BufferSize,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetInt(name); err != nil {
			return nil, err
		}
	}

	durationFlags := map[string]*time.Duration{
		"timeout":       &cfg.Timeout,
		"retry-backoff": &cfg.RetryBackoff,
		"delay":         &cfg.CrawlDelay,
	}
	for name, dst := range durationFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetDuration(name); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.Verbose = getVerboseFlag(cmd)

	if len(args) > 0 {
		cfg.Username = args[0]
	}
	if len(args) > 1 {
		cfg.Password = args[1]
	}
	return cfg, nil
}

// engineOptions translates cfg into crawler options.
func engineOptions(cfg *config.Config, logger *slog.Logger) []crawler.Option {
	return []crawler.Option{
		crawler.WithStartPath(cfg.StartPath),
		crawler.WithMarkerClass(cfg.MarkerClass),
		crawler.WithTargetCount(cfg.TargetCount),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithBufferSize(cfg.BufferSize),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithProxy(cfg.ProxyAddress),
		crawler.WithMaxRetries(cfg.MaxRetries),
		crawler.WithRetryBackoff(cfg.RetryBackoff),
		crawler.WithCrawlDelay(cfg.CrawlDelay),
		crawler.WithCookie(cfg.Cookie),
		crawler.WithLoginForm(session.Form{
			EntryPath:  cfg.LoginEntryPath,
			ActionPath: cfg.LoginActionPath,
			NextPath:   cfg.LoginNextPath,
			TokenField: cfg.TokenField,
		}),
		crawler.WithLogger(logger),
	}
}

// runCrawl performs one crawl and writes its report to out. With
// cfg.ReportFile set the report goes to that file and out still receives
// the results. The report is written even when the crawl
// fails, so that partial results are not lost.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	opts := engineOptions(cfg, logger)

	var (
		db       *database.CrawlDB
		known    map[string]struct{}
		recorder crawler.Recorder
	)
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())

		known = knownResults(ctx, db, cfg.Host, logger)
		recorder = db
	}

	var collector *metrics.Collector
	if cfg.MetricsFile != "" {
		collector = metrics.NewCollector(recorder)
		recorder = collector
	}
	if recorder != nil {
		opts = append(opts, crawler.WithRecorder(recorder))
	}

	logger.Info("starting crawl",
		"host", cfg.Host,
		"port", cfg.Port,
		"start", cfg.StartPath,
		"target", cfg.TargetCount,
		"workers", cfg.Workers,
	)

	engine := crawler.NewEngine(cfg.Host, cfg.Port, opts...)
	crawlReport, crawlErr := engine.Run(ctx, session.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
	})

	if known != nil {
		logger.Info("compared with history", "results", len(crawlReport.Results),
			"new", countNew(crawlReport.Results, known))
	}

	if collector != nil {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		} else {
			logger.Info("metrics written", "path", cfg.MetricsFile)
		}
	}

	if err := outputReport(cfg, crawlReport, out); err != nil {
		logger.Error("report failed", "error", err)
		if crawlErr == nil {
			return err
		}
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl failed: %w", crawlErr)
	}
	return nil
}

// knownResults loads the results previous runs found on host. A lookup
// failure only costs the comparison.
func knownResults(ctx context.Context, db *database.CrawlDB, host string, logger *slog.Logger) map[string]struct{} {
	values, err := db.KnownResults(ctx, host)
	if err != nil {
		logger.Warn("failed to load previous results", "host", host, "error", err)
		return nil
	}
	known := make(map[string]struct{}, len(values))
	for _, v := range values {
		known[v] = struct{}{}
	}
	return known
}

// countNew counts results absent from known.
func countNew(results []string, known map[string]struct{}) int {
	n := 0
	for _, r := range results {
		if _, ok := known[r]; !ok {
			n++
		}
	}
	return n
}

// reportFormat returns the format selected by cfg.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// outputReport writes crawlReport in the configured format. A report file
// does not replace the result lines on stdout.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	format := reportFormat(cfg)
	if cfg.ReportFile == "" {
		w, err := report.NewWriter(format, stdout, getVersion())
		if err != nil {
			return err
		}
		_, err = w.Write(crawlReport)
		return err
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Results may be secrets of the crawled account
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	var fileWriter report.Writer
	if format == report.FormatText {
		fileWriter = report.NewTextWriter(f, report.WithSummary(true))
	} else if fileWriter, err = report.NewWriter(format, f, getVersion()); err != nil {
		return err
	}

	_, err = report.NewMultiWriter(fileWriter, report.NewTextWriter(stdout)).Write(crawlReport)
	return err
}

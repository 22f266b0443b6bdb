package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/authcrawl/internal/model"
	"github.com/nao1215/authcrawl/internal/session"
	"github.com/nao1215/authcrawl/internal/wire"
)

// Default engine settings.
const (
	DefaultStartPath   = "/fakebook/"
	DefaultMarkerClass = "secret_flag"
	DefaultTargetCount = 5
	DefaultWorkers     = 1
	DefaultTimeout     = 30 * time.Second
)

// Recorder receives crawl progress as it happens. Errors are logged and
// never abort the crawl.
type Recorder interface {
	RecordVisit(ctx context.Context, runID string, visit model.Visit) error
	RecordResult(ctx context.Context, runID, value, path string) error
}

// RunTracker is implemented by Recorders that also persist the run itself.
// StartRun is called before the first request and FinishRun after the
// report is final.
type RunTracker interface {
	StartRun(ctx context.Context, report *model.CrawlReport) error
	FinishRun(ctx context.Context, report *model.CrawlReport) error
}

// Engine crawls one host. An Engine may be reused; each Run starts from an
// empty State.
type Engine struct {
	host string
	port int

	startPath   string
	markerClass string
	targetCount int
	workers     int
	bufferSize  int
	timeout     time.Duration

	// proxyAddress is a SOCKS5 proxy, or "" for a direct connection.
	proxyAddress string

	// maxRetries caps 500 retries per target. Zero means unlimited.
	maxRetries int

	// retryBackoff is the initial delay before re-requesting a target that
	// answered 500. Zero retries immediately.
	retryBackoff time.Duration

	// crawlDelay is the minimum interval between two requests of the
	// whole crawl, across workers.
	crawlDelay time.Duration

	form   session.Form
	cookie string

	recorder Recorder
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStartPath sets the first path of the crawl.
func WithStartPath(path string) Option {
	return func(e *Engine) {
		e.startPath = path
	}
}

// WithMarkerClass sets the class of the element holding a result.
func WithMarkerClass(class string) Option {
	return func(e *Engine) {
		e.markerClass = class
	}
}

// WithTargetCount sets the number of results after which the crawl stops.
// Zero or less crawls until the frontier is exhausted.
func WithTargetCount(n int) Option {
	return func(e *Engine) {
		e.targetCount = n
	}
}

// WithWorkers sets the number of concurrent connections.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBufferSize sets the size of each socket read.
func WithBufferSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.bufferSize = n
		}
	}
}

// WithTimeout bounds each dial, send and receive.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithProxy routes every connection through a SOCKS5 proxy.
func WithProxy(address string) Option {
	return func(e *Engine) {
		e.proxyAddress = address
	}
}

// WithMaxRetries caps the number of retries of a target answering 500.
// A target exceeding the cap is skipped. Zero means unlimited.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.maxRetries = n
	}
}

// WithRetryBackoff enables exponential backoff between retries, starting
// at initial.
func WithRetryBackoff(initial time.Duration) Option {
	return func(e *Engine) {
		e.retryBackoff = initial
	}
}

// WithCrawlDelay spaces requests at least d apart.
func WithCrawlDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.crawlDelay = d
	}
}

// WithLoginForm overrides the login form layout.
func WithLoginForm(form session.Form) Option {
	return func(e *Engine) {
		e.form = form
	}
}

// WithCookie seeds the cookie jar from a "name=value; name=value" header.
// With a seeded cookie and no username the login step is skipped.
func WithCookie(header string) Option {
	return func(e *Engine) {
		e.cookie = header
	}
}

// WithRecorder sets a Recorder notified of every visit and result.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine for host:port.
func NewEngine(host string, port int, opts ...Option) *Engine {
	e := &Engine{
		host:        host,
		port:        port,
		startPath:   DefaultStartPath,
		markerClass: DefaultMarkerClass,
		targetCount: DefaultTargetCount,
		workers:     DefaultWorkers,
		bufferSize:  wire.DefaultBufferSize,
		timeout:     DefaultTimeout,
		form:        session.DefaultForm(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run logs in with creds and crawls until the target count is reached or
// the frontier is exhausted. The returned report is never nil; on error it
// holds what was collected before the failure.
func (e *Engine) Run(ctx context.Context, creds session.Credentials) (*model.CrawlReport, error) {
	report := model.NewCrawlReport(e.host, e.startPath, e.targetCount)

	r := &run{
		engine:   e,
		report:   report,
		state:    NewState(e.startPath, e.targetCount),
		jar:      session.NewJar(e.logger),
		backoffs: make(map[string]*backoff.ExponentialBackOff),
	}
	if e.crawlDelay > 0 {
		r.limiter = rate.NewLimiter(rate.Every(e.crawlDelay), 1)
	}

	tracker, _ := e.recorder.(RunTracker)
	if tracker != nil {
		if err := tracker.StartRun(ctx, report); err != nil {
			e.logger.Warn("failed to store run, progress will not be recorded", "run_id", report.RunID, "error", err)
			tracker = nil
			r.silent = true
		}
	}

	err := r.execute(ctx, creds)

	report.FinishedAt = time.Now()
	report.Results = r.state.Results()
	// Without a target count, exhausting the frontier is the goal
	report.Complete = r.state.Reached() || (e.targetCount <= 0 && err == nil)
	if err != nil {
		report.Error = err.Error()
	}

	if tracker != nil {
		// The crawl context may already be cancelled; the run must still be closed.
		if ferr := tracker.FinishRun(context.WithoutCancel(ctx), report); ferr != nil {
			e.logger.Warn("failed to finish stored run", "run_id", report.RunID, "error", ferr)
		}
	}

	e.logger.Info("crawl finished",
		"run_id", report.RunID,
		"status", report.Status(),
		"results", len(report.Results),
		"visited", r.state.VisitedCount(),
		"requests", report.Stats.Requests,
		"duration", report.Duration().Round(time.Millisecond),
	)
	return report, err
}

// run holds the per-Run state shared by all workers.
type run struct {
	engine  *Engine
	report  *model.CrawlReport
	state   *State
	jar     *session.Jar
	limiter *rate.Limiter

	// silent disables the recorder after StartRun failed.
	silent bool

	// mu guards report.Visits, report.Stats and backoffs.
	mu       sync.Mutex
	backoffs map[string]*backoff.ExponentialBackOff
}

func (r *run) execute(ctx context.Context, creds session.Credentials) error {
	e := r.engine
	if e.startPath == "" {
		return ErrNoStartPath
	}
	if creds.Username == "" && e.cookie == "" {
		return ErrNoCredentials
	}
	if e.cookie != "" {
		r.jar.Seed(e.cookie)
	}

	first, err := r.newWorker(ctx, 0)
	if err != nil {
		return err
	}

	if creds.Username != "" {
		auth := session.NewAuthenticator(e.host, e.form, e.logger)
		if err := auth.Login(ctx, first, r.jar, creds); err != nil {
			first.close()
			return fmt.Errorf("login: %w", err)
		}
	} else {
		e.logger.Info("skipping login, using seeded session cookie", "jar_size", r.jar.Len())
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, r.state.Stop)
	defer stop()

	g.Go(func() error {
		defer first.close()
		return first.loop(gctx)
	})
	for i := 1; i < e.workers; i++ {
		g.Go(func() error {
			w, err := r.newWorker(gctx, i)
			if err != nil {
				return err
			}
			defer w.close()
			return w.loop(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	return nil
}

// throttle waits for the crawl delay, if any.
func (r *run) throttle(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// retryDelay returns how long to wait before re-requesting path.
func (r *run) retryDelay(path string) time.Duration {
	if r.engine.retryBackoff <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backoffs[path]
	if !ok {
		b = backoff.NewExponentialBackOff()
		b.InitialInterval = r.engine.retryBackoff
		b.MaxInterval = 32 * r.engine.retryBackoff
		r.backoffs[path] = b
	}
	d := b.NextBackOff()
	if d == backoff.Stop {
		return b.MaxInterval
	}
	return d
}

// count updates the run statistics.
func (r *run) count(f func(*model.Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(&r.report.Stats)
}

// record stores a terminal visit and, when new, its result.
func (r *run) record(ctx context.Context, visit model.Visit, newResult bool) {
	r.mu.Lock()
	r.report.Visits = append(r.report.Visits, visit)
	switch visit.Outcome {
	case model.OutcomeAccepted:
		r.report.Stats.Accepted++
	case model.OutcomeSkipped:
		r.report.Stats.Skipped++
	case model.OutcomeRedirected:
		r.report.Stats.Redirected++
	}
	delete(r.backoffs, visit.Path)
	r.mu.Unlock()

	rec := r.engine.recorder
	if rec == nil || r.silent {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := rec.RecordVisit(ctx, r.report.RunID, visit); err != nil {
		r.engine.logger.Warn("failed to record visit", "path", visit.Path, "error", err)
	}
	if newResult {
		if err := rec.RecordResult(ctx, r.report.RunID, visit.Marker, visit.Path); err != nil {
			r.engine.logger.Warn("failed to record result", "path", visit.Path, "error", err)
		}
	}
}

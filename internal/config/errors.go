package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoHost is returned when the host to crawl is empty.
	ErrNoHost = errors.New("no host specified")

	// ErrInvalidPort is returned when the port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrNoCredentials is returned when there is neither a username nor a
	// session cookie to crawl with.
	ErrNoCredentials = errors.New("no credentials: provide a username and password or a session cookie")

	// ErrNoPassword is returned when a username is given without a password.
	ErrNoPassword = errors.New("no password specified for username")

	// ErrNoStartPath is returned when the start path is empty or not absolute.
	ErrNoStartPath = errors.New("invalid start path: must begin with '/'")

	// ErrNoMarkerClass is returned when the marker class is empty.
	ErrNoMarkerClass = errors.New("no marker class specified")

	// ErrInvalidTargetCount is returned when the target count is negative.
	// Zero means crawl until the frontier is exhausted.
	ErrInvalidTargetCount = errors.New("invalid target count: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidBufferSize is returned when the receive buffer size is not positive.
	ErrInvalidBufferSize = errors.New("invalid buffer size: must be positive")

	// ErrInvalidMaxRetries is returned when the retry cap is negative.
	// Zero means unlimited retries.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRetryBackoff is returned when the retry backoff is negative.
	ErrInvalidRetryBackoff = errors.New("invalid retry backoff: must be non-negative")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// A negative delay is invalid; use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidLogFormat is returned when the log format is neither
	// "text" nor "json".
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)

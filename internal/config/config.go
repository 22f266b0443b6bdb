package config

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "authcrawl"

	// DefaultHost is the server the crawler was written for.
	DefaultHost = "fring.ccs.neu.edu"

	// DefaultPort is the plain HTTP port. TLS is not supported.
	DefaultPort = 80

	// DefaultStartPath is the first page requested after login.
	DefaultStartPath = "/fakebook/"

	// DefaultMarkerClass is the class of the element holding a result.
	DefaultMarkerClass = "secret_flag"

	// DefaultTargetCount is the number of results after which the crawl stops.
	DefaultTargetCount = 5

	// DefaultBufferSize is the size of each socket read.
	DefaultBufferSize = 4000

	// DefaultTimeout bounds each dial, send and receive.
	DefaultTimeout = 30 * time.Second

	// DefaultWorkers keeps exactly one request in flight.
	DefaultWorkers = 1

	// DefaultLoginEntryPath is fetched to obtain the CSRF token.
	DefaultLoginEntryPath = "/accounts/login/?next=/fakebook/"

	// DefaultLoginActionPath receives the login form.
	DefaultLoginActionPath = "/accounts/login/"

	// DefaultLoginNextPath is sent as the "next" form field.
	DefaultLoginNextPath = "/fakebook/"

	// DefaultTokenField is the name of the hidden CSRF input.
	DefaultTokenField = "csrfmiddlewaretoken"
)

// Log formats accepted by Config.LogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all configuration options for a crawl.
// It is populated from defaults, the config file and CLI flags, and passed
// through the application rather than kept in global state.
type Config struct {
	// Host and Port address the server to crawl.
	Host string
	Port int

	// Username and Password are posted to the login form.
	Username string
	Password string

	// Cookie pre-seeds the cookie jar, e.g. "sessionid=abc". With a cookie
	// and no username the login step is skipped.
	Cookie string

	// StartPath is the first path placed in the frontier.
	StartPath string

	// MarkerClass is the class of the element whose text is a result.
	MarkerClass string

	// TargetCount stops the crawl once that many unique results are found.
	// Zero crawls until no page is left.
	TargetCount int

	// BufferSize is the size of each socket read.
	BufferSize int

	// Timeout bounds each dial, send and receive.
	Timeout time.Duration

	// Workers is the number of concurrent connections.
	Workers int

	// MaxRetries caps retries of a page answering 500. Zero is unlimited.
	MaxRetries int

	// RetryBackoff is the initial delay before retrying a 500. Zero retries
	// immediately.
	RetryBackoff time.Duration

	// CrawlDelay is the minimum interval between requests.
	CrawlDelay time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// Login form layout of the server.
	LoginEntryPath  string
	LoginActionPath string
	LoginNextPath   string
	TokenField      string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogFormat selects the log encoding, LogFormatText or LogFormatJSON.
	LogFormat string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches the current directory, the home
	// directory and the XDG config directory.
	ConfigFilePath string

	// JSONReport and MarkdownReport select the report format. The default
	// prints one result per line. They are mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file and stdout only
	// receives the results.
	ReportFile string

	// DBDir is the directory holding the SQLite crawl history.
	// Defaults to XDG data directory (~/.local/share/authcrawl on Linux).
	DBDir string

	// SaveToDB records runs, visits and results in the database.
	SaveToDB bool

	// MetricsFile receives crawl metrics in the Prometheus textfile format.
	// Empty disables metrics.
	MetricsFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		StartPath:       DefaultStartPath,
		MarkerClass:     DefaultMarkerClass,
		TargetCount:     DefaultTargetCount,
		BufferSize:      DefaultBufferSize,
		Timeout:         DefaultTimeout,
		Workers:         DefaultWorkers,
		LoginEntryPath:  DefaultLoginEntryPath,
		LoginActionPath: DefaultLoginActionPath,
		LoginNextPath:   DefaultLoginNextPath,
		TokenField:      DefaultTokenField,
		LogFormat:       LogFormatText,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// XDGDataDir returns the XDG data directory for authcrawl.
// On Linux: ~/.local/share/authcrawl
// On macOS: ~/Library/Application Support/authcrawl
// On Windows: %LOCALAPPDATA%\authcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for authcrawl.
// On Linux: ~/.config/authcrawl
// On macOS: ~/Library/Application Support/authcrawl
// On Windows: %APPDATA%\authcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrNoHost
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}

	// A seeded cookie stands in for a login
	if c.Username == "" && c.Cookie == "" {
		return ErrNoCredentials
	}
	if c.Username != "" && c.Password == "" {
		return ErrNoPassword
	}

	if !strings.HasPrefix(c.StartPath, "/") {
		return ErrNoStartPath
	}
	if strings.TrimSpace(c.MarkerClass) == "" {
		return ErrNoMarkerClass
	}
	if c.TargetCount < 0 {
		return ErrInvalidTargetCount
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.BufferSize <= 0 {
		return ErrInvalidBufferSize
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RetryBackoff < 0 {
		return ErrInvalidRetryBackoff
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

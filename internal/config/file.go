package config

import "time"

// File is the structure of the YAML configuration file. Absent keys leave
// the corresponding Config field untouched. Crawl limits are pointers so
// that an explicit 0 (crawl everything, retry forever) can be told apart
// from an absent key.
type File struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Cookie is a session cookie to start with.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	Crawl CrawlSection `yaml:"crawl,omitempty"`
	Login LoginSection `yaml:"login,omitempty"`

	// Proxy is a SOCKS5 proxy address.
	Proxy string `yaml:"proxy,omitempty"`

	// MetricsFile is the Prometheus textfile written after each crawl.
	MetricsFile string `yaml:"metricsFile,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"logFormat,omitempty"`
}

// CrawlSection holds crawl limits and pacing.
type CrawlSection struct {
	StartPath    string         `yaml:"startPath,omitempty"`
	MarkerClass  string         `yaml:"markerClass,omitempty"`
	TargetCount  *int           `yaml:"targetCount,omitempty"`
	Workers      *int           `yaml:"workers,omitempty"`
	BufferSize   *int           `yaml:"bufferSize,omitempty"`
	Timeout      *time.Duration `yaml:"timeout,omitempty"`
	MaxRetries   *int           `yaml:"maxRetries,omitempty"`
	RetryBackoff *time.Duration `yaml:"retryBackoff,omitempty"`
	Delay        *time.Duration `yaml:"delay,omitempty"`
}

// LoginSection describes the login form of the server.
type LoginSection struct {
	EntryPath  string `yaml:"entryPath,omitempty"`
	ActionPath string `yaml:"actionPath,omitempty"`
	NextPath   string `yaml:"nextPath,omitempty"`
	TokenField string `yaml:"tokenField,omitempty"`
}

// Apply copies every value present in f into c. Empty strings and a zero
// port count as absent.
func (f *File) Apply(c *Config) {
	setString(&c.Host, f.Host)
	setInt(&c.Port, f.Port)
	setString(&c.Username, f.Username)
	setString(&c.Password, f.Password)
	setString(&c.Cookie, f.Cookie)
	setString(&c.ProxyAddress, f.Proxy)
	setString(&c.MetricsFile, f.MetricsFile)
	setString(&c.LogFormat, f.LogFormat)

	setString(&c.StartPath, f.Crawl.StartPath)
	setString(&c.MarkerClass, f.Crawl.MarkerClass)
	setPtr(&c.TargetCount, f.Crawl.TargetCount)
	setPtr(&c.Workers, f.Crawl.Workers)
	setPtr(&c.BufferSize, f.Crawl.BufferSize)
	setPtr(&c.MaxRetries, f.Crawl.MaxRetries)
	setPtr(&c.Timeout, f.Crawl.Timeout)
	setPtr(&c.RetryBackoff, f.Crawl.RetryBackoff)
	setPtr(&c.CrawlDelay, f.Crawl.Delay)

	setString(&c.LoginEntryPath, f.Login.EntryPath)
	setString(&c.LoginActionPath, f.Login.ActionPath)
	setString(&c.LoginNextPath, f.Login.NextPath)
	setString(&c.TokenField, f.Login.TokenField)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

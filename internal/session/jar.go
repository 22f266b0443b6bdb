package session

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/nao1215/authcrawl/internal/wire"
)

// Jar stores cookies for the lifetime of a crawl. It is safe for
// concurrent use by several workers.
type Jar struct {
	mu      sync.Mutex
	cookies map[string]string
	logger  *slog.Logger
}

// NewJar returns an empty Jar. A nil logger uses slog.Default().
func NewJar(logger *slog.Logger) *Jar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jar{
		cookies: make(map[string]string),
		logger:  logger,
	}
}

// Update applies every Set-Cookie line of resp.
func (j *Jar) Update(resp *wire.Response) {
	if resp == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, line := range resp.SetCookies {
		name, value, ok := parseSetCookie(line)
		if !ok {
			j.logger.Warn("skipping malformed Set-Cookie", "set-cookie", line)
			continue
		}
		j.cookies[name] = value
	}
	j.logger.Debug("updated cookies", "count", len(j.cookies))
}

// parseSetCookie splits "name=value; attrs..." into name and value.
// Both '=' and a following ';' are required.
func parseSetCookie(line string) (string, string, bool) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", false
	}
	semi := strings.IndexByte(line[eq+1:], ';')
	if semi < 0 {
		return "", "", false
	}
	return line[:eq], line[eq+1 : eq+1+semi], true
}

// Render returns the jar as a Cookie header value: "name=value; " per
// cookie, ordered by name.
func (j *Jar) Render() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(j.cookies)) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(j.cookies[name])
		b.WriteString("; ")
	}
	return b.String()
}

// Get returns the value of a cookie.
func (j *Jar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.cookies[name]
	return v, ok
}

// Len returns the number of cookies in the jar.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

// Seed parses a Cookie header style string ("a=1; b=2") into the jar.
// It is used for pre-authenticated sessions supplied by configuration.
func (j *Jar) Seed(header string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		j.cookies[name] = value
	}
}

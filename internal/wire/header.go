package wire

import (
	"strings"

	"golang.org/x/text/cases"
)

// Well-known header names used by the crawler.
const (
	HeaderHost             = "Host"
	HeaderAccept           = "Accept"
	HeaderConnection       = "Connection"
	HeaderContentLength    = "Content-Length"
	HeaderContentType      = "Content-Type"
	HeaderCookie           = "Cookie"
	HeaderLocation         = "Location"
	HeaderSetCookie        = "Set-Cookie"
	HeaderTransferEncoding = "Transfer-Encoding"
)

// AcceptHeader is the fixed Accept value sent with every request.
const AcceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Header maps header names to a single value. Names keep the spelling
// they were received or set with; lookups ignore case.
type Header map[string]string

// nameMatcher compares header names against one name, folded once.
// A Caser is stateful, so a matcher must not be shared between goroutines.
type nameMatcher struct {
	caser  cases.Caser
	name   string
	folded string
}

func matchName(name string) nameMatcher {
	c := cases.Fold()
	return nameMatcher{caser: c, name: name, folded: c.String(name)}
}

// match reports whether k names the same field.
func (m nameMatcher) match(k string) bool {
	return k == m.name || m.caser.String(k) == m.folded
}

// equalName reports whether two header names are the same field.
func equalName(a, b string) bool {
	if a == b {
		return true
	}
	return matchName(a).match(b)
}

// Get returns the value of the named header and whether it was present.
func (h Header) Get(name string) (string, bool) {
	if v, ok := h[name]; ok {
		return v, true
	}
	m := matchName(name)
	for k, v := range h {
		if m.match(k) {
			return v, true
		}
	}
	return "", false
}

// Value returns the value of the named header, or "" if absent.
func (h Header) Value(name string) string {
	v, _ := h.Get(name)
	return v
}

// Has reports whether the named header is present.
func (h Header) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Set stores value under name, replacing any existing spelling of the
// same field. The last write wins.
func (h Header) Set(name, value string) {
	if len(h) != 0 {
		m := matchName(name)
		for k := range h {
			if k != name && m.match(k) {
				delete(h, k)
			}
		}
	}
	h[name] = value
}

// Is reports whether the named header is present with the given value,
// compared without regard to case or surrounding whitespace.
func (h Header) Is(name, value string) bool {
	v, ok := h.Get(name)
	if !ok {
		return false
	}
	return equalName(strings.TrimSpace(v), value)
}

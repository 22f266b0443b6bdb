package wire

import (
	"bytes"
	"maps"
	"slices"
	"strconv"
)

// HTTP methods used by the crawler.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Request is an outgoing HTTP/1.1 request. It is built and discarded
// once per exchange.
type Request struct {
	// Method is the request method (GET, POST).
	Method string

	// Path is the request target, e.g. "/fakebook/".
	Path string

	// Host is sent as the Host header.
	Host string

	// Header holds caller supplied headers. Content-Length is derived
	// from Body during encoding and is ignored here.
	Header map[string]string

	// Body is sent verbatim after the header block.
	Body []byte
}

// NewRequest returns a request with an empty header map.
func NewRequest(method, path, host string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Host:   host,
		Header: make(map[string]string),
	}
}

// Encode serializes the request to wire bytes.
func (r *Request) Encode() []byte {
	var buf bytes.Buffer

	buf.WriteString(r.Method)
	buf.WriteByte(' ')
	buf.WriteString(r.Path)
	buf.WriteString(" HTTP/1.1\n")

	writeHeaderLine(&buf, HeaderHost, r.Host)

	contentLength := matchName(HeaderContentLength)
	for _, name := range slices.Sorted(maps.Keys(r.Header)) {
		if contentLength.match(name) {
			continue
		}
		writeHeaderLine(&buf, name, r.Header[name])
	}

	if len(r.Body) != 0 {
		writeHeaderLine(&buf, HeaderContentLength, strconv.Itoa(len(r.Body)))
	}
	writeHeaderLine(&buf, HeaderAccept, AcceptHeader)
	buf.WriteByte('\n')
	buf.Write(r.Body)

	return buf.Bytes()
}

func writeHeaderLine(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteByte('\n')
}

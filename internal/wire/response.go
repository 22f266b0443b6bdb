package wire

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// DefaultBufferSize is the size of a single read from the connection.
const DefaultBufferSize = 4000

// fallbackStatus is used when the status line cannot be parsed.
const fallbackStatus = "500"

// Receiver supplies additional bytes when a response does not fit in the
// first read. transport.Conn satisfies it.
type Receiver interface {
	Receive(size int) ([]byte, error)
}

// Response is a decoded HTTP/1.1 response.
type Response struct {
	// Status is the three character status code, e.g. "200".
	Status string

	// Header holds all headers except Set-Cookie. Duplicates keep the last value.
	Header Header

	// SetCookies holds the raw value of every Set-Cookie line in order.
	SetCookies []string

	// Body is the decoded body.
	Body string
}

// Chunked reports whether the body used chunked transfer encoding.
func (r *Response) Chunked() bool {
	return r.Header.Is(HeaderTransferEncoding, "chunked")
}

// Closing reports whether the server asked to close the connection.
func (r *Response) Closing() bool {
	return r.Header.Is(HeaderConnection, "close")
}

// Decoder parses responses. The zero value is not usable; use NewDecoder.
type Decoder struct {
	logger  *slog.Logger
	bufSize int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLogger sets the logger used for parse anomalies.
func WithLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithBufferSize sets the size of continuation reads.
func WithBufferSize(size int) DecoderOption {
	return func(d *Decoder) {
		if size > 0 {
			d.bufSize = size
		}
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{bufSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Decode parses a response with a default Decoder.
func Decode(data []byte, more Receiver) (*Response, error) {
	return NewDecoder().Decode(data, more)
}

// Decode parses data as an HTTP/1.1 response. When the header block,
// a chunked body or a Content-Length body is incomplete, more is read
// until it is complete. more may be nil, in which case only data is used.
//
// Malformed input never produces an error; it is logged and the
// response is returned as far as it could be parsed. The returned error
// is always a failure of more.Receive, together with the partial response.
func (d *Decoder) Decode(data []byte, more Receiver) (*Response, error) {
	s := &scanner{buf: data, more: more, size: d.bufSize}
	resp := &Response{
		Header:     make(Header),
		SetCookies: make([]string, 0),
	}

	line, ok, err := s.line()
	if err != nil {
		return resp, err
	}
	if !ok {
		d.logger.Warn("empty response", "bytes", len(data))
		resp.Status = fallbackStatus
		return resp, nil
	}
	resp.Status = d.parseStatus(line, len(data))

	for {
		line, ok, err = s.line()
		if err != nil {
			return resp, err
		}
		if !ok {
			d.logger.Warn("header block not terminated", "status", resp.Status)
			return resp, nil
		}
		if line == "" {
			break
		}
		d.parseHeader(resp, line)
	}

	if resp.Chunked() {
		d.logger.Debug("chunked encoding found")
		body, err := d.readChunked(s)
		resp.Body = body
		return resp, err
	}

	body, err := d.readPlain(s, resp.Header)
	resp.Body = body
	return resp, err
}

// parseStatus extracts the status code from the status line.
func (d *Decoder) parseStatus(line string, total int) string {
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		d.logger.Warn("cannot parse status line", "len", total, "line", line)
		return fallbackStatus
	}
	code := line[idx+1:]
	if len(code) > 3 {
		code = code[:3]
	}
	if code == "" {
		d.logger.Warn("status line has no code", "line", line)
		return fallbackStatus
	}
	return code
}

// parseHeader stores a single header line in resp.
func (d *Decoder) parseHeader(resp *Response, line string) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		d.logger.Warn("parse failed on header line", "line", line)
		return
	}
	value = strings.TrimSpace(value)
	if equalName(name, HeaderSetCookie) {
		resp.SetCookies = append(resp.SetCookies, value)
		return
	}
	resp.Header.Set(name, value)
}

// readChunked assembles a chunked body. A blank size line, or one whose
// first character is '0', terminates the body. After a '0' line the
// trailer section is consumed up to its blank line, so no framing bytes
// stay on the connection for the next response.
func (d *Decoder) readChunked(s *scanner) (string, error) {
	var body bytes.Buffer
	for {
		line, ok, err := s.line()
		if err != nil {
			return body.String(), err
		}
		if !ok {
			d.logger.Warn("chunked body ended without terminator", "bytes", body.Len())
			return body.String(), nil
		}
		if line == "" {
			return body.String(), nil
		}
		if line[0] == '0' {
			d.skipTrailers(s)
			return body.String(), nil
		}

		sizeField, _, _ := strings.Cut(line, ";")
		size, perr := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if perr != nil || size < 0 {
			d.logger.Warn("invalid chunk size", "line", line)
			return body.String(), nil
		}

		chunk, ok, err := s.take(int(size))
		body.Write(chunk)
		if err != nil {
			return body.String(), err
		}
		if !ok {
			d.logger.Warn("chunk truncated", "want", size, "got", len(chunk))
			return body.String(), nil
		}
		if err := s.skipNewline(); err != nil {
			return body.String(), err
		}
	}
}

// skipTrailers consumes trailer lines up to and including the blank line
// that ends a chunked message. The body is already complete, so a failed
// read here is logged rather than returned.
func (d *Decoder) skipTrailers(s *scanner) {
	for {
		line, ok, err := s.line()
		if err != nil {
			d.logger.Debug("chunked message ended before its final line", "error", err)
			return
		}
		if !ok || line == "" {
			return
		}
		d.logger.Debug("ignoring chunked trailer", "line", line)
	}
}

// readPlain returns the rest of the message. With a Content-Length it
// keeps reading until that many bytes have arrived.
func (d *Decoder) readPlain(s *scanner, h Header) (string, error) {
	raw, ok := h.Get(HeaderContentLength)
	if !ok {
		return string(s.rest()), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		d.logger.Warn("invalid content length", "value", raw)
		return string(s.rest()), nil
	}
	body, complete, err := s.take(n)
	if err != nil {
		return string(body), err
	}
	if !complete {
		d.logger.Warn("body shorter than content length", "want", n, "got", len(body))
	}
	return string(body), nil
}

// scanner walks a growing buffer, pulling more bytes on demand.
type scanner struct {
	buf  []byte
	pos  int
	more Receiver
	size int
}

// fill reads another block from more. It reports false when no more
// bytes can be obtained.
func (s *scanner) fill() (bool, error) {
	if s.more == nil {
		return false, nil
	}
	data, err := s.more.Receive(s.size)
	if err != nil {
		return false, fmt.Errorf("continuation read: %w", err)
	}
	if len(data) == 0 {
		return false, nil
	}
	s.buf = append(s.buf, data...)
	return true, nil
}

// line returns the next line without its terminator. ok is false when
// the buffer is exhausted and nothing more can be read. A final line
// without a terminator is returned only when no more data is available.
func (s *scanner) line() (string, bool, error) {
	for {
		if idx := bytes.IndexByte(s.buf[s.pos:], '\n'); idx >= 0 {
			line := s.buf[s.pos : s.pos+idx]
			s.pos += idx + 1
			return string(bytes.TrimSuffix(line, []byte("\r"))), true, nil
		}
		more, err := s.fill()
		if err != nil {
			return "", false, err
		}
		if more {
			continue
		}
		if s.pos >= len(s.buf) {
			return "", false, nil
		}
		line := s.buf[s.pos:]
		s.pos = len(s.buf)
		return string(bytes.TrimSuffix(line, []byte("\r"))), true, nil
	}
}

// take returns the next n bytes. ok is false when fewer than n bytes
// could be obtained, in which case the available bytes are returned.
func (s *scanner) take(n int) ([]byte, bool, error) {
	for len(s.buf)-s.pos < n {
		more, err := s.fill()
		if err != nil {
			return s.rest(), false, err
		}
		if !more {
			return s.rest(), false, nil
		}
	}
	out := s.buf[s.pos : s.pos+n]
	s.pos += n
	return out, true, nil
}

// skipNewline consumes an optional CRLF or LF after chunk data.
func (s *scanner) skipNewline() error {
	for _, want := range []byte{'\r', '\n'} {
		if s.pos >= len(s.buf) {
			more, err := s.fill()
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		if s.buf[s.pos] == want {
			s.pos++
		} else if want == '\r' {
			continue
		} else {
			return nil
		}
	}
	return nil
}

// rest consumes and returns everything left in the buffer.
func (s *scanner) rest() []byte {
	out := s.buf[s.pos:]
	s.pos = len(s.buf)
	return out
}

package wire

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// quietDecoder returns a decoder that discards anomaly logs.
func quietDecoder(opts ...DecoderOption) *Decoder {
	opts = append([]DecoderOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewDecoder(opts...)
}

// stubReceiver hands out pre-recorded reads, then fails.
type stubReceiver struct {
	reads [][]byte
	calls int
}

func (r *stubReceiver) Receive(_ int) ([]byte, error) {
	if r.calls >= len(r.reads) {
		r.calls++
		return nil, io.ErrUnexpectedEOF
	}
	data := r.reads[r.calls]
	r.calls++
	return data, nil
}

// TestRequestEncode tests request serialization.
func TestRequestEncode(t *testing.T) {
	t.Parallel()

	t.Run("minimal GET", func(t *testing.T) {
		t.Parallel()

		req := &Request{Method: "GET", Path: "/x", Host: "h", Header: map[string]string{}}
		want := "GET /x HTTP/1.1\nHost: h\nAccept: " + AcceptHeader + "\n\n"
		if got := string(req.Encode()); got != want {
			t.Errorf("Encode() mismatch (-want +got):\n%s", cmp.Diff(want, got))
		}
	})

	t.Run("nil header map", func(t *testing.T) {
		t.Parallel()

		req := &Request{Method: "GET", Path: "/", Host: "h"}
		if !strings.HasPrefix(string(req.Encode()), "GET / HTTP/1.1\nHost: h\n") {
			t.Errorf("unexpected encoding: %q", req.Encode())
		}
	})

	t.Run("POST with body derives content length", func(t *testing.T) {
		t.Parallel()

		req := NewRequest(MethodPost, "/accounts/login/", "h")
		req.Header["Content-Type"] = "application/x-www-form-urlencoded"
		req.Header["Connection"] = "Keep-Alive"
		req.Body = []byte("a=b")

		want := "POST /accounts/login/ HTTP/1.1\n" +
			"Host: h\n" +
			"Connection: Keep-Alive\n" +
			"Content-Type: application/x-www-form-urlencoded\n" +
			"Content-Length: 3\n" +
			"Accept: " + AcceptHeader + "\n" +
			"\n" +
			"a=b"
		if diff := cmp.Diff(want, string(req.Encode())); diff != "" {
			t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("caller content length is ignored", func(t *testing.T) {
		t.Parallel()

		req := NewRequest(MethodGet, "/", "h")
		req.Header["content-length"] = "99"
		if strings.Contains(string(req.Encode()), "99") {
			t.Errorf("caller Content-Length leaked into request: %q", req.Encode())
		}
	})
}

// TestDecodeStatus tests status line handling.
func TestDecodeStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"not found", "HTTP/1.1 404 Not Found\nServer: x\n\n", "404"},
		{"ok with CRLF", "HTTP/1.1 200 OK\r\nServer: x\r\n\r\n", "200"},
		{"no space", "garbage\n\n", "500"},
		{"empty input", "", "500"},
		{"short code", "HTTP/1.1 30", "30"},
		{"nothing after space", "HTTP/1.1 \n\n", "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := quietDecoder().Decode([]byte(tt.input), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Status != tt.want {
				t.Errorf("Status = %q, want %q", resp.Status, tt.want)
			}
		})
	}
}

// TestDecodeHeaders tests header and cookie parsing.
func TestDecodeHeaders(t *testing.T) {
	t.Parallel()

	input := "HTTP/1.1 302 FOUND\r\n" +
		"Location: /fakebook/\r\n" +
		"Set-Cookie: csrftoken=abc; Path=/\r\n" +
		"this line is broken\r\n" +
		"Set-Cookie: sessionid=xyz; HttpOnly\r\n" +
		"X-Dup: first\r\n" +
		"x-dup: second\r\n" +
		"\r\n"

	resp, err := quietDecoder().Decode([]byte(input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != "302" {
		t.Errorf("Status = %q, want 302", resp.Status)
	}
	wantCookies := []string{"csrftoken=abc; Path=/", "sessionid=xyz; HttpOnly"}
	if diff := cmp.Diff(wantCookies, resp.SetCookies); diff != "" {
		t.Errorf("SetCookies mismatch (-want +got):\n%s", diff)
	}
	if resp.Header.Has(HeaderSetCookie) {
		t.Error("Set-Cookie must not be stored in the header map")
	}
	if got := resp.Header.Value("location"); got != "/fakebook/" {
		t.Errorf("Location = %q, want /fakebook/", got)
	}
	if got := resp.Header.Value("X-Dup"); got != "second" {
		t.Errorf("X-Dup = %q, want last value", got)
	}
	if len(resp.Header) != 2 {
		t.Errorf("expected 2 headers, got %d: %v", len(resp.Header), resp.Header)
	}
}

// TestDecodeChunked tests chunked body reassembly.
func TestDecodeChunked(t *testing.T) {
	t.Parallel()

	head := "HTTP/1.1 200 OK\nTransfer-Encoding: chunked\n\n"

	t.Run("single chunk", func(t *testing.T) {
		t.Parallel()

		body := strings.Join([]string{"5", "hello", "0", ""}, "\n")
		resp, err := quietDecoder().Decode([]byte(head+body), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "hello" {
			t.Errorf("Body = %q, want hello", resp.Body)
		}
		if !resp.Chunked() {
			t.Error("expected Chunked() to be true")
		}
	})

	t.Run("multiple chunks with CRLF and extensions", func(t *testing.T) {
		t.Parallel()

		body := "6;ext=1\r\nhello \r\nb\r\nwide\r\nworld\r\n0\r\n\r\n"
		resp, err := quietDecoder().Decode([]byte(head+body), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "hello wide\r\nworld" {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("empty size line terminates", func(t *testing.T) {
		t.Parallel()

		resp, err := quietDecoder().Decode([]byte(head+"3\nabc\n\nf\nignored"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "abc" {
			t.Errorf("Body = %q, want abc", resp.Body)
		}
	})

	t.Run("continues reading until terminator", func(t *testing.T) {
		t.Parallel()

		more := &stubReceiver{reads: [][]byte{
			[]byte("lo\n6\n wor"),
			[]byte("ld\n0\n\n"),
		}}
		resp, err := quietDecoder(WithBufferSize(8)).Decode([]byte(head+"5\nhel"), more)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "hello world" {
			t.Errorf("Body = %q, want %q", resp.Body, "hello world")
		}
		if more.calls != 2 {
			t.Errorf("expected 2 continuation reads, got %d", more.calls)
		}
	})

	t.Run("continuation failure is returned with partial body", func(t *testing.T) {
		t.Parallel()

		more := &stubReceiver{}
		resp, err := quietDecoder().Decode([]byte(head+"5\nhello\n"), more)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
		}
		if resp.Body != "hello" {
			t.Errorf("Body = %q, want hello", resp.Body)
		}
	})

	t.Run("final line in a later read is consumed", func(t *testing.T) {
		t.Parallel()

		stream := &stubReceiver{reads: [][]byte{
			[]byte("\r\n"),
			[]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"),
		}}
		dec := quietDecoder()

		first, err := dec.Decode([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n"), stream)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.Body != "hello" {
			t.Errorf("Body = %q, want hello", first.Body)
		}

		data, err := stream.Receive(DefaultBufferSize)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := dec.Decode(data, stream)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.Status != "200" || second.Body != "ok" {
			t.Errorf("second response = %q %q, want 200 ok", second.Status, second.Body)
		}
	})

	t.Run("trailers are skipped", func(t *testing.T) {
		t.Parallel()

		more := &stubReceiver{}
		resp, err := quietDecoder().Decode([]byte(head+"2\nhi\n0\nExpires: never\n\n"), more)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "hi" || resp.Header.Has("Expires") {
			t.Errorf("unexpected response %+v", resp)
		}
		if more.calls != 0 {
			t.Errorf("expected no continuation reads, got %d", more.calls)
		}
	})

	t.Run("closed connection after last chunk keeps the body", func(t *testing.T) {
		t.Parallel()

		resp, err := quietDecoder().Decode([]byte(head+"2\nhi\n0\n"), &stubReceiver{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "hi" {
			t.Errorf("Body = %q, want hi", resp.Body)
		}
	})

	t.Run("invalid size degrades", func(t *testing.T) {
		t.Parallel()

		resp, err := quietDecoder().Decode([]byte(head+"zz\nhello\n"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "" {
			t.Errorf("Body = %q, want empty", resp.Body)
		}
	})
}

// TestDecodePlainBody tests non-chunked bodies.
func TestDecodePlainBody(t *testing.T) {
	t.Parallel()

	t.Run("body without content length", func(t *testing.T) {
		t.Parallel()

		resp, err := quietDecoder().Decode([]byte("HTTP/1.1 200 OK\n\n<html>\n</html>"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "<html>\n</html>" {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("reads until content length is satisfied", func(t *testing.T) {
		t.Parallel()

		more := &stubReceiver{reads: [][]byte{[]byte("6789"), []byte("0")}}
		input := "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n12345"
		resp, err := quietDecoder().Decode([]byte(input), more)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "1234567890" {
			t.Errorf("Body = %q, want 1234567890", resp.Body)
		}
	})

	t.Run("header block split across reads", func(t *testing.T) {
		t.Parallel()

		more := &stubReceiver{reads: [][]byte{[]byte("ngth: 2\r\n\r\nok")}}
		resp, err := quietDecoder().Decode([]byte("HTTP/1.1 200 OK\r\nContent-Le"), more)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "ok" {
			t.Errorf("Body = %q, want ok", resp.Body)
		}
	})

	t.Run("short body without more data", func(t *testing.T) {
		t.Parallel()

		resp, err := quietDecoder().Decode([]byte("HTTP/1.1 200 OK\nContent-Length: 10\n\nabc"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Body != "abc" {
			t.Errorf("Body = %q, want abc", resp.Body)
		}
	})
}

// TestResponseHelpers tests the convenience accessors.
func TestResponseHelpers(t *testing.T) {
	t.Parallel()

	resp := &Response{
		Status: "200",
		Header: Header{"connection": " Close ", "Transfer-Encoding": "identity"},
	}
	if !resp.Closing() {
		t.Error("expected Closing() to be true")
	}
	if resp.Chunked() {
		t.Error("expected Chunked() to be false")
	}
}

// TestHeaderSet tests last-write-wins across spellings.
func TestHeaderSet(t *testing.T) {
	t.Parallel()

	h := make(Header)
	h.Set("Location", "/a")
	h.Set("LOCATION", "/b")

	if len(h) != 1 {
		t.Fatalf("expected 1 entry, got %d: %v", len(h), h)
	}
	if got := h.Value("location"); got != "/b" {
		t.Errorf("Value = %q, want /b", got)
	}
	if _, ok := h.Get("Missing"); ok {
		t.Error("expected missing header to be absent")
	}
}

// TestHeaderLookup tests case-insensitive lookups among several fields.
func TestHeaderLookup(t *testing.T) {
	t.Parallel()

	h := Header{
		"content-type":      "text/html",
		"TRANSFER-ENCODING": " Chunked ",
		"X-Frame-Options":   "DENY",
		"Location":          "/next/",
	}

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"Content-Type", "text/html", true},
		{"transfer-encoding", " Chunked ", true},
		{"x-frame-options", "DENY", true},
		{"Location", "/next/", true},
		{"Content-Length", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := h.Get(tt.name)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Get(%q) = %q, %v, want %q, %v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}

	if !h.Is(HeaderTransferEncoding, "chunked") {
		t.Error("expected Is to ignore case and surrounding spaces")
	}
}

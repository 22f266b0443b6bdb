package crawler

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRequest is a request as seen by fakeServer.
type fakeRequest struct {
	Method string
	Path   string
	Header map[string]string
	Body   string
}

// handlerFunc answers a request with a raw HTTP/1.1 response. hit is the
// number of times the path has been requested, starting at 1.
type handlerFunc func(req fakeRequest, hit int) string

// fakeServer is a keep-alive HTTP/1.1 server speaking raw bytes, so the
// crawler's own codec is exercised end to end.
type fakeServer struct {
	ln      net.Listener
	handler handlerFunc

	mu       sync.Mutex
	requests []fakeRequest
	hits     map[string]int
	conns    int
}

func startFakeServer(t *testing.T, handler handlerFunc) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &fakeServer{ln: ln, handler: handler, hits: make(map[string]int)}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns++
			s.mu.Unlock()
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		req, err := readFakeRequest(r)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.hits[req.Path]++
		hit := s.hits[req.Path]
		s.mu.Unlock()

		resp := s.handler(req, hit)
		for i, part := range strings.Split(resp, splitWrite) {
			if i > 0 {
				time.Sleep(20 * time.Millisecond)
			}
			if _, err := io.WriteString(conn, part); err != nil {
				return
			}
		}
		resp = strings.ReplaceAll(resp, splitWrite, "")
		if strings.Contains(resp, "\r\nConnection: close\r\n") {
			return
		}
	}
}

func readFakeRequest(r *bufio.Reader) (fakeRequest, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return fakeRequest{}, err
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return fakeRequest{}, fmt.Errorf("bad request line %q", line)
	}
	req := fakeRequest{Method: fields[0], Path: fields[1], Header: make(map[string]string)}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fakeRequest{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, _ := strings.Cut(line, ":")
		req.Header[name] = strings.TrimSpace(value)
	}

	if n, err := strconv.Atoi(req.Header["Content-Length"]); err == nil && n > 0 {
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return fakeRequest{}, err
		}
		req.Body = string(body)
	}
	return req, nil
}

// hitCount returns how often path was requested.
func (s *fakeServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// connCount returns the number of accepted connections.
func (s *fakeServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// requestsFor returns the requests made to path, in order.
func (s *fakeServer) requestsFor(path string) []fakeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []fakeRequest
	for _, req := range s.requests {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

// splitWrite marks a point in a handler's response where fakeServer flushes
// what it has written so far and pauses before sending the rest.
const splitWrite = "\x00split\x00"

// chunked builds a raw response with a chunked body whose final blank line
// arrives in a separate write.
func chunked(status string, body string) string {
	return fmt.Sprintf("HTTP/1.1 %s\r\nTransfer-Encoding: chunked\r\n\r\n%x\r\n%s\r\n0\r\n%s\r\n",
		status, len(body), body, splitWrite)
}

// respond builds a raw response with a Content-Length.
func respond(status string, body string, headers ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", status)
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n%s", len(body), body)
	return b.String()
}

// htmlPage builds a page with the given links and, if marker is set, a
// flag element.
func htmlPage(marker string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, l := range links {
		fmt.Fprintf(&b, `<li><a href="%s">link</a></li>`, l)
	}
	b.WriteString("</ul>")
	if marker != "" {
		fmt.Fprintf(&b, `<h2 class='secret_flag' style="color:red">FLAG: %s</h2>`, marker)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const (
	fakeToken   = "tok123"
	fakeSession = "sess456"
)

// withLogin wraps next with the login pages of the target server.
func withLogin(next handlerFunc) handlerFunc {
	return func(req fakeRequest, hit int) string {
		switch {
		case req.Method == "GET" && req.Path == "/accounts/login/?next=/fakebook/":
			form := `<html><body><form method="post" action="/accounts/login/">` +
				`<input type="hidden" name="csrfmiddlewaretoken" value="` + fakeToken + `">` +
				`<input name="username"><input name="password"></form></body></html>`
			return respond("200 OK", form, "Set-Cookie: csrftoken=csrf789; Path=/")
		case req.Method == "POST" && req.Path == "/accounts/login/":
			if !strings.Contains(req.Body, "csrfmiddlewaretoken="+fakeToken) ||
				!strings.Contains(req.Body, "password=secret") ||
				!strings.Contains(req.Header["Cookie"], "csrftoken=csrf789") {
				return respond("200 OK", "<html>bad login</html>")
			}
			return respond("302 FOUND", "",
				"Location: /fakebook/",
				"Set-Cookie: sessionid="+fakeSession+"; Path=/; HttpOnly",
			)
		}
		return next(req, hit)
	}
}

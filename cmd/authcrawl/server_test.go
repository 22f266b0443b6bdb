package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
)

// fakeSite is a keep-alive HTTP/1.1 server with the login form of the
// target application and a fixed set of pages.
type fakeSite struct {
	ln    net.Listener
	pages map[string]string
}

func startFakeSite(t *testing.T, pages map[string]string) *fakeSite {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	s := &fakeSite{ln: ln, pages: pages}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeSite) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSite) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		method, path, body, err := readRequest(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, s.answer(method, path, body)); err != nil {
			return
		}
	}
}

func (s *fakeSite) answer(method, path, body string) string {
	switch {
	case method == "GET" && strings.HasPrefix(path, "/accounts/login/"):
		form := `<form><input type="hidden" name="csrfmiddlewaretoken" value="tok"></form>`
		return rawResponse("200 OK", form, "Set-Cookie: csrftoken=c1; Path=/")
	case method == "POST":
		if !strings.Contains(body, "password=secret") {
			return rawResponse("200 OK", "bad login")
		}
		return rawResponse("302 FOUND", "", "Location: /fakebook/", "Set-Cookie: sessionid=s1; Path=/")
	}
	if page, ok := s.pages[path]; ok {
		return rawResponse("200 OK", page)
	}
	return rawResponse("404 NOT FOUND", "")
}

func readRequest(r *bufio.Reader) (method, path, body string, err error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", "", "", err
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return "", "", "", fmt.Errorf("bad request line %q", line)
	}

	length := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", "", "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(name, "Content-Length") {
			length, _ = strconv.Atoi(strings.TrimSpace(value))
		}
	}

	if length > 0 {
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", "", "", err
		}
		body = string(buf)
	}
	return fields[0], fields[1], body, nil
}

func rawResponse(status, body string, headers ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", status)
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n%s", len(body), body)
	return b.String()
}

// flagPage returns a page holding one result and the given links.
func flagPage(flag string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">x</a>`, l)
	}
	fmt.Fprintf(&b, `<h2 class="secret_flag">FLAG: %s</h2></body></html>`, flag)
	return b.String()
}

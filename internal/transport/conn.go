package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Conn is a reconnectable, blocking byte stream to one host. It is not
// safe for concurrent use; each crawl worker owns its own Conn.
type Conn struct {
	// host and port identify the remote end.
	host string
	port int

	// dialer opens the underlying connection. It is either a plain
	// net.Dialer or a SOCKS5 dialer.
	dialer proxy.ContextDialer

	// timeout bounds each individual dial, write and read. Zero disables it.
	timeout time.Duration

	logger *slog.Logger

	conn net.Conn
}

// Option configures a Conn.
type Option func(*Conn) error

// WithTimeout bounds every dial, send and receive.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) error {
		c.timeout = d
		return nil
	}
}

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) error {
		c.logger = logger
		return nil
	}
}

// WithProxy routes the connection through the SOCKS5 proxy at address.
// An empty address leaves the connection direct.
func WithProxy(address string) Option {
	return func(c *Conn) error {
		if address == "" {
			return nil
		}
		if _, _, err := net.SplitHostPort(address); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidProxyAddress, address)
		}
		d, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return fmt.Errorf("SOCKS5 dialer for %s does not support contexts", address)
		}
		c.dialer = cd
		return nil
	}
}

// Dial connects to host:port and returns the open Conn.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Conn, error) {
	c := &Conn{
		host: host,
		port: port,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{Timeout: c.timeout}
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Addr returns the remote address in host:port form.
func (c *Conn) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// connect opens a new underlying connection.
func (c *Conn) connect(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnect, c.Addr(), err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	c.conn = conn
	c.logger.Debug("connected", "addr", c.Addr())
	return nil
}

// Send writes the whole buffer.
func (c *Conn) Send(data []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("%w: %w", ErrSend, err)
		}
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	return nil
}

// Receive performs one read of at most size bytes. Callers that need
// more data call Receive again.
func (c *Conn) Receive(size int) ([]byte, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReceive, err)
		}
	}

	buf := make([]byte, size)
	n, err := c.conn.Read(buf)
	if n > 0 {
		// A trailing EOF is reported by the next Receive.
		return buf[:n], nil
	}
	if errors.Is(err, io.EOF) {
		return nil, ErrConnectionClosed
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReceive, err)
	}
	return buf[:0], nil
}

// Reconnect tears down the current connection and opens a new one.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.logger.Warn("reconnecting", "addr", c.Addr())
	if err := c.Close(); err != nil {
		c.logger.Debug("close before reconnect failed", "error", err)
	}
	return c.connect(ctx)
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

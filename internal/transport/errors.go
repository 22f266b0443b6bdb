package transport

import "errors"

// Transport errors. Callers match them with errors.Is; the underlying
// network error is wrapped alongside.
var (
	// ErrConnect is returned when the connection cannot be established.
	ErrConnect = errors.New("connect failed")

	// ErrSend is returned when a request cannot be written in full.
	ErrSend = errors.New("send failed")

	// ErrReceive is returned when a read fails for a reason other than
	// the peer closing the connection.
	ErrReceive = errors.New("receive failed")

	// ErrConnectionClosed is returned when the peer closed the connection
	// before any byte of the read arrived.
	ErrConnectionClosed = errors.New("connection closed by peer")

	// ErrNotConnected is returned when an operation is attempted on a
	// closed Conn.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidProxyAddress is returned when the proxy address is not
	// in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

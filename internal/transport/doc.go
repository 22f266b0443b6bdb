// Package transport manages the single TCP connection used to talk to the
// crawled host.
//
// A Conn offers blocking, synchronous operations only: Send writes a
// whole buffer, Receive performs exactly one bounded read, and Reconnect
// replaces the connection after the server signalled it would close it.
// The package never retries; every error it returns is fatal to the crawl.
//
// Connections can optionally be routed through a SOCKS5 proxy using
// golang.org/x/net/proxy.
package transport

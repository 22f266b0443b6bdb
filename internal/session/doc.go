// Package session holds the authenticated state of a crawl: the cookie
// jar fed by every response, and the login handshake that seeds it.
//
// Login performs the CSRF-protected form exchange expected by the target
// server: GET the login page, read the csrfmiddlewaretoken hidden field,
// then POST the credentials with the token and the cookies received so
// far. Only a 302 answer counts as a successful login.
package session

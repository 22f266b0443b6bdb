// Package extract provides read-only queries over a parsed HTML document.
//
// The crawler needs exactly three things from a page: the anti-forgery
// token of the login form, the relative links to follow, and the text
// that follows an element carrying the marker class. Each query is a
// pre-order depth-first traversal of the tree produced by
// golang.org/x/net/html.
//
// Traversals use an explicit stack instead of recursion so that deeply
// nested documents cannot exhaust the goroutine stack.
package extract

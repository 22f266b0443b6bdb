// Package main provides the entry point for the authcrawl CLI.
//
// authcrawl logs in to a web application over raw HTTP/1.1 and crawls it
// breadth-first until it has collected the requested number of results.
//
// Usage:
//
//	authcrawl crawl <username> <password>
//	authcrawl history
//
// See --help for all available options.
package main

func main() {
	Execute()
}

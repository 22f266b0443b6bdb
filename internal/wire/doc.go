// Package wire implements the HTTP/1.1 message codec used by the crawler.
//
// Requests are serialized by hand with Request.Encode and responses are
// parsed with Decode. The codec does not depend on net/http: the request
// layout is a fixed contract with the crawled server, and the response
// parser tolerates malformed input by logging and degrading instead of
// failing.
//
// # Request layout
//
//	<METHOD> <PATH> HTTP/1.1
//	Host: <host>
//	<caller headers, sorted by name>
//	Content-Length: <n>          (only when the body is non-empty)
//	Accept: <AcceptHeader>
//	<blank line>
//	<body>
//
// # Response bodies
//
// Chunked bodies are reassembled across as many reads as needed. Plain
// bodies with a Content-Length are read until the declared length is
// satisfied.
package wire

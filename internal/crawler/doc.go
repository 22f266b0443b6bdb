// Package crawler implements the breadth-first crawl of one host.
//
// # Architecture
//
// An Engine owns the crawl State: the frontier (FIFO of paths still to
// request), the visited set and the ordered set of discovered results.
// Workers pull targets from the State, request them over their own
// transport.Conn, and report a completion back. All State transitions
// happen under one mutex; workers waiting for work block on a sync.Cond.
//
// Every target moves through the outcomes
//
//	PENDING -> REQUESTED -> ACCEPTED | RETRY | SKIPPED | REDIRECTED
//
// driven by the response status:
//
//   - 500: the target goes back to the tail of the frontier.
//   - 404, 403: the target is visited and discarded.
//   - 301: the target is visited and its Location is enqueued.
//   - anything else: the target is visited, its marker (if any) becomes a
//     result and its links are enqueued in document order.
//
// # Termination
//
// The crawl ends when the result set reaches the target count, or when the
// frontier is empty and no request is in flight. The second case is a
// partial result, not an error. Transport failures and a 301 without a
// Location header abort the crawl.
//
// # Concurrency
//
// With one worker (the default) there is exactly one request in flight at
// any time. With more workers each opens its own connection and the cookie
// jar is shared.
//
// # Usage
//
//	engine := crawler.NewEngine("fring.ccs.neu.edu", 80,
//		crawler.WithTargetCount(5),
//		crawler.WithWorkers(4),
//	)
//	report, err := engine.Run(ctx, session.Credentials{Username: u, Password: p})
package crawler

package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/authcrawl/internal/extract"
	"github.com/nao1215/authcrawl/internal/model"
	"github.com/nao1215/authcrawl/internal/transport"
	"github.com/nao1215/authcrawl/internal/wire"
)

// Response statuses with a dedicated crawl rule.
const (
	statusRetry     = "500"
	statusNotFound  = "404"
	statusForbidden = "403"
	statusMoved     = "301"
)

// worker requests targets over its own connection.
type worker struct {
	id      int
	run     *run
	conn    *transport.Conn
	decoder *wire.Decoder
}

func (r *run) newWorker(ctx context.Context, id int) (*worker, error) {
	e := r.engine
	logger := e.logger.With("worker", id)

	conn, err := transport.Dial(ctx, e.host, e.port,
		transport.WithTimeout(e.timeout),
		transport.WithProxy(e.proxyAddress),
		transport.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &worker{
		id:   id,
		run:  r,
		conn: conn,
		decoder: wire.NewDecoder(
			wire.WithLogger(logger),
			wire.WithBufferSize(e.bufferSize),
		),
	}, nil
}

func (w *worker) close() {
	if err := w.conn.Close(); err != nil {
		w.run.engine.logger.Debug("failed to close connection", "worker", w.id, "error", err)
	}
}

// RoundTrip sends req and decodes the response. A response announcing
// Connection: close is followed by a reconnect, so the next request finds
// an open connection.
func (w *worker) RoundTrip(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := w.conn.Send(req.Encode()); err != nil {
		return nil, err
	}
	data, err := w.conn.Receive(w.run.engine.bufferSize)
	if err != nil {
		return nil, err
	}
	resp, err := w.decoder.Decode(data, w.conn)
	if err != nil {
		return nil, err
	}
	w.run.count(func(s *model.Stats) { s.Requests++ })

	if resp.Closing() {
		if err := w.conn.Reconnect(ctx); err != nil {
			return nil, err
		}
		w.run.count(func(s *model.Stats) { s.Reconnects++ })
	}
	return resp, nil
}

// loop processes targets until the crawl is over.
func (w *worker) loop(ctx context.Context) error {
	for {
		target, ok := w.run.state.Next()
		if !ok {
			return nil
		}
		if err := w.visit(ctx, target); err != nil {
			return err
		}
	}
}

// visit requests one target and reports its completion to the State.
func (w *worker) visit(ctx context.Context, target Target) error {
	r := w.run
	e := r.engine

	if err := r.throttle(ctx); err != nil {
		return err
	}

	req := wire.NewRequest(wire.MethodGet, target.Path, e.host)
	req.Header[wire.HeaderConnection] = "Keep-Alive"
	if cookies := r.jar.Render(); cookies != "" {
		req.Header[wire.HeaderCookie] = cookies
	}

	resp, err := w.RoundTrip(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", target.Path, err)
	}
	r.jar.Update(resp)

	completion, visit, err := w.evaluate(target, resp)
	if err != nil {
		return err
	}

	if completion.Outcome == model.OutcomeRetry {
		r.count(func(s *model.Stats) { s.Retries++ })
		if d := r.retryDelay(target.Path); d > 0 {
			e.logger.Debug("backing off before retry", "path", target.Path, "delay", d)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}
		r.state.Complete(completion)
		return nil
	}

	progress := r.state.Complete(completion)
	r.record(ctx, visit, progress.NewResult)

	if progress.NewResult {
		e.logger.Info("found result", "path", target.Path,
			"results", len(r.state.Results()), "pending", r.state.Pending())
	}
	return nil
}

// evaluate applies the status rules to resp.
func (w *worker) evaluate(target Target, resp *wire.Response) (Completion, model.Visit, error) {
	e := w.run.engine
	logger := e.logger

	c := Completion{Path: target.Path}
	v := model.Visit{
		Path:      target.Path,
		Status:    resp.Status,
		Attempts:  target.Attempt,
		Timestamp: time.Now(),
	}

	switch resp.Status {
	case statusRetry:
		if e.maxRetries > 0 && target.Attempt > e.maxRetries {
			logger.Warn("giving up on target after repeated server errors",
				"path", target.Path, "attempts", target.Attempt)
			c.Outcome = model.OutcomeSkipped
			break
		}
		logger.Debug("server error, retrying", "path", target.Path, "attempt", target.Attempt)
		c.Outcome = model.OutcomeRetry

	case statusNotFound, statusForbidden:
		logger.Debug("skipping target", "path", target.Path, "status", resp.Status)
		c.Outcome = model.OutcomeSkipped

	case statusMoved:
		location, ok := resp.Header.Get(wire.HeaderLocation)
		location = strings.TrimSpace(location)
		if !ok || location == "" {
			return c, v, fmt.Errorf("%w: %s", ErrMissingLocation, target.Path)
		}
		logger.Debug("following redirect", "path", target.Path, "location", location)
		c.Outcome = model.OutcomeRedirected
		c.Links = []string{location}
		v.Location = location

	default:
		c.Outcome = model.OutcomeAccepted
		v.Hash = model.HashBody(resp.Body)

		doc, err := extract.Parse(resp.Body)
		if err != nil {
			logger.Warn("failed to parse page", "path", target.Path, "error", err)
			break
		}
		c.Links = extract.FindLinks(doc)
		v.Links = len(c.Links)
		if text, ok := extract.FindMarked(doc, e.markerClass); ok {
			c.Result = MarkerValue(text)
			v.Marker = c.Result
		}
	}

	v.Outcome = c.Outcome
	return c, v, nil
}

// MarkerValue returns the part of a marker text after its first colon,
// trimmed. Text without a colon is returned whole.
func MarkerValue(text string) string {
	if _, after, ok := strings.Cut(text, ":"); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(text)
}

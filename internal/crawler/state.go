package crawler

import (
	"sync"

	"github.com/nao1215/authcrawl/internal/model"
)

// Target is one unit of work handed to a worker.
type Target struct {
	// Path is the request path on the crawled host.
	Path string

	// Attempt is 1 for the first request of Path and grows with each retry.
	Attempt int
}

// Completion is what a worker reports back after requesting a Target.
type Completion struct {
	Path    string
	Outcome model.Outcome

	// Links are enqueued, in order, when they are neither visited nor
	// already waiting in the frontier. For a redirect this holds the
	// Location value.
	Links []string

	// Result is the marker value found on the page, or "".
	Result string
}

// Progress summarizes what a Completion changed.
type Progress struct {
	// NewResult is true when the completion added a result not seen before.
	NewResult bool

	// Enqueued is the number of paths appended to the frontier.
	Enqueued int

	// Done is true once the crawl has reached its target count.
	Done bool
}

// State is the shared crawl state: frontier, visited set and results.
// All methods are safe for concurrent use.
type State struct {
	mu   sync.Mutex
	cond *sync.Cond

	frontier []string

	// queued holds the paths currently in frontier.
	queued map[string]struct{}

	// visited holds every path with a terminal outcome.
	visited map[string]struct{}

	// active holds the paths currently handed out to workers.
	active map[string]struct{}

	// attempts counts requests made per path.
	attempts map[string]int

	results   []string
	resultSet map[string]struct{}

	// targetCount stops the crawl when reached. Zero or less means no limit.
	targetCount int

	// inflight counts targets handed out and not yet completed.
	inflight int

	stopped bool
}

// NewState creates a State whose frontier holds only start.
func NewState(start string, targetCount int) *State {
	s := &State{
		queued:      make(map[string]struct{}),
		visited:     make(map[string]struct{}),
		active:      make(map[string]struct{}),
		attempts:    make(map[string]int),
		resultSet:   make(map[string]struct{}),
		targetCount: targetCount,
	}
	s.cond = sync.NewCond(&s.mu)
	s.push(start)
	return s
}

// push appends path unless it is visited or already queued. Callers hold mu.
func (s *State) push(path string) bool {
	if path == "" {
		return false
	}
	if _, ok := s.visited[path]; ok {
		return false
	}
	if _, ok := s.queued[path]; ok {
		return false
	}
	if _, ok := s.active[path]; ok {
		return false
	}
	s.frontier = append(s.frontier, path)
	s.queued[path] = struct{}{}
	return true
}

// Next blocks until a target is available and returns it. It returns false
// when the crawl is over: the target count was reached, Stop was called, or
// the frontier is empty with nothing in flight.
func (s *State) Next() (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.stopped {
			return Target{}, false
		}

		for len(s.frontier) > 0 {
			path := s.frontier[0]
			s.frontier = s.frontier[1:]
			delete(s.queued, path)

			if _, ok := s.visited[path]; ok {
				continue
			}
			s.attempts[path]++
			s.active[path] = struct{}{}
			s.inflight++
			return Target{Path: path, Attempt: s.attempts[path]}, true
		}

		if s.inflight == 0 {
			s.stopped = true
			s.cond.Broadcast()
			return Target{}, false
		}
		s.cond.Wait()
	}
}

// Complete applies the outcome of a target handed out by Next.
func (s *State) Complete(c Completion) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Progress
	s.inflight--
	delete(s.active, c.Path)

	switch c.Outcome {
	case model.OutcomeRetry:
		// A path already waiting in the frontier is not queued twice.
		if _, ok := s.queued[c.Path]; !ok {
			s.frontier = append(s.frontier, c.Path)
			s.queued[c.Path] = struct{}{}
			p.Enqueued++
		}
	default:
		s.visited[c.Path] = struct{}{}

		if c.Result != "" {
			if _, ok := s.resultSet[c.Result]; !ok {
				s.resultSet[c.Result] = struct{}{}
				s.results = append(s.results, c.Result)
				p.NewResult = true
			}
		}

		for _, link := range c.Links {
			if s.push(link) {
				p.Enqueued++
			}
		}
	}

	if s.targetCount > 0 && len(s.results) >= s.targetCount {
		s.stopped = true
	}
	p.Done = s.stopped && s.reached()

	s.cond.Broadcast()
	return p
}

// reached reports whether the target count has been met. Callers hold mu.
func (s *State) reached() bool {
	return s.targetCount > 0 && len(s.results) >= s.targetCount
}

// Stop ends the crawl. Blocked and future calls to Next return false.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.cond.Broadcast()
}

// Reached reports whether the target count was reached.
func (s *State) Reached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reached()
}

// Results returns the results in discovery order.
func (s *State) Results() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.results...)
}

// VisitedCount returns the number of visited paths.
func (s *State) VisitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

// Pending returns the number of paths waiting in the frontier.
func (s *State) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frontier)
}

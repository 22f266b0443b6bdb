package model

import "fmt"

// Outcome is the state of a crawl target. A target starts Pending, becomes
// Requested while its request is in flight, and ends in one of Accepted,
// Skipped or Redirected. Retry is transient: the target goes back to the
// frontier.
type Outcome int

const (
	// OutcomePending means the target is waiting in the frontier.
	OutcomePending Outcome = iota

	// OutcomeRequested means a request for the target is in flight.
	OutcomeRequested

	// OutcomeAccepted means the page was fetched and its links followed.
	OutcomeAccepted

	// OutcomeRetry means the server answered 500 and the target was requeued.
	OutcomeRetry

	// OutcomeSkipped means the target was dropped (403, 404, or retries exhausted).
	OutcomeSkipped

	// OutcomeRedirected means the target answered 301 and its Location was queued.
	OutcomeRedirected
)

var outcomeNames = map[Outcome]string{
	OutcomePending:    "PENDING",
	OutcomeRequested:  "REQUESTED",
	OutcomeAccepted:   "ACCEPTED",
	OutcomeRetry:      "RETRY",
	OutcomeSkipped:    "SKIPPED",
	OutcomeRedirected: "REDIRECTED",
}

// String returns the upper-case name of the outcome.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether the outcome ends processing of a target.
func (o Outcome) Terminal() bool {
	return o == OutcomeAccepted || o == OutcomeSkipped || o == OutcomeRedirected
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome converts a name produced by String back to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	for o, name := range outcomeNames {
		if name == s {
			return o, nil
		}
	}
	return OutcomePending, fmt.Errorf("unknown outcome %q", s)
}

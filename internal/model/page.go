package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// Visit records one crawl target that reached a terminal outcome.
type Visit struct {
	// Path is the request target, e.g. "/fakebook/123/".
	Path string `json:"path"`

	// Status is the three character status of the final response.
	Status string `json:"status"`

	// Outcome is the terminal state reached by the target.
	Outcome Outcome `json:"outcome"`

	// Attempts counts requests sent for this target, retries included.
	Attempts int `json:"attempts"`

	// Location is the redirect target of a 301.
	Location string `json:"location,omitempty"`

	// Links is the number of links found on an accepted page.
	Links int `json:"links,omitempty"`

	// Marker is the result string found on the page, if any.
	Marker string `json:"marker,omitempty"`

	// Hash is the SHA3-256 digest of the body, hex encoded.
	Hash string `json:"hash,omitempty"`

	// Timestamp is when the outcome was reached.
	Timestamp time.Time `json:"timestamp"`
}

// HashBody returns the hex SHA3-256 digest of body, or "" for an empty body.
func HashBody(body string) string {
	if body == "" {
		return ""
	}
	sum := sha3.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

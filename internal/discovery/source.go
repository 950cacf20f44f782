// Package discovery turns search criteria into deduplicated Posting records.
// A Source fetches raw candidates from a job board; the Discoverer filters
// them, derives their canonical identity key and inserts only postings the
// owner has not seen before.
package discovery

import (
	"context"
	"time"
)

// Query is what a Source is asked to search for.
type Query struct {
	SearchTerms []string
	Location    string

	// Limit is a hint for how many candidates to return. Sources may return
	// fewer, or more when a page boundary makes that cheaper.
	Limit int
}

// Candidate is one raw listing as returned by a Source.
type Candidate struct {
	// ExternalID is the listing's identifier on the source, if it has one.
	ExternalID string

	Title    string
	Company  string
	Location string
	Salary   string
	URL      string
	WorkType string

	// Description may contain HTML; the Discoverer reduces it to text.
	Description string

	PostedAt *time.Time
}

// Source searches one job board.
type Source interface {
	// Name identifies the board, recorded as the posting's source platform.
	Name() string

	Search(ctx context.Context, q Query) ([]Candidate, error)
}

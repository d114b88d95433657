// Package source defines the contract every external metadata source
// implements, plus the rate-limited HTTP plumbing they share.
//
// A source is a plain descriptor: a name, the fields it can provide, a
// politeness delay, the query strategies it supports and three functions
// that build a request, execute it and extract candidate records.
package source

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/matsen/bibfill/internal/reference"
)

// Strategy is a kind of query attempt. Strategies combine as a bit set.
type Strategy uint8

// Query strategies, from most to least specific.
const (
	ByDOI Strategy = 1 << iota
	ByAuthorTitle
	ByTitle

	AllStrategies = ByDOI | ByAuthorTitle | ByTitle
)

// Supports reports whether st is in the set.
func (s Strategy) Supports(st Strategy) bool { return s&st != 0 }

// Capabilities is satisfied by a Source and by a Strategy set.
type Capabilities interface {
	Supports(Strategy) bool
}

func (s Strategy) String() string {
	var parts []string
	for _, st := range []struct {
		s    Strategy
		name string
	}{{ByDOI, "doi"}, {ByAuthorTitle, "author+title"}, {ByTitle, "title"}} {
		if s&st.s != 0 {
			parts = append(parts, st.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Query is one lookup attempt built from the original record. DOI attempts
// also carry the title and authors so sources can fall back on them.
type Query struct {
	Strategy Strategy
	DOI      string
	Title    string
	Authors  []string // Last names, in record order
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Strategy.String())
	if q.Strategy == ByDOI {
		fmt.Fprintf(&b, " doi=%s", q.DOI)
	}
	if len(q.Authors) > 0 && q.Strategy != ByDOI {
		fmt.Fprintf(&b, " authors=%s", strings.Join(q.Authors, ","))
	}
	if q.Title != "" && q.Strategy != ByDOI {
		fmt.Fprintf(&b, " title=%q", q.Title)
	}
	return b.String()
}

// Response is the raw answer to one request.
type Response struct {
	URL      string
	Status   int
	Body     []byte
	Header   http.Header
	Duration time.Duration
	Cached   bool
}

// Source describes one external metadata provider.
type Source struct {
	Name       string
	Fields     reference.FieldSet // Fields candidates may populate
	Delay      time.Duration      // Minimum interval between requests
	Strategies Strategy           // Attempts this source can answer

	// NoWarning lists statuses meaning "no candidate" rather than failure,
	// such as 404 for unknown DOIs. May be nil.
	NoWarning func(Query) []int

	// Build returns the request for q, or nil when the source cannot
	// express q.
	Build func(ctx context.Context, q Query) (*http.Request, error)

	// Execute performs the request, usually Fetcher.Do.
	Execute func(ctx context.Context, req *http.Request) (*Response, error)

	// Extract parses a 200 response into candidate records.
	Extract func(q Query, resp *Response) ([]*reference.Reference, error)
}

// Supports reports whether the source answers the given strategy.
func (s *Source) Supports(st Strategy) bool { return s.Strategies.Supports(st) }

// Lookup runs a single attempt and returns the candidates it produced.
//
// A tolerated status yields no candidates and no error. Any other non-200
// status is a *StatusError. Candidates populating fields outside Fields
// are rejected with ErrUndeclaredField.
func (s *Source) Lookup(ctx context.Context, q Query) ([]*reference.Reference, *Response, error) {
	req, err := s.Build(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: building request: %w", s.Name, err)
	}
	if req == nil {
		return nil, nil, nil
	}

	resp, err := s.Execute(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", s.Name, err)
	}

	if resp.Status != http.StatusOK {
		if s.NoWarning != nil && slices.Contains(s.NoWarning(q), resp.Status) {
			return nil, resp, nil
		}
		return nil, resp, &StatusError{Source: s.Name, Status: resp.Status, URL: resp.URL}
	}

	cands, err := s.Extract(q, resp)
	if err != nil {
		return nil, resp, fmt.Errorf("%w: %s: %v", ErrParse, s.Name, err)
	}
	for _, c := range cands {
		if extra := c.Fields().Minus(s.Fields); !extra.Empty() {
			return nil, resp, fmt.Errorf("%w: %s set %s", ErrUndeclaredField, s.Name, extra)
		}
	}
	return cands, resp, nil
}

// NotFoundOnDOI is a NoWarning function tolerating 404 for DOI lookups.
func NotFoundOnDOI(q Query) []int {
	if q.Strategy == ByDOI {
		return []int{http.StatusNotFound}
	}
	return nil
}

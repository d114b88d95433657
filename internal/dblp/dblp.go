// Package dblp looks records up in the dblp computer science bibliography.
// dblp has no DOI endpoint; every query is a free-text search such as
// https://dblp.org/search/publ/api?format=json&h=10&q=Lamiraux+Reactive+Path
package dblp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

const (
	Name    = "dblp"
	BaseURL = "https://dblp.org/search/publ/api"
)

// Fields lists what dblp can provide.
var Fields = reference.NewFieldSet(
	reference.Author,
	reference.DOI,
	reference.Pages,
	reference.Title,
	reference.Volume,
	reference.URL,
	reference.Year,
)

// New returns the dblp source.
func New(opts ...source.Option) *source.Source {
	s := source.NewSettings(opts...)
	f := source.NewFetcher(Name, 0, s)
	base := s.Endpoint(BaseURL)
	return &source.Source{
		Name:       Name,
		Fields:     Fields,
		Strategies: source.ByAuthorTitle | source.ByTitle,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			return source.NewRequest(ctx, base, url.Values{
				"format": {"json"},
				"h":      {strconv.Itoa(source.MaxResults)},
				"q":      {SearchTerms(q)},
			})
		},
		Execute: f.Do,
		Extract: extract,
	}
}

// SearchTerms joins author last names and title into one search string.
func SearchTerms(q source.Query) string {
	terms := append([]string{}, q.Authors...)
	if q.Title != "" {
		terms = append(terms, q.Title)
	}
	return strings.Join(terms, " ")
}

type response struct {
	Result struct {
		Hits struct {
			Hit []struct {
				Info info `json:"info"`
			} `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type info struct {
	Authors struct {
		Author source.OneOrMany[struct {
			Text string `json:"text"`
		}] `json:"author"`
	} `json:"authors"`
	Title  string                   `json:"title"`
	DOI    string                   `json:"doi"`
	Pages  string                   `json:"pages"`
	Volume source.Flex              `json:"volume"`
	Year   source.Flex              `json:"year"`
	EE     source.OneOrMany[string] `json:"ee"`
	Access string                   `json:"access"`
}

func extract(_ source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var r response
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	var cands []*reference.Reference
	for _, hit := range r.Result.Hits.Hit {
		cands = append(cands, hit.Info.candidate())
	}
	return cands, nil
}

func (in info) candidate() *reference.Reference {
	var names []string
	for _, a := range in.Authors.Author {
		names = append(names, a.Text)
	}
	c := source.NewCandidate(Name).
		People(reference.Author, names).
		Set(reference.DOI, in.DOI).
		Set(reference.Pages, in.Pages).
		Set(reference.Title, strings.TrimSuffix(strings.TrimSpace(in.Title), ".")).
		Set(reference.Volume, in.Volume.String()).
		Set(reference.Year, in.Year.String())
	if in.Access == "open" && len(in.EE) > 0 {
		c.Set(reference.URL, in.EE[0])
	}
	return c.Ref()
}

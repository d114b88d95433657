// Package crossref looks records up in the Crossref REST API.
//
// DOI mode:     https://api.crossref.org/works/10.1109/tro.2004.829459
// Search mode:  https://api.crossref.org/works?rows=10&query.title=...&query.author=...
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

const (
	// Name identifies the source on the command line and in reports.
	Name = "crossref"

	// BaseURL is the works endpoint.
	BaseURL = "https://api.crossref.org/works"

	// Delay is the floor between requests. Responses advertise the actual
	// limit, which the fetcher follows.
	Delay = 20 * time.Millisecond
)

// Fields lists what Crossref can provide.
var Fields = reference.NewFieldSet(
	reference.Author,
	reference.Booktitle,
	reference.DOI,
	reference.ISSN,
	reference.ISBN,
	reference.Journal,
	reference.Month,
	reference.Pages,
	reference.Publisher,
	reference.Title,
	reference.Volume,
	reference.Year,
)

// New returns the Crossref source.
func New(opts ...source.Option) *source.Source {
	s := source.NewSettings(opts...)
	f := source.NewFetcher(Name, Delay, s, source.WithRateLimitHeaders())
	base := s.Endpoint(BaseURL)
	return &source.Source{
		Name:       Name,
		Fields:     Fields,
		Delay:      Delay,
		Strategies: source.AllStrategies,
		NoWarning:  source.NotFoundOnDOI,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			return buildRequest(ctx, base, q)
		},
		Execute: f.Do,
		Extract: extract,
	}
}

func buildRequest(ctx context.Context, base string, q source.Query) (*http.Request, error) {
	if q.Strategy == source.ByDOI {
		return source.NewRequest(ctx, base+"/"+source.PathEscape(q.DOI), nil)
	}
	params := url.Values{"rows": {strconv.Itoa(source.MaxResults)}}
	if q.Title != "" {
		params.Set("query.title", q.Title)
	}
	if len(q.Authors) > 0 {
		params.Set("query.author", strings.Join(q.Authors, " "))
	}
	return source.NewRequest(ctx, base, params)
}

type response struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
}

type searchMessage struct {
	Items []work `json:"items"`
}

type work struct {
	DOI             string      `json:"DOI"`
	Type            string      `json:"type"`
	Title           []string    `json:"title"`
	ContainerTitle  []string    `json:"container-title"`
	Author          []person    `json:"author"`
	ISSN            []string    `json:"ISSN"`
	ISBN            []string    `json:"ISBN"`
	Page            string      `json:"page"`
	Publisher       string      `json:"publisher"`
	Volume          source.Flex `json:"volume"`
	PublishedPrint  date        `json:"published-print"`
	Issued          date        `json:"issued"`
	PublishedOnline date        `json:"published-online"`
	Created         date        `json:"created"`
	ContentCreated  date        `json:"content-created"`
}

type person struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type date struct {
	DateParts [][]source.Flex `json:"date-parts"`
}

// yearMonth returns the first date part pair, or empty strings.
func (d date) yearMonth() (string, string) {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return "", ""
	}
	parts := d.DateParts[0]
	month := ""
	if len(parts) > 1 {
		month = parts[1].String()
	}
	return parts[0].String(), month
}

func extract(q source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var r response
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if r.Status != "ok" {
		return nil, nil
	}

	var works []work
	if q.Strategy == source.ByDOI {
		var w work
		if err := json.Unmarshal(r.Message, &w); err != nil {
			return nil, fmt.Errorf("decoding work: %w", err)
		}
		works = []work{w}
	} else {
		var m searchMessage
		if err := json.Unmarshal(r.Message, &m); err != nil {
			return nil, fmt.Errorf("decoding items: %w", err)
		}
		works = m.Items
	}

	cands := make([]*reference.Reference, 0, len(works))
	for _, w := range works {
		cands = append(cands, w.candidate())
	}
	return cands, nil
}

func (w work) candidate() *reference.Reference {
	c := source.NewCandidate(Name)

	var authors []string
	for _, p := range w.Author {
		if p.Family != "" {
			authors = append(authors, p.Family+", "+p.Given)
		}
	}
	c.People(reference.Author, authors)

	container := first(w.ContainerTitle)
	if w.Type == "journal-article" {
		c.Set(reference.Journal, container)
	} else {
		c.Set(reference.Booktitle, container)
	}

	for _, d := range []date{w.PublishedPrint, w.Issued, w.PublishedOnline, w.Created, w.ContentCreated} {
		if year, month := d.yearMonth(); year != "" {
			c.Set(reference.Year, year).Set(reference.Month, month)
			break
		}
	}

	return c.
		Set(reference.DOI, w.DOI).
		Set(reference.ISSN, first(w.ISSN)).
		Set(reference.ISBN, first(w.ISBN)).
		Set(reference.Pages, w.Page).
		Set(reference.Publisher, w.Publisher).
		Set(reference.Title, first(w.Title)).
		Set(reference.Volume, w.Volume.String()).
		Ref()
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

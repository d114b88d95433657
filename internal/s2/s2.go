// Package s2 looks records up on Semantic Scholar.
//
// DOI mode:    https://api.semanticscholar.org/graph/v1/paper/DOI:10.1109/tro.2004.829459?fields=...
// Title mode:  https://api.semanticscholar.org/graph/v1/paper/search?fields=...&limit=10&query=...
package s2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

const (
	Name    = "s2"
	BaseURL = "https://api.semanticscholar.org/graph/v1/paper"

	// Delay keeps below 100 requests per 5 minutes.
	Delay = 3 * time.Second
)

// PaperFields are the fields requested for every paper.
const PaperFields = "paperId,externalIds,url,title,venue,year,openAccessPdf," +
	"publicationVenue,publicationTypes,publicationDate,journal,authors"

// Fields lists what Semantic Scholar can provide.
var Fields = reference.NewFieldSet(
	reference.Author,
	reference.Booktitle,
	reference.DOI,
	reference.ISSN,
	reference.Journal,
	reference.Month,
	reference.Pages,
	reference.Title,
	reference.URL,
	reference.Volume,
	reference.Year,
)

// New returns the Semantic Scholar source. The API key, when set, is sent
// in the x-api-key header.
func New(opts ...source.Option) *source.Source {
	s := source.NewSettings(opts...)
	f := source.NewFetcher(Name, Delay, s)
	base := s.Endpoint(BaseURL)
	return &source.Source{
		Name:       Name,
		Fields:     Fields,
		Delay:      Delay,
		Strategies: source.ByDOI | source.ByTitle,
		NoWarning:  source.NotFoundOnDOI,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			params := url.Values{"fields": {PaperFields}}
			var (
				req *http.Request
				err error
			)
			if q.Strategy == source.ByDOI {
				req, err = source.NewRequest(ctx, base+"/DOI:"+source.PathEscape(q.DOI), params)
			} else {
				params.Set("limit", strconv.Itoa(source.MaxResults))
				params.Set("query", q.Title)
				req, err = source.NewRequest(ctx, base+"/search", params)
			}
			if err != nil {
				return nil, err
			}
			if s.APIKey != "" {
				req.Header.Set("x-api-key", s.APIKey)
			}
			return req, nil
		},
		Execute: f.Do,
		Extract: extract,
	}
}

// Paper is a paper as returned by the graph API.
type Paper struct {
	PaperID     string `json:"paperId"`
	ExternalIDs struct {
		DOI   string `json:"DOI"`
		ArXiv string `json:"ArXiv"`
	} `json:"externalIds"`
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	Venue         string      `json:"venue"`
	Year          source.Flex `json:"year"`
	PubDate       string      `json:"publicationDate"` // YYYY-MM-DD
	PubTypes      []string    `json:"publicationTypes"`
	Authors       []Author    `json:"authors"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
	PublicationVenue *struct {
		Name string `json:"name"`
		Type string `json:"type"`
		ISSN string `json:"issn"`
	} `json:"publicationVenue"`
	Journal *struct {
		Name   string `json:"name"`
		Volume string `json:"volume"`
		Pages  string `json:"pages"`
	} `json:"journal"`
}

// Author is a paper author.
type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type searchResponse struct {
	Total int     `json:"total"`
	Data  []Paper `json:"data"`
}

func extract(q source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var papers []Paper
	if q.Strategy == source.ByDOI {
		var p Paper
		if err := json.Unmarshal(resp.Body, &p); err != nil {
			return nil, fmt.Errorf("decoding paper: %w", err)
		}
		papers = []Paper{p}
	} else {
		var r searchResponse
		if err := json.Unmarshal(resp.Body, &r); err != nil {
			return nil, fmt.Errorf("decoding search: %w", err)
		}
		papers = r.Data
	}

	cands := make([]*reference.Reference, 0, len(papers))
	for _, p := range papers {
		cands = append(cands, p.Candidate())
	}
	return cands, nil
}

// VenueName returns the best available venue name.
func (p Paper) VenueName() string {
	switch {
	case strings.TrimSpace(p.Venue) != "":
		return p.Venue
	case p.PublicationVenue != nil && p.PublicationVenue.Name != "":
		return p.PublicationVenue.Name
	case p.Journal != nil:
		return p.Journal.Name
	}
	return ""
}

// IsJournal reports whether the paper appeared in a journal rather than a
// conference or book.
func (p Paper) IsJournal() bool {
	if p.PublicationVenue != nil && p.PublicationVenue.Type == "journal" {
		return true
	}
	return slices.Contains(p.PubTypes, "JournalArticle")
}

// Candidate converts the paper to a candidate record.
func (p Paper) Candidate() *reference.Reference {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}

	c := source.NewCandidate(Name).
		People(reference.Author, names).
		Set(reference.DOI, p.ExternalIDs.DOI).
		Set(reference.Title, p.Title).
		Date(p.PubDate, false)
	if !c.Has(reference.Year) {
		c.Set(reference.Year, p.Year.String())
	}

	venue := p.VenueName()
	if p.IsJournal() {
		c.Set(reference.Journal, venue)
	} else {
		c.Set(reference.Booktitle, venue)
	}
	if p.PublicationVenue != nil {
		c.Set(reference.ISSN, p.PublicationVenue.ISSN)
	}
	if p.Journal != nil {
		c.Set(reference.Pages, p.Journal.Pages)
		c.Set(reference.Volume, p.Journal.Volume)
	}

	if p.OpenAccessPDF != nil && p.OpenAccessPDF.URL != "" {
		c.Set(reference.URL, p.OpenAccessPDF.URL)
	} else {
		c.Set(reference.URL, p.URL)
	}
	return c.Ref()
}

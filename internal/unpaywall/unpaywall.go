// Package unpaywall looks records up on Unpaywall, mainly to find open
// access PDF links.
//
// DOI mode:    https://api.unpaywall.org/v2/10.1109/tro.2004.829459?email=...
// Title mode:  https://api.unpaywall.org/v2/search/?query=...&email=...
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

const (
	Name    = "unpaywall"
	BaseURL = "https://api.unpaywall.org/v2/"
)

// Fields lists what Unpaywall can provide.
var Fields = reference.NewFieldSet(
	reference.Author,
	reference.Booktitle,
	reference.DOI,
	reference.ISSN,
	reference.Journal,
	reference.Month,
	reference.Publisher,
	reference.Title,
	reference.URL,
	reference.Year,
)

// New returns the Unpaywall source. Unpaywall requires a contact email on
// every request; without one the source sends nothing.
func New(opts ...source.Option) *source.Source {
	s := source.NewSettings(opts...)
	f := source.NewFetcher(Name, 0, s)
	base := s.Endpoint(BaseURL)
	if s.Email == "" {
		s.Logger.Warn("unpaywall needs a contact email, set email in the config or " +
			"BIBFILL_EMAIL; skipping it")
	}
	return &source.Source{
		Name:       Name,
		Fields:     Fields,
		Strategies: source.ByDOI | source.ByTitle,
		NoWarning:  source.NotFoundOnDOI,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			if s.Email == "" {
				return nil, nil
			}
			params := url.Values{"email": {s.Email}}
			if q.Strategy == source.ByDOI {
				return source.NewRequest(ctx, base+source.PathEscape(q.DOI), params)
			}
			params.Set("query", q.Title)
			return source.NewRequest(ctx, base+"search/", params)
		},
		Execute: f.Do,
		Extract: extract,
	}
}

type person struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type record struct {
	DOI           string      `json:"doi"`
	Title         string      `json:"title"`
	Genre         string      `json:"genre"`
	JournalName   string      `json:"journal_name"`
	JournalISSNL  string      `json:"journal_issn_l"`
	Publisher     string      `json:"publisher"`
	PublishedDate string      `json:"published_date"`
	Year          source.Flex `json:"year"`
	ZAuthors      []person    `json:"z_authors"`
	BestOA        *struct {
		URLForPDF string `json:"url_for_pdf"`
	} `json:"best_oa_location"`
}

func extract(q source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var records []record
	if q.Strategy == source.ByDOI {
		var r record
		if err := json.Unmarshal(resp.Body, &r); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		records = []record{r}
	} else {
		var r struct {
			Results []struct {
				Response record `json:"response"`
			} `json:"results"`
		}
		if err := json.Unmarshal(resp.Body, &r); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		for _, res := range r.Results {
			records = append(records, res.Response)
		}
	}

	cands := make([]*reference.Reference, 0, len(records))
	for _, r := range records {
		cands = append(cands, r.candidate())
	}
	return cands, nil
}

func (r record) candidate() *reference.Reference {
	var authors []string
	for _, p := range r.ZAuthors {
		if p.Family != "" {
			authors = append(authors, p.Family+", "+p.Given)
		}
	}
	c := source.NewCandidate(Name).
		People(reference.Author, authors).
		Set(reference.DOI, r.DOI).
		Set(reference.ISSN, r.JournalISSNL).
		Set(reference.Publisher, r.Publisher).
		Set(reference.Title, r.Title).
		Date(r.PublishedDate, true)
	if !c.Has(reference.Year) {
		c.Set(reference.Year, r.Year.String())
	}
	if r.Genre == "journal-article" {
		c.Set(reference.Journal, r.JournalName)
	} else {
		c.Set(reference.Booktitle, r.JournalName)
	}
	if r.BestOA != nil {
		c.Set(reference.URL, r.BestOA.URLForPDF)
	}
	return c.Ref()
}

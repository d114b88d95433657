// Package openalex looks records up on OpenAlex.
//
// DOI mode:    https://api.openalex.org/works/https://doi.org/10.1145/3571258
// Title mode:  https://api.openalex.org/works?filter=title.search:...&per-page=10
package openalex

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
	Name    = "openalex"
	BaseURL = "https://api.openalex.org/works"

	// Delay keeps below 10 requests per second and 100k per day.
	Delay = 300 * time.Millisecond
)

// Fields lists what OpenAlex can provide.
var Fields = reference.NewFieldSet(
	reference.Author,
	reference.DOI,
	reference.ISSN,
	reference.Journal,
	reference.Month,
	reference.Number,
	reference.Pages,
	reference.Publisher,
	reference.Title,
	reference.URL,
	reference.Volume,
	reference.Year,
)

// New returns the OpenAlex source. The contact email, when set, joins the
// polite pool through the mailto parameter.
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
			params := url.Values{}
			if s.Email != "" {
				params.Set("mailto", s.Email)
			}
			if q.Strategy == source.ByDOI {
				return source.NewRequest(ctx, base+"/https://doi.org/"+source.PathEscape(q.DOI), params)
			}
			// Commas separate filters.
			params.Set("filter", "title.search:"+strings.ReplaceAll(q.Title, ",", " "))
			params.Set("per-page", strconv.Itoa(source.MaxResults))
			return source.NewRequest(ctx, base, params)
		},
		Execute: f.Do,
		Extract: extract,
	}
}

type location struct {
	PDFURL         string `json:"pdf_url"`
	LandingPageURL string `json:"landing_page_url"`
	Source         *struct {
		DisplayName          string `json:"display_name"`
		ISSNL                string `json:"issn_l"`
		HostOrganizationName string `json:"host_organization_name"`
	} `json:"source"`
}

type work struct {
	ID              string      `json:"id"`
	DOI             string      `json:"doi"`
	DisplayName     string      `json:"display_name"`
	Type            string      `json:"type"`
	PublicationDate string      `json:"publication_date"`
	PublicationYear source.Flex `json:"publication_year"`
	Authorships     []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation *location `json:"primary_location"`
	BestOALocation  *location `json:"best_oa_location"`
	Biblio          struct {
		Volume    source.Flex `json:"volume"`
		Issue     source.Flex `json:"issue"`
		FirstPage source.Flex `json:"first_page"`
		LastPage  source.Flex `json:"last_page"`
	} `json:"biblio"`
}

func extract(q source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var works []work
	if q.Strategy == source.ByDOI {
		var w work
		if err := json.Unmarshal(resp.Body, &w); err != nil {
			return nil, fmt.Errorf("decoding work: %w", err)
		}
		works = []work{w}
	} else {
		var r struct {
			Results []work `json:"results"`
		}
		if err := json.Unmarshal(resp.Body, &r); err != nil {
			return nil, fmt.Errorf("decoding results: %w", err)
		}
		works = r.Results
	}

	cands := make([]*reference.Reference, 0, len(works))
	for _, w := range works {
		cands = append(cands, w.candidate())
	}
	return cands, nil
}

// url picks the open access PDF first, then any landing page.
func (w work) url() string {
	for _, loc := range []*location{w.BestOALocation, w.PrimaryLocation} {
		if loc == nil {
			continue
		}
		if loc.PDFURL != "" {
			return loc.PDFURL
		}
		if loc.LandingPageURL != "" {
			return loc.LandingPageURL
		}
	}
	return ""
}

func (w work) candidate() *reference.Reference {
	var names []string
	for _, a := range w.Authorships {
		names = append(names, a.Author.DisplayName)
	}

	c := source.NewCandidate(Name).
		People(reference.Author, names).
		Set(reference.DOI, w.DOI).
		Set(reference.Title, w.DisplayName).
		Set(reference.URL, w.url()).
		Set(reference.Number, w.Biblio.Issue.String()).
		Set(reference.Volume, w.Biblio.Volume.String()).
		Pages(w.Biblio.FirstPage.String(), w.Biblio.LastPage.String()).
		Date(w.PublicationDate, true)
	if !c.Has(reference.Year) {
		c.Set(reference.Year, w.PublicationYear.String())
	}

	if loc := w.PrimaryLocation; loc != nil && loc.Source != nil {
		if w.Type != "book" && w.Type != "book-chapter" {
			c.Set(reference.Journal, loc.Source.DisplayName)
		}
		c.Set(reference.ISSN, loc.Source.ISSNL)
		c.Set(reference.Publisher, loc.Source.HostOrganizationName)
	}
	return c.Ref()
}

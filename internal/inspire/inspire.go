// Package inspire looks records up on INSPIRE-HEP.
//
// DOI mode:    https://inspirehep.net/api/doi/10.1109/tasc.2023.3336272
// Search mode: https://inspirehep.net/api/literature?q=title ...&size=10
package inspire

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
	Name    = "inspire"
	BaseURL = "https://inspirehep.net/api"

	// Delay keeps below 15 requests in a 5 second window.
	Delay = 5 * time.Second / 15
)

// Fields lists what INSPIRE can provide.
var Fields = reference.NewFieldSet(
	reference.Author,
	reference.DOI,
	reference.ISBN,
	reference.Journal,
	reference.Month,
	reference.Number,
	reference.Pages,
	reference.Title,
	reference.Volume,
	reference.Year,
)

// New returns the INSPIRE-HEP source.
func New(opts ...source.Option) *source.Source {
	s := source.NewSettings(opts...)
	f := source.NewFetcher(Name, Delay, s)
	base := s.Endpoint(BaseURL)
	return &source.Source{
		Name:       Name,
		Fields:     Fields,
		Delay:      Delay,
		Strategies: source.AllStrategies,
		NoWarning:  source.NotFoundOnDOI,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			if q.Strategy == source.ByDOI {
				return source.NewRequest(ctx, base+"/doi/"+source.PathEscape(q.DOI), nil)
			}
			return source.NewRequest(ctx, base+"/literature", url.Values{
				"q":    {SearchQuery(q)},
				"size": {strconv.Itoa(source.MaxResults)},
			})
		},
		Execute: f.Do,
		Extract: extract,
	}
}

// SearchQuery renders q in the INSPIRE search syntax, for instance
// "title Reactive paths and a Lamiraux".
func SearchQuery(q source.Query) string {
	var b strings.Builder
	b.WriteString("title ")
	b.WriteString(q.Title)
	if q.Strategy == source.ByAuthorTitle {
		for _, a := range q.Authors {
			b.WriteString(" and a ")
			b.WriteString(a)
		}
	}
	return b.String()
}

type metadata struct {
	Titles []struct {
		Title string `json:"title"`
	} `json:"titles"`
	Authors []struct {
		FullName string `json:"full_name"`
	} `json:"authors"`
	DOIs []struct {
		Value string `json:"value"`
	} `json:"dois"`
	ISBNs []struct {
		Value source.Flex `json:"value"`
	} `json:"isbns"`
	EarliestDate string `json:"earliest_date"`
	Imprints     []struct {
		Date string `json:"date"`
	} `json:"imprints"`
	PublicationInfo []struct {
		JournalTitle  string      `json:"journal_title"`
		JournalVolume string      `json:"journal_volume"`
		JournalIssue  source.Flex `json:"journal_issue"`
		PageStart     source.Flex `json:"page_start"`
		PageEnd       source.Flex `json:"page_end"`
		Year          source.Flex `json:"year"`
	} `json:"publication_info"`
}

type hit struct {
	Metadata metadata `json:"metadata"`
}

func extract(q source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var hits []hit
	if q.Strategy == source.ByDOI {
		var h hit
		if err := json.Unmarshal(resp.Body, &h); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		hits = []hit{h}
	} else {
		var r struct {
			Hits struct {
				Hits []hit `json:"hits"`
			} `json:"hits"`
		}
		if err := json.Unmarshal(resp.Body, &r); err != nil {
			return nil, fmt.Errorf("decoding hits: %w", err)
		}
		hits = r.Hits.Hits
	}

	cands := make([]*reference.Reference, 0, len(hits))
	for _, h := range hits {
		cands = append(cands, h.Metadata.candidate())
	}
	return cands, nil
}

func (m metadata) candidate() *reference.Reference {
	names := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		names = append(names, a.FullName)
	}

	c := source.NewCandidate(Name).People(reference.Author, names)
	if len(m.Titles) > 0 {
		c.Set(reference.Title, m.Titles[0].Title)
	}
	if len(m.DOIs) > 0 {
		c.Set(reference.DOI, m.DOIs[0].Value)
	}
	if len(m.ISBNs) > 0 {
		c.Set(reference.ISBN, m.ISBNs[0].Value.String())
	}

	c.Date(m.EarliestDate, false)
	if !c.Has(reference.Year) && len(m.Imprints) > 0 {
		c.Date(m.Imprints[0].Date, false)
	}
	if len(m.PublicationInfo) > 0 {
		pub := m.PublicationInfo[0]
		if !c.Has(reference.Year) {
			c.Set(reference.Year, pub.Year.String())
		}
		c.Set(reference.Journal, pub.JournalTitle).
			Set(reference.Number, pub.JournalIssue.String()).
			Set(reference.Volume, pub.JournalVolume).
			Pages(pub.PageStart.String(), pub.PageEnd.String())
	}
	return c.Ref()
}

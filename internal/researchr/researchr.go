// Package researchr looks records up on researchr.org. Like dblp it only
// offers free-text search:
// https://researchr.org/api/search/publication/Lamiraux+Reactive+Path
package researchr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

const (
	Name    = "researchr"
	BaseURL = "https://researchr.org/api/search/publication/"
)

// Fields lists what researchr can provide.
var Fields = reference.NewFieldSet(
	reference.Address,
	reference.Author,
	reference.Booktitle,
	reference.DOI,
	reference.Editor,
	reference.Month,
	reference.Number,
	reference.Organization,
	reference.Pages,
	reference.Publisher,
	reference.Title,
	reference.Volume,
	reference.Year,
)

// New returns the researchr source.
func New(opts ...source.Option) *source.Source {
	s := source.NewSettings(opts...)
	f := source.NewFetcher(Name, 0, s)
	base := s.Endpoint(BaseURL)
	return &source.Source{
		Name:       Name,
		Fields:     Fields,
		Strategies: source.ByAuthorTitle | source.ByTitle,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			terms := append(append([]string{}, q.Authors...), q.Title)
			search := strings.TrimSpace(strings.Join(terms, " "))
			return source.NewRequest(ctx, base+url.QueryEscape(search), nil)
		},
		Execute: f.Do,
		Extract: extract,
	}
}

type person struct {
	Alias struct {
		Name string `json:"name"`
	} `json:"alias"`
}

type publication struct {
	Address      string      `json:"address"`
	Authors      []person    `json:"authors"`
	Editors      []person    `json:"editors"`
	Booktitle    string      `json:"booktitle"`
	DOI          string      `json:"doi"`
	Month        source.Flex `json:"month"`
	Number       source.Flex `json:"number"`
	Organization string      `json:"organization"`
	FirstPage    source.Flex `json:"firstpage"`
	LastPage     source.Flex `json:"lastpage"`
	Publisher    string      `json:"publisher"`
	Title        string      `json:"title"`
	Volume       source.Flex `json:"volume"`
	Year         source.Flex `json:"year"`
}

func extract(_ source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var r struct {
		Result []publication `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	var cands []*reference.Reference
	for _, p := range r.Result {
		cands = append(cands, p.candidate())
	}
	return cands, nil
}

func names(people []person) []string {
	var out []string
	for _, p := range people {
		out = append(out, p.Alias.Name)
	}
	return out
}

func (p publication) candidate() *reference.Reference {
	return source.NewCandidate(Name).
		Set(reference.Address, p.Address).
		People(reference.Author, names(p.Authors)).
		Set(reference.Booktitle, p.Booktitle).
		Set(reference.DOI, p.DOI).
		People(reference.Editor, names(p.Editors)).
		Set(reference.Month, p.Month.String()).
		Set(reference.Number, p.Number.String()).
		Set(reference.Organization, p.Organization).
		Pages(p.FirstPage.String(), p.LastPage.String()).
		Set(reference.Publisher, p.Publisher).
		Set(reference.Title, p.Title).
		Set(reference.Volume, p.Volume.String()).
		Set(reference.Year, p.Year.String()).
		Ref()
}

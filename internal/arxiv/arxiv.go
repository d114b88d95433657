// Package arxiv searches arXiv by title through its Atom API.
//
//	https://export.arxiv.org/api/query?search_query=ti:"..."&start=0&max_results=10
package arxiv

import (
	"context"
	"encoding/xml"
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
	Name    = "arxiv"
	BaseURL = "https://export.arxiv.org/api/query"
	Delay   = 3 * time.Second
)

// Fields lists what arXiv can provide.
var Fields = reference.NewFieldSet(
	reference.Author,
	reference.DOI,
	reference.Month,
	reference.Title,
	reference.URL,
	reference.Year,
)

// New returns the arXiv source. arXiv cannot be queried by DOI, and its
// author search is too loose to help.
func New(opts ...source.Option) *source.Source {
	s := source.NewSettings(opts...)
	f := source.NewFetcher(Name, Delay, s)
	base := s.Endpoint(BaseURL)
	return &source.Source{
		Name:       Name,
		Fields:     Fields,
		Delay:      Delay,
		Strategies: source.ByTitle,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			if q.Title == "" {
				return nil, nil
			}
			req, err := source.NewRequest(ctx, base, url.Values{
				"search_query": {`ti:"` + strings.ReplaceAll(q.Title, `"`, "") + `"`},
				"start":        {"0"},
				"max_results":  {strconv.Itoa(source.MaxResults)},
			})
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/xml")
			return req, nil
		},
		Execute: f.Do,
		Extract: extract,
	}
}

type feed struct {
	XMLName xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	Entries []entry  `xml:"http://www.w3.org/2005/Atom entry"`
}

type entry struct {
	ID        string `xml:"http://www.w3.org/2005/Atom id"`
	Title     string `xml:"http://www.w3.org/2005/Atom title"`
	Published string `xml:"http://www.w3.org/2005/Atom published"`
	Authors   []struct {
		Name string `xml:"http://www.w3.org/2005/Atom name"`
	} `xml:"http://www.w3.org/2005/Atom author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"http://www.w3.org/2005/Atom link"`
	DOIs []string `xml:"http://arxiv.org/schemas/atom doi"`
}

func extract(_ source.Query, resp *source.Response) ([]*reference.Reference, error) {
	var f feed
	if err := xml.Unmarshal(resp.Body, &f); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}
	cands := make([]*reference.Reference, 0, len(f.Entries))
	for _, e := range f.Entries {
		cands = append(cands, e.candidate())
	}
	return cands, nil
}

// link returns the href of the link with the given title.
func (e entry) link(title string) string {
	for _, l := range e.Links {
		if l.Title == title && l.Href != "" {
			return l.Href
		}
	}
	return ""
}

func (e entry) candidate() *reference.Reference {
	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		names = append(names, a.Name)
	}

	doi := ""
	for _, d := range e.DOIs {
		if strings.TrimSpace(d) != "" {
			doi = d
			break
		}
	}
	if doi == "" {
		doi = e.link("doi")
	}

	published, _, _ := strings.Cut(e.Published, "T")
	return source.NewCandidate(Name).
		People(reference.Author, names).
		Set(reference.DOI, doi).
		Set(reference.Title, strings.Join(strings.Fields(e.Title), " ")).
		Set(reference.URL, e.link("pdf")).
		Date(published, false).
		Ref()
}

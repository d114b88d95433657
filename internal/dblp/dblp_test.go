package dblp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

const searchBody = `{"result": {"hits": {"@total": "2", "hit": [
  {"info": {
    "authors": {"author": [{"@pid": "1", "text": "Florent Lamiraux"}, {"@pid": "2", "text": "Ralf Jung 0002"}]},
    "title": "Reactive path deformation for nonholonomic mobile robots.",
    "volume": "20", "pages": "967-977", "year": "2004",
    "doi": "10.1109/TRO.2004.829459",
    "ee": "https://doi.org/10.1109/TRO.2004.829459",
    "access": "closed"
  }},
  {"info": {
    "authors": {"author": {"@pid": "3", "text": "Jane Doe"}},
    "title": "Open Paper",
    "year": 2020,
    "ee": ["https://example.org/open.pdf", "https://example.org/other"],
    "access": "open"
  }}
]}}}`

func TestSearch(t *testing.T) {
	var q string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("q")
		w.Write([]byte(searchBody))
	}))
	t.Cleanup(srv.Close)
	src := New(source.WithBaseURL(srv.URL))

	cands, _, err := src.Lookup(context.Background(), source.Query{
		Strategy: source.ByAuthorTitle,
		Title:    "Reactive Path Deformation",
		Authors:  []string{"Lamiraux"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Lamiraux Reactive Path Deformation", q)
	require.Len(t, cands, 2)

	c := cands[0]
	assert.Equal(t, "Lamiraux, Florent and Jung, Ralf", c.Get(reference.Author))
	assert.Equal(t, "Reactive path deformation for nonholonomic mobile robots", c.Title())
	assert.Equal(t, "967--977", c.Get(reference.Pages))
	assert.Equal(t, "10.1109/tro.2004.829459", c.DOI())
	assert.False(t, c.Has(reference.URL), "closed access links are not kept")

	c = cands[1]
	assert.Equal(t, "Doe, Jane", c.Get(reference.Author))
	assert.Equal(t, "2020", c.Year())
	assert.Equal(t, "https://example.org/open.pdf", c.Get(reference.URL))
}

func TestNoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"hits": {"@total": "0"}}}`))
	}))
	t.Cleanup(srv.Close)

	cands, _, err := New(source.WithBaseURL(srv.URL)).Lookup(context.Background(), source.Query{Strategy: source.ByTitle, Title: "x"})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestNoDOIStrategy(t *testing.T) {
	assert.False(t, New().Supports(source.ByDOI))
}

func TestSearchTerms(t *testing.T) {
	assert.Equal(t, "A B Title", SearchTerms(source.Query{Authors: []string{"A", "B"}, Title: "Title"}))
	assert.Equal(t, "Title", SearchTerms(source.Query{Title: "Title"}))
}

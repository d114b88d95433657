package unpaywall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

func serveFile(t *testing.T, name string, got **url.URL) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r.URL
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDOILookup(t *testing.T) {
	var got *url.URL
	srv := serveFile(t, "doi.json", &got)
	src := New(source.WithBaseURL(srv.URL+"/v2/"), source.WithEmail("me@example.org"))

	cands, _, err := src.Lookup(context.Background(), source.Query{Strategy: source.ByDOI, DOI: "10.1109/tro.2004.829459"})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "/v2/10.1109/tro.2004.829459", got.Path)
	assert.Equal(t, "me@example.org", got.Query().Get("email"))

	c := cands[0]
	assert.Equal(t, "Reactive Path Deformation for Nonholonomic Mobile Robots", c.Title())
	assert.Equal(t, "IEEE Transactions on Robotics", c.Get(reference.Journal))
	assert.Equal(t, "Lamiraux, F. and Bonnafous, D. and Lefebvre, O.", c.Get(reference.Author))
	assert.Equal(t, "1552-3098", c.Get(reference.ISSN))
	assert.Equal(t, "2004", c.Year())
	assert.Equal(t, "12", c.Get(reference.Month))
	assert.Equal(t, "https://hal.archives-ouvertes.fr/hal-01234567/file/lamiraux.pdf", c.Get(reference.URL))
}

func TestSearch(t *testing.T) {
	var got *url.URL
	srv := serveFile(t, "search.json", &got)
	src := New(source.WithBaseURL(srv.URL+"/v2/"), source.WithEmail("me@example.org"))

	cands, _, err := src.Lookup(context.Background(), source.Query{Strategy: source.ByTitle, Title: "A Conference Paper"})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "/v2/search/", got.Path)
	assert.Equal(t, "A Conference Paper", got.Query().Get("query"))

	c := cands[0]
	assert.Equal(t, "Proceedings of Something", c.Get(reference.Booktitle))
	assert.False(t, c.Has(reference.Journal))
	assert.Equal(t, "2019", c.Year())
	assert.False(t, c.Has(reference.Month), "1 January is a year-only placeholder")
	assert.False(t, c.Has(reference.URL))

	c = cands[1]
	assert.Equal(t, "2001", c.Year(), "falls back on year without a date")
	assert.False(t, c.Has(reference.Author))
}

func TestNoEmail(t *testing.T) {
	src := New(source.WithBaseURL("http://127.0.0.1:1/"))
	cands, resp, err := src.Lookup(context.Background(), source.Query{Strategy: source.ByTitle, Title: "x"})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Empty(t, cands)
}

func TestNotFoundDOI(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	src := New(source.WithBaseURL(srv.URL+"/"), source.WithEmail("me@example.org"))

	_, _, err := src.Lookup(context.Background(), source.Query{Strategy: source.ByDOI, DOI: "10.1000/missing"})
	assert.NoError(t, err)

	_, _, err = src.Lookup(context.Background(), source.Query{Strategy: source.ByTitle, Title: "x"})
	var se *source.StatusError
	assert.ErrorAs(t, err, &se)
}

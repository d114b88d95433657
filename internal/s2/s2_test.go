package s2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

func serveFile(t *testing.T, name string, got **http.Request) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDOILookup(t *testing.T) {
	var got *http.Request
	srv := serveFile(t, "paper.json", &got)
	src := New(source.WithBaseURL(srv.URL+"/paper"), source.WithAPIKey("secret"))

	cands, _, err := src.Lookup(context.Background(), source.Query{Strategy: source.ByDOI, DOI: "10.1109/tro.2004.829459"})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "/paper/DOI:10.1109/tro.2004.829459", got.URL.Path)
	assert.Equal(t, PaperFields, got.URL.Query().Get("fields"))
	assert.Equal(t, "secret", got.Header.Get("x-api-key"))

	c := cands[0]
	assert.Equal(t, "10.1109/tro.2004.829459", c.DOI())
	assert.Equal(t, "IEEE Transactions on Robotics", c.Get(reference.Journal))
	assert.False(t, c.Has(reference.Booktitle))
	assert.Equal(t, "Lamiraux, F. and Bonnafous, D. and Lefebvre, O.", c.Get(reference.Author))
	assert.Equal(t, "1552-3098", c.Get(reference.ISSN))
	assert.Equal(t, "967--977", c.Get(reference.Pages))
	assert.Equal(t, "20", c.Get(reference.Volume))
	assert.Equal(t, "2004", c.Year())
	assert.Equal(t, "12", c.Get(reference.Month))
	assert.Equal(t, "https://www.semanticscholar.org/paper/5b2f6a9c0d7e1f3a4b5c6d7e8f9a0b1c2d3e4f5a", c.Get(reference.URL))
}

func TestSearch(t *testing.T) {
	var got *http.Request
	srv := serveFile(t, "search.json", &got)
	src := New(source.WithBaseURL(srv.URL + "/paper"))

	cands, _, err := src.Lookup(context.Background(), source.Query{Strategy: source.ByTitle, Title: "A Conference Paper"})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "/paper/search", got.URL.Path)
	assert.Equal(t, "A Conference Paper", got.URL.Query().Get("query"))
	assert.Equal(t, "10", got.URL.Query().Get("limit"))
	assert.Empty(t, got.Header.Get("x-api-key"))

	c := cands[0]
	assert.Equal(t, "International Conference on Something", c.Get(reference.Booktitle))
	assert.False(t, c.Has(reference.Journal))
	assert.Equal(t, "2019", c.Year())
	assert.Equal(t, "https://arxiv.org/pdf/1901.00001", c.Get(reference.URL))

	c = cands[1]
	assert.Equal(t, "Journal of Others", c.Get(reference.Journal))
	assert.False(t, c.Has(reference.Year))
	assert.False(t, c.Has(reference.Author))
}

func TestVenue(t *testing.T) {
	tests := []struct {
		name    string
		paper   Paper
		venue   string
		journal bool
	}{
		{"empty", Paper{}, "", false},
		{"venue", Paper{Venue: "V", PubTypes: []string{"Review", "JournalArticle"}}, "V", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.venue, tt.paper.VenueName())
			assert.Equal(t, tt.journal, tt.paper.IsJournal())
		})
	}
}

func TestNotFoundDOI(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	src := New(source.WithBaseURL(srv.URL))

	cands, _, err := src.Lookup(context.Background(), source.Query{Strategy: source.ByDOI, DOI: "10.1000/missing"})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

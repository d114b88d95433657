package cascade

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/bibfill/internal/match"
	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

func record(t *testing.T, doi, title, authors string) *reference.Reference {
	t.Helper()
	r := reference.New("rec", "article")
	if doi != "" {
		require.True(t, r.SetString(reference.DOI, doi))
	}
	if title != "" {
		require.True(t, r.SetString(reference.Title, title))
	}
	if authors != "" {
		require.True(t, r.SetString(reference.Author, authors))
	}
	return r
}

// fakeSource answers every attempt with answer(q) and records the queries.
func fakeSource(answer func(q source.Query) ([]*reference.Reference, error)) (*source.Source, *[]source.Query) {
	var seen []source.Query
	src := &source.Source{
		Name:       "fake",
		Fields:     reference.AllFields(),
		Strategies: source.AllStrategies,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			seen = append(seen, q)
			return http.NewRequestWithContext(ctx, http.MethodGet, "http://fake.invalid/", nil)
		},
		Execute: func(ctx context.Context, req *http.Request) (*source.Response, error) {
			return &source.Response{URL: req.URL.String(), Status: http.StatusOK}, nil
		},
		Extract: func(q source.Query, _ *source.Response) ([]*reference.Reference, error) {
			return answer(q)
		},
	}
	return src, &seen
}

func TestPlanOrder(t *testing.T) {
	ref := record(t, "10.1234/abcd", "A Title", "Smith and Jones and Doe")

	plan := Plan(ref, source.AllStrategies)
	require.Len(t, plan, 6)

	assert.Equal(t, source.ByDOI, plan[0].Strategy)
	assert.Equal(t, "10.1234/abcd", plan[0].DOI)
	assert.Equal(t, "A Title", plan[0].Title)

	assert.Equal(t, []string{"Smith", "Jones", "Doe"}, plan[1].Authors)
	assert.Equal(t, []string{"Smith"}, plan[2].Authors)
	assert.Equal(t, []string{"Jones"}, plan[3].Authors)
	assert.Equal(t, []string{"Doe"}, plan[4].Authors)
	for _, q := range plan[1:5] {
		assert.Equal(t, source.ByAuthorTitle, q.Strategy)
		assert.Equal(t, "A Title", q.Title)
	}

	assert.Equal(t, source.ByTitle, plan[5].Strategy)
	assert.Empty(t, plan[5].Authors)
}

func TestPlanVariants(t *testing.T) {
	tests := []struct {
		name      string
		doi       string
		title     string
		authors   string
		supported source.Strategy
		want      int
	}{
		{"nothing to query", "", "", "Smith", source.AllStrategies, 0},
		{"doi only", "10.1234/abcd", "", "Smith", source.AllStrategies, 1},
		{"single author skips per-author", "", "T", "Smith", source.AllStrategies, 2},
		{"no authors", "", "T", "", source.AllStrategies, 1},
		{"title only source", "10.1234/abcd", "T", "Smith and Doe", source.ByTitle, 1},
		{"no doi support", "10.1234/abcd", "T", "Smith and Doe", source.ByAuthorTitle | source.ByTitle, 4},
		{"duplicate surnames", "", "T", "Wang, Li and Wang, Wei and Smith, J.", source.AllStrategies, 4},
		{"one distinct surname", "", "T", "Wang, Li and WANG, Wei", source.AllStrategies, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := record(t, tt.doi, tt.title, tt.authors)
			assert.Len(t, Plan(ref, tt.supported), tt.want)
		})
	}
}

func TestPlanDistinctAuthors(t *testing.T) {
	ref := record(t, "", "T", "Wang, Li and Smith, J. and Wang, Wei")

	plan := Plan(ref, source.AllStrategies)
	require.Len(t, plan, 4)
	assert.Equal(t, []string{"Wang", "Smith"}, plan[0].Authors)
	assert.Equal(t, []string{"Wang"}, plan[1].Authors)
	assert.Equal(t, []string{"Smith"}, plan[2].Authors)
	assert.Equal(t, source.ByTitle, plan[3].Strategy)
}

func TestPlanCapsAuthorQueries(t *testing.T) {
	authors := ""
	for i := 0; i < 15; i++ {
		if i > 0 {
			authors += " and "
		}
		authors += "Author" + string(rune('A'+i))
	}
	ref := record(t, "", "T", authors)
	// all-authors + capped single authors + title
	assert.Len(t, Plan(ref, source.AllStrategies), 1+MaxAuthorQueries+1)
}

func TestRunStopsAtFirstMatch(t *testing.T) {
	ref := record(t, "10.1234/abcd", "A Title", "Smith and Jones and Doe")

	src, seen := fakeSource(func(q source.Query) ([]*reference.Reference, error) {
		// Only the second single-author attempt finds the work.
		if q.Strategy == source.ByAuthorTitle && len(q.Authors) == 1 && q.Authors[0] == "Jones" {
			c := reference.New("", "")
			c.SetString(reference.Title, "A title")
			c.SetString(reference.Journal, "Nature")
			return []*reference.Reference{c}, nil
		}
		return nil, nil
	})

	res, err := (&Runner{}).Run(context.Background(), src, ref)
	require.NoError(t, err)
	require.NotNil(t, res.Contribution)
	assert.Equal(t, "Nature", res.Contribution.Get(reference.Journal))
	assert.Equal(t, match.TitleMatch, res.Score)
	assert.Len(t, *seen, 4)
	assert.Len(t, res.Attempts, 4)
}

func TestRunExhaustsWithoutMatch(t *testing.T) {
	ref := record(t, "10.1234/abcd", "A Title", "Smith and Jones and Doe")

	src, seen := fakeSource(func(q source.Query) ([]*reference.Reference, error) {
		c := reference.New("", "")
		c.SetString(reference.Title, "Something Else")
		return []*reference.Reference{c}, nil
	})

	res, err := (&Runner{}).Run(context.Background(), src, ref)
	require.NoError(t, err)
	assert.Nil(t, res.Contribution)
	assert.Len(t, *seen, 6)
}

func TestRunPicksBestCandidate(t *testing.T) {
	ref := record(t, "", "A Title", "Smith")

	src, _ := fakeSource(func(q source.Query) ([]*reference.Reference, error) {
		weak := reference.New("weak", "")
		weak.SetString(reference.Title, "A-Title")
		strong := reference.New("strong", "")
		strong.SetString(reference.Title, "A Title")
		strong.SetString(reference.Author, "John Smith")
		veto := reference.New("veto", "")
		veto.SetString(reference.Title, "A Title")
		veto.SetString(reference.Author, "Jones")
		return []*reference.Reference{veto, weak, strong}, nil
	})

	res, err := (&Runner{}).Run(context.Background(), src, ref)
	require.NoError(t, err)
	require.NotNil(t, res.Contribution)
	assert.Equal(t, "strong", res.Contribution.ID)
}

func TestRunContinuesAfterFailures(t *testing.T) {
	ref := record(t, "", "A Title", "Smith and Doe")

	calls := 0
	src, _ := fakeSource(func(q source.Query) ([]*reference.Reference, error) {
		calls++
		if calls < 4 {
			return nil, errors.New("boom")
		}
		c := reference.New("", "")
		c.SetString(reference.Title, "A Title")
		return []*reference.Reference{c}, nil
	})

	res, err := (&Runner{}).Run(context.Background(), src, ref)
	require.NoError(t, err)
	require.NotNil(t, res.Contribution)
	require.Len(t, res.Attempts, 4)
	assert.ErrorIs(t, res.Attempts[0].Err, source.ErrParse)
	assert.Equal(t, source.ByTitle, res.Attempts[3].Query.Strategy)
}

func TestRunCancelled(t *testing.T) {
	ref := record(t, "", "A Title", "Smith and Doe")
	src, seen := fakeSource(func(q source.Query) ([]*reference.Reference, error) { return nil, nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Runner{}).Run(ctx, src, ref)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *seen)
}

func TestRunFlagsRateLimitedAttempts(t *testing.T) {
	ref := record(t, "", "A Title", "Smith and Doe")

	src, _ := fakeSource(func(q source.Query) ([]*reference.Reference, error) {
		c := reference.New("", "")
		c.SetString(reference.Title, "A Title")
		return []*reference.Reference{c}, nil
	})
	calls := 0
	src.Execute = func(ctx context.Context, req *http.Request) (*source.Response, error) {
		calls++
		if calls == 1 {
			return &source.Response{URL: req.URL.String(), Status: http.StatusTooManyRequests}, nil
		}
		return &source.Response{URL: req.URL.String(), Status: http.StatusOK}, nil
	}

	res, err := (&Runner{}).Run(context.Background(), src, ref)
	require.NoError(t, err)
	require.NotNil(t, res.Contribution)
	require.Len(t, res.Attempts, 2)
	assert.True(t, res.Attempts[0].RateLimited)
	assert.Equal(t, http.StatusTooManyRequests, res.Attempts[0].Status)
	assert.False(t, res.Attempts[1].RateLimited)
}

func TestRunJournalBreaksTie(t *testing.T) {
	ref := record(t, "", "A Title", "Smith")
	require.True(t, ref.SetString(reference.Year, "2020"))
	require.True(t, ref.SetString(reference.Journal, "Journal of Molecular Biology"))

	src, _ := fakeSource(func(q source.Query) ([]*reference.Reference, error) {
		var cands []*reference.Reference
		for _, c := range []struct{ id, journal string }{
			{"preprint", "bioRxiv"},
			{"article", "J. Mol. Biol."},
		} {
			r := reference.New(c.id, "")
			r.SetString(reference.Title, "A Title")
			r.SetString(reference.Author, "Smith, J.")
			r.SetString(reference.Year, "2020")
			r.SetString(reference.Journal, c.journal)
			cands = append(cands, r)
		}
		return cands, nil
	})

	res, err := (&Runner{}).Run(context.Background(), src, ref)
	require.NoError(t, err)
	require.NotNil(t, res.Contribution)
	assert.Equal(t, "article", res.Contribution.ID)
	assert.Equal(t, match.TitleMatch+match.AuthorBonus+match.YearBonus+match.FieldBonus/3, res.Score)
}

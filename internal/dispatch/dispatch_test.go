package dispatch

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func records(titles ...string) []*reference.Reference {
	refs := make([]*reference.Reference, len(titles))
	for i, title := range titles {
		refs[i] = reference.New(title, "article")
		refs[i].SetString(reference.Title, title)
	}
	return refs
}

// echoSource answers every title query with a candidate carrying the same
// title and field=value.
func echoSource(name string, field reference.Name, value string) *source.Source {
	return &source.Source{
		Name:       name,
		Fields:     reference.NewFieldSet(reference.Title, field),
		Strategies: source.ByTitle,
		Build: func(ctx context.Context, q source.Query) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, "http://"+name+".invalid/", nil)
		},
		Execute: func(ctx context.Context, req *http.Request) (*source.Response, error) {
			return &source.Response{URL: req.URL.String(), Status: http.StatusOK}, nil
		},
		Extract: func(q source.Query, _ *source.Response) ([]*reference.Reference, error) {
			c := reference.New("", "")
			c.SetString(reference.Title, q.Title)
			c.SetString(field, value)
			return []*reference.Reference{c}, nil
		},
	}
}

func TestRunMergesInOrder(t *testing.T) {
	refs := records("First", "Second", "Third")
	d := &Dispatcher{Sources: []*source.Source{
		echoSource("a", reference.Publisher, "A"),
		echoSource("b", reference.Publisher, "B"),
	}}

	var order []int
	var sources [][]string
	stats, err := d.Run(context.Background(), refs, func(i int, ref *reference.Reference, reports []Report) {
		order = append(order, i)
		var names []string
		for _, r := range reports {
			names = append(names, r.Source)
		}
		sources = append(sources, names)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, order)
	for _, names := range sources {
		assert.Equal(t, []string{"a", "b"}, names)
	}
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 6, stats.Attempts)
	assert.Equal(t, map[string]int{"a": 3, "b": 3}, stats.Matches)
}

func TestRunSkipsSourcesWithNothingToOffer(t *testing.T) {
	refs := records("Only")
	src := echoSource("a", reference.Publisher, "A")
	d := &Dispatcher{
		Sources: []*source.Source{src},
		ToComplete: func(*reference.Reference) reference.FieldSet {
			return reference.NewFieldSet(reference.Volume)
		},
	}

	var got []Report
	_, err := d.Run(context.Background(), refs, func(_ int, _ *reference.Reference, reports []Report) {
		got = reports
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Skipped)
	assert.Empty(t, got[0].Result.Attempts)
}

func TestRunRecoversFromPanics(t *testing.T) {
	refs := records("One", "Two")
	bad := echoSource("bad", reference.Publisher, "X")
	bad.Extract = func(q source.Query, _ *source.Response) ([]*reference.Reference, error) {
		if q.Title == "One" {
			panic("malformed payload")
		}
		c := reference.New("", "")
		c.SetString(reference.Title, q.Title)
		return []*reference.Reference{c}, nil
	}
	d := &Dispatcher{Sources: []*source.Source{bad}}

	var reports []Report
	stats, err := d.Run(context.Background(), refs, func(_ int, _ *reference.Reference, r []Report) {
		reports = append(reports, r...)
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.ErrorIs(t, reports[0].Err, ErrPanic)
	assert.NoError(t, reports[1].Err)
	assert.NotNil(t, reports[1].Result.Contribution)
	assert.Equal(t, 1, stats.Failures["bad"])
}

func TestRunCancelledDiscardsPending(t *testing.T) {
	refs := records("One", "Two", "Three")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fast := echoSource("fast", reference.Publisher, "F")

	// slow answers the first record, then blocks until cancelled.
	var once sync.Once
	slow := echoSource("slow", reference.Volume, "1")
	slow.Execute = func(ctx context.Context, req *http.Request) (*source.Response, error) {
		served := false
		once.Do(func() { served = true })
		if served {
			return &source.Response{URL: req.URL.String(), Status: http.StatusOK}, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	d := &Dispatcher{Sources: []*source.Source{fast, slow}}
	var merged []int
	stats, err := d.Run(ctx, refs, func(i int, _ *reference.Reference, _ []Report) {
		merged = append(merged, i)
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{0}, merged)
	assert.Equal(t, 1, stats.Records)
}

func TestRunProgress(t *testing.T) {
	refs := records("One", "Two")
	var last Progress
	calls := 0
	d := &Dispatcher{
		Sources:    []*source.Source{echoSource("a", reference.Publisher, "A")},
		OnProgress: func(p Progress) { last = p; calls++ },
	}
	_, err := d.Run(context.Background(), refs, func(int, *reference.Reference, []Report) {})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, Progress{Reports: 2, TotalReports: 2, Merged: 2, Total: 2}, last)
}

func TestRunEmpty(t *testing.T) {
	d := &Dispatcher{Sources: []*source.Source{echoSource("a", reference.Publisher, "A")}}
	stats, err := d.Run(context.Background(), nil, func(int, *reference.Reference, []Report) {
		t.Fatal("merge called for empty input")
	})
	require.NoError(t, err)
	assert.Zero(t, stats.Records)
}

func TestRunNoSources(t *testing.T) {
	refs := records("One", "Two")
	var merged []int
	stats, err := (&Dispatcher{}).Run(context.Background(), refs, func(i int, _ *reference.Reference, r []Report) {
		assert.Empty(t, r)
		merged = append(merged, i)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, merged)
	assert.Equal(t, 2, stats.Records)
}

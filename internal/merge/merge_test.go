package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/bibfill/internal/reference"
)

func rec(fields map[reference.Name]string) *reference.Reference {
	r := reference.New("key", "article")
	for n, v := range fields {
		r.SetString(n, v)
	}
	return r
}

func TestApplyPreserve(t *testing.T) {
	ref := rec(map[reference.Name]string{reference.Title: "Local Title", reference.Journal: ""})
	contribs := []Contribution{
		{Source: "crossref", Ref: rec(map[reference.Name]string{
			reference.Title:   "Remote Title",
			reference.Journal: "Nature",
			reference.Year:    "2020",
		})},
	}

	m := &Merger{Fields: reference.AllFields()}
	changes := m.Apply(ref, contribs)

	assert.Equal(t, "Local Title", ref.Title())
	assert.Equal(t, "Nature", ref.Get(reference.Journal))
	assert.Equal(t, []Change{
		{Field: reference.Journal, Value: "Nature", Source: "crossref"},
		{Field: reference.Year, Value: "2020", Source: "crossref"},
	}, changes)
}

func TestApplyOverwrite(t *testing.T) {
	ref := rec(map[reference.Name]string{reference.Title: "Local Title", reference.Year: "2020"})
	contribs := []Contribution{
		{Source: "dblp", Ref: rec(map[reference.Name]string{reference.Title: "Remote Title", reference.Year: "2020"})},
	}

	m := &Merger{Fields: reference.AllFields(), Overwrite: reference.AllFields()}
	changes := m.Apply(ref, contribs)

	assert.Equal(t, "Remote Title", ref.Title())
	// Year was rewritten with an identical value, which is not a change.
	require.Len(t, changes, 1)
	assert.Equal(t, reference.Title, changes[0].Field)
}

func TestApplyOverwriteCombinesMatchingValues(t *testing.T) {
	ref := rec(map[reference.Name]string{
		reference.Title:   "T",
		reference.Journal: "Journal of Molecular Biology",
		reference.Series:  "LNCS",
	})
	contribs := []Contribution{
		{Source: "crossref", Ref: rec(map[reference.Name]string{
			reference.Journal: "J. Mol. Biol.",
			reference.Series:  "Lecture Notes in Computer Science",
		})},
	}

	m := &Merger{Fields: reference.AllFields(), Overwrite: reference.NewFieldSet(reference.Journal, reference.Series)}
	changes := m.Apply(ref, contribs)

	// The abbreviation matches the full journal name, which is kept.
	assert.Equal(t, "Journal of Molecular Biology", ref.Get(reference.Journal))
	assert.Equal(t, "Lecture Notes in Computer Science", ref.Get(reference.Series))
	assert.Equal(t, []Change{
		{Field: reference.Series, Value: "Lecture Notes in Computer Science", Source: "crossref"},
	}, changes)
}

func TestApplyVerify(t *testing.T) {
	ref := rec(map[reference.Name]string{reference.Title: "T"})
	contribs := []Contribution{
		{Source: "openalex", Ref: rec(map[reference.Name]string{
			reference.DOI: "10.1000/dead",
			reference.URL: "https://example.org/gone",
		})},
		{Source: "crossref", Ref: rec(map[reference.Name]string{
			reference.DOI:  "10.1000/live",
			reference.Year: "2021",
		})},
	}

	var checked []reference.Name
	m := &Merger{
		Fields: reference.AllFields(),
		Verify: func(name reference.Name, value string) bool {
			checked = append(checked, name)
			return name == reference.DOI && value == "10.1000/live"
		},
	}
	changes := m.Apply(ref, contribs)

	assert.Equal(t, "10.1000/live", ref.DOI())
	assert.False(t, ref.Has(reference.URL))
	assert.Equal(t, []reference.Name{reference.DOI, reference.DOI, reference.URL}, checked)
	assert.Equal(t, []Change{
		{Field: reference.DOI, Value: "10.1000/live", Source: "crossref"},
		{Field: reference.Year, Value: "2021", Source: "crossref"},
	}, changes)
}

func TestApplyFirstContributionWins(t *testing.T) {
	ref := rec(map[reference.Name]string{reference.Title: "T"})
	contribs := []Contribution{
		{Source: "openalex", Ref: nil},
		{Source: "crossref", Ref: rec(map[reference.Name]string{reference.Publisher: "ACM"})},
		{Source: "s2", Ref: rec(map[reference.Name]string{reference.Publisher: "Association for Computing Machinery", reference.Volume: "12"})},
	}

	m := &Merger{Fields: reference.AllFields()}
	changes := m.Apply(ref, contribs)

	assert.Equal(t, "ACM", ref.Get(reference.Publisher))
	assert.Equal(t, "12", ref.Get(reference.Volume))
	assert.Equal(t, []Change{
		{Field: reference.Publisher, Value: "ACM", Source: "crossref"},
		{Field: reference.Volume, Value: "12", Source: "s2"},
	}, changes)
}

func TestApplyRespectsFieldSelection(t *testing.T) {
	ref := rec(map[reference.Name]string{reference.Title: "T"})
	contribs := []Contribution{
		{Source: "crossref", Ref: rec(map[reference.Name]string{reference.Volume: "1", reference.Pages: "1-2", reference.Publisher: "ACM"})},
	}

	m := &Merger{Fields: reference.NewFieldSet(reference.Pages, reference.Publisher), TypeFilter: reference.FilterOptional}
	changes := m.Apply(ref, contribs)

	// Publisher is not an article field under the optional filter.
	require.Len(t, changes, 1)
	assert.Equal(t, reference.Pages, changes[0].Field)
	assert.Equal(t, "1--2", changes[0].Value)
	assert.False(t, ref.Has(reference.Volume))
}

func TestApplyCopyDOIToURL(t *testing.T) {
	ref := rec(map[reference.Name]string{reference.Title: "T"})
	contribs := []Contribution{
		{Source: "crossref", Ref: rec(map[reference.Name]string{reference.DOI: "10.1234/ABCD"})},
	}

	m := &Merger{Fields: reference.AllFields(), CopyDOIToURL: true}
	changes := m.Apply(ref, contribs)

	require.Len(t, changes, 2)
	assert.Equal(t, Change{Field: reference.URL, Value: "https://doi.org/10.1234/abcd", Source: "doi"}, changes[1])
}

func TestApplyProtect(t *testing.T) {
	ref := rec(nil)
	contribs := []Contribution{
		{Source: "arxiv", Ref: rec(map[reference.Name]string{reference.Title: "Attention in BERT models"})},
	}

	m := &Merger{Fields: reference.AllFields(), Protect: reference.NewFieldSet(reference.Title)}
	changes := m.Apply(ref, contribs)

	require.Len(t, changes, 1)
	assert.Equal(t, "{Attention} in {BERT} models", changes[0].Value)
	assert.Equal(t, "Attention in BERT models", ref.Title())
}

func TestToComplete(t *testing.T) {
	ref := rec(map[reference.Name]string{reference.Title: "T", reference.Year: "2020"})
	m := &Merger{Fields: reference.NewFieldSet(reference.Title, reference.Year, reference.DOI), Overwrite: reference.NewFieldSet(reference.Year)}
	assert.Equal(t, reference.NewFieldSet(reference.Year, reference.DOI), m.ToComplete(ref))
}

func TestSummary(t *testing.T) {
	var s Summary
	s.Add(nil)
	s.Add([]Change{{Field: reference.Year, Source: "crossref"}, {Field: reference.DOI, Source: "dblp"}})
	s.Add([]Change{{Field: reference.Year, Source: "crossref"}})

	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 3, s.Fields)
	assert.Equal(t, map[string]int{"crossref": 2, "dblp": 1}, s.BySource)
}

package bibtex

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/bibfill/internal/merge"
	"github.com/matsen/bibfill/internal/reference"
)

func parseString(t *testing.T, s string) *File {
	t.Helper()
	f, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return f
}

func TestParseEntry(t *testing.T) {
	f := parseString(t, `@string{ieee = "IEEE"}
@Article{key1,
  Author = {Smith, John},
  title = "The {DNA} of \"things\"",
  year = 2020,
  month = mar,
  publisher = ieee # { Press},
}`)

	entries := f.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "Article", e.Type)
	assert.Equal(t, "key1", e.Key)

	var names []string
	for _, fld := range e.Fields {
		names = append(names, fld.Name)
	}
	assert.Equal(t, []string{"author", "title", "year", "month", "publisher"}, names)

	tests := []struct {
		name, value, raw string
	}{
		{"author", "Smith, John", "{Smith, John}"},
		{"title", `The {DNA} of \"things\"`, `"The {DNA} of \"things\""`},
		{"year", "2020", "2020"},
		{"month", "March", "mar"},
		{"publisher", "IEEE Press", "ieee # { Press}"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.value, e.Fields[i].Value)
			assert.Equal(t, tt.raw, e.Fields[i].Raw)
		})
	}
}

func TestParseItems(t *testing.T) {
	f := parseString(t, `free text
@preamble{"\newcommand{\x}{y}"}
@comment(anything goes)
@misc{empty}
`)
	kinds := make([]Kind, len(f.Items))
	for i, it := range f.Items {
		kinds[i] = it.Kind
	}
	assert.Equal(t, []Kind{TextItem, PreambleItem, CommentItem, EntryItem}, kinds)
	assert.Equal(t, "free text", f.Items[0].Raw)
	assert.Equal(t, `@preamble{"\newcommand{\x}{y}"}`, f.Items[1].Raw)
	assert.Equal(t, "empty", f.Items[3].Entry.Key)
	assert.Empty(t, f.Items[3].Entry.Fields)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unterminated value": "@article{k, title = {open",
		"missing equals":     "@article{k, title {x}}",
		"missing type":       "@{k, title = {x}}",
		"bad delimiter":      "@article[k]",
		"unbalanced quote":   `@article{k, title = "a}b"}`,
		"unterminated entry": "@article{k",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestToReference(t *testing.T) {
	f := parseString(t, `@Article{k,
  title = {A {DNA} Study},
  month = jan,
  year = {2020},
  doi = {https://doi.org/10.1000/ABC},
  keywords = {ignored},
  volume = {},
}`)
	ref := ToReference(f.Entries()[0])

	assert.Equal(t, "k", ref.ID)
	assert.Equal(t, "article", ref.Type)
	assert.Equal(t, "A DNA Study", ref.Title())
	assert.Equal(t, "1", ref.Get(reference.Month))
	assert.Equal(t, "2020", ref.Year())
	assert.Equal(t, "10.1000/abc", ref.DOI())
	assert.False(t, ref.Has(reference.Volume))
	assert.Equal(t, 4, ref.Len())
}

func TestEntrySetKeepsPosition(t *testing.T) {
	e := &Entry{Type: "article", Key: "k", Fields: []Field{
		{Name: "title", Value: "T", Raw: "{T}"},
		{Name: "year", Value: "2020", Raw: "2020"},
	}}
	e.Set("TITLE", "New")
	e.Set("doi", "10.1000/abc")
	e.Delete("year")

	assert.Equal(t, []Field{
		{Name: "title", Value: "New"},
		{Name: "doi", Value: "10.1000/abc"},
	}, e.Fields)
}

func TestMarked(t *testing.T) {
	e := &Entry{Type: "article", Key: "k"}
	assert.False(t, Marked(e))
	Mark(e, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	assert.True(t, Marked(e))
	v, _ := e.Get("btacqueried")
	assert.Equal(t, "2024-03-01", v)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `A \& B \% C`, escape("A & B % C"))
	assert.Equal(t, `already \&`, escape(`already \&`))
}

func TestFormat(t *testing.T) {
	e := &Entry{Type: "misc", Key: "k", Fields: []Field{{Name: "note", Value: "hi"}}}
	assert.Equal(t, "@misc{k,\n\tnote = {hi},\n}\n", Format(e))
}

func TestWriteGolden(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "library.bib"))
	require.NoError(t, err)
	f, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)

	entries := f.Entries()
	require.Len(t, entries, 2)

	Apply(entries[0], []merge.Change{
		{Field: reference.DOI, Value: "10.1000/abc", Source: "crossref"},
		{Field: reference.Pages, Value: "1--10", Source: "crossref"},
	}, "")
	Mark(entries[0], time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	Apply(entries[1], []merge.Change{
		{Field: reference.Year, Value: "2021", Source: "dblp"},
		{Field: reference.Publisher, Value: "A & B", Source: "dblp"},
	}, Prefix)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "library", buf.Bytes())
}

func TestWriteRoundTrip(t *testing.T) {
	in := "@article{k,\n\ttitle = {T},\n\tyear = 2020,\n}\n\n@comment{x}\n"
	f := parseString(t, in)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))
	assert.Equal(t, in, buf.String())
}

func TestApplyKeepsOutputReadable(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"stray closing brace", "see f(x} here", `see f(x\} here`},
		{"stray opening brace", "open { brace", `open \{ brace`},
		{"balanced braces", "{DNA} repair", "{DNA} repair"},
		{"escaped brace", `a \} b`, `a \} b`},
		{"reversed pair", "} {", `\} \{`},
		{"trailing backslash", `ends with \`, `ends with \\`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parseString(t, "@misc{k,\n\ttitle = {T},\n}\n")
			Apply(f.Entries()[0], []merge.Change{
				{Field: reference.Note, Value: tt.value, Source: "crossref"},
				{Field: reference.URL, Value: "https://example.org/a}b", Source: "crossref"},
			}, "")

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, f))
			back, err := Parse(&buf)
			require.NoError(t, err)
			require.Len(t, back.Entries(), 1)

			note, _ := back.Entries()[0].Get("note")
			assert.Equal(t, tt.want, note)
			url, _ := back.Entries()[0].Get("url")
			assert.Equal(t, `https://example.org/a\}b`, url)
		})
	}
}

func TestRetainAndKeep(t *testing.T) {
	f := parseString(t, "@string{j = {Nature}}\n\n@article{a,\n\ttitle = {A},\n\tdoi = {10.1/a},\n\tyear = 2020,\n}\n\n@misc{b,\n\ttitle = {B},\n}\n")

	f.Retain(func(e *Entry) bool {
		e.Keep("DOI", "year")
		return e.Key == "a"
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))
	assert.Equal(t, "@article{a,\n\tdoi = {10.1/a},\n\tyear = 2020,\n}\n", buf.String())
}

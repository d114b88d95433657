package main

import (
	"fmt"
	"strings"

	"github.com/matsen/bibfill/internal/arxiv"
	"github.com/matsen/bibfill/internal/crossref"
	"github.com/matsen/bibfill/internal/dblp"
	"github.com/matsen/bibfill/internal/inspire"
	"github.com/matsen/bibfill/internal/openalex"
	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/researchr"
	"github.com/matsen/bibfill/internal/s2"
	"github.com/matsen/bibfill/internal/selection"
	"github.com/matsen/bibfill/internal/source"
	"github.com/matsen/bibfill/internal/unpaywall"
)

const defaultTimeout = source.DefaultTimeout

// registry lists every source. Its order is the merge precedence: when two
// sources offer the same field, the earlier one wins.
var registry = []struct {
	name string
	new  func(...source.Option) *source.Source
}{
	{openalex.Name, openalex.New},
	{crossref.Name, crossref.New},
	{arxiv.Name, arxiv.New},
	{s2.Name, s2.New},
	{unpaywall.Name, unpaywall.New},
	{dblp.Name, dblp.New},
	{researchr.Name, researchr.New},
	{inspire.Name, inspire.New},
}

// sourceNames returns the registered names in precedence order.
func sourceNames() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.name
	}
	return names
}

// buildSources builds the selected sources in precedence order. Unknown
// names in the selection are an error.
func buildSources(sel *selection.Set[string], opts ...source.Option) ([]*source.Source, error) {
	var out []*source.Source
	for _, r := range registry {
		if sel.Contains(r.name) {
			out = append(out, r.new(opts...))
		}
	}
	if unknown := sel.Unused(); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown source %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(sourceNames(), ", "))
	}
	return out, nil
}

// parseFields resolves field names given on the command line.
func parseFields(names []string) ([]reference.Name, error) {
	out := make([]reference.Name, 0, len(names))
	for _, s := range names {
		n, ok := reference.Lookup(s)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", s)
		}
		out = append(out, n)
	}
	return out, nil
}

// fieldSelection turns an include and an exclude list into a field set.
// Both empty selects every field.
func fieldSelection(only, exclude []string) (reference.FieldSet, error) {
	o, err := parseFields(only)
	if err != nil {
		return 0, err
	}
	e, err := parseFields(exclude)
	if err != nil {
		return 0, err
	}
	return reference.NewFieldSet(selection.New(o, e).Filter(reference.All)...), nil
}

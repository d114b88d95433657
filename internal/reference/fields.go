package reference

import (
	"strings"
)

// Name identifies one of the bibliographic fields the enrichment engine
// understands. Other BibTeX fields are carried verbatim by the I/O layer.
type Name string

// Known field names.
const (
	Address      Name = "address"
	Annote       Name = "annote"
	Author       Name = "author"
	Booktitle    Name = "booktitle"
	Chapter      Name = "chapter"
	DOI          Name = "doi"
	Edition      Name = "edition"
	Editor       Name = "editor"
	HowPublished Name = "howpublished"
	Institution  Name = "institution"
	ISSN         Name = "issn"
	ISBN         Name = "isbn"
	Journal      Name = "journal"
	Month        Name = "month"
	Note         Name = "note"
	Number       Name = "number"
	Organization Name = "organization"
	Pages        Name = "pages"
	Publisher    Name = "publisher"
	School       Name = "school"
	Series       Name = "series"
	Title        Name = "title"
	Type         Name = "type"
	URL          Name = "url"
	Volume       Name = "volume"
	Year         Name = "year"
)

// All lists every known field in declared order. Merging walks fields in
// this order.
var All = []Name{
	Address, Annote, Author, Booktitle, Chapter, DOI, Edition, Editor,
	HowPublished, Institution, ISSN, ISBN, Journal, Month, Note, Number,
	Organization, Pages, Publisher, School, Series, Title, Type, URL, Volume,
	Year,
}

var fieldIndex = func() map[Name]int {
	m := make(map[Name]int, len(All))
	for i, n := range All {
		m[n] = i
	}
	return m
}()

// Lookup returns the known field with the given case-insensitive name.
func Lookup(s string) (Name, bool) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	_, ok := fieldIndex[n]
	return n, ok
}

// FieldSet is a set of known fields.
type FieldSet uint32

// NewFieldSet returns the set holding the given fields.
func NewFieldSet(names ...Name) FieldSet {
	var s FieldSet
	return s.With(names...)
}

// AllFields returns the set of every known field.
func AllFields() FieldSet { return NewFieldSet(All...) }

func bit(n Name) FieldSet {
	i, ok := fieldIndex[n]
	if !ok {
		return 0
	}
	return 1 << uint(i)
}

func (s FieldSet) Has(n Name) bool {
	b := bit(n)
	return b != 0 && s&b != 0
}

func (s FieldSet) With(names ...Name) FieldSet {
	for _, n := range names {
		s |= bit(n)
	}
	return s
}

func (s FieldSet) Without(names ...Name) FieldSet {
	for _, n := range names {
		s &^= bit(n)
	}
	return s
}

func (s FieldSet) Union(o FieldSet) FieldSet     { return s | o }
func (s FieldSet) Intersect(o FieldSet) FieldSet { return s & o }
func (s FieldSet) Minus(o FieldSet) FieldSet     { return s &^ o }
func (s FieldSet) Empty() bool                   { return s == 0 }

// Names returns the members of s in declared order.
func (s FieldSet) Names() []Name {
	var out []Name
	for i, n := range All {
		if s&(1<<uint(i)) != 0 {
			out = append(out, n)
		}
	}
	return out
}

func (s FieldSet) String() string {
	names := s.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ",")
}

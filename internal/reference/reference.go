// Package reference defines the bibliographic record the enrichment engine
// reads, scores and completes.
package reference

import (
	"github.com/matsen/bibfill/internal/field"
)

// accessor binds a field name to the codec of its kind. Values are stored
// as string, []string or []field.Author depending on the kind.
type accessor struct {
	parse     func(string) (any, bool)
	normalize func(any) (any, bool)
	format    func(any) string
	match     func(a, b any) int
	combine   func(a, b any) any
}

func scalar(c field.Codec[string]) accessor {
	return accessor{
		parse: func(s string) (any, bool) {
			v, ok := c.Parse(s)
			return v, ok
		},
		normalize: func(v any) (any, bool) {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			n, ok := c.Normalize(s)
			return n, ok
		},
		format:  func(v any) string { return c.Format(v.(string)) },
		match:   func(a, b any) int { return c.Match(a.(string), b.(string)) },
		combine: func(a, b any) any { return c.Combine(a.(string), b.(string)) },
	}
}

func list[T any](c field.List[T]) accessor {
	return accessor{
		parse: func(s string) (any, bool) {
			v, ok := c.Parse(s)
			return v, ok
		},
		normalize: func(v any) (any, bool) {
			l, ok := v.([]T)
			if !ok {
				return nil, false
			}
			n, ok := c.Normalize(l)
			return n, ok
		},
		format:  func(v any) string { return c.Format(v.([]T)) },
		match:   func(a, b any) int { return c.Match(a.([]T), b.([]T)) },
		combine: func(a, b any) any { return c.Combine(a.([]T), b.([]T)) },
	}
}

var accessors = map[Name]accessor{
	Address:      scalar(field.Plain{}),
	Annote:       scalar(field.Plain{}),
	Author:       list(field.Names),
	Booktitle:    scalar(field.Abbreviated{}),
	Chapter:      scalar(field.Plain{}),
	DOI:          scalar(field.DOI{}),
	Edition:      scalar(field.Plain{}),
	Editor:       list(field.Names),
	HowPublished: scalar(field.Plain{}),
	Institution:  scalar(field.Abbreviated{}),
	ISSN:         list(field.ISSNs),
	ISBN:         scalar(field.ISBN{}),
	Journal:      scalar(field.Abbreviated{}),
	Month:        scalar(field.Month{}),
	Note:         scalar(field.Plain{}),
	Number:       scalar(field.Plain{}),
	Organization: scalar(field.Abbreviated{}),
	Pages:        list(field.PageList),
	Publisher:    scalar(field.Abbreviated{}),
	School:       scalar(field.Abbreviated{}),
	Series:       scalar(field.Abbreviated{}),
	Title:        scalar(field.Plain{}),
	Type:         scalar(field.Plain{}),
	URL:          scalar(field.URL{}),
	Volume:       scalar(field.Plain{}),
	Year:         scalar(field.Year{}),
}

// Reference is one bibliographic record. Every stored value is normalized;
// a value that fails normalization leaves its field absent.
type Reference struct {
	ID   string // BibTeX citation key
	Type string // Entry type, lowercase ("article", "inproceedings", ...)

	values map[Name]any
}

// New returns an empty reference.
func New(id, typ string) *Reference {
	return &Reference{ID: id, Type: typ, values: make(map[Name]any)}
}

// Has reports whether field n holds a value.
func (r *Reference) Has(n Name) bool {
	_, ok := r.values[n]
	return ok
}

// Fields returns the set of fields holding a value.
func (r *Reference) Fields() FieldSet {
	var s FieldSet
	for n := range r.values {
		s = s.With(n)
	}
	return s
}

// Len returns the number of fields holding a value.
func (r *Reference) Len() int { return len(r.values) }

// Get returns the display form of field n, or "" when absent.
func (r *Reference) Get(n Name) string {
	v, ok := r.values[n]
	if !ok {
		return ""
	}
	return accessors[n].format(v)
}

// Value returns the stored value of field n: a string, []string or
// []field.Author depending on its kind.
func (r *Reference) Value(n Name) (any, bool) {
	v, ok := r.values[n]
	return v, ok
}

// SetString parses and normalizes a display value into field n. On
// rejection the field is cleared and false is returned.
func (r *Reference) SetString(n Name, raw string) bool {
	a, ok := accessors[n]
	if !ok {
		return false
	}
	v, ok := a.parse(raw)
	return r.store(n, v, ok)
}

// Set normalizes a typed value into field n. See Value for the types.
func (r *Reference) Set(n Name, v any) bool {
	a, ok := accessors[n]
	if !ok {
		return false
	}
	v, ok = a.normalize(v)
	return r.store(n, v, ok)
}

func (r *Reference) store(n Name, v any, ok bool) bool {
	if !ok {
		delete(r.values, n)
		return false
	}
	if r.values == nil {
		r.values = make(map[Name]any)
	}
	r.values[n] = v
	return true
}

// Delete clears field n.
func (r *Reference) Delete(n Name) { delete(r.values, n) }

// CopyField copies field n from src, clearing it when src lacks it.
func (r *Reference) CopyField(n Name, src *Reference) {
	v, ok := src.values[n]
	r.store(n, v, ok)
}

// Match scores field n of r against the same field of o with the codec of
// its kind. ok is false when either side lacks the field.
func (r *Reference) Match(n Name, o *Reference) (score int, ok bool) {
	a, hasA := r.values[n]
	b, hasB := o.values[n]
	if !hasA || !hasB {
		return field.NoMatch, false
	}
	return accessors[n].match(a, b), true
}

// MergeField folds field n of src into r. When both hold matching values
// they are combined, src first; otherwise src's value replaces r's. A src
// lacking the field leaves r unchanged.
func (r *Reference) MergeField(n Name, src *Reference) {
	v, ok := src.values[n]
	if !ok {
		return
	}
	a := accessors[n]
	if own, has := r.values[n]; has && a.match(v, own) > field.NoMatch {
		v, ok = a.normalize(a.combine(v, own))
	}
	r.store(n, v, ok)
}

// Clone returns a copy of r. Stored slices are shared; they are never
// mutated in place.
func (r *Reference) Clone() *Reference {
	c := New(r.ID, r.Type)
	for n, v := range r.values {
		c.values[n] = v
	}
	return c
}

// Strings returns the display form of every set field.
func (r *Reference) Strings() map[string]string {
	out := make(map[string]string, len(r.values))
	for n := range r.values {
		out[string(n)] = r.Get(n)
	}
	return out
}

// Title returns the title, or "" when absent.
func (r *Reference) Title() string { return r.str(Title) }

// DOI returns the normalized DOI, or "" when absent.
func (r *Reference) DOI() string { return r.str(DOI) }

// Year returns the normalized year, or "" when absent.
func (r *Reference) Year() string { return r.str(Year) }

// Authors returns the author list, nil when absent.
func (r *Reference) Authors() []field.Author { return r.names(Author) }

// Editors returns the editor list, nil when absent.
func (r *Reference) Editors() []field.Author { return r.names(Editor) }

func (r *Reference) str(n Name) string {
	s, _ := r.values[n].(string)
	return s
}

func (r *Reference) names(n Name) []field.Author {
	l, _ := r.values[n].([]field.Author)
	return l
}

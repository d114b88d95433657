package source

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/matsen/bibfill/internal/field"
	"github.com/matsen/bibfill/internal/reference"
)

// Candidate accumulates the fields a source extracted for one result.
// Values that fail normalization are silently dropped, so adapters can
// feed raw API values straight in.
type Candidate struct {
	ref *reference.Reference
}

// NewCandidate starts a candidate attributed to the named source.
func NewCandidate(source string) *Candidate {
	return &Candidate{ref: reference.New(source, "")}
}

// Set stores a display value.
func (c *Candidate) Set(n reference.Name, v string) *Candidate {
	if v = strings.TrimSpace(v); v != "" {
		c.ref.SetString(n, v)
	}
	return c
}

// SetFirst stores the first non-empty value.
func (c *Candidate) SetFirst(n reference.Name, vs ...string) *Candidate {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return c.Set(n, v)
		}
	}
	return c
}

// People stores a name list built from display names such as "Jane Doe".
func (c *Candidate) People(n reference.Name, names []string) *Candidate {
	return c.Authors(n, Names(names...))
}

// Authors stores an already split name list.
func (c *Candidate) Authors(n reference.Name, authors []field.Author) *Candidate {
	if len(authors) > 0 {
		c.ref.Set(n, authors)
	}
	return c
}

// Pages stores a page range from its bounds.
func (c *Candidate) Pages(first, last string) *Candidate {
	return c.Set(reference.Pages, field.PageRange(strings.TrimSpace(first), strings.TrimSpace(last)))
}

// Date stores year and month from an ISO date. A 1 January date is taken
// as a year-only placeholder when dropJan1 is set.
func (c *Candidate) Date(iso string, dropJan1 bool) *Candidate {
	year, month := SplitDate(iso)
	c.Set(reference.Year, year)
	if dropJan1 && strings.HasSuffix(strings.TrimSpace(iso), "-01-01") {
		month = ""
	}
	return c.Set(reference.Month, month)
}

// Has reports whether field n was set.
func (c *Candidate) Has(n reference.Name) bool { return c.ref.Has(n) }

// Ref returns the candidate record.
func (c *Candidate) Ref() *reference.Reference { return c.ref }

// Names parses display names, skipping those that cannot be parsed.
func Names(names ...string) []field.Author {
	var out []field.Author
	for _, n := range names {
		if a, ok := field.ParseName(n); ok {
			out = append(out, a)
		}
	}
	return out
}

// Flex decodes a JSON value that may be a string, a number or null into
// its string form. APIs are inconsistent about quoting numeric fields.
type Flex string

func (f *Flex) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = Flex(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if i, err := n.Int64(); err == nil {
			*f = Flex(strconv.FormatInt(i, 10))
		} else {
			*f = Flex(n.String())
		}
	}
	return nil
}

func (f Flex) String() string { return string(f) }

// OneOrMany decodes a JSON value that is either a single T or an array of
// them, as some APIs collapse one-element lists.
type OneOrMany[T any] []T

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*o = nil
		return nil
	case strings.HasPrefix(s, "["):
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = OneOrMany[T]{one}
	return nil
}

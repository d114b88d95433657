package reference

import (
	"fmt"
	"strings"
)

// EntryFields groups the fields BibTeX styles expect for one entry type.
type EntryFields struct {
	Required    FieldSet
	Optional    FieldSet
	NonStandard FieldSet // Widely used but outside the classic styles
}

var conferenceFields = EntryFields{
	Required:    NewFieldSet(Author, Title, Booktitle, Year),
	Optional:    NewFieldSet(Editor, Volume, Number, Series, Pages, Address, Month, Organization, Publisher, Note),
	NonStandard: NewFieldSet(DOI, ISBN, ISSN),
}

var thesisFields = EntryFields{
	Required:    NewFieldSet(Author, Title, School, Year),
	Optional:    NewFieldSet(Type, Address, Month, Note),
	NonStandard: NewFieldSet(DOI),
}

// EntryTypes lists the standard BibTeX entry types.
var EntryTypes = map[string]EntryFields{
	"article": {
		Required:    NewFieldSet(Author, Title, Journal, Year),
		Optional:    NewFieldSet(Volume, Number, Pages, Month, Note),
		NonStandard: NewFieldSet(DOI, ISSN),
	},
	"book": {
		Required:    NewFieldSet(Author, Editor, Title, Publisher, Year),
		Optional:    NewFieldSet(Volume, Number, Series, Address, Edition, Month, Note),
		NonStandard: NewFieldSet(DOI, ISBN, ISSN),
	},
	"booklet": {
		Required:    NewFieldSet(Title),
		Optional:    NewFieldSet(Author, HowPublished, Address, Month, Year, Note),
		NonStandard: NewFieldSet(DOI),
	},
	"conference":    conferenceFields,
	"inproceedings": conferenceFields,
	"inbook": {
		Required:    NewFieldSet(Author, Editor, Title, Chapter, Pages, Publisher, Year),
		Optional:    NewFieldSet(Volume, Number, Series, Type, Address, Edition, Month, Note),
		NonStandard: NewFieldSet(DOI, ISBN),
	},
	"incollection": {
		Required:    NewFieldSet(Author, Title, Booktitle, Publisher, Year),
		Optional:    NewFieldSet(Editor, Volume, Number, Series, Type, Chapter, Pages, Address, Edition, Month, Note),
		NonStandard: NewFieldSet(DOI, ISBN),
	},
	"manual": {
		Required:    NewFieldSet(Title),
		Optional:    NewFieldSet(Author, Organization, Address, Edition, Month, Year, Note),
		NonStandard: NewFieldSet(DOI, ISBN),
	},
	"mastersthesis": thesisFields,
	"phdthesis":     thesisFields,
	"misc": {
		Optional:    NewFieldSet(Author, Title, HowPublished, Month, Year, Note),
		NonStandard: NewFieldSet(DOI),
	},
	"techreport": {
		Required:    NewFieldSet(Author, Title, Institution, Year),
		Optional:    NewFieldSet(Type, Number, Address, Month, Note),
		NonStandard: NewFieldSet(DOI, ISBN),
	},
	"unpublished": {
		Required:    NewFieldSet(Author, Title, Note),
		Optional:    NewFieldSet(Month, Year),
		NonStandard: NewFieldSet(DOI),
	},
}

// TypeFilter restricts completion to the fields an entry type expects.
type TypeFilter string

// Entry type filters.
const (
	FilterNone     TypeFilter = "no"
	FilterRequired TypeFilter = "required"
	FilterOptional TypeFilter = "optional"
	FilterAll      TypeFilter = "all"
)

// ParseTypeFilter validates a filter name.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch f := TypeFilter(strings.ToLower(s)); f {
	case FilterNone, FilterRequired, FilterOptional, FilterAll:
		return f, nil
	case "":
		return FilterNone, nil
	default:
		return "", fmt.Errorf("invalid entry type filter %q (want no, required, optional or all)", s)
	}
}

// Apply narrows fields to those expected for entryType. Unknown entry types
// are left unfiltered.
func (f TypeFilter) Apply(entryType string, fields FieldSet) FieldSet {
	et, ok := EntryTypes[strings.ToLower(entryType)]
	if !ok {
		return fields
	}
	switch f {
	case FilterRequired:
		return fields.Intersect(et.Required)
	case FilterOptional:
		return fields.Intersect(et.Required.Union(et.Optional))
	case FilterAll:
		return fields.Intersect(et.Required.Union(et.Optional).Union(et.NonStandard))
	default:
		return fields
	}
}

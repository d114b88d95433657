// Package merge folds per-source contributions into the canonical record.
package merge

import (
	"regexp"
	"strings"

	"github.com/matsen/bibfill/internal/reference"
)

// Change is one field written into a record.
type Change struct {
	Field  reference.Name `json:"field"`
	Value  string         `json:"value"`
	Source string         `json:"source"`
}

// Contribution is the confirmed candidate one source produced for a record.
// Ref is nil when the source found nothing.
type Contribution struct {
	Source string
	Ref    *reference.Reference
}

// Merger applies contributions under an overwrite policy.
type Merger struct {
	Fields     reference.FieldSet   // Fields eligible for completion
	Overwrite  reference.FieldSet   // Fields replaced even when already set
	TypeFilter reference.TypeFilter // Restricts Fields by entry type

	// CopyDOIToURL fills a missing url from the DOI.
	CopyDOIToURL bool
	// Protect lists fields whose capitalized words get wrapped in braces.
	Protect reference.FieldSet

	// Verify vets a new doi or url value before it is written. A rejected
	// value falls through to the next contribution. Nil accepts everything.
	Verify func(name reference.Name, value string) bool
}

// ToComplete returns the fields worth querying for ref: eligible fields
// that are missing or marked for overwrite.
func (m *Merger) ToComplete(ref *reference.Reference) reference.FieldSet {
	eligible := m.TypeFilter.Apply(ref.Type, m.Fields)
	present := ref.Fields().Minus(m.Overwrite)
	return eligible.Minus(present)
}

// Apply merges contributions, in source order, into ref.
//
// Fields are visited in declared order. A field already set on ref is kept
// unless it is in Overwrite. Otherwise the first contribution holding the
// field supplies it. An overwritten value that matches the new one is
// combined with it rather than replaced. Contributions are never combined
// with each other.
func (m *Merger) Apply(ref *reference.Reference, contribs []Contribution) []Change {
	todo := m.ToComplete(ref)
	var changes []Change
	for _, name := range reference.All {
		if !todo.Has(name) {
			continue
		}
		old, had := ref.Get(name), ref.Has(name)
		for _, c := range contribs {
			if c.Ref == nil || !c.Ref.Has(name) {
				continue
			}
			next := ref.Clone()
			next.MergeField(name, c.Ref)
			value := next.Get(name)
			if had && value == old {
				break
			}
			if !m.verified(name, value) {
				continue
			}
			ref.CopyField(name, next)
			changes = append(changes, Change{Field: name, Value: m.display(name, value), Source: c.Source})
			break
		}
	}

	if m.CopyDOIToURL && todo.Has(reference.URL) && !ref.Has(reference.URL) && ref.DOI() != "" {
		if ref.SetString(reference.URL, "https://doi.org/"+ref.DOI()) {
			changes = append(changes, Change{Field: reference.URL, Value: ref.Get(reference.URL), Source: "doi"})
		}
	}
	return changes
}

func (m *Merger) verified(name reference.Name, value string) bool {
	if m.Verify == nil || (name != reference.DOI && name != reference.URL) {
		return true
	}
	return m.Verify(name, value)
}

func (m *Merger) display(name reference.Name, value string) string {
	if m.Protect.Has(name) {
		return ProtectUppercase(value)
	}
	return value
}

var capitalized = regexp.MustCompile(`\S*\p{Lu}\S*`)

// ProtectUppercase wraps every word containing an uppercase letter in
// braces so BibTeX styles keep its case.
func ProtectUppercase(s string) string {
	return capitalized.ReplaceAllStringFunc(s, func(w string) string {
		if strings.HasPrefix(w, "{") && strings.HasSuffix(w, "}") {
			return w
		}
		return "{" + w + "}"
	})
}

// Summary counts what a run changed.
type Summary struct {
	Records  int            `json:"records"`   // Records that received at least one field
	Fields   int            `json:"fields"`    // Fields written in total
	BySource map[string]int `json:"by_source"` // Fields written per source
}

// Add records the changes made to one record.
func (s *Summary) Add(changes []Change) {
	if len(changes) == 0 {
		return
	}
	if s.BySource == nil {
		s.BySource = make(map[string]int)
	}
	s.Records++
	s.Fields += len(changes)
	for _, c := range changes {
		s.BySource[c.Source]++
	}
}

package field

import (
	"strings"
)

// Author is one entry of an author or editor list.
type Author struct {
	Last  string `json:"last"`            // Last/family name, particles included
	First string `json:"first,omitempty"` // First/given names, empty if unknown
}

// String returns the BibTeX form "Last, First".
func (a Author) String() string {
	if a.First == "" {
		return a.Last
	}
	return a.Last + ", " + a.First
}

// Less orders authors alphabetically by last then first name.
func (a Author) Less(b Author) bool {
	if a.Last != b.Last {
		return a.Last < b.Last
	}
	return a.First < b.First
}

var nameParticles = map[string]bool{
	"ben": true, "van": true, "von": true, "der": true, "de": true, "la": true, "le": true,
}

var juniorSuffixes = map[string]bool{
	"jnr": true, "jr": true, "junior": true,
}

// ParseName reads one name in either "Last, First" or "First Last" form.
//
// Trailing numeric disambiguators ("Jane Doe 0001") are dropped, and
// particles such as "van" or "de" stay attached to the last name.
func ParseName(name string) (Author, bool) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\n", " "))
	if name == "" {
		return Author{}, false
	}

	var last string
	var firsts []string
	if idx := strings.Index(name, ","); idx >= 0 {
		last = strings.TrimSpace(name[:idx])
		firsts = strings.Fields(name[idx+1:])
	} else {
		parts := strings.Fields(name)
		last = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
		if isDigits(last) {
			return ParseName(strings.Join(parts, " "))
		}
		for _, p := range parts {
			firsts = append(firsts, strings.Fields(strings.ReplaceAll(p, ".", ". "))...)
		}
	}

	if juniorSuffixes[strings.ToLower(strings.TrimSuffix(last, "."))] && len(firsts) > 0 {
		last = firsts[len(firsts)-1]
		firsts = firsts[:len(firsts)-1]
	}
	for len(firsts) > 0 && nameParticles[strings.ToLower(firsts[len(firsts)-1])] {
		last = firsts[len(firsts)-1] + " " + last
		firsts = firsts[:len(firsts)-1]
	}
	if last == "" {
		return Author{}, false
	}
	return Author{Last: last, First: strings.Join(firsts, " ")}, true
}

// Name is the codec for a single author name.
type Name struct{}

func (Name) Normalize(a Author) (Author, bool) {
	a.Last = strings.TrimSpace(DecodeLaTeX(a.Last))
	a.First = strings.TrimSpace(DecodeLaTeX(a.First))
	return a, a.Last != ""
}

// Match requires equal last names. Unknown first names score half, equal
// first names full, and abbreviated first names ("J." for "John") three
// quarters.
func (Name) Match(a, b Author) int {
	if Strong(a.Last) != Strong(b.Last) {
		return NoMatch
	}
	if a.First == "" || b.First == "" {
		return FullMatch / 2
	}
	fa, fb := Strong(a.First), Strong(b.First)
	if fa == fb {
		return FullMatch
	}
	if IsAbbrev(fa, fb) || IsAbbrev(fb, fa) {
		return 3 * FullMatch / 4
	}
	return NoMatch
}

// Combine keeps the first last name and the longest first name.
func (Name) Combine(a, b Author) Author {
	return Author{Last: a.Last, First: PickLongest(a.First, b.First)}
}

func (Name) Format(a Author) string { return a.String() }

func (n Name) Parse(s string) (Author, bool) {
	a, ok := ParseName(s)
	if !ok {
		return Author{}, false
	}
	return n.Normalize(a)
}

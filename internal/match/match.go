// Package match scores how likely two bibliographic records denote the same
// work.
package match

import (
	"strings"

	"github.com/matsen/bibfill/internal/field"
	"github.com/matsen/bibfill/internal/reference"
)

// Record match scores.
const (
	// CertainMatch is returned for equal DOIs and bounds every other score.
	CertainMatch = 1000
	// NoMatch marks a guaranteed non-match.
	NoMatch = 0

	TitleMatch     = CertainMatch * 2 / 3 // titles equal after weak normalization
	TitleMatchWeak = TitleMatch / 2       // titles equal after strong normalization

	AuthorBonus = 200 // equal author sets; halved for a subset, quartered for an overlap
	YearBonus   = 100

	// FieldBonus is added per other field both records hold, scaled by the
	// field's match score. The sum is capped at FieldBonusCap so that no
	// score without a DOI reaches CertainMatch.
	FieldBonus    = 10
	FieldBonusCap = CertainMatch - 1 - TitleMatch - AuthorBonus - YearBonus
)

// scored lists the fields compared by Score itself.
var scored = reference.NewFieldSet(reference.Title, reference.DOI, reference.Author, reference.Year)

// Score compares two records.
//
// Equal DOIs are authoritative. Otherwise both titles must agree, and known
// author lists and years act as vetoes when they disagree and as bonuses
// when they agree. Every other field both records hold adds a small bonus
// by its match score and never vetoes. Callers treat any positive score as
// a candidate.
func Score(a, b *reference.Reference) int {
	if doi := a.DOI(); doi != "" && doi == b.DOI() {
		return CertainMatch
	}

	ta, tb := a.Title(), b.Title()
	if ta == "" || tb == "" {
		return NoMatch
	}
	var score int
	switch {
	case field.Weak(ta) == field.Weak(tb):
		score = TitleMatch
	case field.Strong(ta) == field.Strong(tb):
		score = TitleMatchWeak
	default:
		return NoMatch
	}

	bonus, ok := authorBonus(a.Authors(), b.Authors())
	if !ok {
		return NoMatch
	}
	score += bonus

	if ya, yb := a.Year(), b.Year(); ya != "" && yb != "" {
		if ya != yb {
			return NoMatch
		}
		score += YearBonus
	}
	return score + fieldBonus(a, b)
}

func fieldBonus(a, b *reference.Reference) int {
	var bonus int
	for _, n := range a.Fields().Intersect(b.Fields()).Minus(scored).Names() {
		if s, ok := a.Match(n, b); ok {
			bonus += s * FieldBonus / field.FullMatch
		}
	}
	return min(bonus, FieldBonusCap)
}

// authorBonus compares last name sets. ok is false when both sides list
// authors and none are shared.
func authorBonus(a, b []field.Author) (bonus int, ok bool) {
	sa, sb := lastNames(a), lastNames(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0, true
	}
	common := 0
	for n := range sa {
		if _, found := sb[n]; found {
			common++
		}
	}
	switch {
	case common == 0:
		return 0, false
	case common == len(sa) && common == len(sb):
		return AuthorBonus, true
	case common == len(sa) || common == len(sb):
		return AuthorBonus / 2, true
	default:
		return AuthorBonus / 4, true
	}
}

func lastNames(authors []field.Author) map[string]struct{} {
	set := make(map[string]struct{}, len(authors))
	for _, au := range authors {
		if n := strings.ReplaceAll(field.Strong(au.Last), " ", ""); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Package field defines typed bibliographic field values and the rules for
// normalizing, comparing and merging them.
//
// Every field kind is described by a Codec. Scalar kinds operate on strings;
// list kinds (author names, ISSNs, page ranges) are built with List from the
// codec of their element type.
package field

// Match scores returned by Codec.Match.
const (
	FullMatch = 100
	NoMatch   = 0
)

// Codec describes how values of one field kind are handled.
//
//   - Normalize canonicalizes a value or rejects it (ok == false).
//   - Match scores two normalized values between NoMatch and FullMatch.
//   - Combine merges two values already judged to match.
//   - Format and Parse convert to and from the BibTeX display form.
type Codec[T any] interface {
	Normalize(v T) (T, bool)
	Match(a, b T) int
	Combine(a, b T) T
	Format(v T) string
	Parse(s string) (T, bool)
}

// PickLongest returns the longer of two strings in runes, falling back to
// byte length so that accented spellings win ties.
func PickLongest(a, b string) string {
	la, lb := len([]rune(a)), len([]rune(b))
	switch {
	case la > lb:
		return a
	case lb > la:
		return b
	case len(a) >= len(b):
		return a
	default:
		return b
	}
}

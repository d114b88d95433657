package field

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespace = regexp.MustCompile(`\s+`)

// StripAccents removes combining marks after canonical decomposition, so
// "Erdős" becomes "Erdos".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Weak lowercases s, strips accents and collapses whitespace runs.
// LaTeX markup is decoded first.
func Weak(s string) string {
	s = StripAccents(DecodeLaTeX(s))
	s = strings.ToLower(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Strong keeps only letters and digits, replacing every other run of
// characters with a single space. The result is lowercase and accent free.
func Strong(s string) string {
	s = StripAccents(DecodeLaTeX(s))
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
		} else if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// IsAbbrev reports whether abbrev abbreviates text word by word, as in
// "proc acm" for "proceedings of the association for computing machinery".
// Both arguments are expected in Strong form.
func IsAbbrev(abbrev, text string) bool {
	words := strings.Fields(abbrev)
	if len(words) == 0 {
		return false
	}
	parts := make([]string, len(words))
	for i, w := range words {
		letters := make([]string, 0, len(w))
		for _, r := range w {
			letters = append(letters, regexp.QuoteMeta(string(r)))
		}
		parts[i] = strings.Join(letters, `(|.*\s)`)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, `.*\s`))
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

package field

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Plain is the codec for ordinary text fields such as title or note.
//
// Values are decoded from LaTeX and trimmed. Two values match fully when they
// agree after Weak normalization and half when they agree after Strong.
type Plain struct{}

func (Plain) Normalize(v string) (string, bool) {
	v = strings.TrimSpace(DecodeLaTeX(strings.TrimSpace(v)))
	return v, v != ""
}

func (Plain) Match(a, b string) int {
	if Weak(a) == Weak(b) {
		return FullMatch
	}
	if Strong(a) == Strong(b) {
		return FullMatch / 2
	}
	return NoMatch
}

func (Plain) Combine(a, _ string) string { return a }

func (Plain) Format(v string) string { return v }

func (p Plain) Parse(s string) (string, bool) { return p.Normalize(s) }

// Abbreviated is the codec for venue-like fields that are often shortened
// (journal, booktitle, publisher). Combining keeps the longer spelling.
type Abbreviated struct{ Plain }

func (Abbreviated) Match(a, b string) int {
	if Weak(a) == Weak(b) {
		return FullMatch
	}
	sa, sb := Strong(a), Strong(b)
	if sa == sb {
		return FullMatch * 2 / 3
	}
	if IsAbbrev(sa, sb) || IsAbbrev(sb, sa) {
		return FullMatch / 3
	}
	return NoMatch
}

func (Abbreviated) Combine(a, b string) string { return PickLongest(a, b) }

// exact provides equality matching shared by the identifier codecs.
type exact struct{}

func (exact) Match(a, b string) int {
	if a == b {
		return FullMatch
	}
	return NoMatch
}

func (exact) Combine(a, _ string) string { return a }

func (exact) Format(v string) string { return v }

var doiPattern = regexp.MustCompile(`(10\.\d{4,5}/\S+[^;,.\s])$`)

// DOI is the codec for digital object identifiers. Values are reduced to the
// lowercase "10.xxxx/..." form; URL prefixes are dropped.
type DOI struct{ exact }

// NormalizeDOI extracts a canonical DOI from a bare DOI or a doi.org URL.
func NormalizeDOI(v string) (string, bool) {
	m := doiPattern.FindStringSubmatch(strings.TrimRight(strings.TrimSpace(v), ";,."))
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

func (DOI) Normalize(v string) (string, bool) { return NormalizeDOI(v) }

func (DOI) Parse(s string) (string, bool) { return NormalizeDOI(DecodeLaTeX(s)) }

// URL is the codec for web addresses, canonicalized to
// https://host/path?query#fragment with the query re-encoded.
type URL struct{ exact }

func (URL) Normalize(v string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	out := "https://" + u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.Query().Encode()
	}
	if u.Fragment != "" {
		out += "#" + u.EscapedFragment()
	}
	return out, true
}

func (c URL) Parse(s string) (string, bool) { return c.Normalize(s) }

var monthNumbers = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// Month is the codec for months, stored as "1" through "12". English names,
// three letter abbreviations and numbers are recognized.
type Month struct{ exact }

func (Month) Normalize(v string) (string, bool) {
	s := Strong(v)
	if n, ok := monthNumbers[s]; ok {
		return strconv.Itoa(n), true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return "", false
	}
	return strconv.Itoa(n), true
}

func (c Month) Parse(s string) (string, bool) { return c.Normalize(s) }

// Year is the codec for publication years. Years must lie strictly between
// 100 and ten years from now.
type Year struct{ exact }

func (Year) Normalize(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.TrimLeft(v, "0123456789") != "" {
		return "", false
	}
	y, err := strconv.Atoi(v)
	if err != nil || y <= 100 || y >= time.Now().Year()+10 {
		return "", false
	}
	return strconv.Itoa(y), true
}

func (c Year) Parse(s string) (string, bool) { return c.Normalize(DecodeLaTeX(s)) }

// ISSN is the codec for one ISSN, stored as "nnnn-nnnX" once its check digit
// has been verified.
type ISSN struct{ exact }

func (ISSN) Normalize(v string) (string, bool) {
	s := strings.ReplaceAll(Strong(strings.ReplaceAll(strings.ToLower(v), "issn", "")), " ", "")
	if len(s) != 8 || !isDigits(s[:7]) || !(isDigits(s[7:]) || s[7] == 'x') {
		return "", false
	}
	sum := 0
	for i := 0; i < 8; i++ {
		sum += (8 - i) * digitValue(s[i])
	}
	if sum%11 != 0 {
		return "", false
	}
	return s[:4] + "-" + strings.ToUpper(s[4:]), true
}

func (c ISSN) Parse(s string) (string, bool) { return c.Normalize(s) }

// ISBN is the codec for ISBNs. Ten digit ISBNs are converted to their
// thirteen digit form, stored as "nnn-nnnnnnnnnn".
type ISBN struct{ exact }

func (ISBN) Normalize(v string) (string, bool) {
	s := strings.ReplaceAll(Strong(strings.ReplaceAll(strings.ToLower(v), "isbn", "")), " ", "")
	switch len(s) {
	case 10:
		if !isDigits(s[:9]) || !(isDigits(s[9:]) || s[9] == 'x') {
			return "", false
		}
		sum := 0
		for i := 0; i < 10; i++ {
			sum += (10 - i) * digitValue(s[i])
		}
		if sum%11 != 0 {
			return "", false
		}
		s = "978" + s[:9]
		s += isbn13CheckDigit(s)
	case 13:
		if !isDigits(s) || s[12:] != isbn13CheckDigit(s) {
			return "", false
		}
	default:
		return "", false
	}
	return s[:3] + "-" + s[3:], true
}

func (c ISBN) Parse(s string) (string, bool) { return c.Normalize(s) }

func isbn13CheckDigit(s string) string {
	sum := 0
	for i := 0; i < 12; i++ {
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += w * digitValue(s[i])
	}
	if sum%10 == 0 {
		return "0"
	}
	return strconv.Itoa(10 - sum%10)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func digitValue(c byte) int {
	if c == 'x' || c == 'X' {
		return 10
	}
	return int(c - '0')
}

// PageSeparator joins the first and last page of a range.
const PageSeparator = "--"

var pageRange = regexp.MustCompile(`^\s*(\S+?)\s*(?:-+|–|—)\s*(\S+)\s*$`)

// Pages is the codec for one page or page range, stored as "a--b".
type Pages struct{ exact }

func (Pages) Normalize(v string) (string, bool) {
	m := pageRange.FindStringSubmatch(v)
	if m == nil {
		v = strings.TrimSpace(v)
		return v, v != ""
	}
	if m[1] == m[2] {
		return m[1], true
	}
	return m[1] + PageSeparator + m[2], true
}

func (c Pages) Parse(s string) (string, bool) { return c.Normalize(DecodeLaTeX(s)) }

// PageRange formats a first and last page pair. Either bound may be empty.
func PageRange(first, last string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	switch {
	case first == "":
		return last
	case last == "" || first == last:
		return first
	default:
		return first + PageSeparator + last
	}
}

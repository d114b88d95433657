package bibtex

import (
	"strings"
	"time"

	"github.com/matsen/bibfill/internal/merge"
	"github.com/matsen/bibfill/internal/reference"
)

// MarkField records when an entry was last queried.
const MarkField = "BTACqueried"

// Prefix is prepended to field names in prefix mode.
const Prefix = "BTAC"

// ToReference converts e into a reference. Fields outside the closed
// field set are ignored; values that fail normalization are dropped.
func ToReference(e *Entry) *reference.Reference {
	ref := reference.New(e.Key, strings.ToLower(e.Type))
	for _, f := range e.Fields {
		if name, ok := reference.Lookup(f.Name); ok {
			ref.SetString(name, f.Value)
		}
	}
	return ref
}

// Apply writes changes into e. With a non-empty prefix every value goes to
// prefix+field and the original field is left alone.
func Apply(e *Entry, changes []merge.Change, prefix string) {
	for _, c := range changes {
		value := c.Value
		if c.Field != reference.URL && c.Field != reference.DOI {
			value = escape(value)
		}
		e.Set(prefix+string(c.Field), balance(value))
	}
}

// Mark stamps e with the query date.
func Mark(e *Entry, now time.Time) {
	e.Set(MarkField, now.Format(time.DateOnly))
}

// Marked reports whether e carries a query stamp.
func Marked(e *Entry) bool {
	_, ok := e.Get(MarkField)
	return ok
}

// escape backslash-escapes LaTeX special characters that are not escaped
// already.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte("&%#", c) >= 0 && (i == 0 || s[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// balance escapes every brace without a partner and doubles a trailing
// backslash, so the value can be written between braces and read back.
func balance(s string) string {
	var (
		open  []int
		stray = make(map[int]bool)
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				stray[i] = true
			} else {
				open = open[:len(open)-1]
			}
		}
	}
	for _, i := range open {
		stray[i] = true
	}

	trailing := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		trailing++
	}
	if len(stray) == 0 && trailing%2 == 0 {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if stray[i] {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	if trailing%2 == 1 {
		b.WriteByte('\\')
	}
	return b.String()
}

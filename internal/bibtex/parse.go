package bibtex

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("bibtex syntax error")

// monthMacros are predefined by every BibTeX style.
var monthMacros = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// Parse reads a BibTeX file.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bibtex: %w", err)
	}
	p := &parser{src: string(data), macros: make(map[string]string)}
	return p.file()
}

type parser struct {
	src    string
	pos    int
	macros map[string]string
}

func (p *parser) errorf(format string, args ...any) error {
	line := 1 + strings.Count(p.src[:min(p.pos, len(p.src))], "\n")
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, line, fmt.Sprintf(format, args...))
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		strings.IndexByte("_-:.+/'", c) >= 0 || c >= 0x80
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) file() (*File, error) {
	f := &File{}
	for !p.eof() {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			f.addText(p.src[p.pos:])
			break
		}
		f.addText(p.src[p.pos : p.pos+at])
		start := p.pos + at
		p.pos = start + 1

		typ := p.ident()
		if typ == "" {
			return nil, p.errorf("missing item type after @")
		}
		p.skipSpace()
		var closing byte
		switch p.peek() {
		case '{':
			closing = '}'
		case '(':
			closing = ')'
		default:
			return nil, p.errorf("expected { or ( after @%s", typ)
		}
		p.pos++

		switch strings.ToLower(typ) {
		case "comment":
			if err := p.skipBalanced(closing); err != nil {
				return nil, err
			}
			f.Items = append(f.Items, Item{Kind: CommentItem, Raw: p.src[start:p.pos]})
		case "preamble":
			if err := p.skipBalanced(closing); err != nil {
				return nil, err
			}
			f.Items = append(f.Items, Item{Kind: PreambleItem, Raw: p.src[start:p.pos]})
		case "string":
			if err := p.stringDef(closing); err != nil {
				return nil, err
			}
			f.Items = append(f.Items, Item{Kind: StringItem, Raw: p.src[start:p.pos]})
		default:
			e, err := p.entry(typ, closing)
			if err != nil {
				return nil, err
			}
			f.Items = append(f.Items, Item{Kind: EntryItem, Entry: e})
		}
	}
	return f, nil
}

func (f *File) addText(s string) {
	if s = strings.TrimSpace(s); s != "" {
		f.Items = append(f.Items, Item{Kind: TextItem, Raw: s})
	}
}

// skipBalanced advances past the closing delimiter matching an already
// consumed opening one.
func (p *parser) skipBalanced(closing byte) error {
	opening := byte('{')
	if closing == ')' {
		opening = '('
	}
	depth := 1
	for ; !p.eof(); p.pos++ {
		switch p.src[p.pos] {
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
	}
	return p.errorf("unterminated item")
}

func (p *parser) stringDef(closing byte) error {
	p.skipSpace()
	name := p.ident()
	if name == "" {
		return p.errorf("missing @string name")
	}
	if err := p.expect('='); err != nil {
		return err
	}
	value, _, err := p.value()
	if err != nil {
		return err
	}
	p.macros[strings.ToLower(name)] = value
	return p.expect(closing)
}

func (p *parser) entry(typ string, closing byte) (*Entry, error) {
	e := &Entry{Type: typ}
	p.skipSpace()
	start := p.pos
	for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != closing {
		p.pos++
	}
	if p.eof() {
		return nil, p.errorf("unterminated entry")
	}
	e.Key = strings.TrimSpace(p.src[start:p.pos])
	if p.src[p.pos] == closing {
		p.pos++
		return e, nil
	}
	p.pos++

	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			return e, nil
		}
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected field name in entry %q", e.Key)
		}
		if err := p.expect('='); err != nil {
			return nil, err
		}
		value, raw, err := p.value()
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, Field{Name: strings.ToLower(name), Value: value, Raw: raw})

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return e, nil
		default:
			return nil, p.errorf("expected , or %q after field %q", closing, name)
		}
	}
}

// value reads a possibly concatenated value and returns it expanded and as
// written.
func (p *parser) value() (string, string, error) {
	p.skipSpace()
	start := p.pos
	var b strings.Builder
	for {
		p.skipSpace()
		switch c := p.peek(); {
		case c == '{':
			s, err := p.delimited('}')
			if err != nil {
				return "", "", err
			}
			b.WriteString(s)
		case c == '"':
			s, err := p.delimited('"')
			if err != nil {
				return "", "", err
			}
			b.WriteString(s)
		case c >= '0' && c <= '9':
			num := p.pos
			for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
				p.pos++
			}
			b.WriteString(p.src[num:p.pos])
		default:
			name := p.ident()
			if name == "" {
				return "", "", p.errorf("expected value")
			}
			b.WriteString(p.expand(name))
		}
		p.skipSpace()
		if p.peek() != '#' {
			break
		}
		p.pos++
	}
	return b.String(), strings.TrimSpace(p.src[start:p.pos]), nil
}

func (p *parser) expand(name string) string {
	key := strings.ToLower(name)
	if v, ok := p.macros[key]; ok {
		return v
	}
	if v, ok := monthMacros[key]; ok {
		return v
	}
	return name
}

// delimited reads a {...} or "..." value and returns its content. Braces
// nested inside are kept.
func (p *parser) delimited(closing byte) (string, error) {
	p.pos++
	start := p.pos
	depth := 0
	for ; !p.eof(); p.pos++ {
		switch c := p.src[p.pos]; {
		case c == '\\':
			p.pos++
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closing && depth == 0:
			s := p.src[start:p.pos]
			p.pos++
			return s, nil
		case c == '}':
			return "", p.errorf("unbalanced braces in value")
		}
	}
	return "", p.errorf("unterminated value")
}

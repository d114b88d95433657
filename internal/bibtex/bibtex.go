// Package bibtex reads and writes BibTeX files.
//
// Parsing keeps everything needed to write a file back faithfully: item
// order, field order, unknown fields and the raw text of every value that
// was not changed.
package bibtex

import (
	"slices"
	"strings"
)

// Kind identifies a top-level item of a BibTeX file.
type Kind int

const (
	EntryItem    Kind = iota // @article{...} and friends
	StringItem               // @string{name = value}
	PreambleItem             // @preamble{...}
	CommentItem              // @comment{...}
	TextItem                 // Anything between items
)

// Field is one "name = value" pair of an entry.
type Field struct {
	Name  string // Lowercase
	Value string // Braces and quotes removed, macros expanded
	Raw   string // As written; empty once Value was changed
}

// Entry is a bibliographic entry.
type Entry struct {
	Type   string
	Key    string
	Fields []Field
}

// Get returns the value of field name.
func (e *Entry) Get(name string) (string, bool) {
	if i := e.index(name); i >= 0 {
		return e.Fields[i].Value, true
	}
	return "", false
}

// Set replaces the value of field name in place, or appends the field.
// Names compare case-insensitively.
func (e *Entry) Set(name, value string) {
	if i := e.index(name); i >= 0 {
		e.Fields[i] = Field{Name: e.Fields[i].Name, Value: value}
		return
	}
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
}

// Delete removes field name.
func (e *Entry) Delete(name string) {
	if i := e.index(name); i >= 0 {
		e.Fields = append(e.Fields[:i], e.Fields[i+1:]...)
	}
}

// Keep removes every field not named in names, preserving order. Names
// compare case-insensitively.
func (e *Entry) Keep(names ...string) {
	kept := e.Fields[:0]
	for _, f := range e.Fields {
		if slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, f.Name) }) {
			kept = append(kept, f)
		}
	}
	e.Fields = kept
}

func (e *Entry) index(name string) int {
	for i, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Item is one top-level element of a file. Entry is set for EntryItem;
// the other kinds keep their source text in Raw.
type Item struct {
	Kind  Kind
	Entry *Entry
	Raw   string
}

// File is a parsed BibTeX file.
type File struct {
	Items []Item
}

// Entries returns the entries of f in file order.
func (f *File) Entries() []*Entry {
	var out []*Entry
	for _, it := range f.Items {
		if it.Kind == EntryItem {
			out = append(out, it.Entry)
		}
	}
	return out
}

// Retain drops every item except the entries keep accepts.
func (f *File) Retain(keep func(*Entry) bool) {
	items := f.Items[:0]
	for _, it := range f.Items {
		if it.Kind == EntryItem && keep(it.Entry) {
			items = append(items, it)
		}
	}
	f.Items = items
}

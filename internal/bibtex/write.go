package bibtex

import (
	"bufio"
	"io"
	"strings"
)

// Write serializes f. Unchanged values keep their original spelling;
// changed or added values are written in braces. Entries use one tab of
// indentation and a trailing comma after every field.
func Write(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)
	for i, it := range f.Items {
		if i > 0 {
			bw.WriteString("\n")
		}
		if it.Kind == EntryItem {
			writeEntry(bw, it.Entry)
			continue
		}
		bw.WriteString(it.Raw)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Format returns the BibTeX text of a single entry.
func Format(e *Entry) string {
	var b strings.Builder
	bw := bufio.NewWriter(&b)
	writeEntry(bw, e)
	bw.Flush()
	return b.String()
}

func writeEntry(w *bufio.Writer, e *Entry) {
	w.WriteString("@" + e.Type + "{" + e.Key + ",\n")
	for _, fld := range e.Fields {
		w.WriteString("\t" + fld.Name + " = ")
		if fld.Raw != "" {
			w.WriteString(fld.Raw)
		} else {
			w.WriteString("{" + fld.Value + "}")
		}
		w.WriteString(",\n")
	}
	w.WriteString("}\n")
}

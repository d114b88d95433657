package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/matsen/bibfill/internal/dispatch"
	"github.com/matsen/bibfill/internal/merge"
)

// FileResult is the outcome for one input file.
type FileResult struct {
	Input   string         `json:"input"`
	Output  string         `json:"output"`
	Entries int            `json:"entries"` // Entries in the file
	Queried int            `json:"queried"` // Entries looked up
	Marked  int            `json:"marked"`  // Entries skipped for carrying a query stamp
	Changes merge.Summary  `json:"changes"`
	Stats   dispatch.Stats `json:"stats"`

	toStdout bool
}

// Summary is printed once all inputs are processed.
type Summary struct {
	Files  []FileResult `json:"files"`
	Unused []string     `json:"unused_entry_filters,omitempty"`

	toStdout bool
}

func (s *Summary) add(r FileResult) {
	s.Files = append(s.Files, r)
	s.toStdout = s.toStdout || r.toStdout
}

func (s *Summary) write(w io.Writer, human bool) error {
	if !human {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	var b strings.Builder
	for _, f := range s.Files {
		fmt.Fprintf(&b, "%s -> %s\n", f.Input, f.Output)
		fmt.Fprintf(&b, "  %d entries, %d queried", f.Entries, f.Queried)
		if f.Marked > 0 {
			fmt.Fprintf(&b, ", %d skipped as already queried", f.Marked)
		}
		fmt.Fprintf(&b, "\n  %d fields added to %d entries\n", f.Changes.Fields, f.Changes.Records)
		for _, src := range slices.Sorted(maps.Keys(f.Changes.BySource)) {
			fmt.Fprintf(&b, "    %-10s %d fields\n", src, f.Changes.BySource[src])
		}
		if len(f.Stats.Failures) > 0 {
			b.WriteString("  failed queries:\n")
			for _, src := range slices.Sorted(maps.Keys(f.Stats.Failures)) {
				fmt.Fprintf(&b, "    %-10s %d\n", src, f.Stats.Failures[src])
			}
		}
	}
	if len(s.Unused) > 0 {
		fmt.Fprintf(&b, "entry filters matching nothing: %s\n", strings.Join(s.Unused, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

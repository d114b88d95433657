// Package pdf finds the DOI of a record in the PDF files attached to it.
package pdf

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/matsen/bibfill/internal/field"
)

// maxPages bounds the pages searched in one file; the DOI is usually on
// the first.
const maxPages = 3

// ErrNoDOI is returned when none of the files mentions a DOI.
var ErrNoDOI = errors.New("no DOI found")

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// FilePaths splits the value of a BibTeX file field into PDF paths.
//
// Both plain paths and the JabRef "description:path:type" triples are
// understood; several files are separated by ';'. Relative paths are
// resolved against dir.
func FilePaths(value, dir string) []string {
	var paths []string
	for _, item := range strings.Split(value, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if parts := strings.Split(item, ":"); len(parts) == 3 && !isDrive(parts[0]) {
			if !strings.EqualFold(parts[2], "pdf") && parts[2] != "" {
				continue
			}
			item = parts[1]
		}
		if !strings.EqualFold(filepath.Ext(item), ".pdf") {
			continue
		}
		if !filepath.IsAbs(item) && dir != "" {
			item = filepath.Join(dir, item)
		}
		paths = append(paths, item)
	}
	return paths
}

// isDrive reports whether s is a Windows drive letter, so "C:\x.pdf" is
// not taken for a triple.
func isDrive(s string) bool {
	return len(s) == 1 && (s[0] >= 'a' && s[0] <= 'z' || s[0] >= 'A' && s[0] <= 'Z')
}

// DiscoverDOI returns the first DOI mentioned in the PDFs of a file field.
// Unreadable files are skipped; ErrNoDOI is returned when nothing is found.
func DiscoverDOI(value, dir string) (string, error) {
	var errs []error
	for _, path := range FilePaths(value, dir) {
		doi, err := ExtractDOI(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if doi != "" {
			return doi, nil
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: %w", ErrNoDOI, errors.Join(errs...))
	}
	return "", ErrNoDOI
}

// ExtractDOI extracts a DOI from a PDF file.
// It searches the first few pages for DOI patterns.
func ExtractDOI(filePath string) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	pages := min(r.NumPage(), maxPages)
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if doi := findDOI(text); doi != "" {
			return doi, nil
		}
	}

	return "", nil
}

// findDOI returns the first well-formed DOI in text, normalized.
func findDOI(text string) string {
	for _, m := range doiPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:)")
		if doi, ok := field.NormalizeDOI(m); ok {
			return doi
		}
	}
	return ""
}

package field

import (
	"regexp"
	"sort"
	"strings"
)

// LongList is the size of the pairwise score matrix above which lists are
// matched with the quadratic per-element pass instead of greedy extraction.
const LongList = 5000

// List builds the codec of a list field from the codec of its elements.
//
// Lists are matched without regard to order. The best pairwise matches are
// extracted greedily, which is not globally optimal. The average score of the
// matched pairs is kept whole when every element on both sides matched,
// halved when one side has extras and quartered when both do.
type List[T any] struct {
	Elem  Codec[T]
	Less  func(a, b T) bool // orders unmatched elements during Combine
	Sep   string            // joins elements in Format
	Split *regexp.Regexp    // splits elements in Parse
}

// Names is the codec for author and editor lists.
var Names = List[Author]{
	Elem:  Name{},
	Less:  Author.Less,
	Sep:   " and ",
	Split: regexp.MustCompile(`\s+and\s+`),
}

// ISSNs is the codec for ISSN lists.
var ISSNs = List[string]{
	Elem:  ISSN{},
	Less:  func(a, b string) bool { return a < b },
	Sep:   ", ",
	Split: regexp.MustCompile(`,`),
}

// PageList is the codec for page lists.
var PageList = List[string]{
	Elem:  Pages{},
	Less:  func(a, b string) bool { return a < b },
	Sep:   ", ",
	Split: regexp.MustCompile(`,`),
}

// Normalize normalizes every element and drops rejected ones. An empty
// result is rejected.
func (l List[T]) Normalize(vs []T) ([]T, bool) {
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		if n, ok := l.Elem.Normalize(v); ok {
			out = append(out, n)
		}
	}
	return out, len(out) > 0
}

func (l List[T]) Match(a, b []T) int {
	if len(a) == 0 || len(b) == 0 {
		return NoMatch
	}
	// Greedy extraction breaks ties by position, so score both orientations.
	return max(l.matchOriented(a, b), l.matchOriented(b, a))
}

func (l List[T]) matchOriented(a, b []T) int {
	var common, sum int
	if len(a)*len(b) <= LongList {
		scores := l.scores(a, b)
		for _, p := range extract(scores) {
			common++
			sum += scores[p.i][p.j]
		}
	} else {
		used := make([]bool, len(b))
		for _, x := range a {
			best, bestJ := NoMatch, -1
			for j, y := range b {
				if used[j] {
					continue
				}
				if s := l.Elem.Match(x, y); s > best {
					best, bestJ = s, j
				}
			}
			if bestJ >= 0 {
				used[bestJ] = true
				common++
				sum += best
			}
		}
	}
	return listScore(len(a), len(b), common, sum)
}

func listScore(na, nb, common, sum int) int {
	if common == 0 {
		return NoMatch
	}
	avg := max(1, sum/common)
	aOnly, bOnly := na-common, nb-common
	switch {
	case aOnly == 0 && bOnly == 0:
		return avg
	case aOnly == 0 || bOnly == 0:
		return avg / 2
	default:
		return avg / 4
	}
}

// Combine merges matched pairs with the element codec and keeps unmatched
// elements of both lists, preserving positions from the longer list first.
// Above LongList the longer list is returned as is.
func (l List[T]) Combine(a, b []T) []T {
	if len(a)*len(b) >= LongList {
		if len(a) >= len(b) {
			return a
		}
		return b
	}

	type cell struct {
		i, j int // -1 when absent from that side
		v    T
	}
	cells := make([]cell, 0, len(a)+len(b))
	inA := make([]int, len(a))
	inB := make([]int, len(b))
	for i, x := range a {
		inA[i] = len(cells)
		cells = append(cells, cell{i: i, j: -1, v: x})
	}
	for j, y := range b {
		inB[j] = len(cells)
		cells = append(cells, cell{i: -1, j: j, v: y})
	}
	removed := make([]bool, len(cells))
	for _, p := range extract(l.scores(a, b)) {
		removed[inA[p.i]] = true
		removed[inB[p.j]] = true
		cells = append(cells, cell{i: p.i, j: p.j, v: l.Elem.Combine(a[p.i], b[p.j])})
		removed = append(removed, false)
	}
	kept := cells[:0:0]
	for k, c := range cells {
		if !removed[k] {
			kept = append(kept, c)
		}
	}

	first := func(c cell) int { return c.i }
	second := func(c cell) int { return c.j }
	if len(b) > len(a) {
		first, second = second, first
	}
	sort.SliceStable(kept, func(x, y int) bool {
		cx, cy := kept[x], kept[y]
		if first(cx) >= 0 && first(cy) >= 0 {
			return first(cx) < first(cy)
		}
		if second(cx) >= 0 && second(cy) >= 0 {
			return second(cx) < second(cy)
		}
		return l.Less != nil && l.Less(cx.v, cy.v)
	})

	out := make([]T, len(kept))
	for k, c := range kept {
		out[k] = c.v
	}
	return out
}

func (l List[T]) Format(vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = l.Elem.Format(v)
	}
	return strings.Join(parts, l.Sep)
}

// Parse splits s into elements and parses each one. Unparseable elements
// are skipped.
func (l List[T]) Parse(s string) ([]T, bool) {
	s = strings.NewReplacer("\n", " ", "\t", " ").Replace(s)
	var out []T
	for _, part := range l.Split.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, ok := l.Elem.Parse(part); ok {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

func (l List[T]) scores(a, b []T) [][]int {
	m := make([][]int, len(a))
	for i, x := range a {
		m[i] = make([]int, len(b))
		for j, y := range b {
			m[i][j] = l.Elem.Match(x, y)
		}
	}
	return m
}

type pair struct{ i, j int }

// extract repeatedly takes the highest scoring cell of m, removing its row
// and column, until no positive score remains. m is left untouched.
func extract(m [][]int) []pair {
	if len(m) == 0 {
		return nil
	}
	rowDone := make([]bool, len(m))
	colDone := make([]bool, len(m[0]))
	var out []pair
	for {
		best, bi, bj := NoMatch, -1, -1
		for i, row := range m {
			if rowDone[i] {
				continue
			}
			for j, s := range row {
				if !colDone[j] && s > best {
					best, bi, bj = s, i, j
				}
			}
		}
		if bi < 0 {
			return out
		}
		rowDone[bi], colDone[bj] = true, true
		out = append(out, pair{bi, bj})
	}
}

// Package cascade runs the per-source sequence of lookup attempts for one
// record, from the most specific query to the broadest, stopping at the
// first attempt that yields a matching candidate.
package cascade

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/bibfill/internal/field"
	"github.com/matsen/bibfill/internal/match"
	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

// MaxAuthorQueries caps the single-author attempts for one record.
const MaxAuthorQueries = 10

// Plan returns the attempts to make for ref, in order:
//
//  1. the DOI, when known (title and authors ride along)
//  2. all author last names plus the title
//  3. each distinct author last name plus the title, when there are several
//  4. the title alone
//
// Attempts the source does not support are left out. A record with neither
// DOI nor title yields no attempts.
func Plan(ref *reference.Reference, src source.Capabilities) []source.Query {
	title := ref.Title()
	authors := lastNames(ref.Authors())

	var plan []source.Query
	if doi := ref.DOI(); doi != "" && src.Supports(source.ByDOI) {
		plan = append(plan, source.Query{Strategy: source.ByDOI, DOI: doi, Title: title, Authors: authors})
	}
	if title == "" {
		return plan
	}
	if len(authors) > 0 && src.Supports(source.ByAuthorTitle) {
		plan = append(plan, source.Query{Strategy: source.ByAuthorTitle, Title: title, Authors: authors})
		if len(authors) > 1 {
			for _, a := range authors[:min(len(authors), MaxAuthorQueries)] {
				plan = append(plan, source.Query{Strategy: source.ByAuthorTitle, Title: title, Authors: []string{a}})
			}
		}
	}
	if src.Supports(source.ByTitle) {
		plan = append(plan, source.Query{Strategy: source.ByTitle, Title: title})
	}
	return plan
}

// lastNames returns the last names of authors, dropping those equal to an
// earlier one after strong normalization.
func lastNames(authors []field.Author) []string {
	seen := make(map[string]bool, len(authors))
	var out []string
	for _, a := range authors {
		key := field.Strong(a.Last)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a.Last)
	}
	return out
}

// Attempt records one executed query.
type Attempt struct {
	Query      source.Query
	URL        string
	Status     int
	Duration   time.Duration
	Candidates int
	Score      int
	Err        error

	RateLimited bool // The source answered 429
}

// Result is the outcome of a cascade for one record and one source.
type Result struct {
	Contribution *reference.Reference // nil when nothing matched
	Score        int
	Attempts     []Attempt
}

// Runner executes cascades.
type Runner struct {
	Logger *zap.Logger
}

// Run tries every planned attempt against src until one returns a candidate
// scoring above zero against ref. Failed attempts are logged and the
// cascade moves on. Only context cancellation is returned as an error.
func (r *Runner) Run(ctx context.Context, src *source.Source, ref *reference.Reference) (Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("source", src.Name), zap.String("entry", ref.ID))

	var res Result
	for _, q := range Plan(ref, src) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		cands, resp, err := src.Lookup(ctx, q)
		att := Attempt{Query: q, Candidates: len(cands), Err: err}
		if resp != nil {
			att.URL, att.Status, att.Duration = resp.URL, resp.Status, resp.Duration
		}
		if err != nil {
			att.RateLimited = source.IsRateLimited(err)
			res.Attempts = append(res.Attempts, att)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			switch {
			case errors.Is(err, source.ErrUndeclaredField):
				logger.Error("adapter contract violation", zap.Error(err))
			case att.RateLimited:
				logger.Warn("rate limited by source", zap.Stringer("query", q), zap.String("url", att.URL))
			default:
				logger.Warn("lookup failed", zap.Stringer("query", q), zap.Error(err))
			}
			continue
		}

		best, bestScore := pick(ref, cands)
		att.Score = bestScore
		res.Attempts = append(res.Attempts, att)
		logger.Debug("attempt",
			zap.Stringer("query", q),
			zap.Int("candidates", len(cands)),
			zap.Int("score", bestScore))
		if best != nil {
			res.Contribution, res.Score = best, bestScore
			return res, nil
		}
	}
	return res, nil
}

// pick returns the highest scoring candidate, ignoring non-matches. Ties go
// to the earliest candidate.
func pick(ref *reference.Reference, cands []*reference.Reference) (*reference.Reference, int) {
	var best *reference.Reference
	bestScore := match.NoMatch
	for _, c := range cands {
		if s := match.Score(ref, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

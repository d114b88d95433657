// Package dispatch fans records out to one worker per source and merges the
// results back record by record, in input order.
//
// Workers share the record list read-only and walk it independently, each
// at the pace of its own source. Every worker reports one result per record
// on a channel. A single consumer collects the reports and hands a record to
// the merge callback once every source has reported for it and for all
// earlier records. Merging therefore never races with lookups of the same
// record and happens exactly once per record.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/bibfill/internal/cascade"
	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

// ErrPanic wraps a panic recovered from one record/source lookup.
var ErrPanic = errors.New("lookup panicked")

// Report is one source's outcome for one record.
type Report struct {
	Source  string
	Index   int           // Position of the record in the input
	Result  cascade.Result
	Err     error         // Non-nil when the lookup failed as a whole
	Skipped bool          // The source offers none of the fields to complete

	order int // Position of the source, for deterministic merge order
}

// MergeFunc receives all reports for record i, ordered as the sources were
// configured. It runs on the consumer goroutine only.
type MergeFunc func(i int, ref *reference.Reference, reports []Report)

// Progress is passed to the progress callback after every report.
type Progress struct {
	Reports      int // Reports received so far
	TotalReports int // Records times sources
	Merged       int // Records handed to the merge callback
	Total        int // Records
}

// Stats summarizes a run.
type Stats struct {
	Records  int            `json:"records"`            // Records handed to the merge callback
	Attempts int            `json:"attempts"`           // Queries sent over all sources
	Matches  map[string]int `json:"matches"`            // Contributions found per source
	Failures map[string]int `json:"failures,omitempty"` // Failed attempts per source
}

// Dispatcher runs the cascade of every source over a list of records.
type Dispatcher struct {
	Sources []*source.Source
	Runner  *cascade.Runner
	Logger  *zap.Logger

	// ToComplete returns the fields worth looking up for a record. A source
	// offering none of them skips the record. Nil means every field.
	ToComplete func(*reference.Reference) reference.FieldSet

	// OnProgress, when set, is called on the consumer goroutine.
	OnProgress func(Progress)
}

// Run processes refs and calls merge for each record in order.
//
// When ctx is cancelled, workers stop before their next attempt, reports
// still in flight are discarded, and records not yet merged stay untouched.
// Run then returns the context error along with the stats so far.
func (d *Dispatcher) Run(ctx context.Context, refs []*reference.Reference, merge MergeFunc) (Stats, error) {
	logger := d.logger()
	stats := Stats{Matches: make(map[string]int), Failures: make(map[string]int)}
	if len(d.Sources) == 0 {
		// Nothing to wait for: every record merges with no reports.
		for i, ref := range refs {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			merge(i, ref, nil)
			stats.Records++
		}
		return stats, nil
	}
	if len(refs) == 0 {
		return stats, nil
	}

	reports := make(chan Report, len(d.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	for order, src := range d.Sources {
		eg.Go(func() error {
			return d.work(egCtx, order, src, refs, reports)
		})
	}
	done := make(chan error, 1)
	go func() {
		done <- eg.Wait()
		close(reports)
	}()

	pending := make([][]Report, len(refs))
	progress := Progress{TotalReports: len(refs) * len(d.Sources), Total: len(refs)}
	next := 0
	for rep := range reports {
		pending[rep.Index] = append(pending[rep.Index], rep)
		progress.Reports++
		stats.Attempts += len(rep.Result.Attempts)
		for _, att := range rep.Result.Attempts {
			if att.Err != nil {
				stats.Failures[rep.Source]++
			}
		}
		if rep.Err != nil {
			stats.Failures[rep.Source]++
		}
		if rep.Result.Contribution != nil {
			stats.Matches[rep.Source]++
		}

		for next < len(refs) && len(pending[next]) == len(d.Sources) {
			if ctx.Err() != nil {
				break
			}
			batch := pending[next]
			sort.Slice(batch, func(a, b int) bool { return batch[a].order < batch[b].order })
			merge(next, refs[next], batch)
			pending[next] = nil
			stats.Records++
			progress.Merged++
			next++
		}
		if d.OnProgress != nil {
			d.OnProgress(progress)
		}
	}

	err := <-done
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Info("dispatch interrupted",
			zap.Int("merged", stats.Records),
			zap.Int("discarded", len(refs)-stats.Records))
	}
	return stats, err
}

func (d *Dispatcher) work(ctx context.Context, order int, src *source.Source, refs []*reference.Reference, out chan<- Report) error {
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep := d.lookup(ctx, src, i, ref)
		rep.order = order
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case out <- rep:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// lookup runs one cascade, converting a panic into a failed report so the
// worker carries on with the next record.
func (d *Dispatcher) lookup(ctx context.Context, src *source.Source, i int, ref *reference.Reference) (rep Report) {
	rep = Report{Source: src.Name, Index: i}

	todo := reference.AllFields()
	if d.ToComplete != nil {
		todo = d.ToComplete(ref)
	}
	if todo.Intersect(src.Fields).Empty() {
		rep.Skipped = true
		return rep
	}

	defer func() {
		if r := recover(); r != nil {
			rep.Result = cascade.Result{}
			rep.Err = fmt.Errorf("%w: %v", ErrPanic, r)
			d.logger().Error("lookup panicked",
				zap.String("source", src.Name),
				zap.String("entry", ref.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	runner := d.Runner
	if runner == nil {
		runner = &cascade.Runner{Logger: d.Logger}
	}
	rep.Result, rep.Err = runner.Run(ctx, src, ref)
	return rep
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

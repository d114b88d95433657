package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/bibfill/internal/bibtex"
	"github.com/matsen/bibfill/internal/cache"
	"github.com/matsen/bibfill/internal/cascade"
	"github.com/matsen/bibfill/internal/config"
	"github.com/matsen/bibfill/internal/dispatch"
	"github.com/matsen/bibfill/internal/dump"
	"github.com/matsen/bibfill/internal/logging"
	"github.com/matsen/bibfill/internal/merge"
	"github.com/matsen/bibfill/internal/pdf"
	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/resolve"
	"github.com/matsen/bibfill/internal/selection"
	"github.com/matsen/bibfill/internal/source"
)

// runner carries what every input file of one invocation shares.
type runner struct {
	opts    *options
	logger  *zap.Logger
	sources []*source.Source
	merger  *merge.Merger
	entries *selection.Set[string]
	dump    *dump.Dump
	added   map[*bibtex.Entry][]string // Fields written per entry, in diff mode
	now     func() time.Time
	stdin   io.Reader
	stdout  io.Writer
}

func run(ctx context.Context, cmd *cobra.Command, opts *options, cfg *config.GlobalConfig, inputs []string) error {
	logger, err := logging.New(opts.verbosity())
	if err != nil {
		return withCode(ExitError, "%v", err)
	}
	defer logger.Sync() //nolint:errcheck

	r, cleanup, err := newRunner(ctx, opts, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	r.stdin, r.stdout = cmd.InOrStdin(), cmd.OutOrStdout()
	if opts.dumpData != "" {
		r.dump = dump.New(strings.Join(inputs, ", "), r.now())
	}

	summary := Summary{}
	var runErr error
	for i, input := range inputs {
		res, err := r.process(ctx, input, opts.output(i))
		summary.add(res)
		if err != nil {
			runErr = err
			break
		}
	}
	summary.Unused = r.entries.Unused()
	for _, key := range summary.Unused {
		logger.Warn("entry filter matched no entry", zap.String("key", key))
	}

	if r.dump != nil {
		r.dump.Complete = runErr == nil
		if err := writeFile(opts.dumpData, r.dump.Write); err != nil && runErr == nil {
			runErr = withCode(ExitError, "%v", err)
		}
	}

	// The summary must not end up inside a BibTeX file written to stdout.
	out := cmd.OutOrStdout()
	if summary.toStdout {
		out = cmd.ErrOrStderr()
	}
	if err := summary.write(out, opts.human); err != nil && runErr == nil {
		runErr = withCode(ExitError, "writing summary: %v", err)
	}
	return runErr
}

// newRunner resolves the flags into sources, a merger and filters.
func newRunner(ctx context.Context, opts *options, cfg *config.GlobalConfig, logger *zap.Logger) (*runner, func(), error) {
	cleanup := func() {}

	fields, err := fieldSelection(opts.onlyComplete, opts.dontComplete)
	if err != nil {
		return nil, cleanup, withCode(ExitConfigError, "%v", err)
	}
	var overwrite reference.FieldSet
	switch {
	case opts.forceOverwrite, opts.prefix:
		// Prefixed values never replace anything, so every differing value
		// is worth writing.
		overwrite = reference.AllFields()
	case len(opts.overwrite) > 0 || len(opts.dontOverwrite) > 0:
		if overwrite, err = fieldSelection(opts.overwrite, opts.dontOverwrite); err != nil {
			return nil, cleanup, withCode(ExitConfigError, "%v", err)
		}
	}
	protect := reference.AllFields()
	if !opts.protectAll {
		names, err := parseFields(opts.protect)
		if err != nil {
			return nil, cleanup, withCode(ExitConfigError, "%v", err)
		}
		protect = reference.NewFieldSet(names...)
	}
	typeFilter, err := reference.ParseTypeFilter(opts.typeFilter)
	if err != nil {
		return nil, cleanup, withCode(ExitConfigError, "%v", err)
	}

	srcOpts := []source.Option{
		source.WithEmail(cfg.Email),
		source.WithAPIKey(cfg.S2APIKey),
		source.WithTimeout(opts.timeout),
		source.WithUserAgent(source.DefaultUserAgent + " v" + Version),
		source.WithLogger(logger),
	}
	if opts.cache && opts.cachePath != "" {
		c, err := cache.Open(opts.cachePath, cfg.CacheTTL)
		if err != nil {
			return nil, cleanup, withCode(ExitConfigError, "%v", err)
		}
		cleanup = func() { c.Close() }
		if n, err := c.Prune(ctx); err != nil {
			logger.Warn("pruning cache", zap.Error(err))
		} else if n > 0 {
			logger.Debug("pruned cache", zap.Int64("entries", n))
		}
		srcOpts = append(srcOpts, source.WithCache(c))
	}

	sel := selection.New(lower(opts.onlyQuery), lower(opts.dontQuery))
	sources, err := buildSources(sel, srcOpts...)
	if err != nil {
		cleanup()
		return nil, func() {}, withCode(ExitConfigError, "%v", err)
	}
	if len(sources) == 0 {
		logger.Warn("no source selected, entries will only be rewritten")
	}

	merger := &merge.Merger{
		Fields:       fields,
		Overwrite:    overwrite,
		TypeFilter:   typeFilter,
		CopyDOIToURL: opts.copyDOIToURL,
		Protect:      protect,
	}
	if !opts.noCheck && len(sources) > 0 {
		checker := resolve.New(srcOpts...)
		merger.Verify = func(name reference.Name, value string) bool {
			return checker.Verify(ctx, name, value)
		}
	}

	return &runner{
		opts:    opts,
		logger:  logger,
		sources: sources,
		merger:  merger,
		entries: selection.New(opts.onlyEntry, opts.excludeEntry),
		now:     time.Now,
	}, cleanup, nil
}

func lower(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// process completes one input file and writes its output.
func (r *runner) process(ctx context.Context, input, output string) (FileResult, error) {
	res := FileResult{Input: input, Output: config.OutputPath(input, output, r.opts.inplace)}
	logger := r.logger.With(zap.String("input", input))

	file, err := r.read(input)
	if err != nil {
		return res, err
	}
	r.added = nil
	if r.opts.diff {
		r.added = make(map[*bibtex.Entry][]string)
	}

	var (
		entries []*bibtex.Entry
		refs    []*reference.Reference
	)
	for _, e := range file.Entries() {
		res.Entries++
		if !r.entries.Contains(e.Key) {
			continue
		}
		if bibtex.Marked(e) && !r.opts.ignoreMark {
			res.Marked++
			continue
		}
		ref := bibtex.ToReference(e)
		if r.opts.pdfDOI {
			r.discoverDOI(e, ref, filepath.Dir(input), &res, logger)
		}
		entries = append(entries, e)
		refs = append(refs, ref)
	}
	res.Queried = len(refs)

	d := &dispatch.Dispatcher{
		Sources:    r.sources,
		Runner:     &cascade.Runner{Logger: r.logger},
		Logger:     r.logger,
		ToComplete: r.merger.ToComplete,
		OnProgress: func(p dispatch.Progress) {
			logger.Debug("progress",
				zap.Int("merged", p.Merged),
				zap.Int("total", p.Total),
				zap.Int("reports", p.Reports),
				zap.Int("total_reports", p.TotalReports))
		},
	}
	stats, runErr := d.Run(ctx, refs, func(i int, ref *reference.Reference, reports []dispatch.Report) {
		contribs := make([]merge.Contribution, 0, len(reports))
		for _, rep := range reports {
			contribs = append(contribs, merge.Contribution{Source: rep.Source, Ref: rep.Result.Contribution})
		}
		changes := r.merger.Apply(ref, contribs)
		r.apply(entries[i], changes)
		if r.opts.mark {
			bibtex.Mark(entries[i], r.now())
		}
		res.Changes.Add(changes)
		if r.dump != nil {
			r.dump.Add(input, i, entries[i].Key, reports, changes)
		}
		logger.Info("entry done", zap.String("entry", ref.ID), zap.Int("changes", len(changes)))
	})
	res.Stats = stats

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return res, withCode(ExitError, "%s: %v", input, runErr)
	}
	if runErr != nil {
		logger.Warn("interrupted, writing the entries completed so far",
			zap.Int("merged", stats.Records), zap.Int("queried", len(refs)))
	}

	if r.opts.diff {
		r.keepAdded(file)
	}
	if err := r.write(res.Output, file); err != nil {
		return res, withCode(ExitError, "%v", err)
	}
	res.toStdout = res.Output == config.Stdio
	if runErr != nil {
		return res, withCode(ExitError, "interrupted")
	}
	return res, nil
}

// apply writes changes to e, under the BTAC prefix in prefix mode.
func (r *runner) apply(e *bibtex.Entry, changes []merge.Change) {
	prefix := ""
	if r.opts.prefix {
		prefix = bibtex.Prefix
	}
	bibtex.Apply(e, changes, prefix)
	if r.added != nil {
		for _, c := range changes {
			r.added[e] = append(r.added[e], prefix+string(c.Field))
		}
	}
}

// keepAdded reduces file to the entries that received fields, each holding
// only those fields and, with --mark, its query stamp.
func (r *runner) keepAdded(file *bibtex.File) {
	file.Retain(func(e *bibtex.Entry) bool {
		names, ok := r.added[e]
		if !ok {
			return false
		}
		if r.opts.mark {
			names = append(names, bibtex.MarkField)
		}
		e.Keep(names...)
		return true
	})
}

// discoverDOI fills a missing DOI from the PDFs attached to e.
func (r *runner) discoverDOI(e *bibtex.Entry, ref *reference.Reference, dir string, res *FileResult, logger *zap.Logger) {
	files, ok := e.Get("file")
	if !ok || ref.DOI() != "" {
		return
	}
	doi, err := pdf.DiscoverDOI(files, dir)
	if err != nil {
		logger.Debug("no DOI in attached files", zap.String("entry", e.Key), zap.Error(err))
		return
	}
	if !ref.SetString(reference.DOI, doi) {
		return
	}
	change := []merge.Change{{Field: reference.DOI, Value: ref.DOI(), Source: "pdf"}}
	r.apply(e, change)
	res.Changes.Add(change)
	logger.Info("DOI found in attached file", zap.String("entry", e.Key), zap.String("doi", doi))
}

func (r *runner) read(input string) (*bibtex.File, error) {
	var in io.Reader = r.stdin
	if input != config.Stdio {
		f, err := os.Open(input)
		if err != nil {
			return nil, withCode(ExitError, "opening input: %v", err)
		}
		defer f.Close()
		in = f
	}
	file, err := bibtex.Parse(in)
	if err != nil {
		if errors.Is(err, bibtex.ErrSyntax) {
			return nil, withCode(ExitDataError, "%s: %v", input, err)
		}
		return nil, withCode(ExitError, "reading %s: %v", input, err)
	}
	return file, nil
}

func (r *runner) write(output string, file *bibtex.File) error {
	if output == config.Stdio {
		return bibtex.Write(r.stdout, file)
	}
	return writeFile(output, func(w io.Writer) error { return bibtex.Write(w, file) })
}

// writeFile renders into memory, then replaces path through a temporary
// file in the same directory, so a failure never leaves a truncated file.
func writeFile(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if info, err := os.Stat(path); err == nil {
		tmp.Chmod(info.Mode().Perm()) //nolint:errcheck
	} else {
		tmp.Chmod(0644) //nolint:errcheck
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/bibfill/internal/config"
)

// options holds the command-line flags.
type options struct {
	onlyQuery      []string
	dontQuery      []string
	onlyComplete   []string
	dontComplete   []string
	overwrite      []string
	dontOverwrite  []string
	forceOverwrite bool
	onlyEntry      []string
	excludeEntry   []string
	typeFilter     string

	mark       bool
	ignoreMark bool
	prefix     bool
	inplace    bool
	diff       bool
	outputs    []string
	dumpData   string

	timeout      time.Duration
	verbose      int
	silent       int
	copyDOIToURL bool
	protect      []string
	protectAll   bool
	cache        bool
	cachePath    string
	pdfDOI       bool
	noCheck      bool
	human        bool
}

func (o *options) verbosity() int { return o.verbose - o.silent }

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "bibfill [flags] [file.bib ...]",
		Short: "Complete BibTeX entries with metadata from online sources",
		Long: `bibfill looks every entry of a BibTeX file up on Crossref, DBLP, researchr,
Unpaywall, Semantic Scholar, OpenAlex, arXiv and INSPIRE-HEP, checks that the
answer describes the same work, and fills in the fields the entry is missing.

Existing fields are never changed unless asked for with --overwrite or
--force-overwrite. New DOIs and URLs are only written once they resolve. Completed files are written next to their input as
<name>.btac.bib unless --inplace or --output is given. With no file, or "-",
the file is read from stdin and written to stdout.

A summary is printed as JSON, or as text with --human.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (for BIBFILL_EMAIL and S2_API_KEY)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGlobalConfig()
			if err != nil {
				return withCode(ExitConfigError, "loading config: %v\n\n%s", err, config.HelpfulConfigMessage())
			}
			opts.applyConfig(cmd, cfg)
			if len(args) == 0 {
				args = []string{config.Stdio}
			}
			if len(opts.outputs) > len(args) {
				return withCode(ExitError, "%d outputs given for %d inputs", len(opts.outputs), len(args))
			}
			return run(cmd.Context(), cmd, opts, cfg, args)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.onlyQuery, "only-query", "q", nil, "Only query these sources")
	f.StringSliceVarP(&opts.dontQuery, "dont-query", "Q", nil, "Do not query these sources")
	f.StringSliceVarP(&opts.onlyComplete, "only-complete", "c", nil, "Only complete these fields")
	f.StringSliceVarP(&opts.dontComplete, "dont-complete", "C", nil, "Do not complete these fields")
	f.StringSliceVarP(&opts.overwrite, "overwrite", "w", nil, "Overwrite these fields when already set")
	f.StringSliceVarP(&opts.dontOverwrite, "dont-overwrite", "W", nil, "Overwrite every field except these")
	f.BoolVarP(&opts.forceOverwrite, "force-overwrite", "f", false, "Overwrite every field")
	f.StringSliceVarP(&opts.onlyEntry, "only-entry", "e", nil, "Only complete entries with these keys")
	f.StringSliceVarP(&opts.excludeEntry, "exclude-entry", "E", nil, "Do not complete entries with these keys")
	f.StringVarP(&opts.typeFilter, "filter-fields-by-entrytype", "b", "no",
		"Only complete fields expected for the entry type: no, required, optional or all")

	f.BoolVarP(&opts.mark, "mark", "m", false, "Stamp queried entries with a BTACqueried field")
	f.BoolVarP(&opts.ignoreMark, "ignore-mark", "M", false, "Also query stamped entries")
	f.BoolVarP(&opts.prefix, "prefix", "p", false, "Write new values to BTAC<field> instead of <field>")
	f.BoolVarP(&opts.inplace, "inplace", "i", false, "Overwrite the input files")
	f.BoolVarP(&opts.diff, "diff", "D", false, "Only write the new fields of entries that received some")
	f.StringArrayVarP(&opts.outputs, "output", "o", nil, "Output file, once per input in order")
	f.StringVarP(&opts.dumpData, "dump-data", "d", "", "Write every source's answers as JSON to this file")

	f.DurationVarP(&opts.timeout, "timeout", "t", 0, "Per-request timeout (0 waits forever)")
	f.CountVarP(&opts.verbose, "verbose", "v", "Log more, repeat for debug output")
	f.CountVarP(&opts.silent, "silent", "s", "Log less, repeat to log errors only")
	f.BoolVarP(&opts.copyDOIToURL, "copy-doi-to-url", "u", false, "Fill a missing url from the DOI")
	f.StringSliceVar(&opts.protect, "protect-uppercase", nil, "Brace words with capitals in these fields")
	f.BoolVar(&opts.protectAll, "protect-all-uppercase", false, "Brace words with capitals in every field")
	f.BoolVar(&opts.cache, "cache", false, "Reuse responses stored by earlier runs")
	f.StringVar(&opts.cachePath, "cache-path", "", "Response cache file (implies --cache)")
	f.BoolVar(&opts.pdfDOI, "pdf-doi", false, "Look for the DOI in PDFs of the file field")
	f.BoolVar(&opts.noCheck, "no-check", false, "Write new DOIs and URLs without checking that they resolve")
	f.BoolVar(&opts.human, "human", false, "Use human-readable output instead of JSON")

	return cmd
}

// applyConfig fills flags left unset from the global config.
func (o *options) applyConfig(cmd *cobra.Command, cfg *config.GlobalConfig) {
	changed := cmd.Flags().Changed
	if !changed("only-query") {
		o.onlyQuery = cfg.Sources
	}
	if !changed("dont-query") {
		o.dontQuery = cfg.DontQuery
	}
	if !changed("overwrite") {
		o.overwrite = cfg.Overwrite
	}
	if !changed("timeout") {
		o.timeout = cfg.Timeout
		if o.timeout == 0 {
			o.timeout = defaultTimeout
		}
	}
	if o.cachePath == "" {
		o.cachePath = cfg.CachePath
		if o.cachePath != "" {
			o.cache = true
		}
	} else {
		o.cachePath = config.ExpandPath(o.cachePath)
		o.cache = true
	}
	if o.cache && o.cachePath == "" {
		o.cachePath = config.DefaultCachePath()
	}
}

func (o *options) output(i int) string {
	if i < len(o.outputs) {
		return o.outputs[i]
	}
	return ""
}

package main

import (
	"fmt"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"hbind/internal/filter"
)

// options holds everything a run needs from flags and hbind.toml.
type options struct {
	headers      []string
	includePaths []string
	defines      []string
	clangArgs    []string
	target       string
	straddle     string
	configPath   string
	jobs         int

	include        map[filter.Kind][]string
	includeSymbols []string
	excludeSymbols []string

	library        string
	outDir         string
	pkg            string
	headerName     string
	dumpIncludes   string
	mode           string
	symbolsPerFile int
	format         string
	cacheDir       string
}

// addInputFlags registers the flags shared by every command that parses headers.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayP("include-path", "I", nil, "add a directory to the header search path")
	f.StringArrayP("define", "D", nil, "define a macro (NAME or NAME=VALUE)")
	f.String("clang-args", "", "extra front-end arguments as one shell-quoted string")
	f.String("target", "", "target ABI (default: the host)")
	f.String("bitfield-straddle", "", "bitfield placement across storage units (allow|no-straddle)")
	f.String("config", "", "project file (default: hbind.toml found from the header upward)")
	f.Int("jobs", 0, "max parallel workers for layout and naming (0=auto)")
	for _, k := range filter.Kinds() {
		f.StringArray(k.OptionName(), nil, fmt.Sprintf("keep only the named %s (repeatable)", k))
	}
	f.StringArray("include-symbols", nil, "keep symbols matching a glob pattern")
	f.StringArray("exclude-symbols", nil, "drop symbols matching a glob pattern")
}

func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("library", "l", "", "shared library the bindings load")
	f.StringP("output", "o", ".", "output directory")
	f.StringP("target-package", "t", "", "Go package name of the bindings (default: the header name)")
	f.String("header-class-name", "", "binding group name (default: foo.h becomes foo_h)")
	f.String("dump-includes", "", "write include options of every symbol to FILE (- for stdout) instead of bindings")
	f.String("mode", "source", "output mode (source|compiled)")
	f.Int("symbols-per-file", 0, "split functions into files of N symbols (0=one file)")
	f.String("format", "go", "output format (go|json)")
	f.String("cache", "", "cache emitted units in DIR")
}

// flagReader reads flags by name and keeps the first error. Flags the
// command does not define read as zero values.
type flagReader struct {
	cmd *cobra.Command
	err error
}

func (r *flagReader) defined(name string) bool {
	return r.cmd.Flags().Lookup(name) != nil
}

func (r *flagReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *flagReader) str(name string) string {
	if !r.defined(name) {
		return ""
	}
	v, err := r.cmd.Flags().GetString(name)
	r.keep(err)
	return v
}

func (r *flagReader) strs(name string) []string {
	if !r.defined(name) {
		return nil
	}
	v, err := r.cmd.Flags().GetStringArray(name)
	r.keep(err)
	return v
}

func (r *flagReader) num(name string) int {
	if !r.defined(name) {
		return 0
	}
	v, err := r.cmd.Flags().GetInt(name)
	r.keep(err)
	return v
}

func readOptions(cmd *cobra.Command, args []string) (*options, error) {
	r := &flagReader{cmd: cmd}
	o := &options{
		headers:      args,
		includePaths: r.strs("include-path"),
		defines:      r.strs("define"),
		target:       r.str("target"),
		straddle:     r.str("bitfield-straddle"),
		configPath:   r.str("config"),
		jobs:         r.num("jobs"),

		include:        make(map[filter.Kind][]string),
		includeSymbols: r.strs("include-symbols"),
		excludeSymbols: r.strs("exclude-symbols"),

		library:        r.str("library"),
		outDir:         r.str("output"),
		pkg:            r.str("target-package"),
		headerName:     r.str("header-class-name"),
		dumpIncludes:   r.str("dump-includes"),
		mode:           r.str("mode"),
		symbolsPerFile: r.num("symbols-per-file"),
		format:         r.str("format"),
		cacheDir:       r.str("cache"),
	}
	for _, k := range filter.Kinds() {
		if names := r.strs(k.OptionName()); len(names) > 0 {
			o.include[k] = names
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if raw := r.str("clang-args"); raw != "" {
		split, err := shellquote.Split(raw)
		if err != nil {
			return nil, fmt.Errorf("--clang-args: %w", err)
		}
		o.clangArgs = split
	}
	if o.jobs < 0 {
		return nil, fmt.Errorf("--jobs must not be negative")
	}
	if o.symbolsPerFile < 0 {
		return nil, fmt.Errorf("--symbols-per-file must not be negative")
	}
	return o, nil
}

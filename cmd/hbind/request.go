package main

import (
	"errors"
	"fmt"
	"runtime"

	"hbind/internal/abi"
	"hbind/internal/cache"
	"hbind/internal/diag"
	"hbind/internal/filter"
	"hbind/internal/frontend/ccfront"
	"hbind/internal/pipeline"
	"hbind/internal/source"
	"hbind/internal/version"
	"hbind/internal/writer"
)

var errNoHeaders = errors.New("no input headers (pass HEADER or set input.header in hbind.toml)")

// resolveTarget picks the --target preset, or the host, and applies the
// bitfield policy override.
func resolveTarget(name, straddle string) (abi.Target, error) {
	t := abi.Host(runtime.GOOS, runtime.GOARCH)
	if name != "" {
		var err error
		if t, err = abi.ByName(name); err != nil {
			return abi.Target{}, err
		}
	}
	if straddle != "" {
		p, err := abi.ParseBitfieldPolicy(straddle)
		if err != nil {
			return abi.Target{}, err
		}
		t = t.WithBitfieldPolicy(p)
	}
	return t, nil
}

// buildIncludes turns include flags into a filter. Bad glob patterns are
// reported to rep.
func buildIncludes(o *options, rep diag.Reporter) (*filter.Includes, error) {
	h := filter.NewIncludes()
	for _, k := range filter.Kinds() {
		for _, name := range o.include[k] {
			h.Add(k, name)
		}
	}
	ok := filter.CheckPatterns(h, o.includeSymbols, false, rep)
	ok = filter.CheckPatterns(h, o.excludeSymbols, true, rep) && ok
	if !ok {
		return nil, errors.New("invalid symbol pattern")
	}
	return h, nil
}

// buildRequest assembles a pipeline request. Option errors are returned
// wrapped by usageError.
func buildRequest(o *options, fs *source.FileSet, rep diag.Reporter) (pipeline.Request, error) {
	if len(o.headers) == 0 {
		return pipeline.Request{}, usageError(errNoHeaders)
	}
	target, err := resolveTarget(o.target, o.straddle)
	if err != nil {
		return pipeline.Request{}, usageError(err)
	}
	includes, err := buildIncludes(o, rep)
	if err != nil {
		return pipeline.Request{}, usageError(err)
	}
	req := pipeline.Request{
		Headers:      o.headers,
		IncludePaths: o.includePaths,
		Defines:      o.defines,
		Args:         o.clangArgs,
		Target:       target,
		HeaderName:   o.headerName,
		Includes:     includes,
		Jobs:         o.jobs,
		Parser:       ccfront.New(fs),
		Version:      version.Version,
		Reporter:     rep,
	}
	if o.dumpIncludes != "" {
		return req, nil
	}

	mode, err := writer.ParseMode(o.mode)
	if err != nil {
		return pipeline.Request{}, usageError(err)
	}
	format, err := writer.ParseFormat(o.format)
	if err != nil {
		return pipeline.Request{}, usageError(err)
	}
	req.Output = &writer.Options{
		Dir:            o.outDir,
		Package:        o.pkg,
		Library:        o.library,
		Mode:           mode,
		Format:         format,
		SymbolsPerFile: o.symbolsPerFile,
	}
	if o.cacheDir != "" {
		c, err := cache.Open(o.cacheDir)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("open cache: %w", err)
		}
		req.Cache = c
	}
	return req, nil
}

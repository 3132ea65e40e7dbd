package main

import (
	"path/filepath"

	"github.com/kballard/go-shellquote"

	"hbind/internal/config"
	"hbind/internal/filter"
)

// loadConfig returns the project file named by --config, or the one
// governing the first header (the working directory without headers).
func loadConfig(o *options) (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	start := "."
	if len(o.headers) > 0 {
		start = filepath.Dir(o.headers[0])
	}
	cfg, _, err := config.Discover(start)
	return cfg, err
}

// mergeConfig fills options the command line left unset from cfg. changed
// reports whether a flag was given explicitly.
func mergeConfig(o *options, cfg *config.Config, changed func(string) bool) error {
	if cfg == nil {
		return nil
	}
	if len(o.headers) == 0 && cfg.Input.Header != "" {
		o.headers = []string{cfg.Resolve(cfg.Input.Header)}
	}
	if !changed("include-path") {
		for _, p := range cfg.Input.IncludePaths {
			o.includePaths = append(o.includePaths, cfg.Resolve(p))
		}
	}
	if !changed("define") {
		o.defines = append(o.defines, cfg.Input.Defines...)
	}
	if !changed("clang-args") && cfg.Input.ClangArgs != "" {
		args, err := shellquote.Split(cfg.Input.ClangArgs)
		if err != nil {
			return &config.Error{Path: cfg.Path, Key: "input.clang_args", Err: err}
		}
		o.clangArgs = args
	}

	str := func(flag string, dst *string, val string, key ...string) {
		if !changed(flag) && cfg.IsDefined(key...) {
			*dst = val
		}
	}
	str("output", &o.outDir, cfg.Resolve(cfg.Output.Dir), "output", "dir")
	str("target-package", &o.pkg, cfg.Output.Package, "output", "package")
	str("library", &o.library, cfg.Output.Library, "output", "library")
	str("mode", &o.mode, cfg.Output.Mode, "output", "mode")
	str("format", &o.format, cfg.Output.Format, "output", "format")
	str("target", &o.target, cfg.Target.Name, "target", "name")
	str("bitfield-straddle", &o.straddle, cfg.Target.BitfieldStraddle, "target", "bitfield_straddle")
	if !changed("symbols-per-file") && cfg.IsDefined("output", "symbols_per_file") {
		o.symbolsPerFile = cfg.Output.SymbolsPerFile
	}

	lists := []struct {
		kind  filter.Kind
		names []string
	}{
		{filter.KindFunction, cfg.Filter.IncludeFunction},
		{filter.KindVar, cfg.Filter.IncludeVar},
		{filter.KindConstant, cfg.Filter.IncludeConstant},
		{filter.KindTypedef, cfg.Filter.IncludeTypedef},
		{filter.KindStruct, cfg.Filter.IncludeStruct},
		{filter.KindUnion, cfg.Filter.IncludeUnion},
	}
	for _, l := range lists {
		if !changed(l.kind.OptionName()) && len(l.names) > 0 {
			o.include[l.kind] = l.names
		}
	}
	if !changed("include-symbols") {
		o.includeSymbols = append(o.includeSymbols, cfg.Filter.Include...)
	}
	if !changed("exclude-symbols") {
		o.excludeSymbols = append(o.excludeSymbols, cfg.Filter.Exclude...)
	}
	return nil
}

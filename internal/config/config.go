// Package config loads hbind.toml project files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"hbind/internal/abi"
	"hbind/internal/writer"
)

// FileName is the project file looked up from the header's directory upward.
const FileName = "hbind.toml"

// Config is a decoded hbind.toml. Relative paths are relative to Root.
type Config struct {
	Path string `toml:"-"`
	Root string `toml:"-"`

	Input  InputConfig  `toml:"input"`
	Output OutputConfig `toml:"output"`
	Target TargetConfig `toml:"target"`
	Filter FilterConfig `toml:"filter"`

	meta toml.MetaData
}

type InputConfig struct {
	Header       string   `toml:"header"`
	IncludePaths []string `toml:"include_paths"`
	Defines      []string `toml:"defines"`
	ClangArgs    string   `toml:"clang_args"`
}

type OutputConfig struct {
	Dir            string `toml:"dir"`
	Package        string `toml:"package"`
	Library        string `toml:"library"`
	Mode           string `toml:"mode"`
	SymbolsPerFile int    `toml:"symbols_per_file"`
	Format         string `toml:"format"`
}

type TargetConfig struct {
	Name             string `toml:"name"`
	BitfieldStraddle string `toml:"bitfield_straddle"`
}

type FilterConfig struct {
	Include         []string `toml:"include"`
	Exclude         []string `toml:"exclude"`
	IncludeFunction []string `toml:"include_function"`
	IncludeVar      []string `toml:"include_var"`
	IncludeConstant []string `toml:"include_constant"`
	IncludeTypedef  []string `toml:"include_typedef"`
	IncludeStruct   []string `toml:"include_struct"`
	IncludeUnion    []string `toml:"include_union"`
}

// Error reports an unreadable or invalid project file.
type Error struct {
	Path string
	Key  string // dotted key, empty for file-level errors
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: [%s]: %v", e.Path, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Find walks from startDir up to the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the project file governing startDir.
func Discover(startDir string) (*Config, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// Load decodes and validates the project file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("failed to parse TOML: %w", err)}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.Path = abs
	cfg.Root = filepath.Dir(abs)
	cfg.meta = meta
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDefined reports whether the file set the key explicitly.
func (c *Config) IsDefined(key ...string) bool {
	if c == nil {
		return false
	}
	return c.meta.IsDefined(key...)
}

// Resolve makes a path from the file relative to its directory.
func (c *Config) Resolve(p string) string {
	if c == nil || p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

func (c *Config) validate() error {
	if keys := c.meta.Undecoded(); len(keys) > 0 {
		return &Error{Path: c.Path, Key: keys[0].String(), Err: errors.New("unknown key")}
	}
	if c.IsDefined("input", "header") && strings.TrimSpace(c.Input.Header) == "" {
		return &Error{Path: c.Path, Key: "input.header", Err: errors.New("empty header path")}
	}
	if c.IsDefined("output", "mode") {
		if _, err := writer.ParseMode(c.Output.Mode); err != nil {
			return &Error{Path: c.Path, Key: "output.mode", Err: err}
		}
	}
	if c.IsDefined("output", "format") {
		if _, err := writer.ParseFormat(c.Output.Format); err != nil {
			return &Error{Path: c.Path, Key: "output.format", Err: err}
		}
	}
	if c.Output.SymbolsPerFile < 0 {
		return &Error{Path: c.Path, Key: "output.symbols_per_file", Err: errors.New("must not be negative")}
	}
	if c.IsDefined("target", "name") {
		if _, err := abi.ByName(c.Target.Name); err != nil {
			return &Error{Path: c.Path, Key: "target.name", Err: err}
		}
	}
	if c.IsDefined("target", "bitfield_straddle") {
		if _, err := abi.ParseBitfieldPolicy(c.Target.BitfieldStraddle); err != nil {
			return &Error{Path: c.Path, Key: "target.bitfield_straddle", Err: err}
		}
	}
	return nil
}

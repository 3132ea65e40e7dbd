// Package ccfront implements the front-end collaborator over modernc.org/cc/v4.
package ccfront

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"modernc.org/cc/v4"

	"hbind/internal/diag"
	"hbind/internal/frontend"
	"hbind/internal/source"
)

// session serializes every call into cc. The package keeps process-wide state
// (host configuration probing, caches) that is not meant for concurrent use.
var session sync.Mutex

// Parser parses C headers with modernc.org/cc/v4.
type Parser struct {
	// Files, when set, supplies header contents instead of the file system.
	Files *source.FileSet
	// NewConfig defaults to cc.NewConfig; tests replace it to avoid probing the
	// host compiler.
	NewConfig func(goos, goarch string, opts ...string) (*cc.Config, error)
}

var _ frontend.Parser = (*Parser)(nil)

// New returns a Parser reading headers through fs.
func New(fs *source.FileSet) *Parser {
	return &Parser{Files: fs, NewConfig: cc.NewConfig}
}

// Parse translates the headers of req into one frontend tree.
func (p *Parser) Parse(ctx context.Context, req frontend.Request) (*frontend.Result, error) {
	if len(req.Headers) == 0 {
		return nil, fmt.Errorf("%w: no input", frontend.ErrHeaderNotFound)
	}
	includes, defines, rest := splitArgs(req.Args)
	includes = append(append([]string(nil), req.IncludePaths...), includes...)
	defines = append(append([]string(nil), req.Defines...), defines...)

	files := p.Files
	if files == nil {
		files = source.NewFileSet()
	}
	sources := make([]cc.Source, 0, len(req.Headers)+3)
	for _, h := range req.Headers {
		if err := frontend.CheckLanguage(h, rest); err != nil {
			return nil, err
		}
		id, err := loadHeader(files, h)
		if err != nil {
			return nil, err
		}
		f := files.Get(id)
		sources = append(sources, cc.Source{Name: f.Path, Value: string(f.Content)})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session.Lock()
	defer session.Unlock()

	newConfig := p.NewConfig
	if newConfig == nil {
		newConfig = cc.NewConfig
	}
	goos, goarch := req.Target.GOOS, req.Target.GOARCH
	cfg, err := newConfig(goos, goarch, rest...)
	if err != nil {
		return nil, &frontend.FatalError{Err: fmt.Errorf("configure %s/%s: %w", goos, goarch, err)}
	}
	cfg.EvalAllMacros = true
	cfg.IncludePaths = append(append([]string{""}, includes...), cfg.IncludePaths...)
	cfg.SysIncludePaths = append(append([]string(nil), includes...), cfg.SysIncludePaths...)

	all := []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
	}
	if defs := buildDefs(defines); defs != "" {
		all = append(all, cc.Source{Name: "<command-line>", Value: defs})
	}
	all = append(all, sources...)

	ast, err := cc.Translate(cfg, all)
	if err != nil {
		return nil, &frontend.FatalError{Messages: messagesOf(err), Err: errors.New("translation failed")}
	}
	tr := newTranslator(func(path string) ([]byte, error) {
		if f, ok := files.GetByPath(path); ok {
			return f.Content, nil
		}
		return os.ReadFile(path)
	})
	root := tr.translationUnit(ast)
	inputs := make([]string, 0, len(sources))
	for _, s := range sources {
		inputs = append(inputs, s.Name)
	}
	return &frontend.Result{Root: root, Messages: tr.unmatchedPacking(inputs)}, nil
}

func loadHeader(files *source.FileSet, path string) (source.FileID, error) {
	if f, ok := files.GetByPath(path); ok {
		return f.ID, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", frontend.ErrHeaderNotFound, path)
	}
	return files.Load(path)
}

// splitArgs pulls -I and -D out of raw front-end flags.
func splitArgs(args []string) (includes, defines, rest []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-I" && i+1 < len(args):
			i++
			includes = append(includes, args[i])
		case strings.HasPrefix(a, "-I"):
			includes = append(includes, a[2:])
		case a == "-D" && i+1 < len(args):
			i++
			defines = append(defines, args[i])
		case strings.HasPrefix(a, "-D"):
			defines = append(defines, a[2:])
		default:
			rest = append(rest, a)
		}
	}
	return includes, defines, rest
}

func buildDefs(defines []string) string {
	if len(defines) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range defines {
		name, val, ok := strings.Cut(d, "=")
		if !ok {
			val = "1"
		}
		fmt.Fprintf(&sb, "#define %s %s\n", name, val)
	}
	return sb.String()
}

// messagesOf splits a cc error into one message per "file:line:col: text" line.
func messagesOf(err error) []frontend.Message {
	lines := strings.Split(err.Error(), "\n")
	out := make([]frontend.Message, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, frontend.Message{Severity: diag.SevError, Pos: parsePos(&l), Text: l})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos.Before(out[j].Pos) })
	return out
}

// parsePos strips a leading "file:line:col: " from *s.
func parsePos(s *string) source.Pos {
	parts := strings.SplitN(*s, ":", 4)
	if len(parts) < 4 {
		return source.Pos{}
	}
	var line, col uint32
	if _, err := fmt.Sscanf(parts[1]+" "+parts[2], "%d %d", &line, &col); err != nil {
		return source.Pos{}
	}
	*s = strings.TrimSpace(parts[3])
	return source.Pos{File: parts[0], Line: line, Col: col}
}

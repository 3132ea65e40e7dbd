package frontend

import (
	"context"

	"hbind/internal/abi"
)

// Request describes one translation unit to parse.
type Request struct {
	Headers      []string
	IncludePaths []string
	Defines      []string // NAME or NAME=VALUE
	Args         []string // extra front-end flags
	Target       abi.Target
}

// Result is the root cursor plus the non-fatal messages of a parse.
type Result struct {
	Root     Cursor
	Messages []Message
}

// Parser is the front-end collaborator. Implementations may be non-reentrant;
// callers go through one Parse per translation unit.
type Parser interface {
	Parse(ctx context.Context, req Request) (*Result, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, req Request) (*Result, error)

func (f ParserFunc) Parse(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Static returns a Parser that always yields root. Useful for tests and for
// trees restored from elsewhere.
func Static(root Cursor, msgs ...Message) Parser {
	return ParserFunc(func(context.Context, Request) (*Result, error) {
		if root == nil {
			return nil, &FatalError{Messages: msgs}
		}
		return &Result{Root: root, Messages: msgs}, nil
	})
}

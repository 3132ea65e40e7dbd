// Package diag defines the diagnostic model shared by all pipeline stages.
//
// Stages never print. They emit through a Reporter, usually a BagReporter that
// appends into a Bag owned by the caller. Parallel stages give every worker its
// own Bag and merge them in slot order so output does not depend on scheduling.
//
// A Diagnostic carries a Severity, a numeric Code with a stable ID such as
// "LAY4001", a short message, the primary source.Pos and optional notes.
// Code ranges follow the pipeline: input, front end, AST construction, layout,
// filters, naming, emission, output and configuration.
//
// Rendering lives in internal/diagfmt.
package diag

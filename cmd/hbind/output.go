package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hbind/internal/diag"
	"hbind/internal/diagfmt"
	"hbind/internal/source"
)

// globals are the persistent flags.
type globals struct {
	color          bool
	quiet          bool
	timings        bool
	maxDiagnostics int
	ui             progressMode
	diagFormat     string
}

func readGlobals(cmd *cobra.Command) (globals, error) {
	pf := cmd.Root().PersistentFlags()
	var g globals
	colorValue, err := pf.GetString("color")
	if err != nil {
		return g, err
	}
	if g.color, err = readColorMode(colorValue, isTerminal(os.Stderr)); err != nil {
		return g, usageError(err)
	}
	if g.quiet, err = pf.GetBool("quiet"); err != nil {
		return g, err
	}
	if g.timings, err = pf.GetBool("timings"); err != nil {
		return g, err
	}
	if g.maxDiagnostics, err = pf.GetInt("max-diagnostics"); err != nil {
		return g, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	uiValue, err := pf.GetString("ui")
	if err != nil {
		return g, err
	}
	if g.ui, err = readUIMode(uiValue); err != nil {
		return g, usageError(err)
	}
	if g.diagFormat, err = pf.GetString("diag-format"); err != nil {
		return g, err
	}
	switch g.diagFormat = strings.ToLower(g.diagFormat); g.diagFormat {
	case "pretty", "json", "short":
	default:
		return g, usageError(fmt.Errorf("unsupported diagnostics format %q (must be pretty, json or short)", g.diagFormat))
	}
	return g, nil
}

func readColorMode(value string, tty bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return tty && os.Getenv("NO_COLOR") == "", nil
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	}
	return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
}

// limited copies the first n diagnostics of bag; the rest count as dropped.
func limited(bag *diag.Bag, n int) *diag.Bag {
	out := diag.NewBag(n)
	for _, d := range bag.Items() {
		out.Add(d)
	}
	return out
}

// printDiagnostics renders bag to w. Pretty output hides infos, and
// warnings too with --quiet.
func printDiagnostics(w io.Writer, bag *diag.Bag, fs *source.FileSet, g globals) error {
	bag.Sort()
	shown := limited(bag, g.maxDiagnostics)
	switch g.diagFormat {
	case "json":
		return diagfmt.JSON(w, shown, diagfmt.JSONOpts{IncludeNotes: true})
	case "short":
		if out := diag.FormatShortDiagnostics(shown.Items(), "", true); out != "" {
			fmt.Fprintln(w, out)
		}
		return nil
	}
	minSev := diag.SevWarning
	if g.quiet {
		minSev = diag.SevError
	}
	diagfmt.Pretty(w, shown, fs, diagfmt.PrettyOpts{
		Color:       g.color,
		MinSeverity: minSev,
		ShowNotes:   true,
		ShowContext: true,
	})
	if s := diagfmt.Summary(bag); s != "" && !g.quiet {
		fmt.Fprintf(w, "hbind: %s\n", s)
	}
	return nil
}

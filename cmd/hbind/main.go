// Package main implements the hbind command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hbind/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hbind [flags] HEADER...",
		Short: "Generate Go bindings for C headers",
		Long: `hbind parses C headers and writes Go bindings that call the described
library through libffi. Several headers form one translation unit.`,
		Args:              usageArgs(cobra.ArbitraryArgs),
		PersistentPreRunE: setupProfiling,
		RunE:              runGenerate,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.Version = version.Version
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	addInputFlags(root)
	addOutputFlags(root)

	// Глобальные флаги
	pf := root.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	pf.String("ui", "auto", "progress view (auto|on|off)")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("diag-format", "pretty", "diagnostics format (pretty|json|short)")
	addProfileFlags(root)

	root.AddCommand(newLayoutCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if perr := profiling.Stop(); perr != nil {
		fmt.Fprintf(os.Stderr, "hbind: profiling: %v\n", perr)
	}
	code := exitCode(err)
	if err != nil && !isReported(err) {
		fmt.Fprintf(os.Stderr, "hbind: %v\n", err)
	}
	stop()
	os.Exit(code)
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

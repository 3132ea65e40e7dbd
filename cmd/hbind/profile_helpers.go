package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hbind/internal/prof"
)

// profiling is the session started for the current command; main stops it.
var profiling *prof.Session

func addProfileFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("cpu-profile", "", "write a CPU profile to FILE")
	pf.String("mem-profile", "", "write a heap profile to FILE on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to FILE")
}

// setupProfiling starts the profilers named by the persistent flags.
func setupProfiling(cmd *cobra.Command, _ []string) error {
	pf := cmd.Root().PersistentFlags()
	var (
		cfg prof.Config
		err error
	)
	if cfg.CPU, err = pf.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if cfg.Mem, err = pf.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if cfg.Trace, err = pf.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !cfg.Enabled() {
		return nil
	}
	profiling, err = prof.Start(cfg)
	return err
}

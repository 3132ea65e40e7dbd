package writer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// compile builds the written package. A go.mod is created when dir has none.
func compile(ctx context.Context, dir, module, goTool string) error {
	if goTool == "" {
		goTool = "go"
	}
	if _, err := exec.LookPath(goTool); err != nil {
		return fmt.Errorf("%s not found: %w", goTool, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); errors.Is(err, fs.ErrNotExist) {
		if err := runCommand(ctx, dir, goTool, "mod", "init", module); err != nil {
			return err
		}
		if err := runCommand(ctx, dir, goTool, "get", ffiPath); err != nil {
			return err
		}
	}
	return runCommand(ctx, dir, goTool, "build", "./...")
}

func runCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return nil
}

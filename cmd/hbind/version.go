package main

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"hbind/internal/abi"
	"hbind/internal/version"
)

type versionPayload struct {
	Tool      string   `json:"tool"`
	Version   string   `json:"version"`
	GitCommit string   `json:"git_commit,omitempty"`
	BuildDate string   `json:"build_date,omitempty"`
	Targets   []string `json:"targets,omitempty"`
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show hbind build fingerprints",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			full, err := cmd.Flags().GetBool("full")
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "pretty":
				renderVersionPretty(cmd.OutOrStdout(), full)
				return nil
			case "json":
				return renderVersionJSON(cmd.OutOrStdout(), full)
			}
			return usageError(fmt.Errorf("unsupported format %q (must be pretty or json)", format))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	cmd.Flags().Bool("full", false, "show commit, build date and known targets")
	return cmd
}

func renderVersionPretty(out io.Writer, full bool) {
	if !full {
		fmt.Fprintln(out, version.String())
		return
	}
	fmt.Fprintf(out, "hbind %s\n", version.Colored())
	fmt.Fprintf(out, "commit:  %s\n", valueOrUnknown(version.GitCommit))
	fmt.Fprintf(out, "built:   %s\n", valueOrUnknown(version.BuildDate))
	fmt.Fprintf(out, "targets: %s\n", strings.Join(abi.Names(), ", "))
}

func renderVersionJSON(out io.Writer, full bool) error {
	payload := versionPayload{Tool: "hbind", Version: version.Version}
	if full {
		payload.GitCommit = valueOrUnknown(version.GitCommit)
		payload.BuildDate = valueOrUnknown(version.BuildDate)
		payload.Targets = abi.Names()
	}
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}

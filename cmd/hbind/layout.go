package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"hbind/internal/ast"
	"hbind/internal/layout"
	"hbind/internal/pipeline"
)

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout [flags] HEADER...",
		Short: "Print the memory layout of every record",
		Long: `Print size, alignment, member offsets and padding of every struct and
union the headers declare, for the selected target.`,
		Args:          usageArgs(cobra.ArbitraryArgs),
		RunE:          runLayout,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addInputFlags(cmd)
	return cmd
}

func runLayout(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	req, err := buildRequest(s.opts, s.fs, s.rep)
	if err != nil {
		return s.finish(cmd.ErrOrStderr(), err)
	}
	req.Output = nil
	req.Cache = nil
	req.StopAfter = pipeline.StageLayout

	res, runErr := s.run(cmd.Context(), req)
	if runErr == nil {
		printLayouts(cmd.OutOrStdout(), res)
	}
	return s.finish(cmd.ErrOrStderr(), runErr)
}

// printLayouts writes one block per laid-out record:
//
//	struct Point  8 B, align 4
//	     0  x  int  4 B
//	     4  y  int  4 B
func printLayouts(w io.Writer, res *pipeline.Result) {
	if res == nil || res.Tree == nil {
		return
	}
	first := true
	for _, l := range res.Layouts {
		d := res.Tree.Decl(l.ID)
		if d == nil || !d.IsRecord() {
			continue
		}
		if !first {
			fmt.Fprintln(w)
		}
		first = false
		title := recordTitle(d)
		if l.Err != nil {
			fmt.Fprintf(w, "%s  error: %v\n", title, l.Err)
			continue
		}
		if l.Layout == nil {
			fmt.Fprintf(w, "%s  incomplete\n", title)
			continue
		}
		printRecord(w, res.Tree, title, l.Layout)
	}
}

func recordTitle(d *ast.Decl) string {
	if d.IsAnonymous() {
		return d.KindName() + " <anonymous>"
	}
	return d.KindName() + " " + d.Name
}

func printRecord(w io.Writer, tree *ast.Tree, title string, l *layout.MemoryLayout) {
	fmt.Fprintf(w, "%s  %s, align %d\n", title, sizeString(l.Size), l.Align)

	rows := make([][3]string, 0, len(l.Members))
	nameWidth, typeWidth := 0, 0
	for _, m := range l.Members {
		name := m.Name
		if name == "" {
			name = "<anonymous>"
		}
		typ := ""
		if md := tree.Decl(m.Decl); md != nil {
			typ = tree.TypeString(md.Type)
		}
		var size string
		switch {
		case m.Bitfield:
			size = fmt.Sprintf("%d bits", m.BitWidth)
		case m.Flexible:
			size = "flexible"
		case m.Layout != nil:
			size = sizeString(m.Layout.Size)
		}
		rows = append(rows, [3]string{name, typ, size})
		nameWidth = max(nameWidth, runewidth.StringWidth(name))
		typeWidth = max(typeWidth, runewidth.StringWidth(typ))
	}
	for i, m := range l.Members {
		offset := fmt.Sprintf("%6d", m.Offset)
		if m.Bitfield {
			offset = fmt.Sprintf("%4d:%d", m.BitOffset/8, m.BitOffset%8)
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s\n", offset,
			runewidth.FillRight(rows[i][0], nameWidth),
			runewidth.FillRight(rows[i][1], typeWidth),
			rows[i][2])
	}
	if len(l.Padding) > 0 {
		parts := make([]string, 0, len(l.Padding))
		var total int64
		for _, p := range l.Padding {
			parts = append(parts, fmt.Sprintf("%s at %d", sizeString(p.Size), p.Offset))
			total += p.Size
		}
		fmt.Fprintf(w, "  padding: %s (%s)\n", sizeString(total), strings.Join(parts, ", "))
	}
	for _, mm := range l.Mismatches {
		fmt.Fprintf(w, "  note: %s: front end reports %d, computed %d\n", mismatchLabel(mm), mm.Reported, mm.Computed)
	}
}

func mismatchLabel(m layout.Mismatch) string {
	switch m.Kind {
	case layout.MismatchOffset:
		return "offset of " + m.Name + " (bits)"
	case layout.MismatchSize:
		return "size"
	case layout.MismatchAlign:
		return "alignment"
	default:
		return "member order"
	}
}

func sizeString(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(n))
}

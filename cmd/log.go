package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/qgit-go/internal/git/lanes"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
	"github.com/thiagokokada/qgit-go/internal/history"
)

func newLogCommand(opts *RootOptions) *cobra.Command {
	var (
		limit int
		file  string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the history graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			kind := history.MainHistory
			if file != "" {
				kind = history.FileHistory
				if err := a.waitLoad(kind, func() error { return a.c.LoadFileHistory(file) }); err != nil {
					return err
				}
			}
			st := a.c.Store(kind)
			n := st.Len()
			if limit > 0 {
				n = min(n, limit)
			}
			return printLog(cmd.OutOrStdout(), st.Range(0, n), a.c.Session().Refs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "print at most this many revisions")
	cmd.Flags().StringVar(&file, "file", "", "show the history of one file")
	return cmd
}

func printLog(w io.Writer, records []*revs.Record, ix *refs.Index) error {
	width := 0
	for _, r := range records {
		width = max(width, len(r.Lanes))
	}
	for _, r := range records {
		graph := lanes.Render(r.Lanes)
		graph += strings.Repeat(" ", max(0, 2*width-len(graph)))
		label := oid.Short(r.ID)
		if r.WorkDir {
			label = "-------"
		}
		line := fmt.Sprintf("%s %s %s", graph, label, r.ShortLog)
		if names := ix.Names(r.ID, refs.Any); len(names) > 0 {
			line += " (" + strings.Join(names, ", ") + ")"
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

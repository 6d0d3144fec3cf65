package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
	"github.com/thiagokokada/qgit-go/internal/history"
)

func newRefsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "List tags and branches in history order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			w := cmd.OutOrStdout()
			for _, kind := range []struct {
				label string
				mask  refs.Type
			}{
				{"branch", refs.Branch},
				{"remote", refs.RemoteBranch},
				{"tag", refs.Tag},
			} {
				for _, name := range a.c.AllRefNames(kind.mask) {
					fmt.Fprintf(w, "%s\t%s\n", kind.label, name)
				}
			}
			return nil
		},
	}
}

func newFilesCommand(opts *RootOptions) *cobra.Command {
	var (
		diffTo string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "files [rev]",
		Short: "List the files changed by a revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			id, err := a.resolve(revisionArg(args))
			if err != nil {
				return err
			}
			cs, ok := a.c.FilesFor(a.ctx, id, diffTo, all)
			if !ok {
				return fmt.Errorf("no file list for %s", oid.Short(id))
			}
			w := cmd.OutOrStdout()
			for i := range cs.Len() {
				line := cs.Entries[i].Status.Letter() + "\t" + cs.FileName(i)
				if ext := cs.ExtendedStatus(i); ext != "" {
					line += "\t" + ext
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&diffTo, "to", "", "compare against this revision instead of the parent")
	cmd.Flags().BoolVar(&all, "all-parents", false, "list merge changes against every parent")
	return cmd
}

func newTagsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tags [rev]",
		Short: "Show the nearest tags and descendant branches of a revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			id, err := a.resolve(revisionArg(args))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "follows:\t%s\n", strings.Join(a.c.NearTags(id, revs.Preceding), ", "))
			fmt.Fprintf(w, "precedes:\t%s\n", strings.Join(a.c.NearTags(id, revs.Following), ", "))
			fmt.Fprintf(w, "branches:\t%s\n", strings.Join(a.c.DescendantBranches(id), ", "))
			if info := a.c.RevInfo(a.ctx, id); info != "" {
				fmt.Fprintln(w, info)
			}
			return nil
		},
	}
}

func newTreeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [rev] [dir]",
		Short: "List a directory of a revision",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			id, err := a.resolve(revisionArg(args))
			if err != nil {
				return err
			}
			dir := ""
			if len(args) > 1 {
				dir = args[1]
			}
			if oid.IsWorkDir(id) {
				// unknown files come from the cached working directory set
				a.c.FilesFor(a.ctx, id, "", false)
			}
			entries, err := a.c.Tree(a.ctx, id, dir)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				name := e.Name
				if e.IsDir() {
					name += "/"
				}
				fmt.Fprintln(w, name)
			}
			return nil
		},
	}
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <rev> <path>",
		Short: "Print a file as of a revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			id, err := a.resolve(args[0])
			if err != nil {
				return err
			}
			if oid.IsWorkDir(id) {
				a.c.FilesFor(a.ctx, id, "", false)
			}
			type result struct {
				data []byte
				err  error
			}
			ch := make(chan result, 1)
			if _, err := a.c.FileContent(a.ctx, id, args[1], func(data []byte, err error) {
				ch <- result{data, err}
			}); err != nil {
				return err
			}
			res := <-ch
			if res.err != nil {
				return res.err
			}
			if res.data == nil {
				return fmt.Errorf("%s: deleted in %s", args[1], args[0])
			}
			_, err = cmd.OutOrStdout().Write(res.data)
			return err
		},
	}
}

func newDiffCommand(opts *RootOptions) *cobra.Command {
	var (
		diffOpts history.DiffOptions
		sections bool
	)
	cmd := &cobra.Command{
		Use:   "diff [rev]",
		Short: "Print the patch of a revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			id, err := a.resolve(revisionArg(args))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if diffOpts.Path != "" && diffOpts.DiffTo != "" {
				from, err := a.resolve(diffOpts.DiffTo)
				if err != nil {
					return err
				}
				if oid.IsWorkDir(id) || oid.IsWorkDir(from) {
					a.c.FilesFor(a.ctx, oid.WorkDir, "", false)
				}
				text, err := a.c.FileRevisionDiff(a.ctx, diffOpts.Path, from, id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(w, text)
				return err
			}

			ch := make(chan history.DiffResult, 1)
			if _, err := a.c.Diff(a.ctx, id, diffOpts, func(res history.DiffResult) { ch <- res }); err != nil {
				return err
			}
			res := <-ch
			if res.Err != nil {
				return res.Err
			}
			if sections {
				for _, s := range res.Sections {
					fmt.Fprintf(w, "%d\t%s\n", s.Line, s.Path)
				}
				return nil
			}
			_, err = fmt.Fprintln(w, res.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&diffOpts.DiffTo, "to", "", "compare against this revision instead of the parent")
	cmd.Flags().StringVar(&diffOpts.Path, "file", "", "restrict the patch to one file")
	cmd.Flags().BoolVar(&diffOpts.Combined, "combined", false, "show merges as a combined diff")
	cmd.Flags().BoolVar(&sections, "sections", false, "print the line where each file section starts")
	return cmd
}

func newWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload the history on repository changes and report each load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			w := cmd.OutOrStdout()
			unsubscribe := a.c.Subscribe(func(n history.Notification) {
				switch n := n.(type) {
				case history.LoadFinished:
					fmt.Fprintf(w, "%s: %d revisions in %s\n", n.Domain, n.Count, n.Elapsed.Round(time.Millisecond))
				case history.LoadFailed:
					fmt.Fprintf(w, "%s: load failed: %v\n", n.Domain, n.Reason)
				case history.CommandFailed:
					fmt.Fprintf(w, "%s: %s\n", n.Command, strings.TrimSpace(n.Stderr))
				}
			})
			defer unsubscribe()

			var enableErr error
			if !a.loop.Do(func() { enableErr = a.c.EnableWatch() }) {
				return errors.New("event loop stopped")
			}
			if enableErr != nil {
				return enableErr
			}
			fmt.Fprintf(w, "watching %s\n", a.c.Session().Repo.WorkDir)
			<-a.ctx.Done()
			return nil
		},
	}
}

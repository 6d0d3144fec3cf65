// Package cmd is the qgit-go command line: it opens a repository through
// the history controller and prints what a front-end would show.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/qgit-go/internal/buildinfo"
	"github.com/thiagokokada/qgit-go/internal/config"
)

type RootOptions struct {
	Verbose    bool
	ConfigPath string
	Repo       string
	// AllBranches overrides the configuration when the flag is given.
	AllBranches bool
}

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:           "qgit-go",
		Short:         "Browse git history from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose logging")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVarP(&opts.Repo, "repo", "C", ".", "repository to open")
	cmd.PersistentFlags().BoolVar(&opts.AllBranches, "all", false, "load every branch instead of HEAD")

	cmd.AddCommand(
		newLogCommand(opts),
		newRefsCommand(opts),
		newFilesCommand(opts),
		newTagsCommand(opts),
		newTreeCommand(opts),
		newShowCommand(opts),
		newDiffCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func (o *RootOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("all") {
		cfg.AllBranches = o.AllBranches
	}
	return cfg, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "qgit-go", buildinfo.Read())
			return err
		},
	}
}

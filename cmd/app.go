package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/qgit-go/internal/eventloop"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
	"github.com/thiagokokada/qgit-go/internal/history"
)

// app is a controller with its loop running in the background.
type app struct {
	ctx  context.Context
	loop *eventloop.Loop
	c    *history.Controller
	stop context.CancelFunc
}

// openApp opens the repository and waits for the main history to load.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := opts.config(cmd)
	if err != nil {
		return nil, err
	}
	ctx, stop := context.WithCancel(cmd.Context())
	a := &app{ctx: ctx, loop: eventloop.New(), stop: stop}
	a.c = history.New(cfg, a.loop)
	go func() {
		if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Debug("event loop", slog.Any("error", err))
		}
	}()

	if err := a.waitLoad(history.MainHistory, func() error { return a.c.Open(opts.Repo) }); err != nil {
		a.close()
		return nil, err
	}
	if _, err := runner.CheckVersion(ctx, a.c.Session().Runner); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// waitLoad runs start on the loop and blocks until the load of kind it
// triggers has ended.
func (a *app) waitLoad(kind history.Domain, start func() error) error {
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	unsubscribe := a.c.Subscribe(func(n history.Notification) {
		switch n := n.(type) {
		case history.LoadFinished:
			if n.Domain == kind {
				finish(nil)
			}
		case history.LoadFailed:
			if n.Domain == kind {
				finish(n.Reason)
			}
		case history.LoadCancelled:
			if n.Domain == kind {
				finish(runner.ErrCanceled)
			}
		case history.RepositoryFailed:
			finish(n.Err)
		}
	})
	defer unsubscribe()

	var startErr error
	if !a.loop.Do(func() { startErr = start() }) {
		return errors.New("event loop stopped")
	}
	if startErr != nil {
		return startErr
	}
	select {
	case err := <-done:
		return err
	case <-a.ctx.Done():
		a.c.Cancel()
		return a.ctx.Err()
	}
}

func (a *app) close() {
	a.c.Close()
	a.loop.Stop()
	a.stop()
}

// resolve turns a revision argument into an id. "workdir" names the
// working directory revision.
func (a *app) resolve(name string) (oid.ID, error) {
	if strings.EqualFold(name, "workdir") {
		return oid.WorkDir, nil
	}
	if name == "" {
		name = "HEAD"
	}
	id, ok := a.c.ShaFor(a.ctx, name, refs.Any)
	if !ok {
		return oid.ID{}, fmt.Errorf("unknown revision %q", name)
	}
	return id, nil
}

func revisionArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "HEAD"
}

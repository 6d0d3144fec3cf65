// Package runner spawns git (and the few helper tools around it) either
// synchronously or as a streaming background process.
package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Poster queues a function on the single logical thread that owns the
// revision data. Post returns false once the queue is closed.
type Poster interface {
	Post(fn func()) bool
}

type Options struct {
	// Dir is the repository work tree every command runs in.
	Dir string
	// GitPath defaults to "git" from PATH.
	GitPath  string
	Env      []string
	Reporter Reporter
	Poster   Poster
}

// Runner holds read-only configuration only; every invocation owns its own
// buffers and process handle.
type Runner struct {
	dir      string
	gitPath  string
	env      []string
	reporter Reporter
	poster   Poster
}

func New(opts Options) *Runner {
	gitPath := opts.GitPath
	if gitPath == "" {
		gitPath = "git"
	}
	return &Runner{
		dir:      opts.Dir,
		gitPath:  gitPath,
		env:      append([]string(nil), opts.Env...),
		reporter: opts.Reporter,
		poster:   opts.Poster,
	}
}

func (r *Runner) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

type Command struct {
	// Program defaults to git.
	Program string
	Args    []string
	Stdin   []byte
	// Quiet marks probes that may legitimately fail: failures are not
	// reported, only returned.
	Quiet bool
	// AllowExit1 treats exit status 1 with empty stderr as success.
	AllowExit1 bool
}

func Git(args ...string) Command {
	return Command{Args: args}
}

func (c Command) Silent() Command {
	c.Quiet = true
	return c
}

func (c Command) isGit() bool {
	return c.Program == "" || c.Program == "git"
}

func (c Command) String() string {
	var b strings.Builder
	if c.isGit() {
		b.WriteString("git")
	} else {
		b.WriteString(c.Program)
	}
	for _, arg := range c.Args {
		b.WriteByte(' ')
		if arg == "" || strings.ContainsAny(arg, " \t\n\"'") {
			b.WriteString(strconv.Quote(arg))
			continue
		}
		b.WriteString(arg)
	}
	return b.String()
}

func (r *Runner) command(ctx context.Context, c Command) *exec.Cmd {
	program := c.Program
	args := c.Args
	if c.isGit() {
		program = r.gitPath
		if r.dir != "" {
			args = append([]string{"-C", r.dir}, c.Args...)
		}
	}
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	return cmd
}

// Run executes c and waits for it. Output is returned even on failure.
func (r *Runner) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := r.command(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("run", slog.String("cmd", c.String()))
	if err := r.classify(ctx, c, cmd.Run(), stderr.String()); err != nil {
		if !errors.Is(err, ErrCanceled) {
			r.report(c, err)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

// Output is Run reduced to the (success, output) pair.
func (r *Runner) Output(ctx context.Context, c Command) (string, bool) {
	out, err := r.Run(ctx, c)
	return string(out), err == nil
}

// RunTreeDiff runs a tree diff (diff-tree, diff-index) with rename and copy
// detection. git gives up on inexact rename detection for big trees and
// that failure is expected, so the first attempt is quiet and a failure is
// retried exactly once without -C.
func (r *Runner) RunTreeDiff(ctx context.Context, c Command) ([]byte, error) {
	if len(c.Args) == 0 {
		return r.Run(ctx, c)
	}
	detect := c
	detect.Quiet = true
	detect.Args = append([]string{c.Args[0], "-C"}, c.Args[1:]...)
	out, err := r.Run(ctx, detect)
	if err == nil || errors.Is(err, ErrCanceled) {
		return out, err
	}
	slog.Debug("rename detection failed, retrying without it",
		slog.String("cmd", detect.String()),
		slog.Any("error", err),
	)
	return r.Run(ctx, c)
}

func (r *Runner) classify(ctx context.Context, c Command, err error, stderr string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ErrCanceled
	}
	stderr = strings.TrimSpace(stderr)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if c.AllowExit1 && exitErr.ExitCode() == 1 && stderr == "" {
			// probes like rev-parse --verify signal "absent" via exit 1
			return nil
		}
		return &ExitError{Command: c.String(), Code: exitErr.ExitCode(), Stderr: stderr}
	}
	return &SpawnError{Command: c.String(), Err: err}
}

func (r *Runner) report(c Command, err error) {
	if c.Quiet || r.reporter == nil {
		return
	}
	fl := failureOf(c.String(), err)
	r.deliver(func() { r.reporter.ReportFailure(fl) })
}

// deliver runs fn on the logical thread when a poster is configured.
func (r *Runner) deliver(fn func()) {
	if r.poster == nil {
		fn()
		return
	}
	if !r.poster.Post(fn) {
		slog.Debug("event dropped, queue closed")
	}
}

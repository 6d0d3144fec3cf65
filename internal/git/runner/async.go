package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync/atomic"
)

const chunkSize = 64 << 10

// Sink consumes the output of a background process. Both methods run on the
// logical thread when the runner has a Poster.
type Sink interface {
	// Data receives stdout as it arrives; chunk boundaries are arbitrary.
	Data(chunk []byte)
	// Done is called exactly once with nil, an *ExitError or ErrCanceled.
	Done(err error)
}

// Process is a handle on a background invocation.
type Process struct {
	command  string
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	canceled atomic.Bool
	done     chan struct{}
	stderr   bytes.Buffer
}

// Start spawns c and streams its stdout to sink. It fails only when the
// process cannot be started.
func (r *Runner) Start(ctx context.Context, c Command, sink Sink) (*Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := r.command(ctx, c)
	p := &Process{
		command: c.String(),
		cmd:     cmd,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	cmd.Stderr = &p.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: stdout: %w", p.command, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		spawnErr := &SpawnError{Command: p.command, Err: err}
		r.report(c, spawnErr)
		return nil, spawnErr
	}
	slog.Debug("start", slog.String("cmd", p.command), slog.Int("pid", cmd.Process.Pid))
	go p.pump(ctx, r, c, stdout, sink)
	return p, nil
}

func (p *Process) pump(ctx context.Context, r *Runner, c Command, stdout io.Reader, sink Sink) {
	defer close(p.done)
	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 && !p.canceled.Load() {
			chunk := bytes.Clone(buf[:n])
			r.deliver(func() {
				if p.canceled.Load() {
					return
				}
				sink.Data(chunk)
			})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !p.canceled.Load() {
				slog.Debug("read stdout", slog.String("cmd", p.command), slog.Any("error", err))
			}
			break
		}
	}
	waitErr := p.cmd.Wait()
	var result error
	if p.canceled.Load() {
		result = ErrCanceled
	} else {
		result = r.classify(ctx, c, waitErr, p.stderr.String())
	}
	p.cancel()
	if result != nil && !errors.Is(result, ErrCanceled) {
		r.report(c, result)
	}
	r.deliver(func() { sink.Done(result) })
}

// Cancel asks the process to stop. It never blocks and may be called any
// number of times, including after the process finished.
func (p *Process) Cancel() {
	if p == nil {
		return
	}
	if p.canceled.CompareAndSwap(false, true) {
		slog.Debug("cancel", slog.String("cmd", p.command))
		p.cancel()
	}
}

// Canceled reports whether Cancel was called.
func (p *Process) Canceled() bool {
	return p != nil && p.canceled.Load()
}

// Wait blocks until the process exited and its Done event was queued.
func (p *Process) Wait() {
	if p == nil {
		return
	}
	<-p.done
}

// Finished is closed once Wait would return.
func (p *Process) Finished() <-chan struct{} {
	return p.done
}

func (p *Process) Command() string {
	return p.command
}

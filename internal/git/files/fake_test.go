package files

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

type fakeRunner struct {
	runFunc         func(args []string, stdin []byte) (string, error)
	runTreeDiffFunc func(args []string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) record(c runner.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.Join(c.Args, " "))
}

func (f *fakeRunner) Run(_ context.Context, c runner.Command) ([]byte, error) {
	f.record(c)
	if f.runFunc != nil {
		out, err := f.runFunc(c.Args, c.Stdin)
		return []byte(out), err
	}
	return nil, errors.New("unexpected Run call")
}

func (f *fakeRunner) RunTreeDiff(_ context.Context, c runner.Command) ([]byte, error) {
	f.record(c)
	if f.runTreeDiffFunc != nil {
		out, err := f.runTreeDiffFunc(c.Args)
		return []byte(out), err
	}
	return nil, errors.New("unexpected RunTreeDiff call")
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

package history

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/qgit-go/internal/config"
	"github.com/thiagokokada/qgit-go/internal/eventloop"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

var isolatedEnv = []string{
	"GIT_CONFIG_NOSYSTEM=1",
	"GIT_CONFIG_GLOBAL=" + os.DevNull,
	"GIT_AUTHOR_DATE=2024-01-02T03:04:05Z",
	"GIT_COMMITTER_DATE=2024-01-02T03:04:05Z",
}

type testRepo struct {
	t   *testing.T
	dir string
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
	r := &testRepo{t: t, dir: t.TempDir()}
	r.git("init", "-q", "-b", "main")
	r.git("config", "user.name", "Test User")
	r.git("config", "user.email", "test@example.com")
	r.git("config", "commit.gpgsign", "false")
	r.git("config", "tag.gpgsign", "false")
	return r
}

func (r *testRepo) git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", append([]string{"-C", r.dir}, args...)...)
	cmd.Env = append(os.Environ(), isolatedEnv...)
	out, err := cmd.CombinedOutput()
	require.NoError(r.t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func (r *testRepo) write(name, content string) {
	r.t.Helper()
	path := filepath.Join(r.dir, filepath.FromSlash(name))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
}

// commit writes files and commits them, returning the new HEAD.
func (r *testRepo) commit(msg string, files map[string]string) oid.ID {
	r.t.Helper()
	for name, content := range files {
		r.write(name, content)
		r.git("add", "--", name)
	}
	r.git("commit", "-q", "-m", msg)
	return oid.MustParse(r.git("rev-parse", "HEAD"))
}

type harness struct {
	t      *testing.T
	c      *Controller
	events chan Notification
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	cfg.Env = append(cfg.Env, isolatedEnv...)
	h := &harness{t: t, c: New(cfg, loop), events: make(chan Notification, 4096)}
	h.c.Subscribe(func(n Notification) { h.events <- n })
	t.Cleanup(func() {
		h.c.Close()
		cancel()
	})
	return h
}

func defaultHarness(t *testing.T) *harness {
	return newHarness(t, config.Default())
}

// waitFor drains notifications until one of type T matches.
func waitFor[T Notification](h *harness, match func(T) bool) T {
	h.t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case n := <-h.events:
			if v, ok := n.(T); ok && (match == nil || match(v)) {
				return v
			}
		case <-timeout:
			var zero T
			h.t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func (h *harness) waitLoaded(kind Domain) LoadFinished {
	h.t.Helper()
	return waitFor(h, func(n LoadFinished) bool { return n.Domain == kind })
}

func (h *harness) open(dir string) {
	h.t.Helper()
	require.NoError(h.t, h.c.Open(dir))
	h.waitLoaded(MainHistory)
}

package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/qgit-go/internal/config"
)

func TestShouldIgnoreWatchPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"/repo/.git/index.lock", true},
		{"/repo/.git/HEAD.LOCK", true},
		{"/repo/.git/fsmonitor.ipc", true},
		{"/repo/.git/index", false},
		{"/repo/.git/refs/heads/main", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldIgnoreWatchPath(tt.name), tt.name)
	}
}

func TestWatchPaths(t *testing.T) {
	t.Parallel()

	gitDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "tags"), 0o755))

	assert.Equal(t, []string{
		gitDir,
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}, watchPaths(gitDir))
	assert.Nil(t, watchPaths(""))
}

func TestWatchReloadsOnCommit(t *testing.T) {
	t.Parallel()

	r, _ := threeCommits(t)
	cfg := config.Default()
	cfg.Watch = true
	cfg.ReloadDelay = 50 * time.Millisecond
	h := newHarness(t, cfg)
	h.open(r.dir)
	require.True(t, h.c.watching())

	fourth := r.commit("fourth", map[string]string{"d.txt": "dee\n"})
	// git add and git commit may each trigger a reload, wait for the one
	// that saw the commit
	waitFor(h, func(n LoadFinished) bool {
		head, ok := h.c.Store(MainHistory).At(0)
		return ok && head.ID == fourth
	})

	h.c.DisableWatch()
	assert.False(t, h.c.watching())
	h.c.DisableWatch()
}

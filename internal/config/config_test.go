package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qgit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
git: /usr/local/bin/git
log_args: ["--since=2.weeks"]
reload_delay: 2s
watch: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/git", cfg.GitPath)
	assert.Equal(t, 2*time.Second, cfg.ReloadDelay)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 500, cfg.NotifyEvery, "unset keys keep their default")
	assert.Equal(t, []string{"--since=2.weeks"}, cfg.RevisionArgs())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QGIT_GIT", "/opt/git")
	t.Setenv("QGIT_ALL_BRANCHES", "true")
	t.Setenv("QGIT_WATCH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/git", cfg.GitPath)
	assert.True(t, cfg.AllBranches)
	assert.False(t, cfg.Watch)
	assert.Equal(t, []string{"--all"}, cfg.RevisionArgs())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("notify_every: 0\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "notify_every")

	cfg := Default()
	assert.Error(t, cfg.applyEnv(func(string) (string, bool) { return "maybe", true }))
}

func TestRevisionArgsDefaultsToHead(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"HEAD"}, Default().RevisionArgs())
}

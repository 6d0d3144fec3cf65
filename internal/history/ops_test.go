package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
)

func TestMakeAndDeleteTag(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)
	ctx := context.Background()

	require.NoError(t, h.c.MakeTag(ctx, ids[2], "v2", "Release notes\n\nsecond line\n"))
	e, ok := h.c.RefsFor(ids[2])
	require.True(t, ok)
	assert.Equal(t, []string{"v2"}, e.Tags)
	assert.False(t, e.TagObject.IsZero(), "a message makes an annotated tag")
	assert.Equal(t, []string{"v2"}, h.c.NearTags(ids[2], 0), "marks follow the new refs")
	assert.Contains(t, h.c.Session().Refs.TagMessage(ctx, ids[2]), "second line")

	require.NoError(t, h.c.DeleteTag(ctx, ids[2]))
	assert.Empty(t, h.c.Session().Refs.Names(ids[2], refs.Tag))
	assert.Error(t, h.c.DeleteTag(ctx, ids[2]))

	require.NoError(t, h.c.MakeTag(ctx, ids[1], "light", ""))
	e, _ = h.c.RefsFor(ids[1])
	assert.Contains(t, e.Tags, "light")
	assert.True(t, e.TagObject.IsZero())

	entries, err := os.ReadDir(h.c.Session().Repo.GitDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), "qgit_"), "temp file %s left behind", entry.Name())
	}
}

func TestMakeBranch(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)

	require.NoError(t, h.c.MakeBranch(context.Background(), ids[0], "topic"))
	assert.Equal(t, []string{"topic"}, h.c.Session().Refs.Names(ids[0], refs.Branch))
	assert.Error(t, h.c.MakeBranch(context.Background(), ids[0], " "))
	assert.Contains(t, h.c.AllRefNames(refs.Branch), "topic")
}

func TestRefNamesStartingWithDash(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)
	ctx := context.Background()
	r.git("switch", "-q", "feature")
	r.git("switch", "-q", "main")

	assert.Error(t, h.c.MakeBranch(ctx, ids[0], "-f"))
	assert.Error(t, h.c.MakeTag(ctx, ids[0], "--force", ""))
	assert.Error(t, h.c.MakeTag(ctx, ids[0], "-a", "message"))
	assert.Error(t, h.c.SwitchBranch(ctx, "-"))
	assert.Equal(t, "main", r.git("branch", "--show-current"), "still on main")

	_, ok := h.c.ShaFor(ctx, "--all", refs.Any)
	assert.False(t, ok)
	_, ok = h.c.ShaFor(ctx, "--branches", refs.Any)
	assert.False(t, ok)
}

func TestCommitSelectedFiles(t *testing.T) {
	t.Parallel()

	r, _ := threeCommits(t)
	r.write("a.txt", "changed\n")
	r.write("b.txt", "changed too\n")
	r.git("add", "b.txt")
	h := defaultHarness(t)
	h.open(r.dir)

	require.NoError(t, h.c.Commit(context.Background(), CommitOptions{
		Files:   []string{"a.txt"},
		Message: "only a",
	}))
	h.waitLoaded(MainHistory)

	assert.Equal(t, "a.txt", r.git("show", "--name-only", "--pretty=format:", "HEAD"))
	assert.Equal(t, "only a", r.git("log", "-1", "--pretty=%s"))
	assert.Equal(t, "b.txt", r.git("diff", "--cached", "--name-only"), "b.txt is staged again")

	head, ok := h.c.Store(MainHistory).At(0)
	require.True(t, ok)
	assert.True(t, head.WorkDir, "b.txt still counts as a local change")

	assert.Error(t, h.c.Commit(context.Background(), CommitOptions{Files: []string{"b.txt"}}))
}

func TestResetCommits(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)

	require.NoError(t, h.c.ResetCommits(context.Background(), 1))
	h.waitLoaded(MainHistory)
	assert.Equal(t, ids[1].String(), r.git("rev-parse", "HEAD"))
	wd, ok := h.c.Store(MainHistory).At(0)
	require.True(t, ok)
	assert.True(t, wd.WorkDir, "the undone change stays in the index")

	assert.Error(t, h.c.ResetCommits(context.Background(), 0))
}

func TestFormatPatch(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)

	dir := filepath.Join(t.TempDir(), "patches")
	require.NoError(t, h.c.FormatPatch(context.Background(), []oid.ID{ids[1], ids[2]}, dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "-second.patch"), entries[0].Name())
	assert.True(t, strings.HasSuffix(entries[1].Name(), "-third.patch"), entries[1].Name())

	assert.Error(t, h.c.FormatPatch(context.Background(), nil, dir))
}

func TestCommitEncoding(t *testing.T) {
	t.Parallel()

	r, _ := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)
	ctx := context.Background()

	assert.Empty(t, h.c.CommitEncoding())
	require.NoError(t, h.c.SetCommitEncoding(ctx, "ISO-8859-1"))
	assert.Equal(t, "ISO-8859-1", h.c.CommitEncoding())
	require.NoError(t, h.c.SetCommitEncoding(ctx, ""))
	assert.Empty(t, h.c.CommitEncoding())
	require.NoError(t, h.c.SetCommitEncoding(ctx, ""), "unsetting twice is fine")
	assert.Error(t, h.c.SetCommitEncoding(ctx, "no-such-charset"))
}

func TestStgWithoutPatch(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)

	assert.ErrorContains(t, h.c.StgPush(context.Background(), ids[0]), "no patch")
	assert.ErrorContains(t, h.c.StgPop(context.Background(), ids[0]), "no patch")
}

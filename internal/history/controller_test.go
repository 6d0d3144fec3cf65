package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/qgit-go/internal/config"
	"github.com/thiagokokada/qgit-go/internal/eventloop"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/repo"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
)

// threeCommits builds first <- second <- third on main, tags v1 on first
// and leaves a feature branch on second.
func threeCommits(t *testing.T) (*testRepo, []oid.ID) {
	r := newTestRepo(t)
	first := r.commit("first", map[string]string{"a.txt": "one\n"})
	r.git("tag", "v1")
	second := r.commit("second", map[string]string{"b.txt": "bee\n"})
	r.git("branch", "feature")
	third := r.commit("third", map[string]string{"a.txt": "two\n"})
	return r, []oid.ID{first, second, third}
}

func TestOpenLoadsHistory(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	require.NoError(t, h.c.Open(r.dir))
	started := waitFor[LoadStarted](h, nil)
	finished := h.waitLoaded(MainHistory)
	assert.Equal(t, started.Session, finished.Session)
	assert.Equal(t, 3, finished.Count)

	st := h.c.Store(MainHistory)
	require.NotNil(t, st)
	assert.Equal(t, []oid.ID{ids[2], ids[1], ids[0]}, st.Ordered())
	head, ok := st.At(0)
	require.True(t, ok)
	assert.Equal(t, "third", head.ShortLog)
	assert.Equal(t, "Test User", head.Author)

	e, ok := h.c.RefsFor(ids[2])
	require.True(t, ok)
	assert.Equal(t, []string{"main"}, e.Branches)
	assert.Equal(t, "main", e.CurrentBranch)

	assert.Equal(t, []string{"v1"}, h.c.NearTags(ids[2], revs.Preceding))
	assert.Equal(t, []string{"v1"}, h.c.NearTags(ids[0], revs.Following))
	assert.Equal(t, []string{"main", "feature"}, h.c.DescendantBranches(ids[0]))
	assert.Equal(t, []string{"main"}, h.c.DescendantBranches(ids[2]))

	got, ok := h.c.ShaFor(context.Background(), "feature", refs.Branch)
	require.True(t, ok)
	assert.Equal(t, ids[1], got)
	_, ok = h.c.ShaFor(context.Background(), "nope", refs.Any)
	assert.False(t, ok)

	assert.Contains(t, h.c.RevInfo(context.Background(), ids[2]), "HEAD: main")
	assert.Equal(t, []string{"main", "feature", "v1"}, h.c.AllRefNames(refs.Branch|refs.Tag))
}

func TestWorkingDirectoryRevisionComesFirst(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	r.write("a.txt", "three\n")
	h := defaultHarness(t)
	h.open(r.dir)

	st := h.c.Store(MainHistory)
	assert.Equal(t, 4, st.Len())
	wd, ok := st.At(0)
	require.True(t, ok)
	assert.True(t, wd.WorkDir)
	assert.Equal(t, []oid.ID{ids[2]}, wd.Parents)

	cs, ok := h.c.FilesFor(context.Background(), oid.WorkDir, "", false)
	require.True(t, ok)
	assert.Equal(t, []string{"a.txt"}, cs.Files(0))

	sha, ok := h.c.FileSHA(context.Background(), "a.txt", oid.WorkDir)
	require.True(t, ok)
	assert.True(t, oid.IsWorkDir(sha))
	sha, ok = h.c.FileSHA(context.Background(), "b.txt", oid.WorkDir)
	require.True(t, ok)
	assert.False(t, oid.IsWorkDir(sha), "untouched files resolve in HEAD")
}

func TestSwitchRepositoryFailureKeepsSession(t *testing.T) {
	t.Parallel()

	r, _ := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)
	before := h.c.Session()

	err := h.c.SwitchRepository(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrNotRepository)
	failed := waitFor[RepositoryFailed](h, nil)
	assert.ErrorIs(t, failed.Err, repo.ErrNotRepository)
	assert.Same(t, before, h.c.Session())
	assert.Equal(t, 3, h.c.Store(MainHistory).Len())
}

func TestSwitchRepositoryReplacesSession(t *testing.T) {
	t.Parallel()

	r1, _ := threeCommits(t)
	r2 := newTestRepo(t)
	only := r2.commit("only", map[string]string{"x": "x\n"})

	h := defaultHarness(t)
	h.open(r1.dir)
	before := h.c.Session()

	require.NoError(t, h.c.SwitchRepository(r2.dir))
	changed := waitFor[RepositoryChanged](h, nil)
	assert.Equal(t, h.c.Session().Repo.WorkDir, changed.WorkDir)
	h.waitLoaded(MainHistory)

	assert.NotSame(t, before, h.c.Session())
	assert.Error(t, before.ctx.Err(), "old session is stopped")
	assert.Equal(t, []oid.ID{only}, h.c.Store(MainHistory).Ordered())
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	r, _ := threeCommits(t)
	h := defaultHarness(t)
	h.c.Cancel()
	h.open(r.dir)

	h.c.Cancel()
	h.c.Cancel()
	assert.False(t, h.c.Loading(MainHistory))
	assert.Equal(t, 3, h.c.Store(MainHistory).Len())
	select {
	case n := <-h.events:
		t.Fatalf("unexpected notification %T", n)
	default:
	}
}

func TestReloadGuard(t *testing.T) {
	t.Parallel()

	r, _ := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)
	s := h.c.Session()
	d := s.domains[MainHistory]

	// a load that is still stopping rejects a new one
	stopping := &loadSession{c: h.c, s: s, d: d}
	stopping.canceled.Store(true)
	h.c.mu.Lock()
	d.load = stopping
	h.c.mu.Unlock()
	assert.ErrorIs(t, h.c.Reload(), ErrBusy)

	// a running one is canceled and restarted when it reports back
	running := &loadSession{c: h.c, s: s, d: d}
	h.c.mu.Lock()
	d.load = running
	h.c.mu.Unlock()
	require.NoError(t, h.c.Reload())
	assert.True(t, running.canceled.Load())
	h.c.mu.Lock()
	assert.True(t, d.restart)
	h.c.mu.Unlock()

	restart, _ := h.c.finish(running)
	assert.True(t, restart)
	assert.False(t, h.c.Loading(MainHistory))
}

func TestOperationsWithoutRepository(t *testing.T) {
	t.Parallel()

	c := New(config.Default(), eventloop.Immediate{})
	assert.ErrorIs(t, c.Reload(), ErrNoRepository)
	assert.ErrorIs(t, c.LoadFileHistory("a.txt"), ErrNoRepository)
	assert.ErrorIs(t, c.EnableWatch(), ErrNoRepository)
	assert.Nil(t, c.Store(MainHistory))
	assert.Nil(t, c.DescendantBranches(oid.ID{}))
	_, err := c.Diff(context.Background(), oid.ID{}, DiffOptions{}, func(DiffResult) {})
	assert.ErrorIs(t, err, ErrNoRepository)
	c.Cancel()
	c.Close()
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	c := New(config.Default(), eventloop.Immediate{})
	var got []Notification
	cancel := c.Subscribe(func(n Notification) { got = append(got, n) })
	var other int
	c.Subscribe(func(Notification) { other++ })

	c.publish(LoadStarted{Domain: FileHistory})
	cancel()
	c.publish(LoadFailed{Reason: errors.New("boom")})

	require.Len(t, got, 1)
	assert.Equal(t, LoadStarted{Domain: FileHistory}, got[0])
	assert.Equal(t, 2, other)
}

func TestFileHistory(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)

	require.NoError(t, h.c.LoadFileHistory("a.txt"))
	finished := h.waitLoaded(FileHistory)
	assert.Equal(t, 2, finished.Count)
	assert.Equal(t, "a.txt", h.c.FileHistoryPath())
	assert.Equal(t, []oid.ID{ids[2], ids[0]}, h.c.Store(FileHistory).Ordered())
	assert.Equal(t, 3, h.c.Store(MainHistory).Len(), "main history is untouched")

	assert.Error(t, h.c.LoadFileHistory(""))
}

func TestFilters(t *testing.T) {
	t.Parallel()

	r, ids := threeCommits(t)
	h := defaultHarness(t)
	h.open(r.dir)
	ctx := context.Background()

	got, err := h.c.FileFilter("b.*")
	require.NoError(t, err)
	assert.Empty(t, got, "nothing diffed yet")

	for _, id := range ids[1:] {
		_, ok := h.c.FilesFor(ctx, id, "", false)
		require.True(t, ok)
	}
	got, err = h.c.FileFilter("B.*")
	require.NoError(t, err)
	assert.Equal(t, map[oid.ID]struct{}{ids[1]: {}}, got)

	got, err = h.c.PatchFilter(ctx, "two", false)
	require.NoError(t, err)
	assert.Equal(t, map[oid.ID]struct{}{ids[2]: {}}, got)

	got, err = h.c.PatchFilter(ctx, "b.e", true)
	require.NoError(t, err)
	assert.Equal(t, map[oid.ID]struct{}{ids[1]: {}}, got)
}

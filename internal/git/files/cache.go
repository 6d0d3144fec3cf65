package files

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/parse"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

// Runner is the part of runner.Runner the cache needs.
type Runner interface {
	Run(ctx context.Context, c runner.Command) ([]byte, error)
	RunTreeDiff(ctx context.Context, c runner.Command) ([]byte, error)
}

// Revisions resolves ids to loaded records.
type Revisions interface {
	Lookup(id oid.ID) (*revs.Record, bool)
}

// Cache memoizes change sets per revision. Besides the per id entries it
// keeps one slot for the working directory, recomputed on every request,
// one set per merge diffed against all its parents and a single custom
// slot for diffs against an arbitrary revision.
type Cache struct {
	names *Names
	run   Runner

	mu       sync.Mutex
	revs     Revisions
	byID     map[oid.ID]*ChangeSet
	allMerge map[oid.ID]*ChangeSet
	custom   *ChangeSet
	workDir  *ChangeSet
}

func NewCache(names *Names, run Runner, revisions Revisions) *Cache {
	return &Cache{
		names:    names,
		run:      run,
		revs:     revisions,
		byID:     make(map[oid.ID]*ChangeSet),
		allMerge: make(map[oid.ID]*ChangeSet),
	}
}

func (c *Cache) Names() *Names { return c.names }

// SetRevisions points the cache at a freshly loaded store. Change sets of
// commits stay valid; the transient slots are dropped.
func (c *Cache) SetRevisions(revisions Revisions) {
	c.mu.Lock()
	c.revs = revisions
	c.mu.Unlock()
	c.Clear()
}

// Clear drops the working directory and custom slots.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom = nil
	c.workDir = nil
}

func (c *Cache) lookup(id oid.ID) (*revs.Record, bool) {
	c.mu.Lock()
	r := c.revs
	c.mu.Unlock()
	if r == nil {
		return nil, false
	}
	return r.Lookup(id)
}

// Insert seeds the cache with a set computed elsewhere.
func (c *Cache) Insert(id oid.ID, cs *ChangeSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if oid.IsWorkDir(id) {
		c.workDir = cs
		return
	}
	c.byID[id] = cs
}

// Cached returns the set stored for id without running git.
func (c *Cache) Cached(id oid.ID) (*ChangeSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if oid.IsWorkDir(id) {
		return c.workDir, c.workDir != nil
	}
	cs, ok := c.byID[id]
	return cs, ok
}

// FilesFor returns the files touched by id. With diffTo set the diff runs
// against that revision instead of the parents; allMergeParents asks for a
// merge to be diffed against each parent rather than combined. Unknown ids
// and git failures are absent results.
func (c *Cache) FilesFor(ctx context.Context, id oid.ID, diffTo string, allMergeParents bool) (*ChangeSet, bool) {
	if oid.IsWorkDir(id) {
		cs, err := c.workDirFiles(ctx)
		if err != nil {
			slog.Debug("working directory files", slog.Any("error", err))
			return nil, false
		}
		return cs, true
	}
	r, ok := c.lookup(id)
	if !ok {
		return nil, false
	}
	switch {
	case r.IsMerge() && diffTo == "" && allMergeParents:
		return c.cached(ctx, c.allMerge, id, runner.Git("diff-tree", "--no-color", "-r", "-m", id.String()))
	case diffTo != "":
		cs, err := c.treeDiff(ctx, runner.Git("diff-tree", "--no-color", "-r", "-m", diffTo, id.String()))
		if err != nil {
			return nil, false
		}
		c.mu.Lock()
		// overwritten by the next custom request
		c.custom = cs
		c.mu.Unlock()
		return cs, true
	}
	args := []string{"diff-tree", "--no-color", "-r", "-c"}
	if r.IsRoot() {
		args = append(args, "--root")
	}
	return c.cached(ctx, c.byID, id, runner.Git(append(args, id.String())...))
}

func (c *Cache) cached(ctx context.Context, slot map[oid.ID]*ChangeSet, id oid.ID, cmd runner.Command) (*ChangeSet, bool) {
	c.mu.Lock()
	cs, ok := slot[id]
	c.mu.Unlock()
	if ok {
		return cs, true
	}
	cs, err := c.treeDiff(ctx, cmd)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// another caller may have been faster
	if prev, ok := slot[id]; ok {
		return prev, true
	}
	slot[id] = cs
	return cs, true
}

func (c *Cache) treeDiff(ctx context.Context, cmd runner.Command) (*ChangeSet, error) {
	out, err := c.run.RunTreeDiff(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return NewChangeSet(c.names, parse.RawDiff(string(out))), nil
}

func (c *Cache) workDirFiles(ctx context.Context) (*ChangeSet, error) {
	cs, err := c.treeDiff(ctx, runner.Git("diff-index", "--no-color", "-r", "-m", "HEAD"))
	if err != nil {
		return nil, fmt.Errorf("diff working directory: %w", err)
	}
	staged, err := c.run.Run(ctx, runner.Git("diff-index", "--cached", "--name-only", "HEAD"))
	if err != nil {
		return nil, fmt.Errorf("list staged files: %w", err)
	}
	inIndex := map[string]struct{}{}
	for _, name := range parse.NameList(string(staged)) {
		inIndex[name] = struct{}{}
	}
	for i := range cs.Entries {
		if _, ok := inIndex[cs.FileName(i)]; ok {
			cs.Entries[i].Status |= InIndex
		}
	}
	others, err := c.run.Run(ctx, runner.Git("ls-files", "--others", "--exclude-standard"))
	if err != nil {
		return nil, fmt.Errorf("list untracked files: %w", err)
	}
	for _, name := range parse.NameList(string(others)) {
		dir, base := parse.SplitPath(name)
		cs.Entries = append(cs.Entries, Entry{
			Dir:    c.names.Intern(dir),
			Name:   c.names.Intern(base),
			Status: Unknown,
		})
	}
	c.mu.Lock()
	c.workDir = cs
	c.mu.Unlock()
	return cs, nil
}

// IsNothingToCommit reports whether the last working directory listing
// held untracked files only.
func (c *Cache) IsNothingToCommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workDir == nil {
		return true
	}
	return c.workDir.Len() == c.workDir.count(Unknown)
}

// IsTreeModified reports whether id added, removed or renamed files, as
// opposed to only changing their content. Missing information counts as
// modified.
func (c *Cache) IsTreeModified(ctx context.Context, id oid.ID) bool {
	cs, ok := c.FilesFor(ctx, id, "", false)
	if !ok {
		return true
	}
	for _, e := range cs.Entries {
		if !e.Status.Has(Modified) {
			return true
		}
	}
	return false
}

// IsParentOf is true only for a non-merge child of parent.
func (c *Cache) IsParentOf(parent, child oid.ID) bool {
	r, ok := c.lookup(child)
	return ok && r.ParentCount() == 1 && r.Parents[0] == parent
}

// IsSameFiles reports whether the trees of a and b hold the same set of
// paths. Adjacent revisions are answered from the cache.
func (c *Cache) IsSameFiles(ctx context.Context, a, b oid.ID) bool {
	if c.IsParentOf(a, b) {
		return !c.IsTreeModified(ctx, b)
	}
	if c.IsParentOf(b, a) {
		return !c.IsTreeModified(ctx, a)
	}
	out, err := c.run.Run(ctx, runner.Git("diff-tree", "--no-color", "-r", a.String(), b.String()))
	if err != nil {
		return false
	}
	text := string(out)
	return !strings.Contains(text, " A\t") && !strings.Contains(text, " D\t")
}

// ExtraFileInfo decorates path with its rename or copy source when id
// renamed or copied it; otherwise path is returned as is.
func (c *Cache) ExtraFileInfo(ctx context.Context, path string, id oid.ID, diffTo string, allMergeParents bool) string {
	cs, ok := c.FilesFor(ctx, id, diffTo, allMergeParents)
	if !ok {
		return path
	}
	if ext := cs.ExtendedStatus(cs.FindFileIndex(path)); ext != "" {
		return ext
	}
	return path
}

// FormatPatchFileHeader builds the "diff --git" line heading the patch of
// path, following renames.
func (c *Cache) FormatPatchFileHeader(ctx context.Context, path string, id oid.ID, diffTo string, combined, allMergeParents bool) string {
	if combined {
		return "diff --combined " + path
	}
	row := c.ExtraFileInfo(ctx, path, id, diffTo, allMergeParents)
	if orig, _, ok := strings.Cut(row, " --> "); ok {
		return "diff --git a/" + orig + " b/" + RemoveExtraFileInfo(row)
	}
	return "diff --git a/" + row + " b/" + row
}

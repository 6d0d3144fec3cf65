package history

import (
	"context"
	"slices"

	"github.com/thiagokokada/qgit-go/internal/git/files"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
)

// Lookup finds id in the main history.
func (c *Controller) Lookup(id oid.ID) (*revs.Record, bool) {
	st := c.Store(MainHistory)
	if st == nil {
		return nil, false
	}
	return st.Lookup(id)
}

func (c *Controller) RefsFor(id oid.ID) (refs.Entry, bool) {
	s := c.Session()
	if s == nil {
		return refs.Entry{}, false
	}
	return s.Refs.RefsFor(id)
}

// ShaFor resolves a reference name, asking git for anything else.
func (c *Controller) ShaFor(ctx context.Context, name string, mask refs.Type) (oid.ID, bool) {
	s := c.Session()
	if s == nil {
		return oid.ID{}, false
	}
	ctx, done := s.bind(ctx)
	defer done()
	return s.Refs.ShaFor(ctx, name, mask, true)
}

// FilesFor is the file list of a main history revision.
func (c *Controller) FilesFor(ctx context.Context, id oid.ID, diffTo string, allMergeParents bool) (*files.ChangeSet, bool) {
	s := c.Session()
	if s == nil {
		return nil, false
	}
	ctx, done := s.bind(ctx)
	defer done()
	return s.Files.FilesFor(ctx, id, diffTo, allMergeParents)
}

// DescendantBranches names the branches containing id, newest tip in
// load order first.
func (c *Controller) DescendantBranches(id oid.ID) []string {
	return c.namesOf(func(st *revs.Store) []oid.ID { return st.DescendantBranchesOf(id) }, refs.Branch|refs.RemoteBranch)
}

// NearTags names the tags closest to id in the given direction.
func (c *Controller) NearTags(id oid.ID, dir revs.Direction) []string {
	return c.namesOf(func(st *revs.Store) []oid.ID { return st.NearTagsOf(id, dir) }, refs.Tag)
}

func (c *Controller) namesOf(query func(*revs.Store) []oid.ID, mask refs.Type) []string {
	s := c.Session()
	st := c.Store(MainHistory)
	if s == nil || st == nil {
		return nil
	}
	var out []string
	for _, tip := range query(st) {
		out = append(out, s.Refs.Names(tip, mask)...)
	}
	return out
}

// FileFilter keeps the main history revisions touching a path matching
// the wildcard pattern, among those whose files were already listed.
func (c *Controller) FileFilter(pattern string) (map[oid.ID]struct{}, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.Files.FileFilter(c.Store(MainHistory).Ordered(), pattern)
}

// PatchFilter keeps the main history revisions whose patch adds or
// removes expr.
func (c *Controller) PatchFilter(ctx context.Context, expr string, isRegexp bool) (map[oid.ID]struct{}, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	ctx, done := s.bind(ctx)
	defer done()
	return s.Files.PatchFilter(ctx, c.Store(MainHistory).Ordered(), expr, isRegexp)
}

// IsNothingToCommit reports whether the working directory listed by the
// last load or working directory query holds untracked files only.
func (c *Controller) IsNothingToCommit() bool {
	s := c.Session()
	if s == nil {
		return true
	}
	return s.Files.IsNothingToCommit()
}

// RevInfo is the one-line reference summary of id.
func (c *Controller) RevInfo(ctx context.Context, id oid.ID) string {
	s := c.Session()
	if s == nil {
		return ""
	}
	ctx, done := s.bind(ctx)
	defer done()
	return s.Refs.RevInfo(ctx, id)
}

// AllRefNames lists the names of the kinds in mask on loaded revisions,
// in history order.
func (c *Controller) AllRefNames(mask refs.Type) []string {
	s := c.Session()
	st := c.Store(MainHistory)
	if s == nil || st == nil {
		return nil
	}
	return s.Refs.AllNames(mask, func(id oid.ID) (int, bool) {
		r, ok := st.Lookup(id)
		if !ok {
			return 0, false
		}
		return r.OrderIdx, true
	})
}

// sortByOrder sorts ids newest first, dropping the unloaded ones.
func sortByOrder(st *revs.Store, ids []oid.ID) []oid.ID {
	type loaded struct {
		id  oid.ID
		idx int
	}
	var ls []loaded
	for _, id := range ids {
		if r, ok := st.Lookup(id); ok {
			ls = append(ls, loaded{id, r.OrderIdx})
		}
	}
	slices.SortFunc(ls, func(a, b loaded) int { return a.idx - b.idx })
	out := make([]oid.ID, len(ls))
	for i, l := range ls {
		out[i] = l.id
	}
	return out
}

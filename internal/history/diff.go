package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/thiagokokada/qgit-go/internal/git/files"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/parse"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

type DiffOptions struct {
	// DiffTo diffs against this revision instead of the parents.
	DiffTo string
	// Combined shows a merge as one combined diff.
	Combined bool
	// Path restricts the patch to one file.
	Path string
}

type DiffResult struct {
	// Text is the commit header followed by the patch.
	Text     string
	Sections []parse.Section
	Err      error
}

// collector buffers a whole process output for callers that want it in
// one piece.
type collector struct {
	buf  bytes.Buffer
	done func([]byte, error)
}

func (c *collector) Data(chunk []byte) { c.buf.Write(chunk) }

func (c *collector) Done(err error) { c.done(c.buf.Bytes(), err) }

// Diff starts the patch of id in the background; done runs on the loop
// with the result. The returned process may be canceled, done then gets
// runner.ErrCanceled.
func (c *Controller) Diff(ctx context.Context, id oid.ID, opts DiffOptions, done func(DiffResult)) (*runner.Process, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	rec, ok := c.Lookup(id)
	if !ok && !oid.IsWorkDir(id) {
		return nil, fmt.Errorf("diff %s: unknown revision", oid.Short(id))
	}
	header := ""
	if opts.DiffTo == "" {
		header = revs.FormatHeader(rec)
	}
	ctx, release := s.bind(ctx)
	proc, err := s.Runner.Start(ctx, diffCommand(id, rec, opts), &collector{done: func(out []byte, err error) {
		release()
		if err != nil {
			done(DiffResult{Err: err})
			return
		}
		done(diffResult(header, string(out)))
	}})
	if err != nil {
		release()
		return nil, err
	}
	return proc, nil
}

func diffCommand(id oid.ID, rec *revs.Record, opts DiffOptions) runner.Command {
	var args []string
	if oid.IsWorkDir(id) {
		base := "HEAD"
		if opts.DiffTo != "" {
			base = opts.DiffTo
		}
		args = []string{"diff-index", "--no-color", "-r", "-m", "--patch-with-stat", base}
	} else {
		args = []string{"diff-tree", "--no-color", "-r", "--patch-with-stat"}
		if opts.Combined {
			args = append(args, "-c")
		} else {
			args = append(args, "-C", "-m")
		}
		switch {
		case opts.DiffTo != "":
			args = append(args, opts.DiffTo)
		case rec != nil && rec.IsRoot():
			args = append(args, "--root")
		}
		args = append(args, id.String())
	}
	if opts.Path != "" {
		args = append(args, "--", opts.Path)
	}
	return runner.Git(args...)
}

func diffResult(header, patch string) DiffResult {
	if strings.TrimSpace(patch) == "" {
		return DiffResult{Text: header + "\nNo file level changes."}
	}
	if header != "" && !strings.HasSuffix(header, "\n") {
		header += "\n"
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(patch)
	if !strings.HasSuffix(patch, "\n") {
		b.WriteByte('\n')
	}
	return DiffResult{
		Text:     b.String(),
		Sections: parse.PatchSections(patch, strings.Count(header, "\n")),
	}
}

// FileSHA resolves the blob of path in id. For the working directory a
// locally changed file has no blob yet and yields oid.WorkDir; an
// untouched one resolves in HEAD.
func (c *Controller) FileSHA(ctx context.Context, path string, id oid.ID) (oid.ID, bool) {
	s := c.Session()
	if s == nil {
		return oid.ID{}, false
	}
	ctx, done := s.bind(ctx)
	defer done()
	rev := id.String()
	if oid.IsWorkDir(id) {
		cs, ok := s.Files.Cached(id)
		if !ok {
			cs, ok = s.Files.FilesFor(ctx, id, "", false)
		}
		if ok && cs.FindFileIndex(path) >= 0 {
			return oid.WorkDir, true
		}
		rev = "HEAD"
	}
	out, err := s.Runner.Run(ctx, runner.Git("ls-tree", "-r", rev, "--", path).Silent())
	if err != nil {
		return oid.ID{}, false
	}
	entries, err := parse.Tree(string(out))
	if err != nil || len(entries) == 0 {
		return oid.ID{}, false
	}
	return entries[0].ID, true
}

// FileContent fetches path as it is in id. A file the revision deleted is
// empty. The working directory copy is read from disk.
func (c *Controller) FileContent(ctx context.Context, id oid.ID, path string, done func([]byte, error)) (*runner.Process, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	blob, ok := c.FileSHA(ctx, path, id)
	switch {
	case ok && oid.IsWorkDir(blob):
		data, err := readWorkFile(s, path)
		c.poster.Post(func() { done(data, err) })
		return nil, nil
	case !ok:
		if cs, found := s.Files.Cached(id); found {
			if i := cs.FindFileIndex(path); i >= 0 && cs.Entries[i].Status.Has(files.Deleted) {
				c.poster.Post(func() { done(nil, nil) })
				return nil, nil
			}
		}
		return nil, fmt.Errorf("%s: not in %s", path, oid.Short(id))
	}
	ctx, release := s.bind(ctx)
	proc, err := s.Runner.Start(ctx, runner.Git("cat-file", "blob", blob.String()), &collector{done: func(out []byte, err error) {
		release()
		done(out, err)
	}})
	if err != nil {
		release()
		return nil, err
	}
	return proc, nil
}

func readWorkFile(s *Session, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Repo.WorkDir, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// blob reads path in id synchronously.
func (c *Controller) blob(ctx context.Context, s *Session, id oid.ID, path string) (string, error) {
	sha, ok := c.FileSHA(ctx, path, id)
	if !ok {
		// added or deleted on this side
		return "", nil
	}
	if oid.IsWorkDir(sha) {
		data, err := readWorkFile(s, path)
		return string(data), err
	}
	out, err := s.Runner.Run(ctx, runner.Git("cat-file", "blob", sha.String()))
	return string(out), err
}

// FileRevisionDiff is the unified diff of path between two revisions,
// either of which may be the working directory.
func (c *Controller) FileRevisionDiff(ctx context.Context, path string, from, to oid.ID) (string, error) {
	s, err := c.current()
	if err != nil {
		return "", err
	}
	ctx, done := s.bind(ctx)
	defer done()
	a, err := c.blob(ctx, s, from, path)
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, oid.Short(from), err)
	}
	b, err := c.blob(ctx, s, to, path)
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, oid.Short(to), err)
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "a/" + path,
		FromDate: revLabel(from),
		ToFile:   "b/" + path,
		ToDate:   revLabel(to),
		Context:  3,
	})
}

func revLabel(id oid.ID) string {
	if oid.IsWorkDir(id) {
		return "working directory"
	}
	return oid.Short(id)
}

// Tree lists the directory dir of id. For the working directory the HEAD
// tree is shown with untracked files added and deleted ones hidden.
func (c *Controller) Tree(ctx context.Context, id oid.ID, dir string) ([]parse.TreeEntry, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	ctx, done := s.bind(ctx)
	defer done()
	workDir := oid.IsWorkDir(id)
	rev := id.String()
	if workDir {
		rev = "HEAD"
	}
	dir = strings.Trim(dir, "/")
	treeish := rev
	if dir != "" {
		treeish = rev + ":" + dir
	}
	out, err := s.Runner.Run(ctx, runner.Git("ls-tree", treeish))
	if err != nil {
		return nil, fmt.Errorf("list tree %s: %w", treeish, err)
	}
	if !workDir {
		return parse.Tree(string(out))
	}
	cs, ok := s.Files.FilesFor(ctx, id, "", false)
	if !ok {
		return parse.Tree(string(out))
	}
	return workDirTree(string(out), dir, cs)
}

func workDirTree(lsTree, dir string, cs *files.ChangeSet) ([]parse.TreeEntry, error) {
	var b strings.Builder
	b.WriteString(lsTree)
	hidden := map[string]bool{}
	for i, e := range cs.Entries {
		name := cs.FileName(i)
		d, base := parse.SplitPath(name)
		if strings.TrimSuffix(d, "/") != dir {
			continue
		}
		switch {
		case e.Status.Has(files.Deleted):
			hidden[base] = true
		case e.Status.Has(files.Unknown):
			fmt.Fprintf(&b, "100644 blob %s\t%s\n", oid.WorkDir, base)
		}
	}
	entries, err := parse.Tree(b.String())
	if err != nil {
		return nil, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !hidden[path.Base(e.Name)] {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/thiagokokada/qgit-go/internal/git/files"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/parse"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/repo"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

// Repository operations run synchronously. Those that only move
// references refresh the reference index; those that rewrite history
// reload it.

// refName trims a user supplied ref name. git would parse one starting
// with a dash as an option.
func refName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%s not specified", kind)
	}
	if strings.HasPrefix(name, "-") {
		return "", fmt.Errorf("invalid %s %q", kind, name)
	}
	return name, nil
}

func (c *Controller) run(ctx context.Context, s *Session, cmd runner.Command) ([]byte, error) {
	ctx, done := s.bind(ctx)
	defer done()
	return s.Runner.Run(ctx, cmd)
}

// refreshRefs rebuilds the reference index and points both histories at
// the new marks.
func (c *Controller) refreshRefs(ctx context.Context, s *Session) error {
	ctx, done := s.bind(ctx)
	defer done()
	if err := s.Refs.Rebuild(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range s.domains {
		d.store.SetMarks(s.Refs)
	}
	return nil
}

func (c *Controller) MakeBranch(ctx context.Context, id oid.ID, name string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if name, err = refName("branch name", name); err != nil {
		return err
	}
	if _, err := c.run(ctx, s, runner.Git("branch", name, id.String())); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return c.refreshRefs(ctx, s)
}

// SwitchBranch checks out branch and reloads the history.
func (c *Controller) SwitchBranch(ctx context.Context, branch string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if branch, err = refName("branch", branch); err != nil {
		return err
	}
	if _, err := c.run(ctx, s, runner.Git("switch", branch)); err != nil {
		return fmt.Errorf("switch to %s: %w", branch, err)
	}
	return c.Reload()
}

// MakeTag tags id. A non-empty message makes an annotated tag; it reaches
// git through a temporary file.
func (c *Controller) MakeTag(ctx context.Context, id oid.ID, name, message string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if name, err = refName("tag name", name); err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		_, err = c.run(ctx, s, runner.Git("tag", name, id.String()))
	} else {
		err = runner.WithTempFile(s.Repo.Scratch, "qgit_tag_msg", []byte(message), func(path string) error {
			_, err := c.run(ctx, s, runner.Git("tag", "-F", path, name, id.String()))
			return err
		})
	}
	if err != nil {
		return fmt.Errorf("create tag %s: %w", name, err)
	}
	return c.refreshRefs(ctx, s)
}

// DeleteTag removes the first tag of id.
func (c *Controller) DeleteTag(ctx context.Context, id oid.ID) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	tags := s.Refs.Names(id, refs.Tag)
	if len(tags) == 0 {
		return fmt.Errorf("delete tag: no tag on %s", oid.Short(id))
	}
	if _, err := c.run(ctx, s, runner.Git("tag", "-d", tags[0])); err != nil {
		return fmt.Errorf("delete tag %s: %w", tags[0], err)
	}
	return c.refreshRefs(ctx, s)
}

// ResetCommits drops the last depth commits of the current branch,
// keeping their changes in the index.
func (c *Controller) ResetCommits(ctx context.Context, depth int) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if depth <= 0 {
		return fmt.Errorf("reset: invalid depth %d", depth)
	}
	if _, err := c.run(ctx, s, runner.Git("reset", "--soft", "HEAD~"+strconv.Itoa(depth))); err != nil {
		return fmt.Errorf("reset %d commits: %w", depth, err)
	}
	return c.Reload()
}

type CommitOptions struct {
	// Files are the working directory paths to record; the others stay
	// as they are in the index.
	Files   []string
	Message string
	Amend   bool
}

// Commit records the selected files of the working directory. Files not
// selected are taken out of the index for the commit and put back
// afterwards.
func (c *Controller) Commit(ctx context.Context, opts CommitOptions) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if strings.TrimSpace(opts.Message) == "" {
		return errors.New("commit message is empty")
	}
	if len(opts.Files) == 0 && !opts.Amend {
		return errors.New("no files selected")
	}
	cs, ok := s.Files.FilesFor(ctx, oid.WorkDir, "", false)
	if !ok {
		return errors.New("cannot list working directory changes")
	}
	var notSelected []string
	for _, f := range cs.Files(files.InIndex) {
		if !slices.Contains(opts.Files, f) {
			notSelected = append(notSelected, f)
		}
	}
	deleted := cs.Files(files.Deleted)

	if len(notSelected) > 0 {
		if _, err := c.run(ctx, s, runner.Git(append([]string{"reset", "-q", "--"}, notSelected...)...)); err != nil {
			return fmt.Errorf("unstage: %w", err)
		}
	}
	commitErr := c.updateIndex(ctx, s, opts.Files, deleted)
	if commitErr == nil {
		commitErr = runner.WithTempFile(s.Repo.Scratch, "qgit_commit_msg", []byte(opts.Message), func(path string) error {
			args := []string{"commit", "-F", path}
			if opts.Amend {
				args = append(args, "--amend")
			}
			_, err := c.run(ctx, s, runner.Git(args...))
			return err
		})
	}
	if len(notSelected) > 0 {
		if err := c.updateIndex(ctx, s, notSelected, deleted); err != nil {
			commitErr = errors.Join(commitErr, fmt.Errorf("restore index: %w", err))
		}
	}
	if commitErr != nil {
		return fmt.Errorf("commit: %w", commitErr)
	}
	return c.Reload()
}

func (c *Controller) updateIndex(ctx context.Context, s *Session, paths, deleted []string) error {
	var toRemove, toAdd []string
	for _, p := range paths {
		if slices.Contains(deleted, p) {
			toRemove = append(toRemove, p)
		} else {
			toAdd = append(toAdd, p)
		}
	}
	if len(toRemove) > 0 {
		args := append([]string{"rm", "--cached", "--ignore-unmatch", "--"}, toRemove...)
		if _, err := c.run(ctx, s, runner.Git(args...)); err != nil {
			return err
		}
	}
	if len(toAdd) > 0 {
		if _, err := c.run(ctx, s, runner.Git(append([]string{"add", "--"}, toAdd...)...)); err != nil {
			return err
		}
	}
	return nil
}

// FormatPatch writes one patch file per revision into dir. The
// revisions must form a contiguous range of the main history.
func (c *Controller) FormatPatch(ctx context.Context, ids []oid.ID, dir string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	ordered := sortByOrder(c.Store(MainHistory), ids)
	if len(ordered) == 0 {
		return errors.New("format patch: no revisions selected")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("format patch: %w", err)
	}
	newest, oldest := ordered[0], ordered[len(ordered)-1]
	rng := oldest.String() + "^.." + newest.String()
	if _, err := c.run(ctx, s, runner.Git("format-patch", "--no-color", "-o", dir, rng)); err != nil {
		return fmt.Errorf("format patch: %w", err)
	}
	return nil
}

// StgPush pushes the unapplied patch sitting on id.
func (c *Controller) StgPush(ctx context.Context, id oid.ID) error {
	return c.stg(ctx, id, refs.Unapplied, "push")
}

// StgPop pops the applied patch sitting on id.
func (c *Controller) StgPop(ctx context.Context, id oid.ID) error {
	return c.stg(ctx, id, refs.Applied, "pop")
}

func (c *Controller) stg(ctx context.Context, id oid.ID, state refs.Type, verb string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	names := s.Refs.Names(id, state)
	if len(names) != 1 {
		return fmt.Errorf("stg %s: no patch on %s", verb, oid.Short(id))
	}
	if _, err := c.run(ctx, s, runner.Command{Program: "stg", Args: []string{verb, names[0]}}); err != nil {
		return fmt.Errorf("stg %s %s: %w", verb, names[0], err)
	}
	return c.Reload()
}

// CommitEncoding is i18n.commitEncoding of the repository, empty when
// unset.
func (c *Controller) CommitEncoding() string {
	s := c.Session()
	if s == nil {
		return ""
	}
	return s.Repo.CommitEncoding()
}

// SetCommitEncoding writes i18n.commitEncoding; an empty value unsets it.
func (c *Controller) SetCommitEncoding(ctx context.Context, enc string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	enc = strings.TrimSpace(enc)
	if enc == "" {
		// exit status 5 means there was nothing to unset
		_, err := c.run(ctx, s, runner.Git("config", "--unset", "i18n.commitencoding").Silent())
		var exitErr *runner.ExitError
		if err != nil && !(errors.As(err, &exitErr) && exitErr.Code == 5) {
			return fmt.Errorf("unset commit encoding: %w", err)
		}
		return nil
	}
	if !parse.ValidEncoding(enc) {
		return fmt.Errorf("unknown encoding %q", enc)
	}
	if _, err := c.run(ctx, s, runner.Git("config", "i18n.commitencoding", enc)); err != nil {
		return fmt.Errorf("set commit encoding: %w", err)
	}
	return nil
}

// UserInfo is the identity commits get: the GIT_AUTHOR_* environment
// first, then the configuration files.
func (c *Controller) UserInfo() (repo.User, error) {
	name, email := os.Getenv("GIT_AUTHOR_NAME"), os.Getenv("GIT_AUTHOR_EMAIL")
	if name != "" || email != "" {
		return repo.User{Name: name, Email: email, Scope: "environment"}, nil
	}
	s, err := c.current()
	if err != nil {
		return repo.User{}, err
	}
	u, err := s.Repo.UserInfo()
	if err != nil {
		slog.Debug("user info", slog.Any("error", err))
	}
	return u, err
}

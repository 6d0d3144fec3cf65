// Package repo locates a repository on disk and reads the bits of its
// state that do not need the git binary.
package repo

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

var (
	ErrNotRepository = errors.New("not a git repository")
	ErrBare          = errors.New("bare repositories are not supported")
	// ErrNoHead is returned for a repository without commits.
	ErrNoHead = errors.New("repository has no commits yet")
)

// Repo is an opened work tree. Paths are absolute.
type Repo struct {
	WorkDir string
	GitDir  string
	// Scratch is the git directory as a filesystem, for the temporary
	// files handed to git commands.
	Scratch billy.Filesystem

	git *git.Repository
}

// Discover opens the repository containing path, walking up like git
// does.
func Discover(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open %s: %w", abs, ErrNotRepository)
		}
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		if errors.Is(err, git.ErrIsBareRepository) {
			return nil, fmt.Errorf("open %s: %w", abs, ErrBare)
		}
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	gitDir := filepath.Join(wt.Filesystem.Root(), git.GitDirName)
	if st, ok := r.Storer.(*filesystem.Storage); ok {
		gitDir = st.Filesystem().Root()
	}
	return &Repo{
		WorkDir: wt.Filesystem.Root(),
		GitDir:  gitDir,
		Scratch: osfs.New(gitDir),
		git:     r,
	}, nil
}

// Head returns the commit HEAD points at and the short branch name, empty
// when detached.
func (r *Repo) Head() (oid.ID, string, error) {
	ref, err := r.git.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return oid.ID{}, "", ErrNoHead
		}
		return oid.ID{}, "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if ref.Name().IsBranch() {
		return ref.Hash(), ref.Name().Short(), nil
	}
	return ref.Hash(), "", nil
}

// User is the identity commits will be recorded with.
type User struct {
	Name  string
	Email string
	// Scope tells which configuration file set it: local, global or
	// system.
	Scope string
}

// UserInfo reads user.name and user.email, most specific scope first.
func (r *Repo) UserInfo() (User, error) {
	for _, scope := range []struct {
		name  string
		scope config.Scope
	}{
		{"local", config.LocalScope},
		{"global", config.GlobalScope},
		{"system", config.SystemScope},
	} {
		cfg, err := r.config(scope.scope)
		if err != nil {
			continue
		}
		if cfg.User.Name != "" || cfg.User.Email != "" {
			return User{Name: cfg.User.Name, Email: cfg.User.Email, Scope: scope.name}, nil
		}
	}
	return User{}, nil
}

func (r *Repo) config(scope config.Scope) (*config.Config, error) {
	if scope == config.LocalScope {
		return r.git.Config()
	}
	return config.LoadConfig(scope)
}

// CommitEncoding is i18n.commitEncoding from the repository configuration,
// empty when unset.
func (r *Repo) CommitEncoding() string {
	cfg, err := r.git.Config()
	if err != nil || cfg.Raw == nil {
		return ""
	}
	return strings.TrimSpace(cfg.Raw.Section("i18n").Option("commitEncoding"))
}

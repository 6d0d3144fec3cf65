// Package history drives the loading of repository histories and serves
// the queries of a front-end on top of them. A Controller owns one Session
// per open repository; every mutation of its data happens on the loop the
// controller posts to.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/thiagokokada/qgit-go/internal/config"
	"github.com/thiagokokada/qgit-go/internal/git/files"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/repo"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

var (
	// ErrBusy rejects a request while an incompatible one is still
	// winding down. It is never published as a notification.
	ErrBusy = errors.New("previous operation still stopping")
	// ErrNoRepository is returned by operations before Open succeeded.
	ErrNoRepository = errors.New("no repository open")
)

// Session is everything bound to one open repository. It is replaced as a
// whole when the controller switches repositories.
type Session struct {
	ID     uuid.UUID
	Repo   *repo.Repo
	Runner *runner.Runner
	Names  *files.Names
	Refs   *refs.Index
	Files  *files.Cache

	ctx    context.Context
	cancel context.CancelFunc

	domains [domainCount]*domain
}

// domain is the state of one history. Guarded by Controller.mu.
type domain struct {
	kind  Domain
	store *revs.Store
	load  *loadSession
	// path is the file of FileHistory.
	path string
	// restart asks for a new load once the current one has stopped.
	restart     bool
	restartPath string
}

type Controller struct {
	cfg    config.Config
	poster runner.Poster

	mu           sync.Mutex
	session      *Session
	switching    bool
	listeners    []listener
	nextListener int
	watch        watchState
}

func New(cfg config.Config, poster runner.Poster) *Controller {
	return &Controller{cfg: cfg, poster: poster}
}

func (c *Controller) Config() config.Config {
	return c.cfg
}

// Session returns the current session, nil before Open.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) current() (*Session, error) {
	if s := c.Session(); s != nil {
		return s, nil
	}
	return nil, ErrNoRepository
}

// Open is SwitchRepository for the first repository.
func (c *Controller) Open(path string) error {
	return c.SwitchRepository(path)
}

// SwitchRepository opens the repository containing path and loads its
// main history. Every process of the previous session is stopped before
// the new one becomes current. On failure the previous session stays in
// place and RepositoryFailed is published.
func (c *Controller) SwitchRepository(path string) error {
	c.mu.Lock()
	if c.switching {
		c.mu.Unlock()
		return ErrBusy
	}
	c.switching = true
	old := c.session
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.switching = false
		c.mu.Unlock()
	}()

	s, err := c.newSession(path)
	if err != nil {
		slog.Error("open repository", slog.String("path", path), slog.Any("error", err))
		c.publish(RepositoryFailed{Path: path, Err: err})
		return err
	}
	watching := c.watching()
	if watching {
		c.DisableWatch()
	}
	if old != nil {
		c.close(old)
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	slog.Info("repository opened",
		slog.String("workdir", s.Repo.WorkDir),
		slog.String("session", s.ID.String()),
	)
	c.publish(RepositoryChanged{WorkDir: s.Repo.WorkDir})
	if watching || c.cfg.Watch {
		if err := c.EnableWatch(); err != nil {
			slog.Error("auto reload disabled", slog.Any("error", err))
		}
	}
	return c.Reload()
}

func (c *Controller) newSession(path string) (*Session, error) {
	r, err := repo.Discover(path)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     id,
		Repo:   r,
		Names:  files.NewNames(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.Runner = runner.New(runner.Options{
		Dir:      r.WorkDir,
		GitPath:  c.cfg.GitPath,
		Env:      c.cfg.Env,
		Reporter: runner.ReporterFunc(c.reportFailure),
		Poster:   c.poster,
	})
	s.Refs = refs.NewIndex(s.Runner)
	s.Files = files.NewCache(s.Names, s.Runner, nil)
	for kind := range domainCount {
		s.domains[kind] = &domain{kind: kind, store: revs.NewStore()}
	}
	s.Files.SetRevisions(s.domains[MainHistory].store)
	return s, nil
}

func (c *Controller) reportFailure(fl runner.Failure) {
	slog.Warn("git command failed",
		slog.String("cmd", fl.Command),
		slog.String("stderr", fl.Stderr),
	)
	c.publish(CommandFailed{Command: fl.Command, Stderr: fl.Stderr, Err: fl.Err})
}

// close stops every load of s and kills whatever else still runs in its
// directory.
func (c *Controller) close(s *Session) {
	c.mu.Lock()
	var loads []*loadSession
	for _, d := range s.domains {
		d.restart = false
		if d.load != nil {
			loads = append(loads, d.load)
		}
	}
	c.mu.Unlock()
	for _, l := range loads {
		l.cancel()
	}
	s.cancel()
	for _, l := range loads {
		l.wait()
	}
}

// Close stops the current session and the watcher.
func (c *Controller) Close() {
	c.DisableWatch()
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s != nil {
		c.close(s)
	}
}

// Store returns the records of a domain. The store is replaced on every
// load, so callers should not keep it across notifications.
func (c *Controller) Store(kind Domain) *revs.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || kind < 0 || kind >= domainCount {
		return nil
	}
	return c.session.domains[kind].store
}

// Loading reports whether a load of kind is running or stopping.
func (c *Controller) Loading(kind Domain) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.domains[kind].load != nil
}

// FileHistoryPath is the path of the last file history request.
func (c *Controller) FileHistoryPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.domains[FileHistory].path
}

// bind derives a context that also ends with the session.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

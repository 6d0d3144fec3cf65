package history

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/parse"
	"github.com/thiagokokada/qgit-go/internal/git/refs"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

// loadSession streams one git log into a store. It is the runner.Sink of
// the log process, so Data and Done run on the loop.
type loadSession struct {
	c       *Controller
	s       *Session
	d       *domain
	id      uuid.UUID
	store   *revs.Store
	parser  *parse.LogParser
	started time.Time

	// canceled is the session token, checked at every chunk and at the
	// completion callback.
	canceled atomic.Bool
	// proc is set under Controller.mu once the process started.
	proc *runner.Process

	count    int
	notified int
	failed   error
}

// Reload starts a new load of the main history: references are rebuilt,
// the store is replaced and the working directory revision goes first
// when there are local changes. A load already running is canceled and
// restarted once it has stopped.
func (c *Controller) Reload() error {
	return c.startLoad(MainHistory, "")
}

// LoadFileHistory loads the commits touching path in the file history
// domain, searching every branch.
func (c *Controller) LoadFileHistory(path string) error {
	if path == "" {
		return errors.New("file history: empty path")
	}
	return c.startLoad(FileHistory, path)
}

// Cancel stops the loads of every domain. Canceling a finished or
// already canceled load does nothing.
func (c *Controller) Cancel() {
	c.mu.Lock()
	var loads []*loadSession
	if c.session != nil {
		for _, d := range c.session.domains {
			d.restart = false
			if d.load != nil {
				loads = append(loads, d.load)
			}
		}
	}
	c.mu.Unlock()
	for _, l := range loads {
		l.cancel()
	}
}

func (c *Controller) startLoad(kind Domain, path string) error {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return ErrNoRepository
	}
	d := s.domains[kind]
	if l := d.load; l != nil {
		if l.canceled.Load() {
			c.mu.Unlock()
			return ErrBusy
		}
		d.restart = true
		d.restartPath = path
		c.mu.Unlock()
		slog.Debug("load running, restarting it", slog.String("domain", kind.String()))
		l.cancel()
		return nil
	}
	c.mu.Unlock()
	return c.begin(s, d, path)
}

func (c *Controller) begin(s *Session, d *domain, path string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("load session id: %w", err)
	}
	parser, err := parse.NewLogParser(parse.LogOptions{Encoding: s.Repo.CommitEncoding()})
	if err != nil {
		return fmt.Errorf("load %s history: %w", d.kind, err)
	}
	store := revs.NewStore()
	args := parse.LogArgs()

	switch d.kind {
	case MainHistory:
		if err := s.Refs.Rebuild(s.ctx); err != nil {
			c.publish(LoadFailed{Domain: d.kind, Session: id, Reason: err})
			return err
		}
		store.SetMarks(s.Refs)
		if err := c.insertWorkDir(s, store); err != nil {
			slog.Warn("working directory revision", slog.Any("error", err))
		}
		args = append(args, c.cfg.RevisionArgs()...)
	case FileHistory:
		store.SetMarks(s.Refs)
		args = append(args, fileHistoryRevisions(s.Refs)...)
		args = append(args, "--", path)
	}

	l := &loadSession{
		c:       c,
		s:       s,
		d:       d,
		id:      id,
		store:   store,
		parser:  parser,
		started: time.Now(),
		count:   store.Len(),
	}
	c.mu.Lock()
	d.store = store
	d.load = l
	if d.kind == FileHistory {
		d.path = path
	}
	c.mu.Unlock()
	if d.kind == MainHistory {
		s.Files.SetRevisions(store)
		if _, dirty := store.Lookup(oid.WorkDir); dirty {
			// file queries on the working directory read this slot
			if _, ok := s.Files.FilesFor(s.ctx, oid.WorkDir, "", false); !ok {
				slog.Warn("working directory files not listed")
			}
		}
	}

	slog.Info("load started",
		slog.String("domain", d.kind.String()),
		slog.String("session", id.String()),
	)
	c.publish(LoadStarted{Domain: d.kind, Session: id})
	if l.count > 0 {
		c.publish(RecordsAdded{Domain: d.kind, Session: id, From: 0, To: l.count})
	}

	proc, err := s.Runner.Start(s.ctx, runner.Git(args...), l)
	if err != nil {
		c.mu.Lock()
		if d.load == l {
			d.load = nil
		}
		c.mu.Unlock()
		c.publish(LoadFailed{Domain: d.kind, Session: id, Reason: err})
		return fmt.Errorf("load %s history: %w", d.kind, err)
	}
	c.mu.Lock()
	l.proc = proc
	c.mu.Unlock()
	if l.canceled.Load() {
		proc.Cancel()
	}
	return nil
}

// fileHistoryRevisions starts from every branch so the file is found
// wherever it changed.
func fileHistoryRevisions(ix *refs.Index) []string {
	ids := ix.IDs(refs.Branch | refs.RemoteBranch)
	if len(ids) == 0 {
		return []string{"HEAD"}
	}
	revisions := make([]string, len(ids))
	for i, id := range ids {
		revisions[i] = id.String()
	}
	return revisions
}

// insertWorkDir puts the working directory revision at order index zero
// when something could be committed.
func (c *Controller) insertWorkDir(s *Session, store *revs.Store) error {
	out, err := s.Runner.Run(s.ctx, runner.Git("--no-optional-locks", "status", "--porcelain=v2", "--untracked-files=no").Silent())
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	changes, err := parse.Status(bytes.NewReader(out))
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if !changes.Dirty() {
		return nil
	}
	head, _, err := s.Repo.Head()
	if err != nil {
		return err
	}
	rec := &revs.Record{
		ID:       oid.WorkDir,
		Parents:  []oid.ID{head},
		WorkDir:  true,
		Author:   "-",
		ShortLog: "Working directory changes",
	}
	if user, err := s.Repo.UserInfo(); err == nil && user.Name != "" {
		rec.Author, rec.AuthorEmail = user.Name, user.Email
	}
	rec.AuthorDate = time.Now()
	return store.Insert(rec)
}

func (l *loadSession) Data(chunk []byte) {
	if l.canceled.Load() || l.failed != nil {
		return
	}
	recs, err := l.parser.Feed(chunk)
	l.insert(recs)
	if err != nil {
		// the stream is not a log we can read, nothing after it will be
		l.failed = err
		l.cancel()
	}
}

func (l *loadSession) Done(err error) {
	restart, path := l.c.finish(l)
	kind := l.d.kind
	switch {
	case l.failed != nil:
		l.parser.Reset()
		slog.Error("load failed", slog.String("domain", kind.String()), slog.Any("error", l.failed))
		l.c.publish(LoadFailed{Domain: kind, Session: l.id, Reason: l.failed})
	case l.canceled.Load() || errors.Is(err, runner.ErrCanceled):
		l.parser.Reset()
		slog.Info("load canceled", slog.String("domain", kind.String()), slog.Int("count", l.count))
		l.c.publish(LoadCancelled{Domain: kind, Session: l.id, Count: l.count})
	case err != nil:
		l.parser.Reset()
		slog.Error("load failed", slog.String("domain", kind.String()), slog.Any("error", err))
		l.c.publish(LoadFailed{Domain: kind, Session: l.id, Reason: err})
	default:
		recs, ferr := l.parser.Flush()
		l.insert(recs)
		if ferr != nil {
			l.c.publish(LoadFailed{Domain: kind, Session: l.id, Reason: ferr})
			break
		}
		if kind == MainHistory {
			l.loadUnapplied()
		}
		elapsed := time.Since(l.started)
		slog.Info("load finished",
			slog.String("domain", kind.String()),
			slog.Int("count", l.count),
			slog.Int("skipped", l.parser.Skipped()),
			slog.Duration("elapsed", elapsed),
		)
		l.c.publish(LoadFinished{Domain: kind, Session: l.id, Count: l.count, Elapsed: elapsed})
	}
	if restart {
		if err := l.c.startLoad(kind, path); err != nil {
			slog.Error("restart load", slog.String("domain", kind.String()), slog.Any("error", err))
		}
	}
}

// finish detaches l from its domain and tells whether a restart was asked
// for meanwhile. Loads of a session that is no longer current never
// restart.
func (c *Controller) finish(l *loadSession) (restart bool, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l.d.load == l {
		l.d.load = nil
	}
	restart, path = l.d.restart, l.d.restartPath
	l.d.restart, l.d.restartPath = false, ""
	if c.session != l.s {
		return false, ""
	}
	return restart, path
}

func (l *loadSession) insert(recs []*revs.Record) {
	if len(recs) == 0 {
		return
	}
	from := l.store.Len()
	for _, r := range recs {
		if l.s.Refs.Check(r.ID, refs.Applied) != 0 {
			r.Applied = true
		}
		if err := l.store.Insert(r); err != nil {
			slog.Warn("skipping revision", slog.Any("error", err))
			continue
		}
		l.count++
	}
	to := l.store.Len()
	if to == from {
		return
	}
	l.c.publish(RecordsAdded{Domain: l.d.kind, Session: l.id, From: from, To: to})
	if every := l.c.cfg.NotifyEvery; every > 0 && l.count/every != l.notified/every {
		l.notified = l.count
		l.c.publish(LoadProgressed{Domain: l.d.kind, Session: l.id, Count: l.count})
	}
}

// loadUnapplied appends the unapplied StGit patches, which no branch
// reaches, below the history.
func (l *loadSession) loadUnapplied() {
	ids := l.s.Refs.IDs(refs.Unapplied)
	if len(ids) == 0 {
		return
	}
	args := append(parse.LogArgs(), "--no-walk")
	for _, id := range ids {
		args = append(args, id.String())
	}
	out, err := l.s.Runner.Run(l.s.ctx, runner.Git(args...))
	if err != nil {
		return
	}
	parser, err := parse.NewLogParser(parse.LogOptions{Encoding: l.s.Repo.CommitEncoding()})
	if err != nil {
		return
	}
	recs, err := parser.Feed(out)
	if err == nil {
		var rest []*revs.Record
		rest, err = parser.Flush()
		recs = append(recs, rest...)
	}
	if err != nil {
		slog.Warn("unapplied patches", slog.Any("error", err))
		return
	}
	for _, r := range recs {
		r.Unapplied = true
		r.Boundary = false
	}
	l.insert(recs)
}

// cancel flips the token and stops the process. Only the first call does
// anything.
func (l *loadSession) cancel() {
	if !l.canceled.CompareAndSwap(false, true) {
		return
	}
	l.c.mu.Lock()
	proc := l.proc
	l.c.mu.Unlock()
	// a nil proc means Start has not returned yet, begin checks the token
	proc.Cancel()
}

// wait blocks until the process exited.
func (l *loadSession) wait() {
	l.c.mu.Lock()
	proc := l.proc
	l.c.mu.Unlock()
	proc.Wait()
}

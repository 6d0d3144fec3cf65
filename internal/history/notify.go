package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Domain names one independently loaded history.
type Domain int

const (
	// MainHistory is the history of the configured revisions.
	MainHistory Domain = iota
	// FileHistory is the history of a single path.
	FileHistory

	domainCount
)

func (d Domain) String() string {
	switch d {
	case MainHistory:
		return "main"
	case FileHistory:
		return "file"
	}
	return "unknown"
}

// Notification is the closed set of events a Controller publishes. A type
// switch over the concrete types below is exhaustive.
type Notification interface {
	notification()
}

type LoadStarted struct {
	Domain  Domain
	Session uuid.UUID
}

// RecordsAdded reports the order indices [From, To) that became available.
type RecordsAdded struct {
	Domain  Domain
	Session uuid.UUID
	From    int
	To      int
}

type LoadProgressed struct {
	Domain  Domain
	Session uuid.UUID
	Count   int
}

type LoadFinished struct {
	Domain  Domain
	Session uuid.UUID
	Count   int
	Elapsed time.Duration
}

// LoadCancelled ends a session stopped early. Records inserted before the
// cancellation stay in the store.
type LoadCancelled struct {
	Domain  Domain
	Session uuid.UUID
	Count   int
}

type LoadFailed struct {
	Domain  Domain
	Session uuid.UUID
	Reason  error
}

// CommandFailed is a git invocation that failed and was not a probe.
type CommandFailed struct {
	Command string
	Stderr  string
	Err     error
}

type RepositoryChanged struct {
	WorkDir string
}

// RepositoryFailed reports a switch that did not happen; the previous
// repository, if any, is still open.
type RepositoryFailed struct {
	Path string
	Err  error
}

func (LoadStarted) notification()       {}
func (RecordsAdded) notification()      {}
func (LoadProgressed) notification()    {}
func (LoadFinished) notification()      {}
func (LoadCancelled) notification()     {}
func (LoadFailed) notification()        {}
func (CommandFailed) notification()     {}
func (RepositoryChanged) notification() {}
func (RepositoryFailed) notification()  {}

// Subscribe registers fn for every notification published from now on.
// Listeners run on the loop thread, in registration order. The returned
// function unregisters fn.
func (c *Controller) Subscribe(fn func(Notification)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

type listener struct {
	id int
	fn func(Notification)
}

// publish queues n on the loop. Listeners are read at delivery time so a
// listener removed meanwhile is not called.
func (c *Controller) publish(n Notification) {
	ok := c.poster.Post(func() {
		c.mu.Lock()
		ls := append([]listener(nil), c.listeners...)
		c.mu.Unlock()
		for _, l := range ls {
			l.fn(n)
		}
	})
	if !ok {
		slog.Debug("notification dropped, queue closed", slog.String("type", fmt.Sprintf("%T", n)))
	}
}

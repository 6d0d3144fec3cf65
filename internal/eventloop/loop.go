// Package eventloop provides the single logical thread that owns all
// mutation of the revision data. Background goroutines hand work to it with
// Post; the loop runs the functions one at a time in the order posted.
package eventloop

import (
	"context"
	"sync"
)

type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	closed  bool
}

func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post queues fn. The queue is unbounded so posting from the loop itself
// never blocks. It returns false after Stop.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run processes posted functions until ctx is done or Stop is called.
// Functions still queued at Stop are dropped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.stopped:
			return nil
		case <-l.wake:
		}
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Stop makes Run return. Safe to call more than once and from any goroutine.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.queue = nil
	close(l.stopped)
}

// Do posts fn and waits for it to run. It must not be called from the loop.
func (l *Loop) Do(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.stopped:
		return false
	}
}

// Immediate is a Poster that runs everything synchronously on the caller.
// Useful when a component is driven without a loop.
type Immediate struct{}

func (Immediate) Post(fn func()) bool {
	fn()
	return true
}

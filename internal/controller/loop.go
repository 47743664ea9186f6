package controller

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopClosed is returned when posting to a stopped loop.
var ErrLoopClosed = errors.New("controller: loop closed")

// Loop runs tasks one at a time on a single goroutine. Every call into a
// Controller and every widget event for it goes through its Loop, so the
// controller itself needs no locks.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewLoop returns a loop that is not yet running.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks, so tasks may post further tasks.
// Returns false if the loop has been closed.
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

// Do posts fn and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !l.Post(func() { result <- fn() }) {
		return ErrLoopClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The task may have run just before shutdown.
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	}
}

// Run processes tasks until ctx is done or Close is called. Tasks still
// queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.Close()
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return
			}
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return
		case <-l.done:
			return
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

// Close stops the loop. Safe to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.queue = nil
	close(l.done)
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

package widget

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Loader holds a runtime capability that loads asynchronously, once.
// It is never torn down: after completion it answers with the same
// runtime (or the same failure) for the rest of its life.
type Loader struct {
	once  sync.Once
	ready chan struct{}

	mu  sync.RWMutex
	rt  Runtime
	err error
}

// NewLoader returns a loader that has not started.
func NewLoader() *Loader {
	return &Loader{ready: make(chan struct{})}
}

// Loaded returns a loader already completed with rt.
func Loaded(rt Runtime) *Loader {
	l := NewLoader()
	l.Complete(rt, nil)
	return l
}

// Load starts fn in the background. Only the first call to Load or
// Complete has any effect. Failures are logged and never retried.
func (l *Loader) Load(ctx context.Context, fn func(context.Context) (Runtime, error)) {
	go func() {
		rt, err := fn(ctx)
		if err != nil {
			log.Printf("[Widget] Runtime failed to load: %v", err)
		}
		l.Complete(rt, err)
	}()
}

// Complete records the outcome of loading. Later calls are ignored.
func (l *Loader) Complete(rt Runtime, err error) {
	l.once.Do(func() {
		if err == nil && rt == nil {
			err = fmt.Errorf("widget: loader completed without a runtime")
		}
		l.mu.Lock()
		l.rt, l.err = rt, err
		if err != nil {
			l.rt = nil
		}
		l.mu.Unlock()
		close(l.ready)
	})
}

// Ready is closed once loading has finished, successfully or not.
func (l *Loader) Ready() <-chan struct{} {
	return l.ready
}

// Runtime returns the loaded runtime, or false while loading or after a failure.
func (l *Loader) Runtime() (Runtime, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rt, l.rt != nil
}

// Err returns the load failure, ErrNotLoaded while still loading, or nil.
func (l *Loader) Err() error {
	select {
	case <-l.ready:
	default:
		return ErrNotLoaded
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Wait blocks until loading finishes or ctx is done.
func (l *Loader) Wait(ctx context.Context) (Runtime, error) {
	select {
	case <-l.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if rt, ok := l.Runtime(); ok {
		return rt, nil
	}
	return nil, l.Err()
}

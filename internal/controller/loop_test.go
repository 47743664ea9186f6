package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop()
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, ctx
}

func TestLoopRunsInOrder(t *testing.T) {
	loop, ctx := startLoop(t)

	var got []int
	for i := range 50 {
		loop.Post(func() { got = append(got, i) })
	}
	require.NoError(t, loop.Do(ctx, func() error { return nil }))

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopTasksCanPost(t *testing.T) {
	loop, ctx := startLoop(t)

	done := make(chan struct{})
	loop.Post(func() {
		loop.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("context ended")
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestLoopDoReturnsError(t *testing.T) {
	loop, ctx := startLoop(t)
	boom := errors.New("boom")
	assert.ErrorIs(t, loop.Do(ctx, func() error { return boom }), boom)
}

func TestLoopConcurrentPosters(t *testing.T) {
	loop, ctx := startLoop(t)

	// counter is only touched on the loop goroutine.
	counter := 0
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				loop.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var n int
	require.NoError(t, loop.Do(ctx, func() error { n = counter; return nil }))
	assert.Equal(t, 800, n)
}

func TestLoopClosed(t *testing.T) {
	loop := NewLoop()
	loop.Close()
	loop.Close()

	assert.False(t, loop.Post(func() {}))
	assert.ErrorIs(t, loop.Do(context.Background(), func() error { return nil }), ErrLoopClosed)

	select {
	case <-loop.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop()
	go loop.Run(ctx)

	cancel()
	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, loop.Post(func() {}))
}

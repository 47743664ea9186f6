package widget_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/tinkersheet/internal/widget"
	"github.com/livetemplate/tinkersheet/internal/widget/widgettest"
)

func TestLoaderNotLoaded(t *testing.T) {
	l := widget.NewLoader()

	_, ok := l.Runtime()
	assert.False(t, ok)
	assert.ErrorIs(t, l.Err(), widget.ErrNotLoaded)

	select {
	case <-l.Ready():
		t.Fatal("ready closed before load")
	default:
	}
}

func TestLoaderLoadOnce(t *testing.T) {
	l := widget.NewLoader()
	first := widgettest.NewRuntime("1.0")

	l.Load(context.Background(), func(context.Context) (widget.Runtime, error) {
		return first, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rt, err := l.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, first, rt)

	// Later completions are ignored.
	l.Complete(widgettest.NewRuntime("2.0"), nil)
	rt, ok := l.Runtime()
	require.True(t, ok)
	assert.Equal(t, "1.0", rt.Version())
	assert.NoError(t, l.Err())
}

func TestLoaderFailureIsTerminal(t *testing.T) {
	l := widget.NewLoader()
	boom := errors.New("script blocked")
	l.Complete(nil, boom)

	_, ok := l.Runtime()
	assert.False(t, ok)
	assert.ErrorIs(t, l.Err(), boom)

	_, err := l.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLoaderNilRuntimeIsAnError(t *testing.T) {
	l := widget.NewLoader()
	l.Complete(nil, nil)
	assert.Error(t, l.Err())
}

func TestLoaderWaitHonoursContext(t *testing.T) {
	l := widget.NewLoader()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoaded(t *testing.T) {
	rt := widgettest.NewRuntime("1.0")
	l := widget.Loaded(rt)

	got, ok := l.Runtime()
	require.True(t, ok)
	assert.Same(t, rt, got)
}

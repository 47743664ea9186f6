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

func fastPolicy(attempts int) widget.RetryPolicy {
	return widget.RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestAwaitSucceedsAfterMisses(t *testing.T) {
	rt := widgettest.NewRuntime("1.0")
	inst, err := rt.Create(widget.CreateOptions{})
	require.NoError(t, err)

	probes := 0
	got, err := widget.Await(context.Background(), func(context.Context) (widget.Instance, bool, error) {
		probes++
		if probes < 3 {
			return nil, false, nil
		}
		return inst, true, nil
	}, fastPolicy(5))

	require.NoError(t, err)
	assert.Same(t, inst, got)
	assert.Equal(t, 3, probes)
}

func TestAwaitGivesUp(t *testing.T) {
	probes := 0
	_, err := widget.Await(context.Background(), func(context.Context) (widget.Instance, bool, error) {
		probes++
		return nil, false, nil
	}, fastPolicy(4))

	assert.ErrorIs(t, err, widget.ErrGaveUp)
	assert.Equal(t, 4, probes)
}

func TestAwaitStopsOnProbeError(t *testing.T) {
	boom := errors.New("connection closed")
	probes := 0
	_, err := widget.Await(context.Background(), func(context.Context) (widget.Instance, bool, error) {
		probes++
		return nil, false, boom
	}, fastPolicy(4))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, probes)
}

func TestAwaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := widget.Await(ctx, func(context.Context) (widget.Instance, bool, error) {
		t.Fatal("probe must not run after cancellation")
		return nil, false, nil
	}, fastPolicy(4))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotValid(t *testing.T) {
	assert.True(t, widget.Snapshot(`{"a":1}`).Valid())
	assert.False(t, widget.Snapshot(`{"a":`).Valid())
	assert.False(t, widget.Snapshot(nil).Valid())
}

package remote

import (
	"context"
	"fmt"

	"github.com/livetemplate/tinkersheet/internal/widget"
)

// Runtime is the widget runtime loaded in a tab.
type Runtime struct {
	c       *Client
	version string
}

func (r *Runtime) Version() string {
	return r.version
}

type createParams struct {
	Container string `json:"container"`
	widget.CreateOptions
}

type createResult struct {
	ID    string        `json:"id"`
	State InstanceState `json:"state"`
}

// Create asks the tab for a new instance, then waits for it to attach.
// The tab constructs widgets asynchronously, so the instance is probed
// with the client's readiness policy until it answers.
func (r *Runtime) Create(opts widget.CreateOptions) (widget.Instance, error) {
	if opts.Container == nil {
		return nil, fmt.Errorf("remote create: no container")
	}

	var res createResult
	params := createParams{Container: opts.Container.ID(), CreateOptions: opts}
	if err := r.c.call(MethodCreate, "", params, &res); err != nil {
		return nil, err
	}
	if res.ID == "" {
		return nil, fmt.Errorf("remote create: tab returned no instance id")
	}

	inst := newInstance(r.c, res.ID, res.State)
	r.c.register(inst)
	probe := func(ctx context.Context) (widget.Instance, bool, error) {
		var ready bool
		if err := r.c.conn.Call(ctx, MethodReady, res.ID, nil, &ready); err != nil {
			return nil, false, err
		}
		return inst, ready, nil
	}

	got, err := widget.Await(context.Background(), probe, r.c.opts.Ready)
	if err != nil {
		r.c.unregister(inst.id)
		return nil, fmt.Errorf("remote create %s: %w", res.ID, err)
	}
	return got, nil
}

package remote

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/livetemplate/tinkersheet/internal/widget"
)

// Instance is a widget living in the tab. Subscriptions are kept on this
// side; the tab streams every event and the instance fans them out.
type Instance struct {
	c  *Client
	id string

	mu       sync.Mutex
	state    InstanceState
	nextSub  widget.SubscriptionID
	handlers map[widget.SubscriptionID]widget.Handler
}

func newInstance(c *Client, id string, state InstanceState) *Instance {
	return &Instance{
		c:        c,
		id:       id,
		state:    state,
		handlers: make(map[widget.SubscriptionID]widget.Handler),
	}
}

// ID is the tab-assigned instance id.
func (i *Instance) ID() string { return i.id }

func (i *Instance) SerializeDocument() (widget.Snapshot, error) {
	var raw json.RawMessage
	if err := i.c.call(MethodSerialize, i.id, nil, &raw); err != nil {
		return nil, err
	}
	return widget.Snapshot(raw), nil
}

func (i *Instance) LoadDocument(s widget.Snapshot) error {
	return i.c.call(MethodLoad, i.id, json.RawMessage(s), nil)
}

// Subscribe registers h. The first subscription asks the tab to start
// streaming events and routes them to this instance again if it was
// released.
func (i *Instance) Subscribe(h widget.Handler) widget.SubscriptionID {
	i.mu.Lock()
	i.nextSub++
	id := i.nextSub
	i.handlers[id] = h
	first := len(i.handlers) == 1
	i.mu.Unlock()

	if first {
		i.c.register(i)
		i.notify(MethodSubscribe)
	}
	return id
}

// Cancel removes a handler. Once the last one goes the tab stops
// streaming and the client forgets the instance, which is how a rebuilt
// block's old instance is released.
func (i *Instance) Cancel(id widget.SubscriptionID) {
	i.mu.Lock()
	_, ok := i.handlers[id]
	delete(i.handlers, id)
	last := ok && len(i.handlers) == 0
	i.mu.Unlock()

	if last {
		i.c.unregister(i.id)
		i.notify(MethodCancel)
	}
}

func (i *Instance) ResetDocument() {
	i.fire(MethodReset)
}

func (i *Instance) LoadLocalFile() {
	i.fire(MethodImportFile)
}

func (i *Instance) UpdateTheme() {
	i.fire(MethodUpdateTheme)
}

func (i *Instance) Scale() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.Scale
}

func (i *Instance) FileVersion() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.FileVersion
}

func (i *Instance) fire(method string) {
	if err := i.c.call(method, i.id, nil, nil); err != nil {
		log.Printf("[Remote] %s on %s failed: %v", method, i.id, err)
	}
}

func (i *Instance) notify(method string) {
	if err := i.c.conn.Send(&Message{Type: TypeNotify, Method: method, Target: i.id}); err != nil && !errors.Is(err, ErrClosed) {
		log.Printf("[Remote] %s on %s failed: %v", method, i.id, err)
	}
}

// deliver records the piggybacked state immediately so the handler sees
// it, then hands the event to the session loop. Handlers are resolved on
// the loop, so a subscription cancelled in between receives nothing.
func (i *Instance) deliver(m *Message) {
	if m.State != nil {
		i.mu.Lock()
		i.state = *m.State
		i.mu.Unlock()
	}
	if m.Event == nil {
		return
	}
	ev := *m.Event

	i.c.opts.Post(func() {
		i.mu.Lock()
		hs := make([]widget.Handler, 0, len(i.handlers))
		for id := widget.SubscriptionID(1); id <= i.nextSub; id++ {
			if h, ok := i.handlers[id]; ok {
				hs = append(hs, h)
			}
		}
		i.mu.Unlock()

		for _, h := range hs {
			h(ev)
		}
	})
}

// Package controller implements the embedding lifecycle controller: it owns
// one widget instance bound to one mount point, rebuilds it when the block's
// options change, and keeps the persisted snapshot eventually consistent
// with the widget's document.
//
// A Controller is not safe for concurrent use. All calls, and all widget
// events delivered to it, must run on the Controller's Loop.
package controller

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/widget"
)

// State is the controller's lifecycle state.
type State int

const (
	Unmounted State = iota
	Mounting
	Mounted
	Rebuilding
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Mounted:
		return "mounted"
	case Rebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// AttributeWriter persists attribute patches. Writes are shallow merges.
type AttributeWriter interface {
	Write(ctx context.Context, p tinkersheet.Patch) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithSetInstance registers the callback that receives the live instance
// (or nil) whenever it changes.
func WithSetInstance(fn func(widget.Instance)) Option {
	return func(c *Controller) { c.setInstance = fn }
}

// WithErrorHandler receives errors the controller absorbs: failed creation,
// snapshot load failures, failed writes.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// WithIDGenerator overrides how block uids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithDebug enables verbose logging.
func WithDebug(debug bool) Option {
	return func(c *Controller) { c.debug = debug }
}

// lifecycle is the runtime projection of a block. It is discarded and
// rebuilt whenever the options change identity, and never persisted.
type lifecycle struct {
	host      widget.Element // mount point provided by the host
	container widget.Element // child the widget renders into
	sub       widget.SubscriptionID
	hasSub    bool
	dirty     bool
}

// Controller drives one embedded widget.
type Controller struct {
	loader *widget.Loader
	store  AttributeWriter
	loop   *Loop

	setInstance func(widget.Instance)
	onError     func(error)
	newID       func() string
	debug       bool

	ctx   context.Context
	state State
	props tinkersheet.Attributes
	lc    lifecycle

	// instance is kept out of lifecycle: it is not part of the
	// rebuildable projection and is never serialized.
	instance widget.Instance

	// gen increases on every mount and unmount so that late completions
	// can tell they are stale.
	gen uint64
}

// New creates an unmounted controller.
func New(loader *widget.Loader, store AttributeWriter, loop *Loop, opts ...Option) *Controller {
	c := &Controller{
		loader:      loader,
		store:       store,
		loop:        loop,
		setInstance: func(widget.Instance) {},
		onError:     func(error) {},
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		ctx:         context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Instance returns the live widget instance, or nil when there is none.
func (c *Controller) Instance() widget.Instance {
	return c.instance
}

// Dirty reports whether the widget has changes not yet serialized into
// the snapshot attribute.
func (c *Controller) Dirty() bool {
	return c.lc.dirty
}

// Attributes returns the controller's current view of the block's attributes.
func (c *Controller) Attributes() tinkersheet.Attributes {
	return c.props.Clone()
}

// Container returns the element the widget renders into, or nil.
func (c *Controller) Container() widget.Element {
	return c.lc.container
}

func (c *Controller) logf(format string, args ...any) {
	if c.debug {
		log.Printf("[Ctl] "+format, args...)
	}
}

// write persists p. Errors are absorbed and reported; the host's store
// notifies Update with the merged record.
func (c *Controller) write(p tinkersheet.Patch) error {
	if p.IsEmpty() {
		return nil
	}
	c.logf("block %s: write %v", c.props.UID, p.Keys())
	if err := c.store.Write(c.ctx, p); err != nil {
		log.Printf("[Ctl] block %s: attribute write failed: %v", c.props.UID, err)
		c.onError(err)
		return err
	}
	return nil
}

func (c *Controller) publishInstance() {
	c.setInstance(c.instance)
}

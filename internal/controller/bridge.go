package controller

import (
	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/widget"
)

// handler returns the event handler for one instance. Events from an
// instance that has since been replaced or unsubscribed are dropped.
func (c *Controller) handler(inst widget.Instance) widget.Handler {
	return func(ev widget.Event) {
		if c.instance != inst || !c.lc.hasSub {
			c.logf("block %s: dropping %s event from superseded instance", c.props.UID, ev.Type)
			return
		}
		c.dispatch(inst, ev)
	}
}

func (c *Controller) dispatch(inst widget.Instance, ev widget.Event) {
	switch ev.Type {
	case widget.EventResize:
		c.onResize()

	case widget.EventSelection:
		// Selection is view state, not document state.

	case widget.EventLoad, widget.EventReset:
		// These can fire while focus is outside the block (e.g. a reset
		// from the settings panel), so no blur will follow: save now.
		c.bumpFileVersion(inst)
		c.Flush(true)

	case widget.EventViewChange:
		c.mergeScale(inst)
		c.markChanged(inst)

	default:
		c.markChanged(inst)
	}
}

// onResize records the container's rendered size. A constrained block keeps
// its column width: only height is written, and the container is forced
// back to fill its parent so the write cannot trigger another resize.
func (c *Controller) onResize() {
	container := c.lc.container
	if container == nil {
		return
	}
	rect := container.Bounds()

	if c.props.WidthConstrained() {
		container.SetStyle("width", "100%")
		c.write(tinkersheet.Patch{Height: &rect.Height})
		return
	}
	c.write(tinkersheet.Patch{Width: &rect.Width, Height: &rect.Height})
}

// mergeScale copies the instance's current scale into the options record.
func (c *Controller) mergeScale(inst widget.Instance) {
	scale := inst.Scale()
	if scale <= 0 {
		scale = 1
	}
	opts := c.props.Options.With(tinkersheet.OptScale, scale)
	if err := c.write(tinkersheet.Patch{Options: opts}); err != nil {
		return
	}
	c.props.Options = opts
}

// markChanged is the generic effect of a document mutation: bump the file
// version now and defer the full serialization to the next flush.
func (c *Controller) markChanged(inst widget.Instance) {
	c.bumpFileVersion(inst)
	c.lc.dirty = true
}

// bumpFileVersion writes a file version strictly greater than the persisted
// one. The instance's own counter wins when it is ahead; a rebuilt instance
// starts counting again, so it cannot be trusted alone.
func (c *Controller) bumpFileVersion(inst widget.Instance) {
	next := max(inst.FileVersion(), c.props.FileVersion+1)
	if err := c.write(tinkersheet.Patch{FileVersion: &next}); err != nil {
		return
	}
	if c.props.FileVersion < next {
		c.props.FileVersion = next
	}
}

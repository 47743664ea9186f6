package controller

import (
	"log"

	"github.com/livetemplate/tinkersheet"
)

// Flush serializes the widget document into the snapshot attribute when
// there are unsaved changes, or always when force is set. With no instance
// it does nothing.
func (c *Controller) Flush(force bool) {
	if !c.lc.dirty && !force {
		return
	}
	if c.instance == nil {
		return
	}

	snap, err := c.instance.SerializeDocument()
	if err != nil {
		log.Printf("[Ctl] block %s: serialize failed: %v", c.props.UID, err)
		c.onError(err)
		return
	}

	data := snap.String()
	if err := c.write(tinkersheet.Patch{JSON: &data}); err != nil {
		return
	}
	c.props.JSON = data
	c.lc.dirty = false
}

// Blur is called when focus leaves the mount point.
func (c *Controller) Blur() {
	c.Flush(false)
}

// ForceSave flushes unconditionally, e.g. before an import or reset.
func (c *Controller) ForceSave() {
	c.Flush(true)
}

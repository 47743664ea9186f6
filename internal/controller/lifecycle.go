package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/widget"
)

var (
	// ErrAlreadyMounted is returned when Mount is called twice.
	ErrAlreadyMounted = errors.New("controller: already mounted")

	// ErrNotMounted is returned by Rebuild before Mount.
	ErrNotMounted = errors.New("controller: not mounted")
)

// Mount attaches the controller to host and starts creating the widget.
// If the runtime is still loading, creation is deferred until it is ready;
// a completion that arrives after Unmount is dropped.
func (c *Controller) Mount(ctx context.Context, host widget.Element, attrs tinkersheet.Attributes) error {
	if c.state != Unmounted {
		return ErrAlreadyMounted
	}

	c.ctx = ctx
	c.props = attrs.Clone()
	c.gen++
	gen := c.gen
	c.lc = lifecycle{host: host}
	c.state = Mounting

	if c.props.UID == "" {
		uid := c.newID()
		c.write(tinkersheet.Patch{UID: &uid})
		c.props.UID = uid
	}
	c.applyHeight()

	if _, ok := c.loader.Runtime(); ok {
		c.finishMount(gen)
		return nil
	}
	if err := c.loader.Err(); err != nil && !errors.Is(err, widget.ErrNotLoaded) {
		c.finishMount(gen)
		return nil
	}

	c.logf("block %s: waiting for widget runtime", c.props.UID)
	go func() {
		select {
		case <-c.loader.Ready():
		case <-ctx.Done():
			return
		}
		c.loop.Post(func() { c.finishMount(gen) })
	}()
	return nil
}

// finishMount runs once the runtime has loaded (or failed to).
func (c *Controller) finishMount(gen uint64) {
	if gen != c.gen || c.state != Mounting {
		c.logf("block %s: dropping stale mount completion", c.props.UID)
		return
	}

	rt, ok := c.loader.Runtime()
	if !ok {
		// No instance will ever exist for this mount; capability calls
		// stay no-ops until the host remounts.
		err := fmt.Errorf("block %q: %w", c.props.UID, c.loader.Err())
		log.Printf("[Ctl] %v", err)
		c.onError(err)
		return
	}

	if c.props.LibraryVersion == "" {
		version := rt.Version()
		c.write(tinkersheet.Patch{LibraryVersion: &version})
		c.props.LibraryVersion = version
	}

	c.build(rt, c.props.JSON)
}

// Update receives the host's current attributes. An options identity change
// rebuilds the widget; theme, width and height changes are applied in place.
func (c *Controller) Update(next tinkersheet.Attributes) {
	prev := c.props
	c.props = next.Clone()

	if c.state == Unmounted || c.state == Rebuilding {
		return
	}

	if !next.Options.Equal(prev.Options) {
		if c.state == Mounting {
			// A creation still waiting on the runtime reads c.props when it
			// runs. If loading or creation already failed, nothing will
			// read them: option changes are ignored until a remount.
			return
		}
		if c.reportedScaleOnly(prev.Options, next.Options) {
			c.logf("block %s: scale %v recorded without rebuild", c.props.UID, next.Options[tinkersheet.OptScale])
			return
		}
		c.logf("block %s: options changed, rebuilding", c.props.UID)
		c.cancelSubscription()
		if err := c.Rebuild(); err != nil {
			log.Printf("[Ctl] block %s: rebuild failed: %v", c.props.UID, err)
			c.onError(err)
		}
		return
	}

	if prev.Height != next.Height {
		c.applyHeight()
	}
	if c.lc.container == nil {
		return
	}
	if prev.Theme != next.Theme {
		c.applyTheme(prev.Theme, next.Theme)
	}
	if prev.WidthConstrained() != next.WidthConstrained() {
		c.applyWidth()
	}
}

// reportedScaleOnly reports whether the only option difference is a scale
// that already matches the live instance, i.e. the change the instance
// itself reported through a view-change event.
func (c *Controller) reportedScaleOnly(prev, next tinkersheet.Options) bool {
	if c.instance == nil {
		return false
	}
	if !prev.With(tinkersheet.OptScale, nil).Equal(next.With(tinkersheet.OptScale, nil)) {
		return false
	}
	return next.Number(tinkersheet.OptScale, -1) == c.liveScale()
}

// Rebuild tears down the current instance and creates a new one from the
// current options, carrying over the live document. It fails fast with
// ErrNoRuntime when the widget runtime is not loaded.
func (c *Controller) Rebuild() error {
	rt, ok := c.loader.Runtime()
	if !ok {
		return ErrNoRuntime
	}
	if c.lc.host == nil {
		return ErrNotMounted
	}

	c.state = Rebuilding
	data := c.props.JSON
	if c.instance != nil {
		c.cancelSubscription()
		snap, err := c.instance.SerializeDocument()
		switch {
		case err != nil:
			log.Printf("[Ctl] block %s: could not capture live document, using persisted snapshot: %v", c.props.UID, err)
		case len(snap) > 0:
			data = snap.String()
		}
	}
	c.instance = nil

	c.build(rt, data)
	return nil
}

// build replaces the host's content with a fresh container and widget.
func (c *Controller) build(rt widget.Runtime, data string) {
	host := c.lc.host
	host.Clear()

	container := host.AppendChild()
	container.SetStyle("width", "100%")
	container.SetStyle("height", "100%")
	container.SetStyle("overflow", "hidden")
	if c.props.Theme != "" {
		container.SetClass(c.props.Theme, true)
	}
	c.lc.container = container

	inst, err := rt.Create(createOptions(c.props, container, data != ""))
	if err != nil {
		c.state = Mounting
		c.instance = nil
		c.publishInstance()
		cerr := &CreateError{UID: c.props.UID, Err: err}
		log.Printf("[Ctl] %v", cerr)
		c.onError(cerr)
		return
	}

	if data != "" {
		snap := widget.Snapshot(data)
		if !snap.Valid() {
			err = errors.New("snapshot is not valid JSON")
		} else {
			err = inst.LoadDocument(snap)
		}
		if err != nil {
			serr := &SnapshotError{UID: c.props.UID, Err: err}
			log.Printf("[Ctl] %v", serr)
			c.onError(serr)
		}
	}

	c.instance = inst
	c.lc.sub = inst.Subscribe(c.handler(inst))
	c.lc.hasSub = true
	c.state = Mounted
	c.logf("block %s: mounted (subscription %d)", c.props.UID, c.lc.sub)

	c.publishInstance()
}

// Unmount detaches from the host. Nothing is flushed: hosts flush on blur.
func (c *Controller) Unmount() {
	if c.state == Unmounted {
		return
	}
	c.cancelSubscription()
	c.gen++
	c.instance = nil
	c.lc = lifecycle{}
	c.state = Unmounted
	c.logf("block %s: unmounted", c.props.UID)
	c.publishInstance()
}

func (c *Controller) cancelSubscription() {
	if !c.lc.hasSub {
		return
	}
	if c.instance != nil {
		c.instance.Cancel(c.lc.sub)
	}
	c.lc.hasSub = false
}

func (c *Controller) applyTheme(prev, next string) {
	if prev != "" {
		c.lc.container.SetClass(prev, false)
	}
	if next != "" {
		c.lc.container.SetClass(next, true)
	}
	if c.instance != nil {
		c.instance.UpdateTheme()
	}
}

func (c *Controller) applyWidth() {
	if c.props.WidthConstrained() {
		c.lc.container.SetStyle("width", "100%")
		return
	}
	if c.props.Width > 0 {
		c.lc.container.SetStyle("width", px(c.props.Width))
	}
}

func (c *Controller) applyHeight() {
	if c.lc.host == nil {
		return
	}
	if c.props.Height > 0 {
		c.lc.host.SetStyle("height", px(c.props.Height))
	} else {
		c.lc.host.SetStyle("height", "")
	}
}

func (c *Controller) liveScale() float64 {
	if c.instance == nil {
		return 1
	}
	if s := c.instance.Scale(); s > 0 {
		return s
	}
	return 1
}

func createOptions(a tinkersheet.Attributes, container widget.Element, toll bool) widget.CreateOptions {
	o := a.Options
	return widget.CreateOptions{
		Container: container,

		Collapsed:      o.Bool(tinkersheet.OptCollapsed),
		Toolbar:        o.Bool(tinkersheet.OptToolbar),
		Resizable:      o.Bool(tinkersheet.OptResizable),
		ScaleControl:   o.Bool(tinkersheet.OptScaleControl),
		ConstrainWidth: o.Bool(tinkersheet.OptConstrainWidth),
		Scale:          o.Number(tinkersheet.OptScale, tinkersheet.DefaultScale),

		FontScale:    true,
		ChartMenu:    true,
		TableButton:  true,
		FreezeButton: true,
		AddTab:       true,
		DnD:          true,

		TollInitialLoad: toll,
		Theme:           a.Theme,
	}
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

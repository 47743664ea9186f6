// Package widgettest provides in-memory widget runtimes for tests.
package widgettest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/livetemplate/tinkersheet/internal/widget"
)

// EmptyDocument is what a fresh or reset instance serializes to.
const EmptyDocument = `{"sheets":[]}`

// Runtime is a fake widget runtime.
type Runtime struct {
	mu        sync.Mutex
	version   string
	createErr error
	loadErr   error
	instances []*Instance
	options   []widget.CreateOptions
}

// NewRuntime returns a fake runtime reporting the given version.
func NewRuntime(version string) *Runtime {
	return &Runtime{version: version}
}

// FailCreate makes every later Create return err.
func (r *Runtime) FailCreate(err error) {
	r.mu.Lock()
	r.createErr = err
	r.mu.Unlock()
}

// FailLoad makes LoadDocument fail on every instance created afterwards.
func (r *Runtime) FailLoad(err error) {
	r.mu.Lock()
	r.loadErr = err
	r.mu.Unlock()
}

func (r *Runtime) Version() string { return r.version }

func (r *Runtime) Create(opts widget.CreateOptions) (widget.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	inst := &Instance{
		doc:     []byte(EmptyDocument),
		scale:   opts.Scale,
		subs:    make(map[widget.SubscriptionID]widget.Handler),
		loadErr: r.loadErr,
	}
	r.instances = append(r.instances, inst)
	r.options = append(r.options, opts)
	return inst, nil
}

// Instances returns every instance created so far, oldest first.
func (r *Runtime) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Instance(nil), r.instances...)
}

// Last returns the most recent instance, or nil.
func (r *Runtime) Last() *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.instances) == 0 {
		return nil
	}
	return r.instances[len(r.instances)-1]
}

// Options returns the CreateOptions of every Create call.
func (r *Runtime) Options() []widget.CreateOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]widget.CreateOptions(nil), r.options...)
}

// Instance is a fake widget instance holding a JSON document.
type Instance struct {
	mu          sync.Mutex
	doc         []byte
	fileVersion int64
	scale       float64
	nextSub     widget.SubscriptionID
	subs        map[widget.SubscriptionID]widget.Handler
	gone        []widget.Handler
	loadErr     error

	// FileContent is what LoadLocalFile "imports".
	FileContent string

	Cancelled    []widget.SubscriptionID
	ThemeUpdates int
	Serializes   int
	Loads        []string
	Resets       int
	Imports      int
}

// FailLoad makes LoadDocument return err.
func (i *Instance) FailLoad(err error) {
	i.mu.Lock()
	i.loadErr = err
	i.mu.Unlock()
}

func (i *Instance) SerializeDocument() (widget.Snapshot, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Serializes++
	return append(widget.Snapshot(nil), i.doc...), nil
}

func (i *Instance) LoadDocument(s widget.Snapshot) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loadErr != nil {
		return i.loadErr
	}
	if !json.Valid(s) {
		return errors.New("widgettest: document is not valid JSON")
	}
	i.doc = append([]byte(nil), s...)
	i.Loads = append(i.Loads, string(s))
	return nil
}

func (i *Instance) Subscribe(h widget.Handler) widget.SubscriptionID {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.nextSub++
	i.subs[i.nextSub] = h
	return i.nextSub
}

func (i *Instance) Cancel(id widget.SubscriptionID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if h, ok := i.subs[id]; ok {
		i.gone = append(i.gone, h)
	}
	delete(i.subs, id)
	i.Cancelled = append(i.Cancelled, id)
}

// ResetDocument clears the document and emits a reset event.
func (i *Instance) ResetDocument() {
	i.mu.Lock()
	i.Resets++
	i.doc = []byte(EmptyDocument)
	i.fileVersion++
	i.mu.Unlock()
	i.Emit(widget.Event{Type: widget.EventReset})
}

// LoadLocalFile replaces the document with FileContent and emits load.
func (i *Instance) LoadLocalFile() {
	i.mu.Lock()
	i.Imports++
	if i.FileContent != "" {
		i.doc = []byte(i.FileContent)
	}
	i.fileVersion++
	i.mu.Unlock()
	i.Emit(widget.Event{Type: widget.EventLoad})
}

func (i *Instance) UpdateTheme() {
	i.mu.Lock()
	i.ThemeUpdates++
	i.mu.Unlock()
}

func (i *Instance) Scale() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.scale
}

func (i *Instance) FileVersion() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fileVersion
}

// Edit simulates a user edit: the document gets a new cell value, the
// internal version increases, and a data event is emitted.
func (i *Instance) Edit(cell, value string) {
	i.mu.Lock()
	var doc map[string]any
	if err := json.Unmarshal(i.doc, &doc); err != nil || doc == nil {
		doc = map[string]any{}
	}
	doc[cell] = value
	i.doc, _ = json.Marshal(doc)
	i.fileVersion++
	i.mu.Unlock()
	i.Emit(widget.Event{Type: widget.EventData})
}

// Zoom changes the scale and emits view-change.
func (i *Instance) Zoom(scale float64) {
	i.mu.Lock()
	i.scale = scale
	i.fileVersion++
	i.mu.Unlock()
	i.Emit(widget.Event{Type: widget.EventViewChange})
}

// Emit delivers ev to every active subscription, in subscription order.
func (i *Instance) Emit(ev widget.Event) {
	i.mu.Lock()
	ids := make([]widget.SubscriptionID, 0, len(i.subs))
	for id := range i.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	handlers := make([]widget.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, i.subs[id])
	}
	i.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// EmitLate delivers ev to handlers that have already been cancelled, like
// an event that was queued before the cancel reached the widget.
func (i *Instance) EmitLate(ev widget.Event) {
	i.mu.Lock()
	handlers := append([]widget.Handler(nil), i.gone...)
	i.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribers returns the number of active subscriptions.
func (i *Instance) Subscribers() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.subs)
}

// Document returns the current document.
func (i *Instance) Document() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return string(i.doc)
}

// Element is a fake DOM element.
type Element struct {
	mu       sync.Mutex
	id       string
	classes  map[string]bool
	style    map[string]string
	children []*Element
	bounds   widget.Rect
	clears   int
	nextID   *int
}

// NewElement returns a root element with the given id.
func NewElement(id string) *Element {
	n := 0
	return &Element{
		id:      id,
		classes: make(map[string]bool),
		style:   make(map[string]string),
		nextID:  &n,
	}
}

func (e *Element) ID() string { return e.id }

func (e *Element) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.children = nil
	e.clears++
}

func (e *Element) AppendChild() widget.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	*e.nextID++
	child := &Element{
		id:      fmt.Sprintf("%s/%d", e.id, *e.nextID),
		classes: make(map[string]bool),
		style:   make(map[string]string),
		nextID:  e.nextID,
	}
	e.children = append(e.children, child)
	return child
}

func (e *Element) SetClass(name string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on {
		e.classes[name] = true
	} else {
		delete(e.classes, name)
	}
}

func (e *Element) SetStyle(prop, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if value == "" {
		delete(e.style, prop)
		return
	}
	e.style[prop] = value
}

func (e *Element) Bounds() widget.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bounds
}

// SetBounds sets what Bounds reports.
func (e *Element) SetBounds(r widget.Rect) {
	e.mu.Lock()
	e.bounds = r
	e.mu.Unlock()
}

// HasClass reports whether the class is set.
func (e *Element) HasClass(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classes[name]
}

// Style returns one style property.
func (e *Element) Style(prop string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.style[prop]
}

// Children returns the current children.
func (e *Element) Children() []*Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Element(nil), e.children...)
}

// Clears counts Clear calls.
func (e *Element) Clears() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clears
}

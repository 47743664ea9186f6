// Package widget defines the contract between the host and the embedded
// spreadsheet runtime: creating instances, their event stream, and the
// element they render into.
package widget

import (
	"encoding/json"
	"errors"
)

// Snapshot is a serialized widget document. The host treats it as opaque
// JSON and round-trips it verbatim.
type Snapshot []byte

// String returns the snapshot in its persisted form.
func (s Snapshot) String() string { return string(s) }

// Valid reports whether the snapshot is well-formed JSON.
func (s Snapshot) Valid() bool { return len(s) > 0 && json.Valid(s) }

// SubscriptionID identifies an event subscription on one instance.
type SubscriptionID int64

// EventType tags a widget event.
type EventType string

const (
	EventResize         EventType = "resize"
	EventSelection      EventType = "selection"
	EventLoad           EventType = "load"
	EventReset          EventType = "reset"
	EventViewChange     EventType = "view-change"
	EventData           EventType = "data"
	EventDocumentChange EventType = "document-change"
)

// Event is one entry in an instance's event stream.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Handler receives events in emission order, one at a time.
type Handler func(Event)

// Rect is an element's rendered box in CSS pixels.
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a node in the host document the widget can render into.
type Element interface {
	ID() string

	// Clear removes all children.
	Clear()

	// AppendChild creates a new child element and appends it.
	AppendChild() Element

	SetClass(name string, on bool)
	SetStyle(prop, value string)

	// Bounds returns the element's last rendered box.
	Bounds() Rect
}

// CreateOptions configures a new widget instance.
type CreateOptions struct {
	Container Element `json:"-"`

	Collapsed      bool    `json:"collapsed"`
	Toolbar        bool    `json:"toolbar"`
	Resizable      bool    `json:"resizable"`
	ScaleControl   bool    `json:"scale_control"`
	ConstrainWidth bool    `json:"constrain_width"`
	Scale          float64 `json:"scale"`

	// Always on for embedded blocks.
	FontScale    bool `json:"font_scale"`
	ChartMenu    bool `json:"chart_menu"`
	TableButton  bool `json:"table_button"`
	FreezeButton bool `json:"freeze_button"`
	AddTab       bool `json:"add_tab"`
	DnD          bool `json:"dnd"`

	// TollInitialLoad suppresses the instance's own initial load signal,
	// set when the host is about to load a saved document.
	TollInitialLoad bool `json:"toll_initial_load"`

	Theme string `json:"theme,omitempty"`
}

// Instance is a live widget bound to one container.
type Instance interface {
	SerializeDocument() (Snapshot, error)
	LoadDocument(Snapshot) error
	Subscribe(Handler) SubscriptionID
	Cancel(SubscriptionID)
	ResetDocument()
	LoadLocalFile()
	UpdateTheme()
	Scale() float64
	FileVersion() int64
}

// Runtime creates widget instances. It becomes available only after the
// widget's own code has loaded; see Loader.
type Runtime interface {
	Version() string
	Create(CreateOptions) (Instance, error)
}

var (
	// ErrNotLoaded is returned while the runtime capability is still loading.
	ErrNotLoaded = errors.New("widget: runtime not loaded")

	// ErrGaveUp is the terminal state of a bounded readiness wait.
	ErrGaveUp = errors.New("widget: gave up waiting for instance")
)

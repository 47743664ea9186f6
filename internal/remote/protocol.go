// Package remote drives a widget runtime that lives in an editor's browser
// tab. The Go side and the tab exchange JSON messages over one websocket:
// calls with correlated results, fire-and-forget notifications, DOM
// operations on the mount point, and the widget's event stream.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/livetemplate/tinkersheet/internal/widget"
)

// Message types.
const (
	TypeCall    = "call"           // Go -> tab, expects a result with the same id
	TypeResult  = "result"         // tab -> Go
	TypeNotify  = "notify"         // Go -> tab, no result
	TypeDOM     = "dom"            // Go -> tab, mount point operation
	TypeEvent   = "event"          // tab -> Go, widget event
	TypeBounds  = "bounds"         // tab -> Go, element box changed
	TypeReady   = "runtime-ready"  // tab -> Go, widget code loaded
	TypeFailed  = "runtime-failed" // tab -> Go, widget code failed to load
	TypeAction  = "action"         // tab -> Go, settings panel command
	TypeTree    = "tree"           // Go -> tab, panel tree update
	TypeError   = "error"          // Go -> tab, command rejected
)

// Methods invoked on the tab.
const (
	MethodCreate      = "create"
	MethodReady       = "ready"
	MethodSerialize   = "serialize"
	MethodLoad        = "load"
	MethodReset       = "reset"
	MethodImportFile  = "importFile"
	MethodUpdateTheme = "updateTheme"
	MethodSubscribe   = "subscribe"
	MethodCancel      = "cancel"
)

// Message is the single wire envelope.
type Message struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Method  string          `json:"method,omitempty"`
	Target  string          `json:"target,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   *widget.Event   `json:"event,omitempty"`
	State   *InstanceState  `json:"state,omitempty"`
	Bounds  *widget.Rect    `json:"bounds,omitempty"`
	Version string          `json:"version,omitempty"`
	Action  string          `json:"action,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// InstanceState is piggybacked on events so Scale and FileVersion can be
// answered without a round trip.
type InstanceState struct {
	Scale       float64 `json:"scale"`
	FileVersion int64   `json:"file_version"`
}

// DOMOp is the payload of a TypeDOM message.
type DOMOp struct {
	Op    string `json:"op"` // "clear", "append", "class", "style"
	Child string `json:"child,omitempty"`
	Name  string `json:"name,omitempty"`
	On    bool   `json:"on,omitempty"`
	Prop  string `json:"prop,omitempty"`
	Value string `json:"value,omitempty"`
}

// ErrClosed is returned by calls on, or pending when, the connection closes.
var ErrClosed = errors.New("remote: connection closed")

// RemoteError is a failure reported by the tab.
type RemoteError struct {
	Method  string
	Target  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("remote %s on %s: %s", e.Method, e.Target, e.Message)
	}
	return fmt.Sprintf("remote %s: %s", e.Method, e.Message)
}

// TimeoutError is returned when the tab does not answer in time.
type TimeoutError struct {
	Method string
	After  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("remote %s: no answer after %s", e.Method, e.After)
}

func domMessage(target string, op DOMOp) (*Message, error) {
	raw, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeDOM, Target: target, Params: raw}, nil
}

package remote

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/livetemplate/tinkersheet/internal/widget"
)

// Element mirrors a DOM node in the tab. Mutations are sent as dom
// messages; Bounds answers from the last bounds report.
type Element struct {
	c        *Client
	id       string
	children atomic.Int64
}

func (e *Element) ID() string { return e.id }

func (e *Element) Clear() {
	e.send(DOMOp{Op: "clear"})
}

func (e *Element) AppendChild() widget.Element {
	child := &Element{c: e.c, id: fmt.Sprintf("%s.%d", e.id, e.children.Add(1))}
	e.send(DOMOp{Op: "append", Child: child.id})
	return child
}

func (e *Element) SetClass(name string, on bool) {
	e.send(DOMOp{Op: "class", Name: name, On: on})
}

func (e *Element) SetStyle(prop, value string) {
	e.send(DOMOp{Op: "style", Prop: prop, Value: value})
}

func (e *Element) Bounds() widget.Rect {
	return e.c.boundsOf(e.id)
}

func (e *Element) send(op DOMOp) {
	m, err := domMessage(e.id, op)
	if err == nil {
		err = e.c.conn.Send(m)
	}
	if err != nil && !errors.Is(err, ErrClosed) {
		log.Printf("[Remote] dom %s on %s failed: %v", op.Op, e.id, err)
	}
}

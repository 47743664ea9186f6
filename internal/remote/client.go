package remote

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livetemplate/tinkersheet/internal/widget"
)

// Options configures a Client.
type Options struct {
	// Post schedules fn on the session's event loop. Widget events are
	// delivered through it. Required.
	Post func(fn func())

	// OnMessage receives every message the client does not route itself
	// (panel actions, mostly). Called on the reader goroutine.
	OnMessage func(*Message)

	CallTimeout time.Duration
	Ready       widget.RetryPolicy
	Debug       bool
}

// Client is the Go end of one editor tab. It owns the connection, the
// per-tab runtime Loader, and the registry of live remote instances and
// elements.
type Client struct {
	conn   *Conn
	loader *widget.Loader
	opts   Options

	mu        sync.Mutex
	instances map[string]*Instance
	bounds    map[string]widget.Rect
}

// NewClient wraps an upgraded websocket.
func NewClient(ws *websocket.Conn, opts Options) *Client {
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	return &Client{
		conn:      NewConn(ws, opts.CallTimeout, opts.Debug),
		loader:    widget.NewLoader(),
		opts:      opts,
		instances: make(map[string]*Instance),
		bounds:    make(map[string]widget.Rect),
	}
}

// Loader completes when the tab reports runtime-ready or runtime-failed.
func (c *Client) Loader() *widget.Loader {
	return c.loader
}

// Conn exposes the underlying connection for sending panel updates.
func (c *Client) Conn() *Conn {
	return c.conn
}

// Element returns a handle for an element the tab already has, typically
// the block's mount point.
func (c *Client) Element(id string) *Element {
	return &Element{c: c, id: id}
}

// Serve runs the read loop until the tab disconnects or ctx ends. A loader
// still waiting at that point fails with ErrClosed.
func (c *Client) Serve(ctx context.Context) error {
	err := c.conn.Serve(ctx, c.route)
	c.loader.Complete(nil, ErrClosed)

	c.mu.Lock()
	c.instances = make(map[string]*Instance)
	c.mu.Unlock()
	return err
}

// Close disconnects the tab.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) route(m *Message) {
	switch m.Type {
	case TypeReady:
		if c.opts.Debug {
			log.Printf("[Remote] Runtime %s ready", m.Version)
		}
		c.loader.Complete(&Runtime{c: c, version: m.Version}, nil)

	case TypeFailed:
		msg := m.Error
		if msg == "" {
			msg = "unknown error"
		}
		log.Printf("[Remote] Runtime failed to load: %s", msg)
		c.loader.Complete(nil, errors.New("remote runtime: "+msg))

	case TypeEvent:
		c.mu.Lock()
		inst := c.instances[m.Target]
		c.mu.Unlock()
		if inst == nil {
			if c.opts.Debug {
				log.Printf("[Remote] Event for unknown instance %q dropped", m.Target)
			}
			return
		}
		inst.deliver(m)

	case TypeBounds:
		if m.Bounds == nil {
			return
		}
		c.mu.Lock()
		c.bounds[m.Target] = *m.Bounds
		c.mu.Unlock()

	default:
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(m)
		} else if c.opts.Debug {
			log.Printf("[Remote] Unhandled message type %q", m.Type)
		}
	}
}

func (c *Client) register(inst *Instance) {
	c.mu.Lock()
	c.instances[inst.id] = inst
	c.mu.Unlock()
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	delete(c.instances, id)
	c.mu.Unlock()
}

func (c *Client) boundsOf(id string) widget.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bounds[id]
}

func (c *Client) call(method, target string, params, out any) error {
	return c.conn.Call(context.Background(), method, target, params, out)
}

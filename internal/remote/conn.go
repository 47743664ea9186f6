package remote

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn correlates calls with results over a websocket. Reads happen on the
// goroutine running Serve; writes may come from any goroutine.
type Conn struct {
	ws      *websocket.Conn
	timeout time.Duration
	debug   bool

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *Message
	closed  bool
	done    chan struct{}
}

// NewConn wraps ws. timeout bounds every call.
func NewConn(ws *websocket.Conn, timeout time.Duration, debug bool) *Conn {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Conn{
		ws:      ws,
		timeout: timeout,
		debug:   debug,
		pending: make(map[int64]chan *Message),
		done:    make(chan struct{}),
	}
}

// Serve reads until the socket fails or ctx ends. Results complete their
// calls; every other message goes to handle, on this goroutine, so handle
// must not block on a call.
func (c *Conn) Serve(ctx context.Context, handle func(*Message)) error {
	defer c.Close()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Printf("[WS] Unexpected close: %v", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if c.debug {
			log.Printf("[WS] Received: %s", data)
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Printf("[WS] Failed to parse message: %v", err)
			continue
		}
		if m.Type == TypeResult {
			c.complete(&m)
			continue
		}
		handle(&m)
	}
}

func (c *Conn) complete(m *Message) {
	c.mu.Lock()
	ch, ok := c.pending[m.ID]
	delete(c.pending, m.ID)
	c.mu.Unlock()

	if !ok {
		if c.debug {
			log.Printf("[WS] Dropping result for unknown call %d", m.ID)
		}
		return
	}
	ch <- m
}

// Call invokes method on target and decodes the result into out (if non-nil).
func (c *Conn) Call(ctx context.Context, method, target string, params, out any) error {
	m := &Message{Type: TypeCall, Method: method, Target: target}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		m.Params = raw
	}

	ch := make(chan *Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	m.ID = c.nextID
	c.pending[m.ID] = ch
	c.mu.Unlock()

	if err := c.Send(m); err != nil {
		c.forget(m.ID)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return &RemoteError{Method: method, Target: target, Message: reply.Error}
		}
		if out != nil && len(reply.Result) > 0 {
			return json.Unmarshal(reply.Result, out)
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		c.forget(m.ID)
		if ctx.Err() == context.DeadlineExceeded {
			return &TimeoutError{Method: method, After: c.timeout.String()}
		}
		return ctx.Err()
	}
}

func (c *Conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Send writes one message without waiting for an answer.
func (c *Conn) Send(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[WS] Failed to send message: %v", err)
		return err
	}
	if c.debug {
		log.Printf("[WS] Sent: %s", data)
	}
	return nil
}

// Close closes the socket and fails pending calls with ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.pending = make(map[int64]chan *Message)
	close(c.done)
	c.mu.Unlock()

	return c.ws.Close()
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

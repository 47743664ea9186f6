package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/attrs"
	"github.com/livetemplate/tinkersheet/internal/controller"
	"github.com/livetemplate/tinkersheet/internal/panel"
	"github.com/livetemplate/tinkersheet/internal/remote"
	"github.com/livetemplate/tinkersheet/internal/widget"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// MountID is the id of the element the editor tab provides for a block.
func MountID(uid string) string {
	return "tinkersheet-" + uid
}

// session is one editor tab driving one block. Everything that touches the
// controller or the panel runs on loop.
type session struct {
	uid    string
	srv    *Server
	client *remote.Client
	loop   *controller.Loop
	block  *attrs.Block
	ctl    *controller.Controller
	panel  *panel.Panel
	view   *panelView

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()

	closeOnce sync.Once
}

// handleSession upgrades an editor tab and runs its session until the tab
// goes away.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if !tinkersheet.ValidUID(uid) {
		writeJSONError(w, http.StatusBadRequest, "invalid block uid")
		return
	}

	sess := &session{uid: uid, srv: s}
	if !s.claim(uid, sess) {
		writeJSONError(w, http.StatusConflict, "block is open in another editor")
		return
	}
	defer s.release(uid, sess)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}
	if s.debug {
		log.Printf("[WS] Editor connected for block %s", uid)
	}

	if err := sess.start(ws); err != nil {
		log.Printf("[WS] Block %s: session failed to start: %v", uid, err)
		ws.Close()
		return
	}
	sess.serve()

	if s.debug {
		log.Printf("[WS] Editor disconnected for block %s", uid)
	}
}

func (sess *session) start(ws *websocket.Conn) error {
	s := sess.srv
	rt := s.config.Runtime

	sess.ctx, sess.cancel = context.WithCancel(context.Background())
	sess.loop = controller.NewLoop()
	go sess.loop.Run(sess.ctx)

	sess.client = remote.NewClient(ws, remote.Options{
		Post:        func(fn func()) { sess.loop.Post(fn) },
		OnMessage:   sess.onMessage,
		CallTimeout: rt.GetCallTimeout(),
		Ready:       widget.RetryPolicy{MaxAttempts: rt.GetReadyRetries()},
		Debug:       s.debug,
	})

	view, err := newPanelView(sess.uid)
	if err != nil {
		sess.cancel()
		return err
	}
	sess.view = view

	a, err := attrs.Ensure(sess.ctx, s.store, sess.uid, s.defaults(sess.uid))
	if err != nil {
		sess.cancel()
		return err
	}

	sess.block = attrs.Bind(s.store, sess.uid)
	sess.panel = panel.New(sess.block, func() tinkersheet.Attributes { return sess.ctl.Attributes() },
		panel.WithForceSave(func() { sess.ctl.ForceSave() }))
	sess.ctl = controller.New(sess.client.Loader(), sess.block, sess.loop,
		controller.WithSetInstance(func(inst widget.Instance) {
			sess.panel.SetInstance(inst)
			sess.render()
		}),
		controller.WithErrorHandler(sess.reportError),
		controller.WithDebug(s.debug),
	)

	// In-process writes to a claimed block only come from this loop (see
	// Server.claim), so they are applied in place; the controller expects
	// its own writes to echo back synchronously.
	sess.unsub = sess.block.Subscribe(func(ch attrs.Change) {
		s.renderer.Invalidate(sess.uid)
		if ch.External {
			sess.loop.Post(func() { sess.apply(ch.Next) })
			return
		}
		sess.apply(ch.Next)
	})

	go sess.awaitRuntime(rt.GetLoadTimeout())

	return sess.loop.Do(sess.ctx, func() error {
		err := sess.ctl.Mount(sess.ctx, sess.client.Element(MountID(sess.uid)), a)
		sess.render()
		return err
	})
}

// awaitRuntime fails the tab's loader if the widget code never reports in.
func (sess *session) awaitRuntime(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sess.client.Loader().Ready():
	case <-sess.ctx.Done():
	case <-timer.C:
		sess.client.Loader().Complete(nil, fmt.Errorf("widget runtime did not load within %s", timeout))
	}
}

func (sess *session) serve() {
	if err := sess.client.Serve(sess.ctx); err != nil && sess.srv.debug {
		log.Printf("[WS] Block %s: %v", sess.uid, err)
	}
	sess.close()
}

// close unmounts the controller and stops the loop. The widget is gone
// with the tab, so nothing is flushed.
func (sess *session) close() {
	sess.closeOnce.Do(func() {
		if sess.unsub != nil {
			sess.unsub()
		}
		if sess.ctl != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = sess.loop.Do(ctx, func() error {
				sess.ctl.Unmount()
				return nil
			})
			cancel()
		}
		if sess.client != nil {
			sess.client.Close()
		}
		if sess.loop != nil {
			sess.loop.Close()
		}
		if sess.cancel != nil {
			sess.cancel()
		}
	})
}

// apply runs on the loop for every committed change to the block.
func (sess *session) apply(next tinkersheet.Attributes) {
	sess.ctl.Update(next)
	sess.render()
}

// do runs fn on the session loop and waits for it.
func (sess *session) do(ctx context.Context, fn func() error) error {
	err := sess.loop.Do(ctx, fn)
	if errors.Is(err, controller.ErrLoopClosed) {
		return errSessionClosed
	}
	return err
}

var errSessionClosed = errors.New("editor session closed")

// actionData is the payload of panel actions sent by the tab.
type actionData struct {
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
	Theme string `json:"theme,omitempty"`
}

// onMessage handles panel actions. It is called on the connection's reader
// goroutine and only posts to the loop.
func (sess *session) onMessage(m *remote.Message) {
	if m.Type != remote.TypeAction {
		if sess.srv.debug {
			log.Printf("[WS] Block %s: ignoring message type %q", sess.uid, m.Type)
		}
		return
	}

	var data actionData
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &data); err != nil {
			log.Printf("[WS] Block %s: bad %s payload: %v", sess.uid, m.Action, err)
			return
		}
	}

	sess.loop.Post(func() {
		if err := sess.action(m.Action, data); err != nil {
			sess.reportError(err)
		}
	})
}

func (sess *session) action(name string, data actionData) error {
	switch name {
	case "toggle":
		return sess.panel.ToggleOption(sess.ctx, data.Key)
	case "set":
		return sess.panel.SetOption(sess.ctx, data.Key, data.Value)
	case "theme":
		return sess.panel.SetTheme(sess.ctx, data.Theme)
	case "import":
		sess.panel.ImportFile()
	case "reset":
		sess.panel.ResetDocument()
	case "blur":
		sess.ctl.Blur()
	default:
		return fmt.Errorf("unknown action %q", name)
	}
	return nil
}

func (sess *session) reportError(err error) {
	var snapErr *controller.SnapshotError
	if errors.As(err, &snapErr) {
		log.Printf("[WS] Block %s: saved document could not be loaded: %v", sess.uid, err)
	}
	_ = sess.client.Conn().Send(&remote.Message{Type: remote.TypeError, Target: sess.uid, Error: err.Error()})
}

// render pushes the panel's tree update to the tab.
func (sess *session) render() {
	data, err := sess.view.render(sess.panel.View())
	if err != nil {
		log.Printf("[WS] Block %s: panel render failed: %v", sess.uid, err)
		return
	}
	if data == nil {
		return
	}
	_ = sess.client.Conn().Send(&remote.Message{Type: remote.TypeTree, Target: sess.uid, Data: data})
}

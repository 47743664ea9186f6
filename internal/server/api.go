package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/attrs"
	"github.com/livetemplate/tinkersheet/internal/panel"
)

// maxRequestBodySize limits the size of incoming request bodies (1MB)
const maxRequestBodySize = 1 << 20

func validUID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tinkersheet.ValidUID(chi.URLParam(r, "uid")) {
			writeJSONError(w, http.StatusBadRequest, "invalid block uid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Read(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// withPanel runs fn against the block's panel. With an open editor the
// session's panel is used, on the session loop, so the controller sees the
// write; otherwise a detached panel writes straight to the store, holding
// off new sessions until it is done.
func (s *Server) withPanel(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, p *panel.Panel) error) {
	uid := chi.URLParam(r, "uid")
	ctx := r.Context()

	sess, err := s.detached(uid, func() error {
		current, err := attrs.Ensure(ctx, s.store, uid, s.defaults(uid))
		if err != nil {
			return err
		}
		p := panel.New(attrs.Bind(s.store, uid), func() tinkersheet.Attributes { return current })
		err = fn(ctx, p)
		s.renderer.Invalidate(uid)
		return err
	})
	if sess != nil {
		err = sess.do(ctx, func() error { return fn(sess.ctx, sess.panel) })
	}
	if err != nil {
		writePanelError(w, err)
		return
	}

	a, err := s.store.Read(ctx, uid)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.withPanel(w, r, func(ctx context.Context, p *panel.Panel) error {
		return p.ToggleOption(ctx, key)
	})
}

func (s *Server) handleSetOption(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value any `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	key := chi.URLParam(r, "key")
	s.withPanel(w, r, func(ctx context.Context, p *panel.Panel) error {
		return p.SetOption(ctx, key, body.Value)
	})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.withPanel(w, r, func(ctx context.Context, p *panel.Panel) error {
		return p.SetTheme(ctx, body.Theme)
	})
}

// Import and reset act on the live widget, so they need an open editor.

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) { sess.panel.ImportFile() })
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) { sess.panel.ResetDocument() })
}

func (s *Server) handleBlur(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	sess := s.session(uid)
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.withSession(w, r, func(sess *session) { sess.ctl.Blur() })
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*session)) {
	uid := chi.URLParam(r, "uid")
	sess := s.session(uid)
	if sess == nil {
		writeJSONError(w, http.StatusConflict, "no editor is open for this block")
		return
	}
	err := sess.do(r.Context(), func() error {
		fn(sess)
		return nil
	})
	if err != nil {
		writePanelError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishedBlock(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	var fallback *tinkersheet.Attributes
	if a, ok := s.declared(uid); ok {
		fallback = &a
	}

	markup, err := s.renderer.Block(r.Context(), uid, fallback)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(markup))
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pages": s.Pages()})
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
{{if .Script}}<script treb type="module" src="{{.Script}}"></script>{{end}}
</head>
<body>
<main class="tinkersheet-page">
{{.Body}}
</main>
</body>
</html>
`))

func (s *Server) handlePublishedPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	page, ok := s.Page(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "page not found: "+name)
		return
	}

	body, err := s.renderer.Page(r.Context(), page)
	if err != nil {
		log.Printf("[Server] Failed to render page %s: %v", name, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := WriteDocument(w, s.Title(page), body, s.ScriptURL()); err != nil {
		log.Printf("[Server] Failed to write page %s: %v", name, err)
	}
}

// Title is the page's frontmatter title, or the site title.
func (s *Server) Title(page *tinkersheet.Page) string {
	if page.Title != "" {
		return page.Title
	}
	return s.config.Title
}

// ScriptURL is the widget module script with its version as cache key.
func (s *Server) ScriptURL() string {
	script := s.config.Runtime.GetScript()
	sep := "?"
	if strings.Contains(script, "?") {
		sep = "&"
	}
	return script + sep + "ver=" + url.QueryEscape(s.config.Runtime.GetVersion())
}

// WriteDocument wraps a rendered page body in a standalone HTML document
// that loads the widget module script.
func WriteDocument(w io.Writer, title, body, script string) error {
	return pageTmpl.Execute(w, map[string]any{"Title": title, "Body": template.HTML(body), "Script": script})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Error encoding JSON response: %v", err)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if attrs.IsNotFound(err) {
		writeJSONError(w, http.StatusNotFound, "block not found")
		return
	}
	log.Printf("[API] Store error: %v", err)
	writeJSONError(w, http.StatusInternalServerError, "store error")
}

func writePanelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, panel.ErrInvalid):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, panel.ErrDisabled), errors.Is(err, errSessionClosed):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeStoreError(w, err)
	}
}

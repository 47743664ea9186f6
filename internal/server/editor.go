package server

import (
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/livetemplate/tinkersheet/internal/assets"
)

var editorTmpl = template.Must(template.New("editor").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<script src="/assets/{{.Bridge}}" defer></script>
</head>
<body class="tinkersheet-editor">
<main>
<div id="{{.MountID}}" class="tinkersheet-block" tabindex="-1"
  data-tinkersheet-block="{{.UID}}"
  data-tinkersheet-script="{{.Script}}"></div>
</main>
<aside data-tinkersheet-panel="{{.UID}}"></aside>
</body>
</html>
`))

// handleEditor serves the page an editor opens to work on one block. The
// bridge script connects back to /ws/{uid}.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	title := uid
	if s.config.Title != "" {
		title = uid + " - " + s.config.Title
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := editorTmpl.Execute(w, map[string]any{
		"Title":   title,
		"UID":     uid,
		"MountID": MountID(uid),
		"Bridge":  assets.BridgeScript,
		"Script":  s.ScriptURL(),
	})
	if err != nil {
		log.Printf("[Server] Editor page for %s: %v", uid, err)
	}
}

// assetHandler serves the embedded client files, then the project's own
// assets/ directory, where the widget runtime module is expected.
func (s *Server) assetHandler() http.Handler {
	embedded := assets.ClientFS()
	local := http.FileServer(http.Dir(filepath.Join(s.rootDir, "assets")))
	builtin := assets.Handler()

	return http.StripPrefix("/assets", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if _, err := fs.Stat(embedded, name); err == nil {
			builtin.ServeHTTP(w, r)
			return
		}
		if strings.HasSuffix(name, ".mjs") {
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		}
		local.ServeHTTP(w, r)
	}))
}

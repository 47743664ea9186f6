package server

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/attrs"
	"github.com/livetemplate/tinkersheet/internal/config"
	"github.com/livetemplate/tinkersheet/internal/publish"
)

// Server hosts editor sessions, the block API, and published pages.
type Server struct {
	rootDir  string
	config   *config.Config
	store    attrs.Store
	renderer *publish.Renderer
	debug    bool

	mu     sync.RWMutex
	pages  map[string]*tinkersheet.Page // name (path without .md) -> page
	blocks map[string]*tinkersheet.Block

	sessMu   sync.Mutex
	sessions map[string]*session // uid -> live editor session
	gates    [32]sync.Mutex      // orders claims against detached writes, by uid hash

	watcher *Watcher
}

// New creates a server for the documents under rootDir.
func New(rootDir string, cfg *config.Config, store attrs.Store, renderer *publish.Renderer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		rootDir:  rootDir,
		config:   cfg,
		store:    store,
		renderer: renderer,
		debug:    cfg.Server.Debug || config.IsDebug(),
		pages:    make(map[string]*tinkersheet.Page),
		blocks:   make(map[string]*tinkersheet.Block),
		sessions: make(map[string]*session),
	}
}

// Discover scans rootDir for host documents. Files that fail to parse are
// logged and skipped.
func (s *Server) Discover() error {
	pages := make(map[string]*tinkersheet.Page)
	blocks := make(map[string]*tinkersheet.Block)

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != s.rootDir && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return err
		}
		if s.ignored(relPath) {
			return nil
		}

		page, err := tinkersheet.ParseFile(path)
		if err != nil {
			log.Printf("Warning: Failed to parse %s: %v", relPath, err)
			return nil
		}

		name := pageName(relPath)
		pages[name] = page
		for uid, b := range page.Blocks {
			if prev, dup := blocks[uid]; dup && prev != b {
				log.Printf("Warning: block %s declared in more than one page; using %s", uid, relPath)
			}
			blocks[uid] = b
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	s.mu.Lock()
	s.pages = pages
	s.blocks = blocks
	s.mu.Unlock()

	if s.debug {
		log.Printf("[Server] Discovered %d pages, %d blocks", len(pages), len(blocks))
	}
	return nil
}

func (s *Server) ignored(relPath string) bool {
	slashed := filepath.ToSlash(relPath)
	for _, pattern := range s.config.Ignore {
		if ok, _ := filepath.Match(pattern, slashed); ok {
			return true
		}
		if prefix, found := strings.CutSuffix(pattern, "/**"); found && strings.HasPrefix(slashed, prefix+"/") {
			return true
		}
	}
	return false
}

// pageName maps "guides/budget.md" to "guides/budget".
func pageName(relPath string) string {
	return strings.TrimSuffix(filepath.ToSlash(relPath), ".md")
}

// Pages returns the discovered page names, sorted.
func (s *Server) Pages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.pages))
	for name := range s.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Page returns a discovered page by name.
func (s *Server) Page(name string) (*tinkersheet.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[name]
	return p, ok
}

// defaults returns the attributes a never-saved block starts with: the
// page declaration when there is one, the configured block defaults
// otherwise.
func (s *Server) defaults(uid string) tinkersheet.Attributes {
	s.mu.RLock()
	b, ok := s.blocks[uid]
	s.mu.RUnlock()

	var a tinkersheet.Attributes
	if ok {
		a = b.Defaults()
	} else {
		a = tinkersheet.Attributes{UID: uid, Options: tinkersheet.Options{}}
	}
	if a.Theme == "" {
		a.Theme = s.config.Blocks.Theme
	}
	if len(a.Options) == 0 && len(s.config.Blocks.Options) > 0 {
		a.Options = tinkersheet.Options(s.config.Blocks.Options).Normalize()
	}
	return a
}

// declared returns the page declaration of uid, if any.
func (s *Server) declared(uid string) (tinkersheet.Attributes, bool) {
	s.mu.RLock()
	_, ok := s.blocks[uid]
	s.mu.RUnlock()
	if !ok {
		return tinkersheet.Attributes{}, false
	}
	return s.defaults(uid), true
}

// Router builds the HTTP handler. ctx bounds the rate limiter's cleanup
// goroutine.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(s.debug))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	r.Use(CORSMiddleware(s.config.API.GetCORSOrigins()))

	r.Get("/ws/{uid}", s.handleSession)
	r.With(validUID).Get("/edit/{uid}", s.handleEditor)
	r.With(compressionMiddleware).Handle("/assets/*", s.assetHandler())

	limit, _ := RateLimitMiddleware(ctx, s.config.API.GetRateLimitRPS(), s.config.API.GetRateLimitBurst(), 0)
	r.Route("/api/blocks/{uid}", func(r chi.Router) {
		r.Use(limit)
		r.Use(validUID)
		r.Get("/", s.handleGetBlock)
		r.Post("/options/{key}/toggle", s.handleToggle)
		r.Put("/options/{key}", s.handleSetOption)
		r.Put("/theme", s.handleSetTheme)
		r.Post("/import", s.handleImport)
		r.Post("/reset", s.handleReset)
		r.Post("/blur", s.handleBlur)
	})

	r.Group(func(r chi.Router) {
		r.Use(compressionMiddleware)
		r.With(validUID).Get("/blocks/{uid}", s.handlePublishedBlock)
		r.Get("/pages", s.handleListPages)
		r.Get("/pages/*", s.handlePublishedPage)
	})
	return r
}

// EnableWatch re-discovers pages when host documents change and logs the
// blocks that appeared or went away.
func (s *Server) EnableWatch() error {
	w, err := NewWatcher(s.rootDir, s.ignored, func(changed []string) error {
		before := s.blockUIDs()
		if err := s.Discover(); err != nil {
			return err
		}
		added, removed := diffUIDs(before, s.blockUIDs())
		if s.debug || len(added)+len(removed) > 0 {
			log.Printf("[Server] Reloaded %s: +%v -%v", strings.Join(changed, ", "), added, removed)
		}
		return nil
	}, s.debug)
	if err != nil {
		return err
	}
	s.watcher = w
	w.Start()
	return nil
}

func (s *Server) blockUIDs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uids := make(map[string]bool, len(s.blocks))
	for uid := range s.blocks {
		uids[uid] = true
	}
	return uids
}

// diffUIDs returns the sorted uids only in after, and only in before.
func diffUIDs(before, after map[string]bool) (added, removed []string) {
	for uid := range after {
		if !before[uid] {
			added = append(added, uid)
		}
	}
	for uid := range before {
		if !after[uid] {
			removed = append(removed, uid)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// Close ends every session and stops the watcher.
func (s *Server) Close() error {
	s.sessMu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessMu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

func (s *Server) gate(uid string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(uid))
	return &s.gates[h.Sum32()%uint32(len(s.gates))]
}

// claim reserves uid for a new session. Only one editor may own a block's
// container at a time. A claim waits out any detached write in progress,
// so once a session holds uid every in-process write to the block comes
// from its loop.
func (s *Server) claim(uid string, sess *session) bool {
	g := s.gate(uid)
	g.Lock()
	defer g.Unlock()

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if _, busy := s.sessions[uid]; busy {
		return false
	}
	s.sessions[uid] = sess
	return true
}

func (s *Server) release(uid string, sess *session) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if s.sessions[uid] == sess {
		delete(s.sessions, uid)
	}
}

// detached runs fn, a store write made without an editor, unless a session
// holds uid; then fn is skipped and the session is returned instead.
func (s *Server) detached(uid string, fn func() error) (*session, error) {
	g := s.gate(uid)
	g.Lock()
	defer g.Unlock()

	if sess := s.session(uid); sess != nil {
		return sess, nil
	}
	return nil, fn()
}

func (s *Server) session(uid string) *session {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	return s.sessions[uid]
}

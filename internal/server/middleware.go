package server

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// CORSMiddleware lets other origins embed published blocks and drive the
// block API. With no origins configured it adds nothing.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	wildcard := allowed["*"]

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || allowed[origin]) {
				h := w.Header()
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				// GET for published output, POST/PUT for block commands.
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets the headers every response carries. The
// widget styles its container inline and published blocks ship their
// document in an inline JSON script, hence 'unsafe-inline'.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	csp := strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: https:",
		"font-src 'self' data:",
		"connect-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs one line per request with the matched route and
// the block it addressed. Successful requests are only logged in debug mode.
func LoggingMiddleware(debug bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// hijacked by the websocket upgrader, or nothing written
				status = http.StatusOK
				if r.Header.Get("Upgrade") == "websocket" {
					status = http.StatusSwitchingProtocols
				}
			}
			if !debug && status < http.StatusInternalServerError {
				return
			}
			log.Print(requestLine(r, status, time.Since(start)))
		})
	}
}

// requestLine formats "[HTTP] PUT /api/blocks/{uid}/theme uid=budget 200 1ms".
func requestLine(r *http.Request, status int, took time.Duration) string {
	route := r.URL.Path
	var uid string
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
		uid = rctx.URLParam("uid")
	}

	var b strings.Builder
	b.WriteString("[HTTP] " + r.Method + " " + route)
	if uid != "" {
		b.WriteString(" uid=" + uid)
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		b.WriteString(" req=" + id)
	}
	fmt.Fprintf(&b, " %d %s", status, took.Round(time.Microsecond))
	return b.String()
}

// clientLimiter is one client's token bucket on the block API.
type clientLimiter struct {
	key      string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds a bounded LRU of client buckets.
type limiterSet struct {
	rps   rate.Limit
	burst int
	max   int

	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front is most recent
	evicted  int
	lastNote time.Time
}

const (
	limiterIdle      = 10 * time.Minute
	limiterSweep     = 5 * time.Minute
	evictionLogEvery = 30 * time.Second
)

func newLimiterSet(rps float64, burst, max int) *limiterSet {
	return &limiterSet{
		rps:   rate.Limit(rps),
		burst: burst,
		max:   max,
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok {
		s.order.MoveToFront(e)
		cl := e.Value.(*clientLimiter)
		cl.lastSeen = now
		return cl.limiter.AllowN(now, 1)
	}

	if s.order.Len() >= s.max {
		if back := s.order.Back(); back != nil {
			s.order.Remove(back)
			delete(s.items, back.Value.(*clientLimiter).key)
			s.evicted++
			if now.Sub(s.lastNote) >= evictionLogEvery {
				log.Printf("[RateLimit] Evicted %d idle client(s) (tracking at most %d)", s.evicted, s.max)
				s.lastNote = now
				s.evicted = 0
			}
		}
	}
	cl := &clientLimiter{key: key, limiter: rate.NewLimiter(s.rps, s.burst), lastSeen: now}
	s.items[key] = s.order.PushFront(cl)
	return cl.limiter.AllowN(now, 1)
}

// sweep drops buckets idle longer than limiterIdle. LRU order tracks use,
// not lastSeen, so the whole list is scanned.
func (s *limiterSet) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := s.order.Back(); e != nil; {
		prev := e.Prev()
		if cl := e.Value.(*clientLimiter); now.Sub(cl.lastSeen) > limiterIdle {
			s.order.Remove(e)
			delete(s.items, cl.key)
		}
		e = prev
	}
}

// RateLimitMiddleware limits block API requests per client. maxClients
// bounds how many buckets are kept; the least recently used is evicted.
// The sweeper goroutine lives until ctx is cancelled; the returned channel
// closes once it has exited.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, maxClients int) (func(http.Handler) http.Handler, <-chan struct{}) {
	if maxClients <= 0 {
		maxClients = 10000
	}
	set := newLimiterSet(rps, burst, maxClients)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				set.sweep(now)
			case <-ctx.Done():
				return
			}
		}
	}()

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.allow(clientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return mw, done
}

// clientIP identifies the caller. Forwarding headers are only believed
// from a loopback or private peer, i.e. a local reverse proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return host
	}
	if peer.IsLoopback() || peer.IsPrivate() {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	return peer.String()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishedBlockIsCompressed(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.http.URL+"/blocks/budget", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	gz, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(body), "budget")
}

func TestBlockAPIIsNotCompressed(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.http.URL+"/api/blocks/budget", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestCORSPreflight(t *testing.T) {
	h := CORSMiddleware([]string{"https://docs.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/blocks/budget/theme", nil)
	req.Header.Set("Origin", "https://docs.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://docs.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := CORSMiddleware(nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/blocks/budget", nil)
	req.Header.Set("Origin", "https://docs.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLineNamesRouteAndBlock(t *testing.T) {
	var line string
	r := chi.NewRouter()
	r.Put("/api/blocks/{uid}/theme", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusConflict)
		line = requestLine(req, http.StatusConflict, 1500*time.Microsecond)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/blocks/budget/theme", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "[HTTP] PUT /api/blocks/{uid}/theme uid=budget 409 1.5ms", line)
}

func TestLimiterSetEvictsLeastRecent(t *testing.T) {
	now := time.Now()
	s := newLimiterSet(0.001, 1, 2)

	assert.True(t, s.allow("10.0.0.1", now))
	assert.True(t, s.allow("10.0.0.2", now))
	assert.False(t, s.allow("10.0.0.1", now))

	// A third client pushes out 10.0.0.2, the least recently used.
	assert.True(t, s.allow("10.0.0.3", now))
	assert.Len(t, s.items, 2)
	assert.NotContains(t, s.items, "10.0.0.2")

	// An evicted client starts over with a full bucket.
	assert.True(t, s.allow("10.0.0.2", now))
	assert.NotContains(t, s.items, "10.0.0.1")
}

func TestLimiterSetSweepsIdleClients(t *testing.T) {
	now := time.Now()
	s := newLimiterSet(1, 1, 10)
	s.allow("10.0.0.1", now)
	s.allow("10.0.0.2", now.Add(limiterIdle))

	s.sweep(now.Add(limiterIdle + time.Second))
	assert.NotContains(t, s.items, "10.0.0.1")
	assert.Contains(t, s.items, "10.0.0.2")
	assert.Equal(t, 1, s.order.Len())
}

func TestRateLimitSweeperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := RateLimitMiddleware(ctx, 1, 1, 0)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "203.0.113.7"},
		{"public peer cannot forward", "203.0.113.7:5000", "198.51.100.1", "203.0.113.7"},
		{"local proxy forwards", "127.0.0.1:5000", "198.51.100.1, 10.0.0.1", "198.51.100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

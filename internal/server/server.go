package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"

	"gamefetch/internal/logging"
	"gamefetch/internal/store"
	"gamefetch/internal/ui"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// historyReader is the read side of the history store.
type historyReader interface {
	ListRuns(ctx context.Context, f store.ListFilter) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, bool, error)
	ListFailures(ctx context.Context, runID string) ([]store.Failure, error)
}

type rateLimiter interface {
	Allow(key string) bool
}

// New returns an http.Handler serving the install history read-only.
func New(hist historyReader) http.Handler {
	rl := newIPRateLimiter(120, time.Minute) // 120 req/min/IP
	mux := http.NewServeMux()

	mux.HandleFunc("/api/runs", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		f, err := parseListFilter(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": err.Error()})
			return
		}
		runs, err := hist.ListRuns(r.Context(), f)
		if err != nil {
			logging.LogDBOperation("list_runs", "", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "runs": runs})
	}))

	mux.HandleFunc("/api/runs/", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
		if id == "" || strings.Contains(id, "/") {
			writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": "not_found"})
			return
		}
		run, found, err := hist.GetRun(r.Context(), id)
		if err != nil {
			logging.LogDBOperation("get_run", id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal_error"})
			return
		}
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": store.ErrRunNotFound.Error()})
			return
		}
		failures, err := hist.ListFailures(r.Context(), id)
		if err != nil {
			logging.LogDBOperation("list_failures", id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal_error"})
			return
		}
		if failures == nil {
			failures = []store.Failure{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "run": run, "failures": failures})
	}))

	// HTML pages over the same history
	mux.HandleFunc("/", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		f, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		runs, err := hist.ListRuns(r.Context(), f)
		if err != nil {
			logging.LogDBOperation("list_runs", "", err)
			http.Error(w, "internal_error", http.StatusInternalServerError)
			return
		}
		renderHTML(w, r, http.StatusOK, ui.RunsPage(runs))
	}))

	mux.HandleFunc("/runs/", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		run, found, err := hist.GetRun(r.Context(), id)
		if err != nil {
			logging.LogDBOperation("get_run", id, err)
			http.Error(w, "internal_error", http.StatusInternalServerError)
			return
		}
		if !found {
			http.NotFound(w, r)
			return
		}
		failures, err := hist.ListFailures(r.Context(), id)
		if err != nil {
			logging.LogDBOperation("list_failures", id, err)
			http.Error(w, "internal_error", http.StatusInternalServerError)
			return
		}
		renderHTML(w, r, http.StatusOK, ui.RunPage(run, failures))
	}))

	// Healthcheck
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return recoverer(logger(mux))
}

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	q := r.URL.Query()
	f := store.ListFilter{
		Status:    q.Get("status"),
		VersionID: q.Get("version"),
		Order:     q.Get("order"),
		Limit:     defaultListLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("invalid_limit")
		}
		f.Limit = min(n, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid_offset")
		}
		f.Offset = n
	}
	return f, nil
}

// Utilities

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"status": "error", "message": "method_not_allowed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func renderHTML(w http.ResponseWriter, r *http.Request, code int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := c.Render(r.Context(), w); err != nil {
		logging.With(r.Context()).Warn("render page", "event", "render_error", "path", r.URL.Path, "error", err)
	}
}

// Middleware

func with(rl rateLimiter, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"status": "error", "message": "rate_limited"})
			return
		}
		h(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		// Health checks would drown the log.
		if r.URL.Path == "/healthz" {
			return
		}
		logging.LogHTTPRequest(r.Method, r.URL.Path, clientIP(r), time.Since(start), rec.status)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logging.With(r.Context()).Error("handler panic",
					"event", "http_panic",
					"path", r.URL.Path,
					"error", fmt.Sprint(v))
				writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal_error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// Respect common proxy headers, then fall back to RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return strings.TrimSpace(xr)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// Buckets idle longer than this are evicted.
const bucketTTL = 24 * time.Hour

// ipRateLimiter is a token bucket per client IP, refilled to capacity once
// per interval.
type ipRateLimiter struct {
	cap     int
	refill  time.Duration
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens int
	last   time.Time
}

func newIPRateLimiter(cap int, refill time.Duration) *ipRateLimiter {
	rl := &ipRateLimiter{
		cap:     cap,
		refill:  refill,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.janitor(time.Hour)
	return rl
}

func (rl *ipRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{tokens: rl.cap - 1, last: now}
		rl.buckets[key] = b
		return true
	}
	if now.Sub(b.last) >= rl.refill {
		b.tokens = rl.cap
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (rl *ipRateLimiter) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-t.C:
			rl.cleanup()
		}
	}
}

// cleanup evicts buckets idle for longer than bucketTTL.
func (rl *ipRateLimiter) cleanup() {
	rl.mu.Lock()
	cutoff := rl.now().Add(-bucketTTL)
	defer rl.mu.Unlock()
	for k, b := range rl.buckets {
		if b.last.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *ipRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

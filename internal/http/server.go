// Package http exposes the JSON API: transactions, CSV import/export,
// rules, savings allocations, accounts, and the aggregated overview.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"budget/internal/cache"
	"budget/internal/session"
	"budget/internal/snapshot"
	"budget/internal/views"
)

type Server struct {
	http.Server
	gateway     snapshot.Gateway
	rateLimiter *rateLimiter

	// One session per user id, created lazily on first request.
	sessMu   sync.Mutex
	sessions map[string]*sessionEntry

	// Memoized overviews keyed by user, mutation revision, and filter.
	overviewCache *cache.LRUCache[views.Overview]

	shutdownOnce sync.Once
}

type sessionEntry struct {
	sess *session.Session
	rev  atomic.Int64 // bumped on every mutation to invalidate cached overviews
}

// NewServer configures all routes and returns a ready-to-run server.
func NewServer(addr string, gateway snapshot.Gateway, cacheSize int, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		gateway:       gateway,
		rateLimiter:   newRateLimiter(),
		sessions:      make(map[string]*sessionEntry),
		overviewCache: cache.NewLRUCache[views.Overview](cacheSize, cacheTTL),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/overview", s.withMiddleware(s.handleOverview))

	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleAddTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withMiddleware(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/import", s.withMiddleware(s.handleImportCSV))
	mux.HandleFunc("GET /api/export", s.withMiddleware(s.handleExportCSV))

	mux.HandleFunc("GET /api/rules", s.withMiddleware(s.handleListRules))
	mux.HandleFunc("POST /api/rules", s.withMiddleware(s.handleAddRule))
	mux.HandleFunc("DELETE /api/rules/{pattern}", s.withMiddleware(s.handleDeleteRule))
	mux.HandleFunc("POST /api/rules/reapply", s.withMiddleware(s.handleReapply))

	mux.HandleFunc("GET /api/transactions/{id}/allocations", s.withMiddleware(s.handleListAllocations))
	mux.HandleFunc("POST /api/transactions/{id}/allocations", s.withMiddleware(s.handleAllocate))
	mux.HandleFunc("DELETE /api/transactions/{id}/allocations/{index}", s.withMiddleware(s.handleDeallocate))

	mux.HandleFunc("GET /api/accounts", s.withMiddleware(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.withMiddleware(s.handleAddAccount))
	mux.HandleFunc("PUT /api/accounts/{id}", s.withMiddleware(s.handleRenameAccount))
	mux.HandleFunc("POST /api/accounts/{id}/switch", s.withMiddleware(s.handleSwitchAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.withMiddleware(s.handleDeleteAccount))

	mux.HandleFunc("POST /api/logout", s.withMiddleware(s.handleLogout))

	return s
}

// sessionFor returns the session for a user, loading the persisted
// snapshot on first access.
func (s *Server) sessionFor(ctx context.Context, userID string) (*sessionEntry, error) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	if entry, ok := s.sessions[userID]; ok {
		return entry, nil
	}

	sess := session.New(s.gateway, userID)
	if err := sess.Load(ctx); err != nil {
		return nil, fmt.Errorf("load session for %s: %w", userID, err)
	}
	entry := &sessionEntry{sess: sess}
	s.sessions[userID] = entry
	return entry, nil
}

// dropSession forgets a user's session, e.g. on logout.
func (s *Server) dropSession(userID string) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	delete(s.sessions, userID)
}

// bump invalidates every cached overview of the entry's user.
func (s *Server) bump(entry *sessionEntry) {
	entry.rev.Add(1)
}

// userID extracts the caller identity. The API trusts the header; real
// authentication sits in front of this service.
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return "default"
}

// Shutdown stops the HTTP server and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter, 60 mutating requests per client per
// minute.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

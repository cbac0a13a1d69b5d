// Package web exposes a small status API for the long-running serve mode:
// health, the last run's summary, and a manual sync trigger.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/pschmitt/gcal-import-ics/internal/config"
	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/sync"
)

// RunFunc triggers one reconciliation pass.
type RunFunc func(ctx context.Context) (sync.Summary, error)

type runStatus struct {
	LastRun   *time.Time    `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Summary   *sync.Summary `json:"summary,omitempty"`
	Running   bool          `json:"running"`
}

type Server struct {
	cfg *config.Config
	run RunFunc
	mux *http.ServeMux

	mu     stdsync.Mutex
	status runStatus
}

func NewServer(cfg *config.Config, run RunFunc) *Server {
	s := &Server{
		cfg: cfg,
		run: run,
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/sync", s.handleSync)
	return s
}

// Handler returns the server's handler, wrapped in basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Record stores the outcome of a run (triggered here or by the cron
// loop) so /api/status reflects it.
func (s *Server) Record(sum sync.Summary, err error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRun = &now
	s.status.Summary = &sum
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware protects all handlers except /health, which stays
// open for liveness probes.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gcal-import-ics", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

// handleSync runs a synchronous reconciliation pass. Concurrent triggers
// are rejected rather than queued; the cron loop provides periodicity.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if s.status.Running {
		s.mu.Unlock()
		http.Error(w, "sync already running", http.StatusConflict)
		return
	}
	s.status.Running = true
	s.mu.Unlock()

	sum, err := s.run(r.Context())
	s.Record(sum, err)

	s.mu.Lock()
	s.status.Running = false
	st := s.status
	s.mu.Unlock()

	code := http.StatusOK
	if err != nil {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to encode response", err)
	}
}

// Serve runs the status server until ctx is canceled.
func Serve(ctx context.Context, cfg *config.Config, s *Server) error {
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("status server listening", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

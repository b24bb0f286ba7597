package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"voice-call/internal/application"
)

// Controls is the part of the turn controller exposed over HTTP.
type Controls interface {
	SetEnabled(enabled bool)
	SetMuted(muted bool)
	Status() application.Status
}

// Checker probes a dependency for the health endpoint.
type Checker func(ctx context.Context) error

// Server is the presentation-side HTTP API: call and mute toggles, state,
// health and metrics.
type Server struct {
	addr        string
	controls    Controls
	checks      map[string]Checker
	logger      *slog.Logger
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	authToken   string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
}

func NewServer(addr, authToken string, controls Controls, metrics http.Handler, checks map[string]Checker, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		controls:    controls,
		checks:      checks,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute), // 30 toggles per minute per IP
		authToken:   authToken,
	}

	s.mux.HandleFunc("POST /enable", s.guard(s.toggle(func(c Controls) { c.SetEnabled(true) })))
	s.mux.HandleFunc("POST /disable", s.guard(s.toggle(func(c Controls) { c.SetEnabled(false) })))
	s.mux.HandleFunc("POST /mute", s.guard(s.toggle(func(c Controls) { c.SetMuted(true) })))
	s.mux.HandleFunc("POST /unmute", s.guard(s.toggle(func(c Controls) { c.SetMuted(false) })))
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("control server starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

// guard applies rate limiting and, when configured, token auth.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return s.rateLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.authToken {
				s.logger.Warn("unauthorized control request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	})
}

func (s *Server) toggle(apply func(Controls)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(s.controls)
		s.logger.Info("control toggled", "path", r.URL.Path)
		s.writeStatus(w, http.StatusOK)
	}
}

type statusResponse struct {
	State      string        `json:"state"`
	Enabled    bool          `json:"enabled"`
	Muted      bool          `json:"muted"`
	AISpeaking bool          `json:"ai_speaking"`
	LastTurn   *turnResponse `json:"last_turn,omitempty"`
}

type turnResponse struct {
	UtteranceID string    `json:"utterance_id"`
	UserText    string    `json:"user_text"`
	AIText      string    `json:"ai_text"`
	At          time.Time `json:"at"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeStatus(w, http.StatusOK)
}

func (s *Server) writeStatus(w http.ResponseWriter, code int) {
	st := s.controls.Status()
	resp := statusResponse{
		State:      st.State.String(),
		Enabled:    st.Enabled,
		Muted:      st.Muted,
		AISpeaking: st.AISpeaking,
	}
	if st.LastTurn != nil {
		resp.LastTurn = &turnResponse{
			UtteranceID: st.LastTurn.UtteranceID,
			UserText:    st.LastTurn.UserText,
			AIText:      st.LastTurn.AIText,
			At:          st.LastTurn.At,
		}
	}
	writeJSON(w, code, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for name, check := range s.checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Package admin serves the operational HTTP surface: health probes, the
// Prometheus metrics endpoint, and a correction dry-run API for exercising
// sentence templates without a microphone.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wirgen/wyoming-vosk/internal/health"
	"github.com/wirgen/wyoming-vosk/internal/sentences"
)

// Corrector scores raw text against a language's sentence corpus. It is the
// same path transcripts take after recognition, so the dry-run endpoint
// answers exactly what the service would emit.
type Corrector interface {
	Correct(ctx context.Context, language, text string, cutoff int) (sentences.Result, error)
}

// Server is the admin HTTP endpoint.
type Server struct {
	addr          string
	authToken     string
	corrector     Corrector
	defaultCutoff int
	logger        *slog.Logger

	mux         *http.ServeMux
	rateLimiter *RateLimiter
	server      *http.Server
	mu          sync.Mutex
	running     bool
}

// NewServer wires the admin routes. checks back the /readyz probe;
// /metrics serves the process-wide Prometheus registry.
func NewServer(addr, authToken string, defaultCutoff int, corrector Corrector, checks []health.Check, logger *slog.Logger) *Server {
	s := &Server{
		addr:          addr,
		authToken:     authToken,
		corrector:     corrector,
		defaultCutoff: defaultCutoff,
		logger:        logger.With("component", "admin"),
		mux:           http.NewServeMux(),
		rateLimiter:   NewRateLimiter(30, time.Minute), // 30 requests per minute per IP
	}
	s.mux.HandleFunc("POST /api/correct", s.rateLimiter.Middleware(s.handleCorrect))
	// No rate limiting on probes or metrics
	health.New(checks...).Register(s.mux)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("admin server starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin server error", "error", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type correctRequest struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Cutoff   *int   `json:"cutoff,omitempty"`
}

type correctResponse struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Accepted bool    `json:"accepted"`
	Cutoff   int     `json:"cutoff"`
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	// Verify auth token if configured
	if s.authToken != "" {
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			s.logger.Warn("unauthorized correction request", "remote_addr", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var req correctRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Language == "" || req.Text == "" {
		http.Error(w, "language and text are required", http.StatusBadRequest)
		return
	}

	cutoff := s.defaultCutoff
	if req.Cutoff != nil {
		cutoff = *req.Cutoff
	}
	if cutoff < 0 || cutoff > 100 {
		http.Error(w, "cutoff must be between 0 and 100", http.StatusBadRequest)
		return
	}

	result, err := s.corrector.Correct(r.Context(), req.Language, req.Text, cutoff)
	if err != nil {
		s.logger.Error("correction dry run failed", "language", req.Language, "error", err)
		http.Error(w, "correction failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(correctResponse{
		Text:     result.Text,
		Score:    result.Score,
		Accepted: result.Accepted,
		Cutoff:   cutoff,
	})
}

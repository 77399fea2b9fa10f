package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/delivery/cron"
	"auto_update_reviews/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

const runFailedMessage = "ingestion run failed, see the run log for details"

// Scheduler is the part of the scheduler the admin API drives.
type Scheduler interface {
	Status() cron.Status
	Stats(ctx context.Context) (cron.Stats, error)
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	TriggerManualRun(ctx context.Context) (domain.RunResult, error)
	RecentLogs(ctx context.Context, limit int) ([]*domain.RunLog, error)
}

// Server exposes a lightweight admin API for the scheduler, the run log and recent reviews.
type Server struct {
	cfg       *config.Config
	scheduler Scheduler
	reviews   domain.ReviewRepository
	metrics   http.Handler
	logger    *zap.Logger
	handler   http.Handler
	server    *http.Server
}

// NewServer creates a new HTTP server. metricsHandler may be nil.
func NewServer(cfg *config.Config, scheduler Scheduler, reviews domain.ReviewRepository, metricsHandler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:       cfg,
		scheduler: scheduler,
		reviews:   reviews,
		metrics:   metricsHandler,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/scheduler/status", s.handleStatus)
	mux.HandleFunc("/api/scheduler/stats", s.handleStats)
	mux.HandleFunc("/api/scheduler/enable", s.handleEnable)
	mux.HandleFunc("/api/scheduler/disable", s.handleDisable)
	mux.HandleFunc("/api/scheduler/run", s.handleRun)
	mux.HandleFunc("/api/scheduler/logs", s.handleLogs)
	mux.HandleFunc("/api/reviews/recent", s.handleRecentReviews)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.handler = loggingMiddleware(logger, mux)
	s.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests in a separate goroutine.
func (s *Server) Start() error {
	if s.cfg.ServerPort == "" {
		return fmt.Errorf("server port is not configured")
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http api server stopped with error", zap.Error(err))
		}
	}()
	s.logger.Info("HTTP API server listening", zap.String("addr", s.server.Addr))
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.scheduler.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, true)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, false)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, enable bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var err error
	if enable {
		err = s.scheduler.Enable(r.Context())
	} else {
		err = s.scheduler.Disable(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": enable})
}

// handleRun runs the pipeline synchronously and returns its counts.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	result, err := s.scheduler.TriggerManualRun(r.Context())
	if err != nil {
		if errors.Is(err, cron.ErrRunNotStarted) {
			respondError(w, http.StatusServiceUnavailable, "run did not start: another run is still executing")
			return
		}
		s.logger.Error("manual run failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   runFailedMessage,
			"result":  result,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	logs, err := s.scheduler.RecentLogs(r.Context(), parseLimit(r, 10))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []*domain.RunLog{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

func (s *Server) handleRecentReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reviews, err := s.reviews.ListRecent(r.Context(), parseLimit(r, defaultListLimit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

func parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			if parsed > maxListLimit {
				parsed = maxListLimit
			}
			limit = parsed
		}
	}
	return limit
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// Package server exposes the evaluation pipeline over HTTP. Validation
// failures are rejected here, before the core: the pipeline itself never
// sees a syntactically invalid event.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"triage/internal/pipeline"
	"triage/pkg/domain/notification"
)

// Evaluator is the pipeline port the server depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, e *notification.Event) (*notification.Decision, error)
}

// Server carries the HTTP handler state.
type Server struct {
	engine   Evaluator
	validate *validator.Validate
	log      *zap.Logger
}

// New builds a server around the evaluator.
func New(engine Evaluator, log *zap.Logger) *Server {
	return &Server{
		engine:   engine,
		validate: validator.New(),
		log:      log,
	}
}

// Router assembles the route tree. metricsHandler serves GET /metrics and
// may be nil when metrics exposure is not wanted (tests).
func (s *Server) Router(metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Post("/api/v1/notifications/evaluate", s.handleEvaluate)
	return r
}

type evaluateRequest struct {
	EventID      string         `json:"event_id"`
	UserID       string         `json:"user_id" validate:"required"`
	EventType    string         `json:"event_type" validate:"required"`
	Message      string         `json:"message"`
	Source       string         `json:"source"`
	PriorityHint string         `json:"priority_hint" validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	Channel      string         `json:"channel" validate:"omitempty,oneof=push email sms in-app"`
	Timestamp    *time.Time     `json:"timestamp"`
	DedupeKey    string         `json:"dedupe_key"`
	ExpiresAt    *time.Time     `json:"expires_at"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}

	e := &notification.Event{
		EventID:      req.EventID,
		UserID:       req.UserID,
		EventType:    req.EventType,
		Message:      req.Message,
		Source:       req.Source,
		PriorityHint: notification.Priority(req.PriorityHint),
		Channel:      notification.Channel(req.Channel),
		DedupeKey:    req.DedupeKey,
		ExpiresAt:    req.ExpiresAt,
		Metadata:     req.Metadata,
	}
	if req.Timestamp != nil {
		e.Timestamp = *req.Timestamp
	}

	dec, err := s.engine.Evaluate(r.Context(), e)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("evaluation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dec); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// requestLogger logs one line per request with latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}

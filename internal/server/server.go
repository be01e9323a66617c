// Package server exposes the chat and admin HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nickdtt/ia-crm/internal/conversation"
	apperrors "github.com/Nickdtt/ia-crm/internal/errors"
	"github.com/Nickdtt/ia-crm/internal/health"
	"github.com/Nickdtt/ia-crm/internal/idempotency"
	"github.com/Nickdtt/ia-crm/internal/jobs"
	"github.com/Nickdtt/ia-crm/internal/ratelimit"
	"github.com/Nickdtt/ia-crm/internal/scheduling"
	"github.com/Nickdtt/ia-crm/pkg/logger"
)

// Server wires HTTP handlers to the dialogue engine and scheduling services.
type Server struct {
	engine       *conversation.Engine
	booking      *scheduling.Booking
	availability *scheduling.Availability
	checker      *health.Checker
	limiter      ratelimit.Limiter
	rules        *ratelimit.Rules
	idempotency  idempotency.Manager
	dedupeTTL    time.Duration
	jobsManager  jobs.Manager
	log          *slog.Logger
}

// Options carries the server's collaborators. Limiter, Idempotency and
// JobsManager are optional; the corresponding behavior is skipped when nil.
type Options struct {
	Engine       *conversation.Engine
	Booking      *scheduling.Booking
	Availability *scheduling.Availability
	Checker      *health.Checker
	Limiter      ratelimit.Limiter
	Rules        *ratelimit.Rules
	Idempotency  idempotency.Manager
	DedupeTTL    time.Duration
	JobsManager  jobs.Manager
	Log          *slog.Logger
}

// New constructs the Server.
func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		engine:       opts.Engine,
		booking:      opts.Booking,
		availability: opts.Availability,
		checker:      opts.Checker,
		limiter:      opts.Limiter,
		rules:        opts.Rules,
		idempotency:  opts.Idempotency,
		dedupeTTL:    opts.DedupeTTL,
		jobsManager:  opts.JobsManager,
		log:          log,
	}
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/chat/message", s.rateLimited(http.HandlerFunc(s.handleChatMessage)))
	mux.HandleFunc("POST /api/v1/chat/reset", s.handleChatReset)

	mux.HandleFunc("GET /api/v1/admin/appointments", s.handleListAppointments)
	mux.HandleFunc("POST /api/v1/admin/appointments/{id}/cancel", s.handleCancelAppointment)
	mux.HandleFunc("POST /api/v1/admin/blocks", s.handleCreateBlock)
	mux.HandleFunc("DELETE /api/v1/admin/blocks", s.handleDeleteBlocks)
	mux.HandleFunc("GET /api/v1/admin/slots", s.handleListSlots)
	mux.HandleFunc("POST /api/v1/admin/sweep", s.handleSweep)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return logger.Middleware(s.log)(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	results, healthy := s.checker.Check(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, map[string]interface{}{
		"status":     statusLabel(healthy),
		"components": results,
	})
}

func statusLabel(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError maps the error taxonomy onto HTTP status codes and never leaks
// internal messages for unclassified errors.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		s.log.Error("unclassified http error", slog.Any("error", err))
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case "E100":
		status = http.StatusBadRequest
	case "E400":
		status = http.StatusConflict
	case "E500":
		status = http.StatusUnprocessableEntity
	case "E300":
		status = http.StatusBadGateway
	}

	msg := appErr.UserMessage
	if msg == "" {
		msg = "internal error"
	}

	respondJSON(w, status, errorBody{Error: msg, Code: appErr.Code})
}

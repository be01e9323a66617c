package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const globalLimitKey = "global"

// rateLimited throttles chat messages per session and globally. The session
// id is peeked from the body without consuming it so the handler can decode
// normally. Limiter failures after fallback fail open: a broken throttle must
// not take the chat down.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil || s.rules == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var peek struct {
			SessionID string `json:"session_id"`
		}
		_ = json.Unmarshal(body, &peek)

		if peek.SessionID == "" || s.rules.IsWhitelisted(peek.SessionID) {
			next.ServeHTTP(w, r)
			return
		}

		if !s.allow(r, "session:"+peek.SessionID, s.rules.PerSessionLimit) {
			respondJSON(w, http.StatusTooManyRequests, errorBody{
				Error: "Calma! Você está enviando mensagens rápido demais. Aguarde um instante.",
			})
			return
		}

		if !s.allow(r, globalLimitKey, s.rules.GlobalLimit) {
			respondJSON(w, http.StatusTooManyRequests, errorBody{
				Error: "Estamos com muitas conversas no momento. Tente novamente em instantes.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allow(r *http.Request, key string, rule func() (int, time.Duration, error)) bool {
	limit, window, err := rule()
	if err != nil || limit <= 0 {
		return true
	}

	result, err := s.limiter.Check(r.Context(), key, limit, window)
	if err != nil {
		if result != nil && !result.Allowed {
			return false
		}
		s.log.Warn("rate limit check failed open", slog.String("key", key), slog.Any("error", err))
		return true
	}

	return result.Allowed
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Nickdtt/ia-crm/internal/idempotency"
)

const (
	maxMessageBytes = 4096

	// Replay window for retried deliveries carrying the same message id,
	// used when no TTL is configured.
	defaultDedupeTTL = 10 * time.Minute
)

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
}

type chatMessageResponse struct {
	Response         string `json:"response"`
	SessionID        string `json:"session_id"`
	ConversationMode string `json:"conversation_mode"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "session_id is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "message is required"})
		return
	}

	turn := func(ctx context.Context) (interface{}, error) {
		reply, err := s.engine.HandleTurn(ctx, req.SessionID, req.Message)
		if err != nil {
			return nil, err
		}

		return chatMessageResponse{
			Response:         reply.Text,
			SessionID:        req.SessionID,
			ConversationMode: reply.Mode,
		}, nil
	}

	// A client retry with the same message id replays the stored reply
	// instead of advancing the conversation twice.
	if s.idempotency != nil && req.MessageID != "" {
		key := idempotency.GenerateKey(req.SessionID, req.MessageID)

		ttl := s.dedupeTTL
		if ttl <= 0 {
			ttl = defaultDedupeTTL
		}

		result, err := s.idempotency.Execute(r.Context(), key, ttl, turn)
		if err != nil {
			if errors.Is(err, idempotency.ErrRequestInProgress) {
				respondJSON(w, http.StatusConflict, errorBody{Error: "message is already being processed"})
				return
			}
			s.respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result.Response)
		return
	}

	response, err := turn(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, response)
}

type chatResetRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	var req chatResetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "session_id is required"})
		return
	}

	if err := s.engine.ResetSession(r.Context(), req.SessionID); err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "reset",
		"session_id": req.SessionID,
	})
}

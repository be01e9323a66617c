package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Nickdtt/ia-crm/internal/jobs"
	"github.com/Nickdtt/ia-crm/internal/scheduling"
)

// CompleteElapsedHandler sweeps active appointments whose meeting window has
// ended and marks them completed.
type CompleteElapsedHandler struct {
	booking *scheduling.Booking
	log     *slog.Logger
}

// NewCompleteElapsedHandler wires the sweep to the booking service.
func NewCompleteElapsedHandler(booking *scheduling.Booking, log *slog.Logger) *CompleteElapsedHandler {
	if log == nil {
		log = slog.Default()
	}

	return &CompleteElapsedHandler{booking: booking, log: log}
}

func (h *CompleteElapsedHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.CompleteElapsedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "complete elapsed: failed to decode payload",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
		return err
	}

	count, err := h.booking.CompleteElapsed(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "complete elapsed: sweep failed",
			slog.String("reason", payload.Reason),
			slog.Any("error", err),
		)
		return err
	}

	if count > 0 {
		h.log.InfoContext(ctx, "complete elapsed: sweep finished",
			slog.String("reason", payload.Reason),
			slog.Int("completed", count),
		)
	}

	return nil
}

package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Nickdtt/ia-crm/internal/domain"
	apperrors "github.com/Nickdtt/ia-crm/internal/errors"
	"github.com/Nickdtt/ia-crm/internal/repository"
	"github.com/Nickdtt/ia-crm/internal/session"
	"github.com/Nickdtt/ia-crm/pkg/metrics"
)

const meetingType = "Consultoria Gratuita"

// handleCreatingAppointment resolves the final timestamp, creates or reuses
// the lead, and books through the booking service. A pre-existing active
// appointment for the lead is cancelled by the service (reschedule path); a
// conflict that appears between slot check and insert reverts to datetime
// collection with alternatives instead of surfacing an error.
func (e *Engine) handleCreatingAppointment(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state

	at := st.ChosenSlot
	if at == nil {
		at = st.RequestedAt
	}
	if at == nil {
		tc.say(e.catalog.Get("datetime.ask"))
		return session.StepCollectingDatetime, false, nil
	}

	leadID, err := e.resolveLead(ctx, tc)
	if err != nil {
		metrics.RecordAppointment("book", "error")
		e.log.Error("lead resolution failed", slog.String("session_id", st.SessionID), slog.Any("error", err))
		tc.say(e.catalog.Get("appointment.register_failed"))
		return session.StepCollectingDatetime, false, nil
	}
	if leadID == nil {
		tc.say(e.catalog.Get("appointment.missing_data"))
		return session.StepCollectingLead, false, nil
	}

	appt, rescheduled, err := e.booking.Book(ctx, *leadID, *at, meetingType, "Agendamento via chat web")
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == "E400" {
			// Someone else took the slot between check and insert.
			metrics.RecordAppointment("book", "conflict")
			slots, availErr := e.availability.AvailableSlots(ctx, *at)
			if availErr != nil {
				return session.StepCollectingDatetime, false, availErr
			}
			e.offerAlternatives(tc, slots, at.In(e.availability.Location()))
			return session.StepCollectingDatetime, false, nil
		}

		metrics.RecordAppointment("book", "error")
		return session.StepCollectingDatetime, false, err
	}

	metrics.RecordAppointment("book", "ok")

	st.AppointmentID = &appt.ID
	st.AppointmentConfirmed = true
	tc.rescheduled = rescheduled

	return session.StepConfirming, true, nil
}

// resolveLead returns the lead to book for, creating it on first booking.
// A nil id with nil error means required lead fields are still missing.
func (e *Engine) resolveLead(ctx context.Context, tc *turnContext) (*uuid.UUID, error) {
	st := tc.state

	if st.LeadID != nil {
		return st.LeadID, nil
	}

	if st.LeadName == "" || st.LeadEmail == "" || st.LeadInterest == "" {
		return nil, nil
	}

	phone := domain.SynthesizePhone(st.SessionID)

	if existing, err := e.leads.FindByPhone(ctx, phone); err == nil {
		st.LeadID = &existing.ID
		return st.LeadID, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	lead := &domain.Lead{
		ID:        uuid.New(),
		Name:      st.LeadName,
		Email:     st.LeadEmail,
		Phone:     phone,
		Interest:  st.LeadInterest,
		Notes:     "Lead capturado via chat web. Interesse: " + st.LeadInterest,
		CreatedAt: e.now().UTC(),
	}

	if err := e.leads.Create(ctx, lead); err != nil {
		if errors.Is(err, repository.ErrDuplicateContact) {
			// Lost a create race for the same contact; use the winner.
			existing, findErr := e.leads.FindByPhone(ctx, phone)
			if findErr != nil {
				return nil, apperrors.NewIntegrityError("duplicate contact but lookup failed: " + phone)
			}
			st.LeadID = &existing.ID
			return st.LeadID, nil
		}
		return nil, err
	}

	e.log.Info("lead created",
		slog.String("lead_id", lead.ID.String()),
		slog.String("phone", phone),
	)

	if err := e.leadCache.Invalidate(ctx, phone); err != nil {
		e.log.Warn("lead cache invalidation failed", slog.Any("error", err))
	}

	st.LeadID = &lead.ID
	return st.LeadID, nil
}

package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/Nickdtt/ia-crm/internal/domain"
	"github.com/Nickdtt/ia-crm/internal/leadcache"
	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/repository"
	"github.com/Nickdtt/ia-crm/internal/session"
	"github.com/Nickdtt/ia-crm/pkg/metrics"
)

// handleGreeting opens a session: it recognizes returning leads by their
// synthesized contact identifier and replies contextually instead of
// re-presenting, and it catches cancellation requests for a confirmed
// appointment before any other routing.
func (e *Engine) handleGreeting(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state

	if st.AppointmentConfirmed && st.AppointmentID != nil && nlu.WantsToCancel(tc.input) {
		return e.cancelFromChat(ctx, tc)
	}

	phone := domain.SynthesizePhone(st.SessionID)

	lead, err := e.findLeadByPhone(ctx, phone)
	if err != nil {
		e.log.Warn("lead lookup failed on greeting", slog.String("phone", phone), slog.Any("error", err))
	}

	st.PresentationDone = true

	if lead == nil {
		st.Mode = session.ModeIdle
		tc.say(e.catalog.Get("greeting.presentation"))
		return session.StepGreeting, false, nil
	}

	// Returning lead: no generic presentation, greet by name with the
	// relevant context and leave the session answering questions.
	st.LeadID = &lead.ID
	st.LeadName = lead.Name
	st.LeadEmail = lead.Email
	st.LeadInterest = lead.Interest
	st.LeadCollectionComplete = lead.Name != "" && lead.Email != "" && lead.Interest != ""

	active, err := e.booking.ActiveForLead(ctx, lead.ID)
	if err != nil {
		return session.StepGreeting, false, err
	}

	if active != nil {
		st.Mode = session.ModeReturningWithAppointment
		st.AppointmentID = &active.ID
		st.AppointmentConfirmed = true
		tc.say(e.catalog.Render("greeting.returning_with_appointment", map[string]string{
			"name":     lead.FirstName(),
			"datetime": formatDateTime(active.ScheduledAt.In(e.availability.Location())),
		}))
	} else {
		st.Mode = session.ModeReturningWithoutAppointment
		tc.say(e.catalog.Render("greeting.returning_without_appointment", map[string]string{
			"name": lead.FirstName(),
		}))
	}

	return session.StepAnswering, false, nil
}

func (e *Engine) cancelFromChat(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state

	if _, err := e.booking.Cancel(ctx, *st.AppointmentID, "Cancelado pelo cliente via chat"); err != nil {
		metrics.RecordAppointment("cancel", "error")
		e.log.Error("chat cancellation failed",
			slog.String("appointment_id", st.AppointmentID.String()),
			slog.Any("error", err),
		)
		tc.say(e.catalog.Get("greeting.cancel_failed"))
		return session.StepGreeting, false, nil
	}

	metrics.RecordAppointment("cancel", "ok")

	st.AppointmentConfirmed = false
	st.AppointmentID = nil
	st.Mode = session.ModeIdle
	st.ResetBookingAttempt()

	tc.say(e.catalog.Get("greeting.cancelled"))
	return session.StepGreeting, false, nil
}

func (e *Engine) findLeadByPhone(ctx context.Context, phone string) (*domain.Lead, error) {
	if cached, err := e.leadCache.Get(ctx, phone); err == nil && cached != nil {
		return cached, nil
	}

	lead, err := e.leads.FindByPhone(ctx, phone)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	if err := e.leadCache.Set(ctx, phone, lead, leadcache.DefaultTTL); err != nil {
		e.log.Warn("lead cache set failed", slog.Any("error", err))
	}

	return lead, nil
}

var weekdaysPT = [...]string{"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}

func weekdayPT(t time.Time) string {
	return weekdaysPT[int(t.Weekday())]
}

func formatDateTime(t time.Time) string {
	return t.Format("02/01/2006 às 15:04")
}

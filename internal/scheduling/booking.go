package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Nickdtt/ia-crm/internal/errors"

	"github.com/Nickdtt/ia-crm/internal/domain"
	"github.com/Nickdtt/ia-crm/internal/repository"
)

// Shift names a half-day window for administrative blocks.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

const rescheduleReason = "Reagendamento para novo horário"

// Booking owns the appointment lifecycle. Step handlers request transitions
// through it and never touch records directly.
type Booking struct {
	leads repository.LeadRepository
	appts repository.AppointmentRepository
	loc   *time.Location
	now   func() time.Time
	log   *slog.Logger

	meetingMinutes int
}

// NewBooking constructs the booking service. meetingMinutes is the default
// appointment duration.
func NewBooking(
	leads repository.LeadRepository,
	appts repository.AppointmentRepository,
	loc *time.Location,
	meetingMinutes int,
	log *slog.Logger,
) *Booking {
	if log == nil {
		log = slog.Default()
	}
	if meetingMinutes <= 0 {
		meetingMinutes = 60
	}

	return &Booking{
		leads:          leads,
		appts:          appts,
		loc:            loc,
		now:            time.Now,
		log:            log,
		meetingMinutes: meetingMinutes,
	}
}

// WithClock overrides the time source. Tests only.
func (b *Booking) WithClock(now func() time.Time) *Booking {
	b.now = now
	return b
}

// MeetingMinutes returns the default appointment duration.
func (b *Booking) MeetingMinutes() int {
	return b.meetingMinutes
}

// Book creates a pending appointment for the lead at the given timestamp.
// A pre-existing active appointment for the same lead is cancelled first
// (the reschedule path); rescheduled reports whether that happened.
// The conflict check and the insert are one atomic unit, so two sessions
// racing for the same timestamp cannot both win.
func (b *Booking) Book(ctx context.Context, leadID uuid.UUID, at time.Time, meetingType, notes string) (appt *domain.Appointment, rescheduled bool, err error) {
	if _, err := b.leads.FindByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, apperrors.NewValidationError(
				"booking for unknown lead "+leadID.String(),
				"Não encontrei seu cadastro. Pode me passar seus dados novamente?",
			)
		}
		return nil, false, apperrors.NewDatabaseError(err)
	}

	if !at.After(b.now()) {
		return nil, false, apperrors.NewValidationError(
			"booking in the past: "+at.Format(time.RFC3339),
			"Não é possível agendar no passado. Pode escolher uma data futura?",
		)
	}

	existing, err := b.activeAppointment(ctx, leadID)
	if err != nil {
		return nil, false, err
	}

	// The new slot is secured before the old appointment is touched, so a
	// lost insert race leaves the prior booking intact. Rebooking the very
	// timestamp the lead already holds is the one order that cannot work,
	// so that case frees the slot first.
	if existing != nil && existing.ScheduledAt.Equal(at) {
		if _, err := b.Cancel(ctx, existing.ID, rescheduleReason); err != nil {
			return nil, false, err
		}
		existing = nil
		rescheduled = true
	}

	appt = &domain.Appointment{
		ID:              uuid.New(),
		LeadID:          &leadID,
		ScheduledAt:     at,
		DurationMinutes: b.meetingMinutes,
		MeetingType:     meetingType,
		Notes:           notes,
		Status:          domain.StatusPending,
		CreatedAt:       b.now().UTC(),
	}

	if err := b.appts.CreateIfFree(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, rescheduled, apperrors.NewConflictError(
				"slot taken at " + at.Format(time.RFC3339),
			)
		}
		return nil, rescheduled, apperrors.NewDatabaseError(err)
	}

	if existing != nil {
		if _, err := b.Cancel(ctx, existing.ID, rescheduleReason); err != nil {
			// Only one appointment may stay active; undo the new one.
			if _, undoErr := b.Cancel(ctx, appt.ID, "Reversão de reagendamento incompleto"); undoErr != nil {
				b.log.Error("failed to undo reschedule insert",
					slog.String("appointment_id", appt.ID.String()),
					slog.Any("error", undoErr),
				)
			}
			return nil, false, err
		}
		rescheduled = true
	}

	b.log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("lead_id", leadID.String()),
		slog.Time("scheduled_at", at),
		slog.Bool("rescheduled", rescheduled),
	)

	return appt, rescheduled, nil
}

// Cancel marks the appointment cancelled, recording the reason and timestamp.
// Cancelling an already-cancelled appointment is rejected.
func (b *Booking) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Appointment, error) {
	appt, err := b.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == domain.StatusCancelled {
		return nil, apperrors.NewIntegrityError("appointment already cancelled: " + id.String())
	}

	cancelledAt := b.now().UTC()
	appt.Status = domain.StatusCancelled
	appt.CancellationReason = reason
	appt.CancelledAt = &cancelledAt

	if err := b.appts.Update(ctx, appt); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	b.log.Info("appointment cancelled",
		slog.String("appointment_id", id.String()),
		slog.String("reason", reason),
	)

	return appt, nil
}

// UpdateStatus transitions the appointment to status. Transitions out of
// cancelled are rejected, and completed is only valid once the meeting time
// has passed.
func (b *Booking) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (*domain.Appointment, error) {
	appt, err := b.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == domain.StatusCancelled {
		return nil, apperrors.NewIntegrityError("cannot change status of cancelled appointment " + id.String())
	}
	if status == domain.StatusCompleted && appt.ScheduledAt.After(b.now()) {
		return nil, apperrors.NewIntegrityError("cannot complete future appointment " + id.String())
	}

	appt.Status = status
	if err := b.appts.Update(ctx, appt); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return appt, nil
}

// CompleteElapsed sweeps active appointments whose meeting window has ended
// and marks them completed. Block markers are skipped. Returns how many were
// transitioned.
func (b *Booking) CompleteElapsed(ctx context.Context) (int, error) {
	cutoff := b.now().Add(-time.Duration(b.meetingMinutes) * time.Minute)

	appts, err := b.appts.ListBetween(ctx, time.Unix(0, 0), cutoff)
	if err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}

	completed := 0
	for i := range appts {
		appt := &appts[i]
		if appt.IsBlock() || !appt.Active() {
			continue
		}

		appt.Status = domain.StatusCompleted
		if err := b.appts.Update(ctx, appt); err != nil {
			return completed, apperrors.NewDatabaseError(err)
		}
		completed++
	}

	if completed > 0 {
		b.log.Info("elapsed appointments completed", slog.Int("count", completed))
	}

	return completed, nil
}

// ActiveForLead returns the lead's pending or confirmed appointment, or nil.
func (b *Booking) ActiveForLead(ctx context.Context, leadID uuid.UUID) (*domain.Appointment, error) {
	return b.activeAppointment(ctx, leadID)
}

// ListByLead returns the lead's appointments, newest first.
func (b *Booking) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Appointment, error) {
	appts, err := b.appts.ListByLead(ctx, leadID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return appts, nil
}

// ListAll returns every appointment, optionally filtered by status.
func (b *Booking) ListAll(ctx context.Context, status *domain.AppointmentStatus) ([]domain.Appointment, error) {
	appts, err := b.appts.ListAll(ctx, status)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return appts, nil
}

// BlockFullDay inserts a full-day block marker for the date.
func (b *Booking) BlockFullDay(ctx context.Context, date time.Time) error {
	return b.insertBlock(ctx, date, domain.MeetingTypeFullDayBlock, "Dia bloqueado administrativamente")
}

// BlockShift inserts a half-day block marker for the date.
func (b *Booking) BlockShift(ctx context.Context, date time.Time, shift Shift) error {
	switch shift {
	case ShiftMorning:
		return b.insertBlock(ctx, date, domain.MeetingTypeMorningBlock, "Manhã bloqueada administrativamente")
	case ShiftAfternoon:
		return b.insertBlock(ctx, date, domain.MeetingTypeAfternoonBlock, "Tarde bloqueada administrativamente")
	default:
		return apperrors.NewValidationError(
			fmt.Sprintf("unknown shift %q", shift),
			"Turno inválido. Use 'morning' ou 'afternoon'.",
		)
	}
}

// Unblock deletes every block marker on the date and reports how many were removed.
func (b *Booking) Unblock(ctx context.Context, date time.Time) (int, error) {
	dayStart, dayEnd := dayBounds(date, b.loc)

	removed, err := b.appts.DeleteBlocks(ctx, dayStart, dayEnd)
	if err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}

	if removed > 0 {
		b.log.Info("date unblocked", slog.Time("date", dayStart), slog.Int("removed", removed))
	}

	return removed, nil
}

func (b *Booking) insertBlock(ctx context.Context, date time.Time, meetingType, notes string) error {
	dayStart, _ := dayBounds(date, b.loc)

	// Markers sit at midnight with a cancelled status so they never collide
	// with real bookings in the conflict check.
	marker := &domain.Appointment{
		ID:          uuid.New(),
		ScheduledAt: dayStart,
		MeetingType: meetingType,
		Notes:       notes,
		Status:      domain.StatusCancelled,
		CreatedAt:   b.now().UTC(),
	}

	if err := b.appts.Insert(ctx, marker); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	b.log.Info("date blocked", slog.Time("date", dayStart), slog.String("block", meetingType))
	return nil
}

func (b *Booking) findAppointment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	appt, err := b.appts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewIntegrityError("appointment not found: " + id.String())
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return appt, nil
}

func (b *Booking) activeAppointment(ctx context.Context, leadID uuid.UUID) (*domain.Appointment, error) {
	appts, err := b.appts.ListByLead(ctx, leadID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	for i := range appts {
		if appts[i].Active() {
			return &appts[i], nil
		}
	}

	return nil, nil
}

func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour)
}

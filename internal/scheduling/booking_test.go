package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nickdtt/ia-crm/internal/domain"
	apperrors "github.com/Nickdtt/ia-crm/internal/errors"
	"github.com/Nickdtt/ia-crm/internal/repository"
)

func seedLead(t *testing.T, leads *repository.LeadMemory, phone string) *domain.Lead {
	t.Helper()

	lead := &domain.Lead{
		ID:        uuid.New(),
		Name:      "Maria Clara Souza",
		Email:     "maria@ex.com",
		Phone:     phone,
		Interest:  "Preciso de mais clientes para minha clínica",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, leads.Create(context.Background(), lead))
	return lead
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestBookValidation(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	lead := seedLead(t, leads, "web-book0001")

	t.Run("unknown lead", func(t *testing.T) {
		_, _, err := booking.Book(ctx, uuid.New(), time.Date(2026, 9, 2, 10, 0, 0, 0, avail.Location()), "descoberta", "")
		assertErrorCode(t, err, "E100")
	})

	t.Run("past timestamp", func(t *testing.T) {
		_, _, err := booking.Book(ctx, lead.ID, time.Date(2025, 1, 10, 10, 0, 0, 0, avail.Location()), "descoberta", "")
		assertErrorCode(t, err, "E100")
	})
}

func TestBookSameSlotTwice(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	at := time.Date(2026, 9, 2, 10, 0, 0, 0, avail.Location())

	first := seedLead(t, leads, "web-race0001")
	second := seedLead(t, leads, "web-race0002")

	_, _, err := booking.Book(ctx, first.ID, at, "descoberta", "")
	require.NoError(t, err)

	_, _, err = booking.Book(ctx, second.ID, at, "descoberta", "")
	assertErrorCode(t, err, "E400")

	// Exactly one non-cancelled appointment holds the timestamp.
	all, err := booking.ListAll(ctx, nil)
	require.NoError(t, err)

	active := 0
	for _, appt := range all {
		if appt.ScheduledAt.Equal(at) && appt.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestBookReschedule(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	lead := seedLead(t, leads, "web-resch001")

	firstAt := time.Date(2026, 9, 2, 10, 0, 0, 0, avail.Location())
	secondAt := time.Date(2026, 9, 3, 15, 0, 0, 0, avail.Location())

	first, rescheduled, err := booking.Book(ctx, lead.ID, firstAt, "descoberta", "")
	require.NoError(t, err)
	assert.False(t, rescheduled)

	second, rescheduled, err := booking.Book(ctx, lead.ID, secondAt, "descoberta", "")
	require.NoError(t, err)
	assert.True(t, rescheduled)
	assert.NotEqual(t, first.ID, second.ID)

	appts, err := booking.ListByLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, appts, 2)

	activeCount := 0
	for _, appt := range appts {
		if appt.Active() {
			activeCount++
			assert.Equal(t, second.ID, appt.ID)
		} else {
			assert.Equal(t, domain.StatusCancelled, appt.Status)
			assert.NotNil(t, appt.CancelledAt)
		}
	}
	assert.Equal(t, 1, activeCount)

	// The old slot is free again.
	slots, err := avail.AvailableSlots(ctx, firstAt)
	require.NoError(t, err)
	assert.Contains(t, hhmm(slots), "10:00")
}

func TestRescheduleLostRaceKeepsPriorBooking(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()

	lead := seedLead(t, leads, "web-keep0001")
	rival := seedLead(t, leads, "web-keep0002")

	heldAt := time.Date(2026, 9, 2, 10, 0, 0, 0, avail.Location())
	takenAt := time.Date(2026, 9, 3, 15, 0, 0, 0, avail.Location())

	held, _, err := booking.Book(ctx, lead.ID, heldAt, "descoberta", "")
	require.NoError(t, err)

	_, _, err = booking.Book(ctx, rival.ID, takenAt, "descoberta", "")
	require.NoError(t, err)

	// The reschedule target is already taken; the existing booking must
	// survive the failed attempt untouched.
	_, rescheduled, err := booking.Book(ctx, lead.ID, takenAt, "descoberta", "")
	assertErrorCode(t, err, "E400")
	assert.False(t, rescheduled)

	active, err := booking.ActiveForLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, held.ID, active.ID)
	assert.True(t, active.ScheduledAt.Equal(heldAt))
}

func TestRebookSameSlot(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	lead := seedLead(t, leads, "web-same0001")

	at := time.Date(2026, 9, 2, 10, 0, 0, 0, avail.Location())

	first, _, err := booking.Book(ctx, lead.ID, at, "descoberta", "")
	require.NoError(t, err)

	second, rescheduled, err := booking.Book(ctx, lead.ID, at, "descoberta", "")
	require.NoError(t, err)
	assert.True(t, rescheduled)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := booking.ActiveForLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestCancel(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	lead := seedLead(t, leads, "web-canc0001")

	appt, _, err := booking.Book(ctx, lead.ID, time.Date(2026, 9, 2, 11, 0, 0, 0, avail.Location()), "descoberta", "")
	require.NoError(t, err)

	cancelled, err := booking.Cancel(ctx, appt.ID, "Cliente desistiu")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Cliente desistiu", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	t.Run("cancelling twice is rejected", func(t *testing.T) {
		_, err := booking.Cancel(ctx, appt.ID, "de novo")
		assertErrorCode(t, err, "E500")
	})

	t.Run("unknown appointment", func(t *testing.T) {
		_, err := booking.Cancel(ctx, uuid.New(), "n/a")
		assertErrorCode(t, err, "E500")
	})
}

func TestUpdateStatus(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	loc := avail.Location()
	lead := seedLead(t, leads, "web-stat0001")

	book := func(t *testing.T, at time.Time) *domain.Appointment {
		t.Helper()
		appt, _, err := booking.Book(ctx, lead.ID, at, "descoberta", "")
		require.NoError(t, err)
		return appt
	}

	t.Run("confirm pending", func(t *testing.T) {
		appt := book(t, time.Date(2026, 9, 2, 9, 0, 0, 0, loc))
		updated, err := booking.UpdateStatus(ctx, appt.ID, domain.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, updated.Status)
	})

	t.Run("future appointment cannot complete", func(t *testing.T) {
		appt := book(t, time.Date(2026, 9, 3, 9, 0, 0, 0, loc))
		_, err := booking.UpdateStatus(ctx, appt.ID, domain.StatusCompleted)
		assertErrorCode(t, err, "E500")
	})

	t.Run("elapsed appointment completes", func(t *testing.T) {
		appt := book(t, time.Date(2026, 9, 4, 9, 0, 0, 0, loc))

		booking.WithClock(func() time.Time {
			return time.Date(2026, 9, 4, 10, 30, 0, 0, loc)
		})
		defer booking.WithClock(func() time.Time {
			return time.Date(2026, 9, 1, 8, 0, 0, 0, loc)
		})

		updated, err := booking.UpdateStatus(ctx, appt.ID, domain.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, updated.Status)
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		appt := book(t, time.Date(2026, 9, 7, 9, 0, 0, 0, loc))
		_, err := booking.Cancel(ctx, appt.ID, "teste")
		require.NoError(t, err)

		_, err = booking.UpdateStatus(ctx, appt.ID, domain.StatusConfirmed)
		assertErrorCode(t, err, "E500")
	})
}

func TestActiveForLead(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	lead := seedLead(t, leads, "web-actv0001")

	active, err := booking.ActiveForLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	appt, _, err := booking.Book(ctx, lead.ID, time.Date(2026, 9, 2, 16, 0, 0, 0, avail.Location()), "descoberta", "")
	require.NoError(t, err)

	active, err = booking.ActiveForLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, appt.ID, active.ID)
}

func TestCompleteElapsed(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()
	lead := seedLead(t, leads, "web-swep0001")

	_, _, err := booking.Book(ctx, lead.ID, time.Date(2026, 9, 2, 9, 0, 0, 0, avail.Location()), "descoberta", "")
	require.NoError(t, err)

	// Booking the second slot reschedules the first, so use a second lead.
	other := seedLead(t, leads, "web-swep0002")
	upcoming, _, err := booking.Book(ctx, other.ID, time.Date(2026, 9, 10, 15, 0, 0, 0, avail.Location()), "descoberta", "")
	require.NoError(t, err)

	// Advance past the first meeting's end, before the second one.
	booking.WithClock(func() time.Time {
		return time.Date(2026, 9, 2, 11, 0, 0, 0, avail.Location())
	})

	count, err := booking.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	done, err := booking.ListByLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, domain.StatusCompleted, done[0].Status)

	pending, err := booking.ActiveForLead(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, upcoming.ID, pending.ID)

	// Second sweep finds nothing left to do.
	count, err = booking.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

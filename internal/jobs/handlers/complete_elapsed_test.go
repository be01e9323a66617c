package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nickdtt/ia-crm/internal/domain"
	"github.com/Nickdtt/ia-crm/internal/jobs"
	"github.com/Nickdtt/ia-crm/internal/repository"
	"github.com/Nickdtt/ia-crm/internal/scheduling"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessTaskCompletesElapsed(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	leads := repository.NewLeadMemory()
	appts := repository.NewAppointmentMemory()
	booking := scheduling.NewBooking(leads, appts, loc, 60, testLogger()).
		WithClock(func() time.Time {
			return time.Date(2026, 9, 1, 8, 0, 0, 0, loc)
		})

	lead := &domain.Lead{ID: uuid.New(), Name: "Cliente Teste", Phone: "web-jobs0001", CreatedAt: time.Now()}
	require.NoError(t, leads.Create(context.Background(), lead))

	_, _, err = booking.Book(context.Background(), lead.ID, time.Date(2026, 9, 1, 9, 0, 0, 0, loc), "descoberta", "")
	require.NoError(t, err)

	// Meeting over by the time the sweep runs.
	booking.WithClock(func() time.Time {
		return time.Date(2026, 9, 1, 11, 0, 0, 0, loc)
	})

	task, err := jobs.NewCompleteElapsedTask("test")
	require.NoError(t, err)

	handler := NewCompleteElapsedHandler(booking, testLogger())
	require.NoError(t, handler.ProcessTask(context.Background(), task))

	list, err := booking.ListByLead(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusCompleted, list[0].Status)
}

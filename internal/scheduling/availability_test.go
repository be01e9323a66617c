package scheduling

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nickdtt/ia-crm/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func businessLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

// fixtures returns a wired availability engine + booking service over
// in-memory repositories, with the clock pinned before the test dates.
func fixtures(t *testing.T) (*Availability, *Booking, *repository.LeadMemory) {
	t.Helper()

	loc := businessLocation(t)
	leads := repository.NewLeadMemory()
	appts := repository.NewAppointmentMemory()

	avail := NewAvailability(appts, loc, testLogger())
	booking := NewBooking(leads, appts, loc, 60, testLogger()).
		WithClock(func() time.Time {
			return time.Date(2026, 9, 1, 8, 0, 0, 0, loc)
		})

	return avail, booking, leads
}

func hhmm(slots []time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Format("15:04"))
	}
	return out
}

func TestAvailableSlotsWeekday(t *testing.T) {
	avail, _, _ := fixtures(t)
	ctx := context.Background()

	// 2026-09-02 is a Wednesday.
	slots, err := avail.AvailableSlots(ctx, time.Date(2026, 9, 2, 0, 0, 0, 0, avail.Location()))
	require.NoError(t, err)

	assert.Equal(t, []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00", "17:00"}, hhmm(slots))
}

func TestAvailableSlotsWeekend(t *testing.T) {
	avail, _, _ := fixtures(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		date time.Time
	}{
		{name: "saturday", date: time.Date(2026, 9, 5, 0, 0, 0, 0, avail.Location())},
		{name: "sunday", date: time.Date(2026, 9, 6, 0, 0, 0, 0, avail.Location())},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			slots, err := avail.AvailableSlots(ctx, tc.date)
			require.NoError(t, err)
			assert.Empty(t, slots)
		})
	}
}

func TestAvailableSlotsBlocks(t *testing.T) {
	ctx := context.Background()
	day := func(avail *Availability) time.Time {
		return time.Date(2026, 9, 2, 0, 0, 0, 0, avail.Location())
	}

	testCases := []struct {
		name     string
		block    func(ctx context.Context, booking *Booking, date time.Time) error
		expected []string
	}{
		{
			name: "full day block empties the date",
			block: func(ctx context.Context, booking *Booking, date time.Time) error {
				return booking.BlockFullDay(ctx, date)
			},
			expected: []string{},
		},
		{
			name: "morning block leaves the afternoon",
			block: func(ctx context.Context, booking *Booking, date time.Time) error {
				return booking.BlockShift(ctx, date, ShiftMorning)
			},
			expected: []string{"14:00", "15:00", "16:00", "17:00"},
		},
		{
			name: "afternoon block leaves the morning",
			block: func(ctx context.Context, booking *Booking, date time.Time) error {
				return booking.BlockShift(ctx, date, ShiftAfternoon)
			},
			expected: []string{"09:00", "10:00", "11:00"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			avail, booking, _ := fixtures(t)
			date := day(avail)

			require.NoError(t, tc.block(ctx, booking, date))

			slots, err := avail.AvailableSlots(ctx, date)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, hhmm(slots))
		})
	}
}

func TestBlockThenUnblockRestoresSlots(t *testing.T) {
	avail, booking, _ := fixtures(t)
	ctx := context.Background()
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, avail.Location())

	before, err := avail.AvailableSlots(ctx, date)
	require.NoError(t, err)
	require.Len(t, before, 7)

	require.NoError(t, booking.BlockFullDay(ctx, date))

	blocked, err := avail.AvailableSlots(ctx, date)
	require.NoError(t, err)
	assert.Empty(t, blocked)

	removed, err := booking.Unblock(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	after, err := avail.AvailableSlots(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, hhmm(before), hhmm(after))
}

func TestAvailableSlotsSubtractsBookings(t *testing.T) {
	avail, booking, leads := fixtures(t)
	ctx := context.Background()

	lead := seedLead(t, leads, "web-avail001")
	at := time.Date(2026, 9, 2, 10, 0, 0, 0, avail.Location())

	_, _, err := booking.Book(ctx, lead.ID, at, "descoberta", "")
	require.NoError(t, err)

	slots, err := avail.AvailableSlots(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00", "14:00", "15:00", "16:00", "17:00"}, hhmm(slots))
}

func TestNearestAlternatives(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, loc)
	slot := func(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }
	slots := []time.Time{slot(9), slot(10), slot(11), slot(14), slot(15), slot(16), slot(17)}

	testCases := []struct {
		name      string
		requested time.Time
		expected  []string
	}{
		{
			name:      "lunch request pulls both windows",
			requested: slot(13),
			expected:  []string{"14:00", "11:00", "15:00"},
		},
		{
			name:      "early request stays in the morning",
			requested: slot(8),
			expected:  []string{"09:00", "10:00", "11:00"},
		},
		{
			name:      "late request stays in the afternoon",
			requested: slot(19),
			expected:  []string{"17:00", "16:00", "15:00"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NearestAlternatives(slots, tc.requested, 3)
			assert.Equal(t, tc.expected, hhmm(got))
		})
	}
}

func TestInBusinessHours(t *testing.T) {
	avail, _, _ := fixtures(t)
	loc := avail.Location()

	testCases := []struct {
		name     string
		at       time.Time
		expected bool
	}{
		{name: "tuesday 10h", at: time.Date(2026, 9, 8, 10, 0, 0, 0, loc), expected: true},
		{name: "tuesday 13h lunch", at: time.Date(2026, 9, 8, 13, 0, 0, 0, loc), expected: false},
		{name: "saturday 10h", at: time.Date(2026, 9, 5, 10, 0, 0, 0, loc), expected: false},
		{name: "half past the hour", at: time.Date(2026, 9, 8, 10, 30, 0, 0, loc), expected: false},
		{name: "last afternoon slot", at: time.Date(2026, 9, 8, 17, 0, 0, 0, loc), expected: true},
		{name: "after hours", at: time.Date(2026, 9, 8, 18, 0, 0, 0, loc), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, avail.InBusinessHours(tc.at))
		})
	}
}

// Package scheduling implements the availability engine and the booking
// service behind the conversation flow.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Nickdtt/ia-crm/internal/domain"
	"github.com/Nickdtt/ia-crm/internal/repository"
)

// Business hours: 09-12 and 14-18, one slot per hour. Lunch and weekends
// are never bookable.
const (
	morningStartHour   = 9
	morningEndHour     = 12
	afternoonStartHour = 14
	afternoonEndHour   = 18
)

// Availability computes bookable slots for a date, honoring weekends,
// administrative blocks and already-occupied timestamps.
type Availability struct {
	appts repository.AppointmentRepository
	loc   *time.Location
	log   *slog.Logger
}

// NewAvailability builds an availability engine over appts. loc is the fixed
// business timezone.
func NewAvailability(appts repository.AppointmentRepository, loc *time.Location, log *slog.Logger) *Availability {
	if log == nil {
		log = slog.Default()
	}

	return &Availability{
		appts: appts,
		loc:   loc,
		log:   log,
	}
}

// Location returns the business timezone.
func (a *Availability) Location() *time.Location {
	return a.loc
}

// DayBounds returns the [start, end) interval of the calendar day containing t
// in the business timezone.
func (a *Availability) DayBounds(t time.Time) (time.Time, time.Time) {
	return dayBounds(t, a.loc)
}

// AvailableSlots returns the free slots of the day containing date, ascending.
// Weekends and fully blocked days yield an empty result.
func (a *Availability) AvailableSlots(ctx context.Context, date time.Time) ([]time.Time, error) {
	dayStart, dayEnd := a.DayBounds(date)

	if wd := dayStart.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil, nil
	}

	appts, err := a.appts.ListBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}

	morningBlocked, afternoonBlocked := false, false
	occupied := make(map[int64]bool)

	for _, appt := range appts {
		if appt.IsBlock() {
			switch appt.MeetingType {
			case domain.MeetingTypeFullDayBlock:
				return nil, nil
			case domain.MeetingTypeMorningBlock:
				morningBlocked = true
			case domain.MeetingTypeAfternoonBlock:
				afternoonBlocked = true
			}
			continue
		}

		if appt.Active() {
			occupied[appt.ScheduledAt.Unix()] = true
		}
	}

	var slots []time.Time
	appendWindow := func(fromHour, toHour int) {
		for hour := fromHour; hour < toHour; hour++ {
			slot := dayStart.Add(time.Duration(hour) * time.Hour)
			if !occupied[slot.Unix()] {
				slots = append(slots, slot)
			}
		}
	}

	if !morningBlocked {
		appendWindow(morningStartHour, morningEndHour)
	}
	if !afternoonBlocked {
		appendWindow(afternoonStartHour, afternoonEndHour)
	}

	return slots, nil
}

// NearestAlternatives orders slots by absolute minute distance to requested
// and keeps at most max of them.
func NearestAlternatives(slots []time.Time, requested time.Time, max int) []time.Time {
	ranked := make([]time.Time, len(slots))
	copy(ranked, slots)

	sort.SliceStable(ranked, func(i, j int) bool {
		return minuteDistance(ranked[i], requested) < minuteDistance(ranked[j], requested)
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}

	return ranked
}

// InBusinessHours reports whether t lands exactly on a bookable slot boundary:
// a weekday, on the hour, inside one of the two business windows.
func (a *Availability) InBusinessHours(t time.Time) bool {
	local := t.In(a.loc)

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if local.Minute() != 0 || local.Second() != 0 {
		return false
	}

	hour := local.Hour()
	morning := hour >= morningStartHour && hour < morningEndHour
	afternoon := hour >= afternoonStartHour && hour < afternoonEndHour
	return morning || afternoon
}

func minuteDistance(a, b time.Time) int64 {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int64(d / time.Minute)
}

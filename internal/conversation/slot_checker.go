package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/Nickdtt/ia-crm/internal/scheduling"
	"github.com/Nickdtt/ia-crm/internal/session"
)

// handleCheckingSlot verifies the requested timestamp against the day's
// availability. An exact match chains into booking; otherwise up to three
// nearest alternatives are offered and the requested date is reset while
// remembered as context for the follow-up attempt.
func (e *Engine) handleCheckingSlot(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state

	if st.RequestedAt == nil {
		tc.say(e.catalog.Get("datetime.ask"))
		return session.StepCollectingDatetime, false, nil
	}

	requested := st.RequestedAt.In(e.availability.Location())

	slots, err := e.availability.AvailableSlots(ctx, requested)
	if err != nil {
		return session.StepCollectingDatetime, false, err
	}

	for _, slot := range slots {
		if slot.Equal(requested) {
			st.SlotAvailable = session.TriYes
			st.ChosenSlot = st.RequestedAt
			return session.StepCreatingAppointment, true, nil
		}
	}

	e.offerAlternatives(tc, slots, requested)
	return session.StepCollectingDatetime, false, nil
}

// offerAlternatives surfaces the nearest free slots and resets the attempt,
// keeping the day as context so a bare "pode ser 15h" reply resolves.
func (e *Engine) offerAlternatives(tc *turnContext, slots []time.Time, requested time.Time) {
	st := tc.state

	dayStart, _ := e.availability.DayBounds(requested)
	st.ResetBookingAttempt()
	st.LastRequestedDate = &dayStart

	date := requested.Format("02/01")

	alternatives := scheduling.NearestAlternatives(slots, requested, 3)
	if len(alternatives) == 0 {
		tc.say(e.catalog.Render("slot.none_available", map[string]string{
			"date": date,
		}))
		return
	}

	formatted := make([]string, 0, len(alternatives))
	for _, alt := range alternatives {
		formatted = append(formatted, alt.Format("15:04")+"h")
	}

	tc.say(e.catalog.Render("slot.alternatives", map[string]string{
		"time":         requested.Format("15:04"),
		"date":         date,
		"alternatives": strings.Join(formatted, ", "),
	}))
}

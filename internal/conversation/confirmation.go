package conversation

import (
	"context"
	"strconv"

	"github.com/Nickdtt/ia-crm/internal/session"
)

// handleConfirming emits the final message of the flow: a farewell when the
// lead declined to schedule, or the booked/rescheduled confirmation. Always
// leaves the conversation completed.
func (e *Engine) handleConfirming(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state
	st.Mode = session.ModeCompleted

	if st.WantsToSchedule == session.TriNo {
		first := st.FirstName()
		if first == "" {
			first = "Você"
		}
		tc.say(e.catalog.Render("confirmation.farewell", map[string]string{
			"first_name": first,
		}))
		return session.StepConfirming, false, nil
	}

	at := st.ChosenSlot
	if at == nil {
		at = st.RequestedAt
	}

	args := map[string]string{
		"first_name": st.FirstName(),
		"duration":   strconv.Itoa(e.booking.MeetingMinutes()),
	}
	if at != nil {
		local := at.In(e.availability.Location())
		args["datetime"] = formatDateTime(local)
		args["weekday"] = weekdayPT(local)
	}

	key := "appointment.confirmed"
	if tc.rescheduled {
		key = "appointment.rescheduled"
	}
	tc.say(e.catalog.Render(key, args))

	return session.StepConfirming, false, nil
}

package conversation

import (
	"context"
	"log/slog"

	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/session"
)

// handleOfferingSchedule asks the scheduling question on its first run and
// analyzes the reply on the second. Classification is keyword-based: text
// carrying both accept and decline signals resolves to decline, and a reply
// with no signal at all falls to the configured OfferPolicy.
func (e *Engine) handleOfferingSchedule(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state

	if !st.AskedToSchedule {
		st.AskedToSchedule = true
		st.Mode = session.ModeScheduling
		tc.say(e.catalog.Get("offer.question"))
		return session.StepOfferingSchedule, false, nil
	}

	wants, ok := nlu.DetectYesNo(tc.input)
	if !ok {
		wants = e.offerPolicy == OfferOptimistic
		e.log.Debug("offer reply carried no signal, applying policy",
			slog.String("policy", string(e.offerPolicy)),
			slog.Bool("wants", wants),
		)
	}

	st.WantsToSchedule = session.TriFromBool(wants)

	if !wants {
		return session.StepConfirming, true, nil
	}

	// Each accepted offer starts a fresh attempt; a slot kept from an
	// earlier booking would otherwise be re-checked as if just requested.
	st.ResetBookingAttempt()

	return session.StepCollectingDatetime, true, nil
}

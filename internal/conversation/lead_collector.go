package conversation

import (
	"context"
	"log/slog"

	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/session"
)

// handleCollectingLead fills whichever of name, email and interest is still
// missing using deterministic extraction over the current message. Once all
// three are present it acknowledges completion and hands the session to the
// schedule offer; extraction failure falls back to a guided prompt for the
// next missing field.
func (e *Engine) handleCollectingLead(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state
	captured := false

	if st.LeadName == "" {
		if name, ok := nlu.ExtractName(tc.input); ok {
			st.LeadName = name
			captured = true
			e.log.Debug("lead name captured", slog.String("session_id", st.SessionID))
		}
	}

	if st.LeadEmail == "" {
		if email, ok := nlu.ExtractEmail(tc.input); ok {
			st.LeadEmail = email
			captured = true
		}
	}

	// A message that already yielded a name or email is never also the
	// interest phrase.
	if st.LeadInterest == "" && !captured {
		if interest, ok := nlu.ExtractInterest(tc.input); ok {
			st.LeadInterest = interest
			captured = true
		}
	}

	if st.LeadName != "" && st.LeadEmail != "" && st.LeadInterest != "" {
		st.LeadCollectionComplete = true
		st.Mode = session.ModeScheduling
		tc.say(e.catalog.Render("lead.complete", map[string]string{
			"first_name": st.FirstName(),
		}))
		// The offer question itself is the next step's job.
		return session.StepOfferingSchedule, false, nil
	}

	if captured {
		switch {
		case st.LeadName == "":
			tc.say(e.catalog.Get("lead.ask_name"))
		case st.LeadEmail == "":
			tc.say(e.catalog.Get("lead.ask_email"))
		default:
			tc.say(e.catalog.Get("lead.ask_interest"))
		}
		return session.StepCollectingLead, false, nil
	}

	// Nothing extracted: redirect to the next missing field.
	switch {
	case st.LeadName == "":
		tc.say(e.catalog.Get("lead.redirect_name"))
	case st.LeadEmail == "":
		tc.say(e.catalog.Get("lead.redirect_email"))
	default:
		tc.say(e.catalog.Get("lead.redirect_interest"))
	}

	return session.StepCollectingLead, false, nil
}

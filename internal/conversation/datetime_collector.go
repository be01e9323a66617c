package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/session"
	"github.com/Nickdtt/ia-crm/pkg/metrics"
)

// handleCollectingDatetime extracts the desired date/time from the message.
// Extraction is delegated to the collaborator under its timeout; on failure a
// narrow regex fallback runs. The result is validated against business rules
// (weekday, business windows, strictly future); any validation failure
// re-prompts without advancing the step.
func (e *Engine) handleCollectingDatetime(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state

	if st.RequestedAt != nil {
		return session.StepCheckingSlot, true, nil
	}

	requested, err := e.understander.ExtractDateTime(ctx, tc.input, st.LastRequestedDate)
	if err != nil {
		if errors.Is(err, nlu.ErrNoDateTime) {
			tc.say(e.catalog.Get("datetime.ask"))
			return session.StepCollectingDatetime, false, nil
		}

		// Collaborator down: try the narrow deterministic pattern.
		metrics.RecordCollaboratorFallback("extract_datetime")
		fallback, ok := nlu.FallbackDateTime(tc.input, e.now(), e.availability.Location())
		if !ok {
			e.log.Warn("datetime extraction degraded with no fallback match", slog.Any("error", err))
			tc.say(e.catalog.Get("datetime.collaborator_down"))
			return session.StepCollectingDatetime, false, nil
		}
		requested = fallback
	}

	if msg := e.validateRequested(requested); msg != "" {
		tc.say(msg)
		return session.StepCollectingDatetime, false, nil
	}

	st.RequestedAt = &requested
	return session.StepCheckingSlot, true, nil
}

// validateRequested returns the corrective catalog message for an invalid
// timestamp, or "" when it passes the business rules.
func (e *Engine) validateRequested(t time.Time) string {
	local := t.In(e.availability.Location())

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return e.catalog.Get("datetime.weekend")
	}

	hour := local.Hour()
	if !((hour >= 9 && hour < 12) || (hour >= 14 && hour < 18)) {
		return e.catalog.Get("datetime.out_of_hours")
	}

	if !local.After(e.now()) {
		return e.catalog.Get("datetime.past")
	}

	return ""
}

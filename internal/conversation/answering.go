package conversation

import (
	"context"
	"log/slog"

	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/session"
	"github.com/Nickdtt/ia-crm/pkg/metrics"
)

// handleAnswering answers questions over the company documents. On the first
// answer it appends a one-time soft ask for permission to collect
// qualification data; afterwards it interprets the reply: an explicit name or
// email short-circuits the permission question, explicit scheduling intent
// jumps straight to lead collection, and a refusal or a new question is simply
// answered again without re-asking.
func (e *Engine) handleAnswering(ctx context.Context, tc *turnContext) (session.Step, bool, error) {
	st := tc.state

	if intent := e.classify(ctx, tc.input); intent == nlu.IntentSchedule {
		st.PermissionGranted = session.TriYes
		st.Mode = session.ModeQualifying
		tc.say(e.catalog.Get("answering.scheduling_shortcut"))
		return session.StepCollectingLead, false, nil
	}

	if st.PermissionAsked && !st.PermissionGranted.Known() {
		if next, handled := e.analyzePermissionReply(ctx, tc); handled {
			return next, false, nil
		}
		// Refused or asked something new: answer it, never re-ask.
		e.answerWithDocs(ctx, tc, false)
		st.Mode = session.ModeAnswering
		return session.StepAnswering, false, nil
	}

	firstAnswer := !st.PermissionAsked
	e.answerWithDocs(ctx, tc, firstAnswer)

	if firstAnswer {
		st.PermissionAsked = true
		st.Mode = session.ModeQualifying
	}

	return session.StepAnswering, false, nil
}

// analyzePermissionReply checks whether the reply to the permission question
// grants it, explicitly or by already handing over data.
func (e *Engine) analyzePermissionReply(ctx context.Context, tc *turnContext) (session.Step, bool) {
	st := tc.state

	if email, ok := nlu.ExtractEmail(tc.input); ok {
		st.PermissionGranted = session.TriYes
		st.LeadEmail = email
		st.Mode = session.ModeQualifying
		tc.say(e.catalog.Get("answering.got_email"))
		return session.StepCollectingLead, true
	}

	if name, ok := nlu.ExtractName(tc.input); ok {
		st.PermissionGranted = session.TriYes
		st.LeadName = name
		st.Mode = session.ModeQualifying
		tc.say(e.catalog.Render("answering.got_name", map[string]string{
			"first_name": st.FirstName(),
		}))
		return session.StepCollectingLead, true
	}

	if yes, ok := nlu.DetectYesNo(tc.input); ok && yes {
		st.PermissionGranted = session.TriYes
		st.Mode = session.ModeQualifying
		tc.say(e.catalog.Get("answering.accept"))
		return session.StepCollectingLead, true
	}

	return "", false
}

func (e *Engine) answerWithDocs(ctx context.Context, tc *turnContext, appendPermissionAsk bool) {
	docs, err := e.retriever.Search(ctx, tc.input, 3)
	if err != nil {
		e.log.Warn("document retrieval failed", slog.Any("error", err))
	}

	answer, err := e.understander.AnswerQuestion(ctx, tc.input, docs)
	if err != nil {
		metrics.RecordCollaboratorFallback("answer_question")
		answer = e.catalog.Get("answering.fallback_answer")
	}

	if appendPermissionAsk {
		answer += e.catalog.Get("answering.permission_ask")
	}

	tc.say(answer)
}

// classify runs intent classification with the deterministic fallback when
// the collaborator is unavailable.
func (e *Engine) classify(ctx context.Context, text string) nlu.Intent {
	intent, err := e.understander.ClassifyIntent(ctx, text)
	if err != nil {
		metrics.RecordCollaboratorFallback("classify_intent")
		return nlu.ClassifyFallback(text)
	}
	return intent
}

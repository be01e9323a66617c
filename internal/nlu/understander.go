// Package nlu is the text-understanding collaborator: intent classification,
// date/time extraction and question answering over free Portuguese text.
// The LLM-backed implementation degrades to the deterministic fallbacks in
// this package, so the conversation engine never depends on model behavior
// for correctness.
package nlu

import (
	"context"
	"errors"
	"time"
)

// Intent is the coarse classification of a user message.
type Intent string

const (
	IntentSchedule Intent = "schedule"
	IntentAccept   Intent = "accept"
	IntentDecline  Intent = "decline"
	IntentQuestion Intent = "question"
	IntentUnknown  Intent = "unknown"
)

// ErrNoDateTime signals that the text carries no usable date/time.
var ErrNoDateTime = errors.New("no date/time found in text")

// Understander extracts structured meaning from user messages. All calls run
// under a bounded timeout and declare their failure mode; callers fall back
// to the deterministic helpers in this package when a call fails.
type Understander interface {
	ClassifyIntent(ctx context.Context, text string) (Intent, error)
	// ExtractDateTime parses a concrete timestamp out of free text.
	// contextDate, when set, resolves time-only messages ("pode ser 14h")
	// against a previously requested date. Returns ErrNoDateTime when the
	// text carries no date/time.
	ExtractDateTime(ctx context.Context, text string, contextDate *time.Time) (time.Time, error)
	// AnswerQuestion produces a grounded answer using the retrieved docs.
	AnswerQuestion(ctx context.Context, question string, docs []string) (string, error)
}

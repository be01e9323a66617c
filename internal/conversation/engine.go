// Package conversation implements the dialogue state machine: entry routing,
// the auto-chain loop over step handlers, and per-session turn serialization.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/Nickdtt/ia-crm/internal/errors"
	"github.com/Nickdtt/ia-crm/internal/leadcache"
	"github.com/Nickdtt/ia-crm/internal/messages"
	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/rag"
	"github.com/Nickdtt/ia-crm/internal/repository"
	"github.com/Nickdtt/ia-crm/internal/scheduling"
	"github.com/Nickdtt/ia-crm/internal/session"
	"github.com/Nickdtt/ia-crm/pkg/metrics"
)

// maxChainDepth caps the auto-chain loop; the longest legal chain is
// collecting_datetime → checking_slot → creating_appointment → confirming.
const maxChainDepth = 8

// OfferPolicy decides the schedule offer when the reply carries no
// accept/decline signal. The user is already inside the scheduling branch, so
// the default assumes acceptance.
type OfferPolicy string

const (
	OfferOptimistic   OfferPolicy = "optimistic"
	OfferConservative OfferPolicy = "conservative"
)

// Reply is the outbound result of one turn.
type Reply struct {
	Text string
	Mode string
}

// Engine orchestrates one turn: load state, route to the entry step, execute
// handlers chaining until a wait-for-input step, persist, reply.
type Engine struct {
	store        session.Store
	understander nlu.Understander
	retriever    rag.Retriever
	availability *scheduling.Availability
	booking      *scheduling.Booking
	leads        repository.LeadRepository
	leadCache    *leadcache.Cache
	catalog      *messages.Catalog
	errHandler   *apperrors.Handler
	guard        *guard
	offerPolicy  OfferPolicy
	now          func() time.Time
	log          *slog.Logger
}

// Options carries the engine's collaborators.
type Options struct {
	Store        session.Store
	Understander nlu.Understander
	Retriever    rag.Retriever
	Availability *scheduling.Availability
	Booking      *scheduling.Booking
	Leads        repository.LeadRepository
	LeadCache    *leadcache.Cache
	Catalog      *messages.Catalog
	ErrHandler   *apperrors.Handler
	OfferPolicy  OfferPolicy
	Log          *slog.Logger
}

// NewEngine wires the dialogue engine.
func NewEngine(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	policy := opts.OfferPolicy
	if policy == "" {
		policy = OfferOptimistic
	}

	return &Engine{
		store:        opts.Store,
		understander: opts.Understander,
		retriever:    opts.Retriever,
		availability: opts.Availability,
		booking:      opts.Booking,
		leads:        opts.Leads,
		leadCache:    opts.LeadCache,
		catalog:      opts.Catalog,
		errHandler:   opts.ErrHandler,
		guard:        newGuard(),
		offerPolicy:  policy,
		now:          time.Now,
		log:          log,
	}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// turnContext accumulates the outbound messages and intra-turn flags of one
// inbound message.
type turnContext struct {
	state       *session.State
	input       string
	replies     []string
	rescheduled bool
}

func (tc *turnContext) say(text string) {
	if text != "" {
		tc.replies = append(tc.replies, text)
	}
}

// HandleTurn processes one inbound message for the session, executing step
// handlers until a wait-for-input step is reached. The per-session lock spans
// the whole turn, including chained steps and collaborator calls.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, text string) (Reply, error) {
	release := e.guard.acquire(sessionID)
	defer release()

	start := e.now()

	st, err := e.store.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			metrics.RecordTurn("load", "error", e.now().Sub(start).Seconds())
			return Reply{}, apperrors.NewDatabaseError(err)
		}
		st = session.New(sessionID)
	}

	tc := &turnContext{state: st, input: strings.TrimSpace(text)}

	step := e.entryStep(st)
	prev := st.CurrentStep

	// Internal-only steps are never persisted: on any abnormal exit the
	// session falls back to the last step that consumed user input.
	lastWait := session.StepGreeting

	for depth := 0; ; depth++ {
		if depth >= maxChainDepth {
			e.log.Error("chain depth cap reached",
				slog.String("session_id", sessionID),
				slog.String("step", string(step)),
			)
			st.CurrentStep = lastWait
			break
		}

		if step.WaitsForInput() {
			lastWait = step
		}

		metrics.RecordTransition(string(prev), string(step))

		next, chain, err := e.dispatch(ctx, step, tc)
		if err != nil {
			// Surface one corrective message and keep the last
			// wait-for-input step so the next message retries it.
			userMsg, _ := e.errHandler.Handle(ctx, err)
			tc.say(userMsg)
			st.CurrentStep = lastWait
			metrics.RecordTurn(string(step), "error", e.now().Sub(start).Seconds())
			break
		}

		st.CurrentStep = next
		prev = step

		if !chain {
			metrics.RecordTurn(string(next), "ok", e.now().Sub(start).Seconds())
			break
		}
		step = next
	}

	st.UpdatedAt = e.now().UTC()
	if err := e.store.Save(ctx, sessionID, st); err != nil {
		return Reply{}, apperrors.NewDatabaseError(err)
	}

	return Reply{
		Text: strings.Join(tc.replies, "\n\n"),
		Mode: string(st.Mode),
	}, nil
}

// ResetSession discards the session's persisted state. Calling it for an
// unknown session is a no-op.
func (e *Engine) ResetSession(ctx context.Context, sessionID string) error {
	release := e.guard.acquire(sessionID)
	defer release()

	if err := e.store.Delete(ctx, sessionID); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	return nil
}

// entryStep selects the handler that consumes the inbound message, recovering
// when the persisted step names an internal-only step.
func (e *Engine) entryStep(st *session.State) session.Step {
	if !st.PresentationDone {
		return session.StepGreeting
	}

	switch st.CurrentStep {
	case session.StepCheckingSlot:
		return session.StepCollectingDatetime
	case session.StepCreatingAppointment:
		return session.StepConfirming
	case session.StepConfirming:
		// Turn after a completed conversation starts over; greeting picks
		// up cancellation requests and returning leads.
		return session.StepGreeting
	case "", session.StepGreeting:
		if st.Mode == session.ModeCompleted {
			return session.StepGreeting
		}
		if st.LeadCollectionComplete {
			return session.StepOfferingSchedule
		}
		return session.StepAnswering
	default:
		return st.CurrentStep
	}
}

func (e *Engine) dispatch(ctx context.Context, step session.Step, tc *turnContext) (session.Step, bool, error) {
	switch step {
	case session.StepGreeting:
		return e.handleGreeting(ctx, tc)
	case session.StepAnswering:
		return e.handleAnswering(ctx, tc)
	case session.StepCollectingLead:
		return e.handleCollectingLead(ctx, tc)
	case session.StepOfferingSchedule:
		return e.handleOfferingSchedule(ctx, tc)
	case session.StepCollectingDatetime:
		return e.handleCollectingDatetime(ctx, tc)
	case session.StepCheckingSlot:
		return e.handleCheckingSlot(ctx, tc)
	case session.StepCreatingAppointment:
		return e.handleCreatingAppointment(ctx, tc)
	case session.StepConfirming:
		return e.handleConfirming(ctx, tc)
	default:
		e.log.Error("unknown step", slog.String("step", string(step)))
		return session.StepGreeting, false, nil
	}
}

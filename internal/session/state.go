// Package session manages per-conversation state and its storage backends.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Step identifies one phase of the dialogue state machine.
type Step string

const (
	StepGreeting            Step = "greeting"
	StepAnswering           Step = "answering"
	StepCollectingLead      Step = "collecting_lead"
	StepOfferingSchedule    Step = "offering_schedule"
	StepCollectingDatetime  Step = "collecting_datetime"
	StepCheckingSlot        Step = "checking_slot"
	StepCreatingAppointment Step = "creating_appointment"
	StepConfirming          Step = "confirming"
)

// Steps lists every member of the closed step set.
var Steps = []Step{
	StepGreeting,
	StepAnswering,
	StepCollectingLead,
	StepOfferingSchedule,
	StepCollectingDatetime,
	StepCheckingSlot,
	StepCreatingAppointment,
	StepConfirming,
}

// Valid reports whether s belongs to the closed step set.
func (s Step) Valid() bool {
	for _, known := range Steps {
		if s == known {
			return true
		}
	}
	return false
}

// WaitsForInput reports whether the step may be persisted as a turn entry point.
// checking_slot and creating_appointment only ever run chained inside a turn.
func (s Step) WaitsForInput() bool {
	switch s {
	case StepCheckingSlot, StepCreatingAppointment:
		return false
	default:
		return true
	}
}

// Mode is the coarse phase indicator of a conversation.
type Mode string

const (
	ModeIdle                        Mode = "idle"
	ModeAnswering                   Mode = "answering"
	ModeQualifying                  Mode = "qualifying"
	ModeScheduling                  Mode = "scheduling"
	ModeCompleted                   Mode = "completed"
	ModeReturningWithAppointment    Mode = "returning_with_appointment"
	ModeReturningWithoutAppointment Mode = "returning_without_appointment"
)

// TriState is an explicit three-value answer: unknown until the user decides.
type TriState string

const (
	TriUnknown TriState = ""
	TriYes     TriState = "yes"
	TriNo      TriState = "no"
)

// Known reports whether the value has been decided.
func (t TriState) Known() bool { return t == TriYes || t == TriNo }

// Bool collapses the value for branching; only meaningful when Known.
func (t TriState) Bool() bool { return t == TriYes }

// TriFromBool lifts a decided boolean into a TriState.
func TriFromBool(b bool) TriState {
	if b {
		return TriYes
	}
	return TriNo
}

// State is the per-session conversation record. Exactly one step handler owns
// writing each field; the engine persists the whole record once per turn.
type State struct {
	SessionID   string `json:"session_id"`
	CurrentStep Step   `json:"current_step"`
	Mode        Mode   `json:"mode"`

	PresentationDone  bool     `json:"presentation_done"`
	PermissionAsked   bool     `json:"permission_asked"`
	PermissionGranted TriState `json:"permission_granted"`

	LeadName               string `json:"lead_name,omitempty"`
	LeadEmail              string `json:"lead_email,omitempty"`
	LeadInterest           string `json:"lead_interest,omitempty"`
	LeadCollectionComplete bool   `json:"lead_collection_complete"`

	AskedToSchedule   bool       `json:"asked_to_schedule"`
	WantsToSchedule   TriState   `json:"wants_to_schedule"`
	RequestedAt       *time.Time `json:"requested_at,omitempty"`
	LastRequestedDate *time.Time `json:"last_requested_date,omitempty"`
	SlotAvailable     TriState   `json:"slot_available"`
	ChosenSlot        *time.Time `json:"chosen_slot,omitempty"`

	LeadID               *uuid.UUID `json:"lead_id,omitempty"`
	AppointmentID        *uuid.UUID `json:"appointment_id,omitempty"`
	AppointmentConfirmed bool       `json:"appointment_confirmed"`

	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a fresh state for the given session.
func New(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		Mode:      ModeIdle,
	}
}

// FirstName returns the first word of the collected lead name.
func (s *State) FirstName() string {
	for i, r := range s.LeadName {
		if r == ' ' {
			return s.LeadName[:i]
		}
	}
	return s.LeadName
}

// ResetBookingAttempt clears the tri-state slot fields so a new attempt starts
// from unknown instead of silently reusing a previous answer.
func (s *State) ResetBookingAttempt() {
	s.RequestedAt = nil
	s.SlotAvailable = TriUnknown
	s.ChosenSlot = nil
}

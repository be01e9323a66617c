// Package domain holds the persistent entities shared across services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Reserved meeting types used for administrative calendar blocks.
// Block markers carry a nil LeadID and are never surfaced to customers.
const (
	MeetingTypeFullDayBlock   = "FULL_DAY_BLOCK"
	MeetingTypeMorningBlock   = "MORNING_BLOCK"
	MeetingTypeAfternoonBlock = "AFTERNOON_BLOCK"
)

// Appointment is a scheduled meeting slot. LeadID is nil for administrative blocks.
type Appointment struct {
	ID                 uuid.UUID
	LeadID             *uuid.UUID
	ScheduledAt        time.Time
	DurationMinutes    int
	MeetingType        string
	Notes              string
	Status             AppointmentStatus
	CancellationReason string
	CancelledAt        *time.Time
	CreatedAt          time.Time
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// IsBlock reports whether the appointment is an administrative block marker.
func (a *Appointment) IsBlock() bool {
	return a.LeadID == nil
}

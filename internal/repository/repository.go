// Package repository defines persistence contracts and their Postgres and
// in-memory implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Nickdtt/ia-crm/internal/domain"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrSlotTaken indicates that a non-cancelled appointment already occupies the timestamp.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrDuplicateContact indicates that a lead with the same phone already exists.
	ErrDuplicateContact = errors.New("contact already registered")
)

// LeadRepository defines persistence operations for leads.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	FindByPhone(ctx context.Context, phone string) (*domain.Lead, error)
}

// AppointmentRepository defines persistence operations for appointments and
// administrative block markers.
type AppointmentRepository interface {
	// CreateIfFree inserts the appointment only when no non-cancelled appointment
	// occupies the same timestamp. Check and insert are one atomic unit.
	CreateIfFree(ctx context.Context, appt *domain.Appointment) error
	// Insert stores the appointment without a conflict check (block markers).
	Insert(ctx context.Context, appt *domain.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	Update(ctx context.Context, appt *domain.Appointment) error
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Appointment, error)
	ListAll(ctx context.Context, status *domain.AppointmentStatus) ([]domain.Appointment, error)
	// ListBetween returns appointments scheduled in [from, to).
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	// DeleteBlocks removes block markers scheduled in [from, to) and reports the count.
	DeleteBlocks(ctx context.Context, from, to time.Time) (int, error)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. The unique indexes on leads.phone and on non-cancelled
// appointment timestamps surface races through this error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nickdtt/ia-crm/internal/domain"
)

// LeadMemory is an in-memory LeadRepository used in tests.
type LeadMemory struct {
	mu    sync.RWMutex
	leads map[uuid.UUID]domain.Lead
}

// NewLeadMemory returns an empty in-memory lead repository.
func NewLeadMemory() *LeadMemory {
	return &LeadMemory{leads: make(map[uuid.UUID]domain.Lead)}
}

func (r *LeadMemory) Create(ctx context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.leads {
		if existing.Phone == lead.Phone {
			return ErrDuplicateContact
		}
	}

	r.leads[lead.ID] = *lead
	return nil
}

func (r *LeadMemory) FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &lead, nil
}

func (r *LeadMemory) FindByPhone(ctx context.Context, phone string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, lead := range r.leads {
		if lead.Phone == phone {
			copied := lead
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// AppointmentMemory is an in-memory AppointmentRepository used in tests. The
// single mutex makes the conflict-check-then-insert of CreateIfFree atomic, the
// same guarantee the Postgres implementation gets from its transaction.
type AppointmentMemory struct {
	mu    sync.Mutex
	appts map[uuid.UUID]domain.Appointment
}

// NewAppointmentMemory returns an empty in-memory appointment repository.
func NewAppointmentMemory() *AppointmentMemory {
	return &AppointmentMemory{appts: make(map[uuid.UUID]domain.Appointment)}
}

func (r *AppointmentMemory) CreateIfFree(ctx context.Context, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.appts {
		if existing.ScheduledAt.Equal(appt.ScheduledAt) && existing.Status != domain.StatusCancelled {
			return ErrSlotTaken
		}
	}

	r.appts[appt.ID] = *appt
	return nil
}

func (r *AppointmentMemory) Insert(ctx context.Context, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appts[appt.ID] = *appt
	return nil
}

func (r *AppointmentMemory) FindByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &appt, nil
}

func (r *AppointmentMemory) Update(ctx context.Context, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appts[appt.ID]; !ok {
		return ErrNotFound
	}

	r.appts[appt.ID] = *appt
	return nil
}

func (r *AppointmentMemory) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Appointment
	for _, appt := range r.appts {
		if appt.LeadID != nil && *appt.LeadID == leadID {
			result = append(result, appt)
		}
	}

	sortByScheduleDesc(result)
	return result, nil
}

func (r *AppointmentMemory) ListAll(ctx context.Context, status *domain.AppointmentStatus) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Appointment
	for _, appt := range r.appts {
		if status != nil && appt.Status != *status {
			continue
		}
		result = append(result, appt)
	}

	sortByScheduleDesc(result)
	return result, nil
}

func (r *AppointmentMemory) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Appointment
	for _, appt := range r.appts {
		if !appt.ScheduledAt.Before(from) && appt.ScheduledAt.Before(to) {
			result = append(result, appt)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

func (r *AppointmentMemory) DeleteBlocks(ctx context.Context, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, appt := range r.appts {
		if appt.LeadID == nil && !appt.ScheduledAt.Before(from) && appt.ScheduledAt.Before(to) {
			delete(r.appts, id)
			deleted++
		}
	}

	return deleted, nil
}

func sortByScheduleDesc(appts []domain.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].ScheduledAt.After(appts[j].ScheduledAt)
	})
}

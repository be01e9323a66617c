package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Nickdtt/ia-crm/internal/domain"
)

const appointmentColumns = `
	id, lead_id, scheduled_at, duration_minutes, meeting_type, notes,
	status, cancellation_reason, cancelled_at, created_at
`

type appointmentPostgres struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAppointmentPostgres creates a SQL-backed appointment repository.
func NewAppointmentPostgres(db *sql.DB, log *slog.Logger) AppointmentRepository {
	return &appointmentPostgres{
		db:  db,
		log: log,
	}
}

// CreateIfFree inserts the appointment only when no non-cancelled appointment
// occupies the timestamp. The row lock in the conflict check covers an
// occupied slot; for an empty slot FOR UPDATE has no row to lock, so the
// partial unique index on scheduled_at is what decides concurrent inserts —
// the loser's insert fails with a unique violation and maps to ErrSlotTaken.
func (r *appointmentPostgres) CreateIfFree(ctx context.Context, appt *domain.Appointment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const conflictQuery = `
		SELECT id FROM appointments
		WHERE scheduled_at = $1 AND status != 'cancelled'
		FOR UPDATE
	`

	var conflictID uuid.UUID
	err = tx.QueryRowContext(ctx, conflictQuery, appt.ScheduledAt).Scan(&conflictID)
	switch {
	case err == nil:
		return ErrSlotTaken
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check slot conflict: %w", err)
	}

	if err := insertAppointment(ctx, tx, appt); err != nil {
		if IsUniqueViolation(err) {
			return ErrSlotTaken
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit appointment: %w", err)
	}

	return nil
}

// Insert stores the appointment without a conflict check.
func (r *appointmentPostgres) Insert(ctx context.Context, appt *domain.Appointment) error {
	return insertAppointment(ctx, r.db, appt)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAppointment(ctx context.Context, db execer, appt *domain.Appointment) error {
	const query = `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if _, err := db.ExecContext(
		ctx,
		query,
		appt.ID,
		appt.LeadID,
		appt.ScheduledAt,
		appt.DurationMinutes,
		appt.MeetingType,
		appt.Notes,
		appt.Status,
		appt.CancellationReason,
		appt.CancelledAt,
		appt.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	return nil
}

// FindByID retrieves an appointment by its identifier.
func (r *appointmentPostgres) FindByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	appt, err := scanAppointment(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select appointment: %w", err)
	}

	return appt, nil
}

// Update rewrites the mutable appointment fields.
func (r *appointmentPostgres) Update(ctx context.Context, appt *domain.Appointment) error {
	const query = `
		UPDATE appointments
		SET scheduled_at = $2, duration_minutes = $3, meeting_type = $4, notes = $5,
		    status = $6, cancellation_reason = $7, cancelled_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		appt.ID,
		appt.ScheduledAt,
		appt.DurationMinutes,
		appt.MeetingType,
		appt.Notes,
		appt.Status,
		appt.CancellationReason,
		appt.CancelledAt,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update appointment", slog.String("id", appt.ID.String()), slog.Any("error", err))
		}
		return fmt.Errorf("update appointment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appointment rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByLead returns a lead's appointments ordered by schedule descending.
func (r *appointmentPostgres) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE lead_id = $1
		ORDER BY scheduled_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by lead: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

// ListAll returns every appointment, optionally filtered by status.
func (r *appointmentPostgres) ListAll(ctx context.Context, status *domain.AppointmentStatus) ([]domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	args := []any{}

	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY scheduled_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

// ListBetween returns appointments scheduled in [from, to).
func (r *appointmentPostgres) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments between: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

// DeleteBlocks removes administrative block markers scheduled in [from, to).
func (r *appointmentPostgres) DeleteBlocks(ctx context.Context, from, to time.Time) (int, error) {
	const query = `
		DELETE FROM appointments
		WHERE lead_id IS NULL AND scheduled_at >= $1 AND scheduled_at < $2
	`

	result, err := r.db.ExecContext(ctx, query, from, to)
	if err != nil {
		return 0, fmt.Errorf("delete blocks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete blocks rows: %w", err)
	}

	return int(affected), nil
}

func collectAppointments(rows *sql.Rows) ([]domain.Appointment, error) {
	var result []domain.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		result = append(result, *appt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}

	return result, nil
}

func scanAppointment(scan func(dest ...any) error) (*domain.Appointment, error) {
	var (
		appt        domain.Appointment
		leadID      uuid.NullUUID
		reason      sql.NullString
		cancelledAt sql.NullTime
	)

	if err := scan(
		&appt.ID,
		&leadID,
		&appt.ScheduledAt,
		&appt.DurationMinutes,
		&appt.MeetingType,
		&appt.Notes,
		&appt.Status,
		&reason,
		&cancelledAt,
		&appt.CreatedAt,
	); err != nil {
		return nil, err
	}

	if leadID.Valid {
		id := leadID.UUID
		appt.LeadID = &id
	}
	if reason.Valid {
		appt.CancellationReason = reason.String
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		appt.CancelledAt = &t
	}

	return &appt, nil
}

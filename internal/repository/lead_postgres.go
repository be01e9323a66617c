package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Nickdtt/ia-crm/internal/domain"
)

type leadPostgres struct {
	db  *sql.DB
	log *slog.Logger
}

// NewLeadPostgres creates a SQL-backed lead repository.
func NewLeadPostgres(db *sql.DB, log *slog.Logger) LeadRepository {
	return &leadPostgres{
		db:  db,
		log: log,
	}
}

// Create persists a new lead. A duplicate phone maps to ErrDuplicateContact.
func (r *leadPostgres) Create(ctx context.Context, lead *domain.Lead) error {
	const query = `
		INSERT INTO leads (id, name, email, phone, interest, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		lead.ID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Interest,
		lead.Notes,
		lead.CreatedAt,
	); err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateContact
		}

		if r.log != nil {
			r.log.Error("failed to create lead", slog.String("phone", lead.Phone), slog.Any("error", err))
		}
		return fmt.Errorf("insert lead: %w", err)
	}

	return nil
}

// FindByID retrieves a lead by its identifier.
func (r *leadPostgres) FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	const query = `
		SELECT id, name, email, phone, interest, notes, created_at
		FROM leads
		WHERE id = $1
	`

	return r.scanLead(r.db.QueryRowContext(ctx, query, id))
}

// FindByPhone retrieves a lead by its contact identifier.
func (r *leadPostgres) FindByPhone(ctx context.Context, phone string) (*domain.Lead, error) {
	const query = `
		SELECT id, name, email, phone, interest, notes, created_at
		FROM leads
		WHERE phone = $1
	`

	return r.scanLead(r.db.QueryRowContext(ctx, query, phone))
}

func (r *leadPostgres) scanLead(row *sql.Row) (*domain.Lead, error) {
	var lead domain.Lead
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Interest,
		&lead.Notes,
		&lead.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("select lead: %w", err)
	}

	return &lead, nil
}

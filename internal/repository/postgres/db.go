package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	appointmentSlotIndex = "appointments_staff_slot_uniq"
)

func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// mapError translates driver errors into repository errors.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case uniqueViolation:
		if pqErr.Constraint == appointmentSlotIndex {
			return fmt.Errorf("%w: %s", repository.ErrSlotTaken, pqErr.Message)
		}
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pqErr.Message)
	case foreignKeyViolation:
		return fmt.Errorf("%w: %s", repository.ErrReferenced, pqErr.Detail)
	}
	return err
}

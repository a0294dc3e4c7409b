package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

const insertUser = `
	INSERT INTO users (
		id, email, name, password_hash, role,
		patient_id, staff_id, active, created_at, updated_at
	) VALUES (
		:id, :email, :name, :password_hash, :role,
		:patient_id, :staff_id, :active, :created_at, :updated_at
	)
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(user.Email)
	user.Touch()

	if _, err := r.db.NamedExecContext(ctx, insertUser, user); err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}
	return nil
}

func (r *userRepository) CreateWithPatient(ctx context.Context, user *model.User, patient *model.Patient) error {
	patient.Touch()
	user.Email = strings.ToLower(user.Email)
	user.PatientID = &patient.ID
	user.Touch()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertPatient, patient); err != nil {
			return fmt.Errorf("failed to create patient: %w", mapError(err))
		}
		if _, err := tx.NamedExecContext(ctx, insertUser, user); err != nil {
			return fmt.Errorf("failed to create user: %w", mapError(err))
		}
		return nil
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectOne(result)
}

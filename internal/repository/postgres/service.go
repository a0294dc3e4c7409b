package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	service.Touch()
	query := `
		INSERT INTO services (id, name, description, duration, price, active, created_at, updated_at)
		VALUES (:id, :name, :description, :duration, :price, :active, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("failed to create service: %w", mapError(err))
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var service model.Service
	if err := r.db.GetContext(ctx, &service, `SELECT * FROM services WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	service.Touch()
	query := `
		UPDATE services
		SET name = :name, description = :description, duration = :duration,
			price = :price, active = :active, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, service)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", mapError(err))
	}
	return expectOne(result)
}

func (r *serviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", mapError(err))
	}
	return expectOne(result)
}

func (r *serviceRepository) List(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, error) {
	var w where
	if filters.ActiveOnly {
		w.add("active = $%d", true)
	}
	if filters.SearchTerm != "" {
		w.add("name ILIKE $%d", "%"+filters.SearchTerm+"%")
	}

	services := []*model.Service{}
	if err := r.db.SelectContext(ctx, &services, "SELECT * FROM services"+w.String()+" ORDER BY name", w.args...); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "services")
}

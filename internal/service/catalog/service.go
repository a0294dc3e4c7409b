// Package catalog manages the services (treatments offered) a clinic books.
package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
)

type CatalogService interface {
	CreateService(ctx context.Context, req *model.CreateServiceRequest) (*model.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
	UpdateService(ctx context.Context, id uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error)
	DeleteService(ctx context.Context, id uuid.UUID) error
	ListServices(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, error)
}

type Service struct {
	repo repository.ServiceRepository
}

func NewService(repo repository.ServiceRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateService(ctx context.Context, req *model.CreateServiceRequest) (*model.Service, error) {
	svc := &model.Service{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Duration:    req.Duration,
		Price:       req.Price,
		Active:      true,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, service.FromRepository("service", err)
	}
	return svc, nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	svc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository("service", err)
	}
	return svc, nil
}

func (s *Service) UpdateService(ctx context.Context, id uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error) {
	svc, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(svc)
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, service.FromRepository("service", err)
	}
	return svc, nil
}

// DeleteService removes a service. Services with booked appointments cannot
// be deleted; deactivate them instead.
func (s *Service) DeleteService(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return service.FromRepository("service", err)
	}
	return nil
}

func (s *Service) ListServices(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, error) {
	services, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, service.FromRepository("service", err)
	}
	return services, nil
}

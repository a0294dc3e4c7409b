// Package service holds helpers shared by the business services.
package service

import (
	"errors"

	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// FromRepository translates a repository error into an application error.
func FromRepository(resource string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrSlotTaken):
		return apperrors.ErrSlotUnavailable
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Conflict(resource+" already exists", err)
	case errors.Is(err, repository.ErrReferenced):
		return apperrors.Conflict(resource+" is referenced by other records", err)
	default:
		return apperrors.Internal(err)
	}
}

package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func TestServiceLifecycle(t *testing.T) {
	svc := NewService(memory.NewStore().Services())
	ctx := context.Background()

	created, err := svc.CreateService(ctx, &model.CreateServiceRequest{Name: " Cleaning ", Duration: 45, Price: 80})
	require.NoError(t, err)
	assert.Equal(t, "Cleaning", created.Name)
	assert.True(t, created.Active)

	inactive := false
	duration := 60
	updated, err := svc.UpdateService(ctx, created.ID, &model.UpdateServiceRequest{Active: &inactive, Duration: &duration})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, 60, updated.Duration)

	active, err := svc.ListServices(ctx, &model.ServiceFilters{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListServices(ctx, &model.ServiceFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.DeleteService(ctx, created.ID))
	_, err = svc.GetService(ctx, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	err = svc.DeleteService(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

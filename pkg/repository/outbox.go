package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// OutboxRepository is the slice of outbox storage pkg/worker depends on.
type OutboxRepository interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	return insertOutboxEvent(ctx, r.db, event)
}

// insertOutboxEvent writes event with db, which may be a transaction. A nil
// event is a no-op.
func insertOutboxEvent(ctx context.Context, db sqlx.ExtContext, event *model.OutboxEvent) error {
	if event == nil {
		return nil
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	now := time.Now().UTC()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES (:id, :event_type, :payload, :status, :retry_count, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, db, query, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message, retry_count,
			created_at, updated_at, processed_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	events := []*model.OutboxEvent{}
	if err := r.db.SelectContext(ctx, &events, query, model.OutboxStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return expectOne(result)
}

// MarkFailed records a failed publish. Non-final failures stay PENDING so the
// next poll retries them.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	status := model.OutboxStatusPending
	if final {
		status = model.OutboxStatusFailed
	}
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return expectOne(result)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}

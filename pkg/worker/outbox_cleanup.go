package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/repository"
)

// OutboxCleanupWorker removes processed outbox events past their retention.
type OutboxCleanupWorker struct {
	repo          repository.OutboxRepository
	retentionDays int
	interval      time.Duration
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retentionDays int, interval time.Duration, logger zerolog.Logger, m *metrics.Metrics) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With().Str("component", "outbox-cleanup").Logger(),
		metrics:       m,
		now:           time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *OutboxCleanupWorker) RunOnce(ctx context.Context) {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)
	n, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to purge processed outbox events")
		return
	}
	w.metrics.OutboxEventsPurged.Add(float64(n))
	if n > 0 {
		w.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("purged processed outbox events")
	}
}

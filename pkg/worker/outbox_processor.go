package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/repository"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Events that have failed this many polls are parked as FAILED.
	MaxRetries    int
	ChannelPrefix string
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be greater than 0")
	case c.PollInterval <= 0:
		return fmt.Errorf("poll interval must be greater than 0")
	case c.RetryAttempts <= 0:
		return fmt.Errorf("retry attempts must be greater than 0")
	case c.RetryDelay < 0:
		return fmt.Errorf("retry delay must not be negative")
	case c.MaxRetries <= 0:
		return fmt.Errorf("max retries must be greater than 0")
	}
	return nil
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger.With().Str("component", "outbox-processor").Logger(),
		metrics: metrics,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Msg("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to process events")
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to process event")
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	channel := messaging.Channel(p.config.ChannelPrefix, event.EventType)
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, channel, event.Payload)
	}, func() {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	})

	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		final := event.RetryCount+1 >= p.config.MaxRetries
		if updateErr := p.repo.MarkFailed(ctx, event.ID, err.Error(), final); updateErr != nil {
			p.logger.Error().Err(updateErr).Str("event_id", event.ID.String()).Msg("failed to update event status")
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, onRetry func()) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		onRetry()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

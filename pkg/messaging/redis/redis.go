package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int

	// Consecutive publish failures before the breaker opens.
	FailureThreshold uint32
	// How long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
}

type RedisBroker struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	logger zerolog.Logger
}

// Connect parses the URL, pings the server and returns a ready broker.
func Connect(ctx context.Context, config Config, logger zerolog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewBroker(client, config, logger), nil
}

func NewBroker(client *redis.Client, config Config, logger zerolog.Logger) *RedisBroker {
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := config.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger = logger.With().Str("component", "redis-broker").Logger()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-broker",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &RedisBroker{client: client, cb: cb, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.Publish(ctx, channel, payload).Err()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", messaging.ErrBrokerUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe consumes messages from channels matching pattern until ctx is
// cancelled. Handler errors are logged and do not stop consumption.
func (b *RedisBroker) Subscribe(ctx context.Context, pattern string, handler messaging.Handler) error {
	pubsub := b.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}
	b.logger.Info().Str("pattern", pattern).Msg("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handler(ctx, []byte(msg.Payload)); err != nil {
				b.logger.Error().Err(err).
					Str("channel", msg.Channel).
					Msg("failed to handle message")
			}
		}
	}
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

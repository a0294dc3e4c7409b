package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestPublishOpensBreakerAfterFailures(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	b := NewBroker(client, Config{FailureThreshold: 2, OpenTimeout: time.Minute}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := b.Publish(ctx, "clinic:appointment.created", []byte(`{}`))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, messaging.ErrBrokerUnavailable)
	}

	err := b.Publish(ctx, "clinic:appointment.created", []byte(`{}`))
	assert.ErrorIs(t, err, messaging.ErrBrokerUnavailable)
}

func TestConnectFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Connect(ctx, Config{URL: "redis://127.0.0.1:1/0", MaxRetries: -1}, zerolog.Nop())
	assert.Error(t, err)

	_, err = Connect(ctx, Config{URL: "not a url"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "clinic:appointment.created", messaging.Channel("clinic", "appointment.created"))
	assert.Equal(t, "appointment.created", messaging.Channel("", "appointment.created"))
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	return events, args.Error(1)
}

func (m *mockOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	return m.Called(ctx, id, errMsg, final).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return m.Called(ctx, channel, payload).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string, handler messaging.Handler) error {
	return m.Called(ctx, channel, handler).Error(0)
}

func (m *mockBroker) Close() error {
	return m.Called().Error(0)
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    0,
		MaxRetries:    3,
		ChannelPrefix: "clinic",
	}
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(&mockOutboxRepo{}, &mockBroker{}, cfg, zerolog.Nop(), metrics.New("t", prometheus.NewRegistry()))
	assert.Error(t, err)
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	repo := &mockOutboxRepo{}
	broker := &mockBroker{}
	m := metrics.New("t", prometheus.NewRegistry())

	event := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventAppointmentCreated, Payload: []byte(`{"id":"1"}`)}
	repo.On("GetPendingEvents", ctx, 10).Return([]*model.OutboxEvent{event}, nil)
	broker.On("Publish", ctx, "clinic:appointment.created", []byte(event.Payload)).Return(nil)
	repo.On("MarkProcessed", ctx, event.ID).Return(nil)

	p, err := NewOutboxProcessor(repo, broker, testConfig(), zerolog.Nop(), m)
	require.NoError(t, err)
	require.NoError(t, p.ProcessBatch(ctx))

	repo.AssertExpectations(t)
	broker.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestProcessBatchRetriesThenMarksFailed(t *testing.T) {
	ctx := context.Background()
	repo := &mockOutboxRepo{}
	broker := &mockBroker{}
	m := metrics.New("t", prometheus.NewRegistry())

	fresh := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventAppointmentCancelled, Payload: []byte(`{}`)}
	exhausted := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventAppointmentCancelled, Payload: []byte(`{}`), RetryCount: 2}
	repo.On("GetPendingEvents", ctx, 10).Return([]*model.OutboxEvent{fresh, exhausted}, nil)
	broker.On("Publish", ctx, "clinic:appointment.cancelled", mock.Anything).Return(errors.New("connection refused"))
	repo.On("MarkFailed", ctx, fresh.ID, "connection refused", false).Return(nil)
	repo.On("MarkFailed", ctx, exhausted.ID, "connection refused", true).Return(nil)

	p, err := NewOutboxProcessor(repo, broker, testConfig(), zerolog.Nop(), m)
	require.NoError(t, err)
	require.NoError(t, p.ProcessBatch(ctx))

	broker.AssertNumberOfCalls(t, "Publish", 4)
	repo.AssertExpectations(t)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxEventsFailed))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventAppointmentCancelled)))
}

func TestProcessBatchRepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := &mockOutboxRepo{}
	repo.On("GetPendingEvents", ctx, 10).Return(nil, errors.New("db down"))

	p, err := NewOutboxProcessor(repo, &mockBroker{}, testConfig(), zerolog.Nop(), metrics.New("t", prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Error(t, p.ProcessBatch(ctx))
}

func TestOutboxCleanupRunOnce(t *testing.T) {
	ctx := context.Background()
	repo := &mockOutboxRepo{}
	m := metrics.New("t", prometheus.NewRegistry())
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	repo.On("DeleteProcessedBefore", ctx, now.AddDate(0, 0, -7)).Return(int64(4), nil)

	w := NewOutboxCleanupWorker(repo, 7, time.Hour, zerolog.Nop(), m)
	w.now = func() time.Time { return now }
	w.RunOnce(ctx)

	repo.AssertExpectations(t)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.OutboxEventsPurged))
}

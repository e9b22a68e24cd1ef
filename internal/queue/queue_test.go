package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

func newTestStreamsClient(t *testing.T) *StreamsClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStreamsClientFromRedis(client, "jobwatch-test")
}

func TestAllRunTypes(t *testing.T) {
	assert.Equal(t, []domain.RunType{domain.RunTypeManual, domain.RunTypeScheduled, domain.RunTypeGC}, AllRunTypes())
}

func TestProducerConsumer_EnqueueAndRead(t *testing.T) {
	ctx := context.Background()
	streams := newTestStreamsClient(t)

	consumer, err := NewConsumer(streams, ConsumerConfig{ConsumerGroup: "fleet", ConsumerID: "worker-1"})
	require.NoError(t, err)
	require.NoError(t, consumer.Initialize(ctx))

	producer := NewProducer(streams, ProducerConfig{})
	_, err = producer.Enqueue(ctx, &Task{TenantID: "tenant-1", RunID: "run-1", RunType: domain.RunTypeManual})
	require.NoError(t, err)

	tasks, err := consumer.ReadRunType(ctx, domain.RunTypeManual)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "tenant-1", tasks[0].Task.TenantID)
	assert.Equal(t, "run-1", tasks[0].Task.RunID)
	assert.Equal(t, domain.RunTypeManual, tasks[0].RunType)

	require.NoError(t, consumer.Acknowledge(ctx, tasks[0]))

	pending, err := consumer.GetPendingCount(ctx, domain.RunTypeManual)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
}

func TestProducer_GetQueueDepth(t *testing.T) {
	ctx := context.Background()
	streams := newTestStreamsClient(t)
	producer := NewProducer(streams, ProducerConfig{})

	_, err := producer.Enqueue(ctx, &Task{TenantID: "t1", RunID: "r1", RunType: domain.RunTypeScheduled})
	require.NoError(t, err)
	_, err = producer.Enqueue(ctx, &Task{TenantID: "t1", RunID: "r2", RunType: domain.RunTypeScheduled})
	require.NoError(t, err)

	depth, err := producer.GetQueueDepth(ctx, domain.RunTypeScheduled)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestConsumer_AcknowledgeNilTaskErrors(t *testing.T) {
	streams := newTestStreamsClient(t)
	consumer, err := NewConsumer(streams, ConsumerConfig{ConsumerGroup: "fleet", ConsumerID: "worker-1"})
	require.NoError(t, err)

	err = consumer.Acknowledge(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewConsumer_RequiresConsumerID(t *testing.T) {
	streams := newTestStreamsClient(t)

	_, err := NewConsumer(streams, ConsumerConfig{ConsumerGroup: "fleet"})
	assert.Error(t, err)
}

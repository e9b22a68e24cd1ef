package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

const (
	// defaultConsumerGroup is the consumer group name shared by a worker fleet.
	defaultConsumerGroup = "worker-fleet"

	// defaultBlockTimeout bounds how long a read blocks waiting for new messages.
	defaultBlockTimeout = 5 * time.Second

	// defaultBatchSize is the default count of messages to read per batch.
	defaultBatchSize = 10

	// defaultClaimMinIdle is the visibility timeout: a pending message is only
	// reclaimed once idle this long, equal to the ~540s worker invocation
	// timeout (SPEC_FULL.md §4.6).
	defaultClaimMinIdle = 9 * time.Minute

	// maxPendingCheck bounds how many pending entries are inspected per sweep.
	maxPendingCheck = 100
)

// Consumer reads dispatcher tasks from Redis Streams.
type Consumer struct {
	client        *StreamsClient
	consumerGroup string
	consumerID    string
	blockTimeout  time.Duration
	batchSize     int64
	claimMinIdle  time.Duration
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	ConsumerGroup string        // Consumer group name
	ConsumerID    string        // Unique consumer identifier
	BlockTimeout  time.Duration // Block timeout for reads (0 = default)
	BatchSize     int64         // Number of messages per read (0 = default)
	ClaimMinIdle  time.Duration // Min idle time before claiming (0 = default)
}

// ConsumedTask is one task read from the queue, still holding its stream
// message ID so the caller can acknowledge it after processing.
type ConsumedTask struct {
	MessageID  string
	Task       *Task
	RunType    domain.RunType
	EnqueuedAt time.Time
}

// NewConsumer creates a new task consumer.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	return &Consumer{
		client:        client,
		consumerGroup: group,
		consumerID:    cfg.ConsumerID,
		blockTimeout:  blockTimeout,
		batchSize:     batchSize,
		claimMinIdle:  claimMinIdle,
	}, nil
}

// Initialize creates consumer groups for every run type's stream.
func (c *Consumer) Initialize(ctx context.Context) error {
	for _, runType := range AllRunTypes() {
		stream := c.client.StreamName(string(runType))
		if err := c.client.CreateConsumerGroup(ctx, stream, c.consumerGroup); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}
	return nil
}

// Read reads tasks from the run-type streams, reclaiming any pending
// message past its visibility timeout before reading new ones.
func (c *Consumer) Read(ctx context.Context) ([]*ConsumedTask, error) {
	reclaimed := c.reclaimPending(ctx)
	if len(reclaimed) > 0 {
		return reclaimed, nil
	}

	return c.readNewMessages(ctx)
}

// ReadRunType reads tasks from a single run type's stream only.
func (c *Consumer) ReadRunType(ctx context.Context, runType domain.RunType) ([]*ConsumedTask, error) {
	stream := c.client.StreamName(string(runType))
	streams := []string{stream, ">"}

	messages, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, streams, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}

	return c.parseMessages(messages, runType)
}

// Acknowledge acknowledges successful processing of a task.
func (c *Consumer) Acknowledge(ctx context.Context, task *ConsumedTask) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	stream := c.client.StreamName(string(task.RunType))
	return c.client.XAck(ctx, stream, c.consumerGroup, task.MessageID)
}

// AcknowledgeBatch acknowledges multiple tasks at once.
func (c *Consumer) AcknowledgeBatch(ctx context.Context, tasks []*ConsumedTask) error {
	if len(tasks) == 0 {
		return nil
	}

	byStream := make(map[domain.RunType][]string)
	for _, task := range tasks {
		byStream[task.RunType] = append(byStream[task.RunType], task.MessageID)
	}

	for runType, ids := range byStream {
		stream := c.client.StreamName(string(runType))
		if err := c.client.XAck(ctx, stream, c.consumerGroup, ids...); err != nil {
			return fmt.Errorf("failed to acknowledge messages in stream %s: %w", stream, err)
		}
	}

	return nil
}

// GetPendingCount returns the count of pending messages for a run type.
func (c *Consumer) GetPendingCount(ctx context.Context, runType domain.RunType) (int64, error) {
	stream := c.client.StreamName(string(runType))
	pending, err := c.client.XPending(ctx, stream, c.consumerGroup)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

// GetAllPendingCounts returns pending counts for every run type.
func (c *Consumer) GetAllPendingCounts(ctx context.Context) (map[domain.RunType]int64, error) {
	counts := make(map[domain.RunType]int64, len(AllRunTypes()))

	for _, runType := range AllRunTypes() {
		count, err := c.GetPendingCount(ctx, runType)
		if err != nil {
			return counts, err
		}
		counts[runType] = count
	}

	return counts, nil
}

// readNewMessages reads new messages from every run-type stream.
func (c *Consumer) readNewMessages(ctx context.Context) ([]*ConsumedTask, error) {
	runTypes := AllRunTypes()
	streams := make([]string, 0, len(runTypes)*2)
	for _, runType := range runTypes {
		streams = append(streams, c.client.StreamName(string(runType)))
	}
	for range runTypes {
		streams = append(streams, ">")
	}

	messages, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, streams, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from streams: %w", err)
	}

	return c.parseAllMessages(messages)
}

// reclaimPending reclaims pending messages that have exceeded the visibility
// timeout, across every run-type stream.
func (c *Consumer) reclaimPending(ctx context.Context) []*ConsumedTask {
	var reclaimed []*ConsumedTask

	for _, runType := range AllRunTypes() {
		stream := c.client.StreamName(string(runType))

		pending, err := c.client.XPendingExt(ctx, stream, c.consumerGroup, "-", "+", maxPendingCheck)
		if err != nil {
			continue
		}

		var idsToReclaim []string
		for _, entry := range pending {
			if entry.Idle >= c.claimMinIdle {
				idsToReclaim = append(idsToReclaim, entry.ID)
			}
		}
		if len(idsToReclaim) == 0 {
			continue
		}

		claimed, claimErr := c.client.XClaim(
			ctx, stream, c.consumerGroup, c.consumerID, c.claimMinIdle, idsToReclaim...,
		)
		if claimErr != nil {
			continue
		}

		for _, msg := range claimed {
			task, parseErr := c.parseMessage(msg, runType)
			if parseErr != nil {
				continue
			}
			reclaimed = append(reclaimed, task)
		}
	}

	return reclaimed
}

// parseAllMessages parses messages from every run-type stream's result,
// matching each returned stream to its run type by stream name.
func (c *Consumer) parseAllMessages(streams []redis.XStream) ([]*ConsumedTask, error) {
	var tasks []*ConsumedTask

	byStream := make(map[string]domain.RunType, len(AllRunTypes()))
	for _, runType := range AllRunTypes() {
		byStream[c.client.StreamName(string(runType))] = runType
	}
	for _, stream := range streams {
		runType, ok := byStream[stream.Stream]
		if !ok {
			continue
		}
		streamTasks, err := c.parseMessages([]redis.XStream{stream}, runType)
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, streamTasks...)
	}

	return tasks, nil
}

// parseMessages parses messages from a single stream.
func (c *Consumer) parseMessages(streams []redis.XStream, runType domain.RunType) ([]*ConsumedTask, error) {
	var tasks []*ConsumedTask

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			task, err := c.parseMessage(msg, runType)
			if err != nil {
				continue // skip malformed messages
			}
			tasks = append(tasks, task)
		}
	}

	return tasks, nil
}

// parseMessage parses a single stream message into a ConsumedTask.
func (c *Consumer) parseMessage(msg redis.XMessage, runType domain.RunType) (*ConsumedTask, error) {
	taskData, ok := msg.Values[TaskDataField].(string)
	if !ok {
		return nil, errors.New("missing or invalid task data")
	}

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	consumed := &ConsumedTask{
		MessageID: msg.ID,
		Task:      &task,
		RunType:   runType,
	}

	if enqueuedStr, hasEnqueued := msg.Values[EnqueuedAtField].(string); hasEnqueued {
		if t, parseErr := time.Parse(time.RFC3339, enqueuedStr); parseErr == nil {
			consumed.EnqueuedAt = t
		}
	}

	return consumed, nil
}

// ConsumerGroup returns the consumer group name.
func (c *Consumer) ConsumerGroup() string {
	return c.consumerGroup
}

// ConsumerID returns the consumer ID.
func (c *Consumer) ConsumerID() string {
	return c.consumerID
}

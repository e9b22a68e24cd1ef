package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

const (
	// TaskDataField is the field name for serialized task data in stream messages.
	TaskDataField = "task"

	// EnqueuedAtField is the field name for enqueue timestamp.
	EnqueuedAtField = "enqueued_at"

	// defaultMaxStreamLen caps a single run-type stream to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

// Task is the dispatcher message: a reference to one run for a worker to
// pick up and process (SPEC_FULL.md §4.6).
type Task struct {
	TenantID string         `json:"tenantId"`
	RunID    string         `json:"runId"`
	RunType  domain.RunType `json:"runType"`
}

// Producer handles enqueueing tasks to Redis Streams.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	MaxStreamLen int64 // Maximum stream length (0 = default)
}

// NewProducer creates a new task producer.
func NewProducer(client *StreamsClient, cfg ProducerConfig) *Producer {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}

	return &Producer{
		client:       client,
		maxStreamLen: maxLen,
	}
}

// Enqueue adds a task to its run type's stream.
func (p *Producer) Enqueue(ctx context.Context, task *Task) (string, error) {
	if task == nil {
		return "", errors.New("task cannot be nil")
	}

	taskData, marshalErr := json.Marshal(task)
	if marshalErr != nil {
		return "", fmt.Errorf("failed to serialize task: %w", marshalErr)
	}

	values := map[string]any{
		TaskDataField:   string(taskData),
		EnqueuedAtField: time.Now().UTC().Format(time.RFC3339),
	}

	stream := p.client.StreamName(string(task.RunType))
	messageID, addErr := p.client.XAdd(ctx, stream, values)
	if addErr != nil {
		return "", fmt.Errorf("failed to enqueue task to stream %s: %w", stream, addErr)
	}

	return messageID, nil
}

// EnqueueWithTimeout adds a task with a context timeout.
func (p *Producer) EnqueueWithTimeout(ctx context.Context, task *Task, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return p.Enqueue(ctx, task)
}

// TrimStream trims a run type's stream to the maximum length.
func (p *Producer) TrimStream(ctx context.Context, runType domain.RunType) error {
	stream := p.client.StreamName(string(runType))
	return p.client.XTrimMaxLen(ctx, stream, p.maxStreamLen)
}

// TrimAllStreams trims every run type's stream to the maximum length.
func (p *Producer) TrimAllStreams(ctx context.Context) error {
	for _, runType := range AllRunTypes() {
		if err := p.TrimStream(ctx, runType); err != nil {
			return fmt.Errorf("failed to trim stream %s: %w", runType, err)
		}
	}
	return nil
}

// GetQueueDepth returns the current queue depth for a run type.
func (p *Producer) GetQueueDepth(ctx context.Context, runType domain.RunType) (int64, error) {
	stream := p.client.StreamName(string(runType))
	return p.client.XLen(ctx, stream)
}

// GetAllQueueDepths returns the queue depth for every run type.
func (p *Producer) GetAllQueueDepths(ctx context.Context) (map[domain.RunType]int64, error) {
	depths := make(map[domain.RunType]int64, len(AllRunTypes()))

	for _, runType := range AllRunTypes() {
		depth, err := p.GetQueueDepth(ctx, runType)
		if err != nil {
			return depths, fmt.Errorf("failed to get depth for %s: %w", runType, err)
		}
		depths[runType] = depth
	}

	return depths, nil
}

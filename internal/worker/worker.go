package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
)

// WorkerState represents the current state of a worker.
type WorkerState int32

const (
	// WorkerStateIdle means the worker is waiting for work.
	WorkerStateIdle WorkerState = iota

	// WorkerStateBusy means the worker is processing a feed.
	WorkerStateBusy

	// WorkerStateStopping means the worker is shutting down.
	WorkerStateStopping

	// WorkerStateStopped means the worker has stopped.
	WorkerStateStopped
)

// String returns the string representation of a worker state.
func (s WorkerState) String() string {
	switch s {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateBusy:
		return "busy"
	case WorkerStateStopping:
		return "stopping"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FeedHandler processes one feed within a run (C5 step 4): fetch, adapt,
// filter, normalize, upsert. Named apart from domain.Job to keep this
// pool's unit of work (a feed poll) distinct from the job postings it
// produces.
type FeedHandler func(ctx context.Context, feed *domain.Feed) error

// Worker represents an individual worker in the pool.
type Worker struct {
	id          int
	state       atomic.Int32
	handler     FeedHandler
	feedTimeout time.Duration
	logger      infralogger.Logger

	// Stats
	feedsProcessed atomic.Int64
	feedsSucceeded atomic.Int64
	feedsFailed    atomic.Int64
	lastFeedAt     atomic.Int64
	lastError      atomic.Value

	// Current feed tracking
	currentFeed atomic.Value
	feedStartAt atomic.Int64
}

// NewWorker creates a new worker.
func NewWorker(id int, handler FeedHandler, feedTimeout time.Duration, logger infralogger.Logger) *Worker {
	w := &Worker{
		id:          id,
		handler:     handler,
		feedTimeout: feedTimeout,
		logger:      logger,
	}
	w.state.Store(int32(WorkerStateIdle))
	return w
}

// ID returns the worker ID.
func (w *Worker) ID() int {
	return w.id
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// IsIdle returns true if the worker is idle.
func (w *Worker) IsIdle() bool {
	return w.State() == WorkerStateIdle
}

// IsBusy returns true if the worker is busy.
func (w *Worker) IsBusy() bool {
	return w.State() == WorkerStateBusy
}

// Process runs one feed through the handler under a per-feed timeout.
func (w *Worker) Process(ctx context.Context, feed *domain.Feed) error {
	if feed == nil {
		return fmt.Errorf("worker %d: feed cannot be nil", w.id)
	}

	if !w.state.CompareAndSwap(int32(WorkerStateIdle), int32(WorkerStateBusy)) {
		return fmt.Errorf("worker %d: not idle, current state: %s", w.id, w.State())
	}

	w.currentFeed.Store(feed)
	w.feedStartAt.Store(time.Now().UnixNano())

	defer func() {
		w.currentFeed.Store((*domain.Feed)(nil))
		w.feedStartAt.Store(0)
		w.state.Store(int32(WorkerStateIdle))
	}()

	feedCtx, cancel := context.WithTimeout(ctx, w.feedTimeout)
	defer cancel()

	w.logger.Info("worker processing feed",
		infralogger.Int("worker_id", w.id),
		infralogger.String("feed_id", feed.ID),
	)

	startTime := time.Now()
	err := w.handler(feedCtx, feed)
	duration := time.Since(startTime)

	w.feedsProcessed.Add(1)
	w.lastFeedAt.Store(time.Now().UnixNano())

	if err != nil {
		w.feedsFailed.Add(1)
		w.lastError.Store(err)
		w.logger.Error("worker feed failed",
			infralogger.Int("worker_id", w.id),
			infralogger.String("feed_id", feed.ID),
			infralogger.Duration("duration", duration),
			infralogger.String("error", err.Error()),
		)
		return fmt.Errorf("worker %d: feed %s failed: %w", w.id, feed.ID, err)
	}

	w.feedsSucceeded.Add(1)
	w.logger.Info("worker feed completed",
		infralogger.Int("worker_id", w.id),
		infralogger.String("feed_id", feed.ID),
		infralogger.Duration("duration", duration),
	)

	return nil
}

// Stop signals the worker to stop.
func (w *Worker) Stop() {
	w.state.Store(int32(WorkerStateStopping))
}

// Stats returns the worker's statistics.
func (w *Worker) Stats() WorkerStats {
	var lastErr error
	if v := w.lastError.Load(); v != nil {
		lastErr, _ = v.(error)
	}

	var currentFeedID string
	if v := w.currentFeed.Load(); v != nil {
		if feed, ok := v.(*domain.Feed); ok && feed != nil {
			currentFeedID = feed.ID
		}
	}

	var lastFeedTime time.Time
	if ts := w.lastFeedAt.Load(); ts > 0 {
		lastFeedTime = time.Unix(0, ts)
	}

	var feedStartTime time.Time
	if ts := w.feedStartAt.Load(); ts > 0 {
		feedStartTime = time.Unix(0, ts)
	}

	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		FeedsProcessed: w.feedsProcessed.Load(),
		FeedsSucceeded: w.feedsSucceeded.Load(),
		FeedsFailed:    w.feedsFailed.Load(),
		LastFeedAt:     lastFeedTime,
		LastError:      lastErr,
		CurrentFeedID:  currentFeedID,
		FeedStartedAt:  feedStartTime,
	}
}

// WorkerStats holds statistics for a worker.
type WorkerStats struct {
	ID             int
	State          WorkerState
	FeedsProcessed int64
	FeedsSucceeded int64
	FeedsFailed    int64
	LastFeedAt     time.Time
	LastError      error
	CurrentFeedID  string
	FeedStartedAt  time.Time
}

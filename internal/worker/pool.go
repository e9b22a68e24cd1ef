package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/infra/circuitbreaker"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is actively processing feeds.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Pool manages a pool of workers processing one run's feeds with bounded
// concurrency (SPEC_FULL.md §4.5 step 4, §5). When EnableCircuitBreaker is
// set, feeds sharing a host back off together once that host starts
// failing, instead of every worker retrying it independently.
type Pool struct {
	config  Config
	workers []*Worker
	handler FeedHandler
	logger  infralogger.Logger
	state   atomic.Int32
	sem     chan struct{} // Semaphore for bounded concurrency
	wg      sync.WaitGroup
	stopCh  chan struct{}
	mu      sync.RWMutex

	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.Breaker

	// Stats
	totalFeedsProcessed atomic.Int64
	totalFeedsSucceeded atomic.Int64
	totalFeedsFailed    atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, handler FeedHandler, logger infralogger.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	p := &Pool{
		config:  cfg,
		handler: handler,
		logger:  logger,
		workers: make([]*Worker, cfg.PoolSize),
		sem:     make(chan struct{}, cfg.PoolSize),
		stopCh:  make(chan struct{}),
	}
	if cfg.EnableCircuitBreaker {
		p.breakers = make(map[string]*circuitbreaker.Breaker)
	}

	// Initialize workers
	for i := range cfg.PoolSize {
		p.workers[i] = NewWorker(i, handler, cfg.JobTimeout, logger)
	}

	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.logger.Info("worker pool started",
		infralogger.Int("pool_size", p.config.PoolSize),
	)

	return nil
}

// Stop gracefully stops the worker pool.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.logger.Info("worker pool draining")

	// Signal stop
	close(p.stopCh)

	// Wait for active feeds to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
	case <-time.After(p.config.DrainTimeout):
		p.logger.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit submits a feed for processing.
// Blocks if all workers are busy.
func (p *Pool) Submit(ctx context.Context, feed *domain.Feed) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	// Acquire semaphore (blocks if pool is full)
	select {
	case p.sem <- struct{}{}:
		// Got a slot
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.wg.Add(1)

	go func() {
		defer func() {
			<-p.sem // Release semaphore
			p.wg.Done()
		}()

		// Find an idle worker
		worker := p.acquireWorker()
		if worker == nil {
			p.logger.Error("no idle worker available",
				infralogger.String("feed_id", feed.ID),
			)
			return
		}

		err := p.process(ctx, worker, feed)

		p.totalFeedsProcessed.Add(1)
		if err != nil {
			p.totalFeedsFailed.Add(1)
		} else {
			p.totalFeedsSucceeded.Add(1)
		}
	}()

	return nil
}

// process runs the feed through worker, wrapped in the host's circuit
// breaker when EnableCircuitBreaker is set. A host whose feeds keep
// failing trips its breaker so the remaining feeds on that host fail fast
// for the rest of the run instead of each burning its own fetch timeout.
func (p *Pool) process(ctx context.Context, worker *Worker, feed *domain.Feed) error {
	if p.breakers == nil {
		return worker.Process(ctx, feed)
	}

	breaker := p.hostBreaker(feed.URL)
	err := breaker.Execute(ctx, func() error {
		return worker.Process(ctx, feed)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		p.logger.Warn("worker: feed host circuit open, skipping",
			infralogger.String("feed_id", feed.ID),
		)
	}
	return err
}

// hostBreaker returns the breaker for feedURL's host, creating it on first
// use. Feeds with an unparsable URL all share a single fallback breaker.
func (p *Pool) hostBreaker(feedURL string) *circuitbreaker.Breaker {
	host := "unknown"
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		host = strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	}

	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()

	b, ok := p.breakers[host]
	if !ok {
		cfg := circuitbreaker.DefaultConfig()
		cfg.FailureThreshold = p.config.CircuitBreakerThreshold
		cfg.Timeout = p.config.CircuitBreakerTimeout
		b = circuitbreaker.New(cfg)
		p.breakers[host] = b
	}
	return b
}

// Wait blocks until every submitted feed has finished processing, without
// transitioning the pool out of PoolStateRunning. Used by the per-tenant
// worker (C5) to join a run's feed fan-out before closing the bulk writer.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// acquireWorker finds an idle worker.
func (p *Pool) acquireWorker() *Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, w := range p.workers {
		if w.IsIdle() {
			return w
		}
	}
	return nil
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.config.PoolSize
}

// BusyCount returns the number of busy workers.
func (p *Pool) BusyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, w := range p.workers {
		if w.IsBusy() {
			count++
		}
	}
	return count
}

// IdleCount returns the number of idle workers.
func (p *Pool) IdleCount() int {
	return p.Size() - p.BusyCount()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		workerStats[i] = w.Stats()
	}

	return PoolStats{
		State:          p.State(),
		PoolSize:       p.config.PoolSize,
		BusyWorkers:    p.BusyCount(),
		IdleWorkers:    p.IdleCount(),
		FeedsProcessed: p.totalFeedsProcessed.Load(),
		FeedsSucceeded: p.totalFeedsSucceeded.Load(),
		FeedsFailed:    p.totalFeedsFailed.Load(),
		Workers:        workerStats,
	}
}

// PoolStats holds statistics for the pool, reported by Processor.heartbeat
// alongside the run's own counters.
type PoolStats struct {
	State          PoolState
	PoolSize       int
	BusyWorkers    int
	IdleWorkers    int
	FeedsProcessed int64
	FeedsSucceeded int64
	FeedsFailed    int64
	Workers        []WorkerStats
}

// Package scheduler implements the periodic timer (C7) that fans a
// `scheduled` run out to every tenant and triggers the garbage collector on
// its own, less frequent cadence.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/akash-ramasani/job-watch/internal/domain"
	infraerrors "github.com/akash-ramasani/job-watch/internal/infra/errors"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/queue"
	"github.com/akash-ramasani/job-watch/internal/store"
)

const (
	// DefaultFanoutCron enumerates all tenants every 30 minutes (SPEC_FULL.md §4.7).
	DefaultFanoutCron = "*/30 * * * *"

	// DefaultGCCron runs the garbage collector daily at 03:00 local.
	DefaultGCCron = "0 3 * * *"

	// DefaultEnqueueConcurrency bounds concurrent dispatcher enqueues per tick.
	DefaultEnqueueConcurrency = 50
)

// Config holds the scheduler's cron expressions and enqueue fanout bound.
type Config struct {
	FanoutCron         string
	GCCron             string
	EnqueueConcurrency int
}

// DefaultConfig returns the spec's documented cron schedule.
func DefaultConfig() Config {
	return Config{
		FanoutCron:         DefaultFanoutCron,
		GCCron:             DefaultGCCron,
		EnqueueConcurrency: DefaultEnqueueConcurrency,
	}
}

// Scheduler owns a single cron instance driving both the tenant fanout and
// the GC trigger, grounded on the teacher's job.DBScheduler lifecycle.
type Scheduler struct {
	cfg      Config
	db       *store.DB
	producer *queue.Producer
	logger   infralogger.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler. It does not start ticking until Start is called.
func New(db *store.DB, producer *queue.Producer, cfg Config, logger infralogger.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Scheduler{
		cfg:      cfg,
		db:       db,
		producer: producer,
		logger:   logger,
		cron:     c,
	}
}

// Start registers the two cron entries and starts ticking. The scheduler's
// own lifecycle context is derived from ctx so Stop can be called
// independently of the caller's request-scoped context.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.cfg.FanoutCron, func() {
		s.runFanout(s.ctx)
	}); err != nil {
		return infraerrors.WrapWithContext(err, "scheduler: add fanout cron")
	}

	if _, err := s.cron.AddFunc(s.cfg.GCCron, func() {
		s.runGCFanout(s.ctx)
	}); err != nil {
		return infraerrors.WrapWithContext(err, "scheduler: add gc cron")
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		infralogger.String("fanout_cron", s.cfg.FanoutCron),
		infralogger.String("gc_cron", s.cfg.GCCron),
	)
	return nil
}

// Stop halts the cron and waits for any in-flight tick to finish enqueueing.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// runFanout enumerates every tenant and enqueues one `scheduled` run each,
// bounded by EnqueueConcurrency (SPEC_FULL.md §4.7).
func (s *Scheduler) runFanout(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	tenants, err := s.db.Tenants.ListAll(ctx)
	if err != nil {
		s.logger.Error("scheduler: list tenants failed", infralogger.String("error", err.Error()))
		return
	}

	s.logger.Info("scheduler: fanout tick", infralogger.Int("tenant_count", len(tenants)))
	s.enqueueForTenants(ctx, tenants, domain.RunTypeScheduled)
}

// runGCFanout enumerates every tenant and enqueues one `gc` run each, on the
// slower GC cadence.
func (s *Scheduler) runGCFanout(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	tenants, err := s.db.Tenants.ListAll(ctx)
	if err != nil {
		s.logger.Error("scheduler: list tenants for gc failed", infralogger.String("error", err.Error()))
		return
	}

	s.logger.Info("scheduler: gc tick", infralogger.Int("tenant_count", len(tenants)))
	s.enqueueForTenants(ctx, tenants, domain.RunTypeGC)
}

// enqueueForTenants creates a run doc and dispatcher message for every
// tenant with bounded concurrency; a single tenant's enqueue failure is
// recorded in its own ledger entry and never blocks the others.
func (s *Scheduler) enqueueForTenants(ctx context.Context, tenants []string, runType domain.RunType) {
	sem := make(chan struct{}, s.cfg.EnqueueConcurrency)
	var wg sync.WaitGroup

	for _, tenantID := range tenants {
		tenantID := tenantID
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			s.enqueueOne(ctx, tenantID, runType)
		}()
	}
	wg.Wait()
}

// enqueueOne creates the run ledger entry in `enqueued` status and submits
// it to the dispatcher; a submit failure transitions the run straight to
// enqueue_failed rather than leaving it stuck enqueued (§3's run state
// machine).
func (s *Scheduler) enqueueOne(ctx context.Context, tenantID string, runType domain.RunType) {
	now := time.Now()
	run := &domain.Run{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Type:      runType,
		Status:    domain.RunEnqueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.Runs.Create(ctx, run); err != nil {
		s.logger.Error("scheduler: create run failed",
			infralogger.String("tenant_id", tenantID),
			infralogger.String("run_type", string(runType)),
			infralogger.String("error", err.Error()),
		)
		return
	}

	task := &queue.Task{TenantID: tenantID, RunID: run.ID, RunType: runType}
	if _, err := s.producer.Enqueue(ctx, task); err != nil {
		s.logger.Error("scheduler: dispatcher enqueue failed",
			infralogger.String("tenant_id", tenantID),
			infralogger.String("run_id", run.ID),
			infralogger.String("error", err.Error()),
		)
		run.Status = domain.RunEnqueueFailed
		run.Error = err.Error()
		run.UpdatedAt = time.Now()
		if mergeErr := s.db.Runs.Merge(ctx, run); mergeErr != nil {
			s.logger.Error("scheduler: persist enqueue_failed status failed",
				infralogger.String("run_id", run.ID),
				infralogger.String("error", mergeErr.Error()),
			)
		}
	}
}

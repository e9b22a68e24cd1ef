// Package gc implements the garbage collector (C9): bounded-loop retention
// sweeps over jobs, companies and run records, run as a distinct run type
// through the same state machine the per-tenant worker uses.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
	infraerrors "github.com/akash-ramasani/job-watch/internal/infra/errors"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/store"
)

const (
	// DefaultJobRetention is how long a job survives after its last source update.
	DefaultJobRetention = 14 * 24 * time.Hour

	// DefaultRunRetention is how long a run ledger entry survives.
	DefaultRunRetention = 14 * 24 * time.Hour

	// DefaultCompanyRetention is how long a company survives without a feed seeing it.
	DefaultCompanyRetention = 30 * 24 * time.Hour

	// DefaultBatchLimit bounds a single delete query (SPEC_FULL.md §4.9).
	DefaultBatchLimit = 400

	// maxLoopsPerCollection is a safety cap on how many batches one
	// collection sweeps in a single run, in case retention is misconfigured
	// against a huge backlog.
	maxLoopsPerCollection = 1000
)

// Config holds the collector's retention windows and batch size.
type Config struct {
	JobRetention     time.Duration
	RunRetention     time.Duration
	CompanyRetention time.Duration
	BatchLimit       int
}

// DefaultConfig returns the spec's documented retention defaults.
func DefaultConfig() Config {
	return Config{
		JobRetention:     DefaultJobRetention,
		RunRetention:     DefaultRunRetention,
		CompanyRetention: DefaultCompanyRetention,
		BatchLimit:       DefaultBatchLimit,
	}
}

// Collector runs one tenant's retention sweep to completion.
type Collector struct {
	cfg    Config
	db     *store.DB
	logger infralogger.Logger
}

// New builds a Collector bound to db.
func New(db *store.DB, cfg Config, logger infralogger.Logger) *Collector {
	return &Collector{cfg: cfg, db: db, logger: logger}
}

// Run executes the GC run to completion, advancing the run ledger through
// the same enqueued -> running -> {done, done_with_errors, failed} states
// the worker uses.
// Redelivery of an already-terminal runID is a no-op (§4.6).
func (c *Collector) Run(ctx context.Context, tenantID, runID string) error {
	run, err := c.db.Runs.Get(ctx, tenantID, runID)
	if err != nil {
		return infraerrors.WrapWithContextf(err, "gc: load run %s", runID)
	}
	if run.Status.IsTerminal() {
		return nil
	}

	now := time.Now()
	run.Status = domain.RunRunning
	run.StartedAt = &now
	run.UpdatedAt = now
	if mergeErr := c.db.Runs.Merge(ctx, run); mergeErr != nil {
		return infraerrors.WrapWithContext(mergeErr, "gc: persist running status")
	}

	jobsDeleted, jobsErr := c.sweepJobs(ctx, tenantID, now)
	companiesDeleted, companiesErr := c.sweepCompanies(ctx, tenantID, now)
	runsDeleted, runsErr := c.sweepRuns(ctx, tenantID, run.ID, now)

	c.logger.Info("gc: sweep complete",
		infralogger.String("tenant_id", tenantID),
		infralogger.Int("jobs_deleted", jobsDeleted),
		infralogger.Int("companies_deleted", companiesDeleted),
		infralogger.Int("runs_deleted", runsDeleted),
	)

	sweepErrs := []error{jobsErr, companiesErr, runsErr}
	var lastErr error
	failCount := 0
	for _, sweepErr := range sweepErrs {
		if sweepErr != nil {
			run.AddErrorSample("", sweepErr.Error())
			lastErr = sweepErr
			failCount++
		}
	}

	finished := time.Now()
	run.FinishedAt = &finished
	run.UpdatedAt = finished
	run.DurationMs = finished.Sub(now).Milliseconds()
	switch {
	case failCount == len(sweepErrs):
		// every sweep failed: nothing was accomplished this run
		run.Status = domain.RunFailed
		run.Error = lastErr.Error()
	case failCount > 0:
		run.Status = domain.RunDoneWithErrors
	default:
		run.Status = domain.RunDone
	}

	if mergeErr := c.db.Runs.Merge(ctx, run); mergeErr != nil {
		return infraerrors.WrapWithContext(mergeErr, "gc: persist terminal status")
	}
	return nil
}

// sweepJobs deletes jobs whose sourceUpdatedTs has aged past JobRetention,
// in bounded batches until a batch comes back short of the limit.
func (c *Collector) sweepJobs(ctx context.Context, tenantID string, now time.Time) (int, error) {
	cutoffMs := now.Add(-c.cfg.JobRetention).UnixMilli()
	total := 0
	for i := 0; i < maxLoopsPerCollection; i++ {
		n, err := c.db.Jobs.DeleteStale(ctx, tenantID, cutoffMs, c.cfg.BatchLimit)
		if err != nil {
			return total, fmt.Errorf("gc: sweep jobs: %w", err)
		}
		total += n
		if n < c.cfg.BatchLimit {
			break
		}
	}
	return total, nil
}

// sweepCompanies deletes companies not seen since CompanyRetention.
func (c *Collector) sweepCompanies(ctx context.Context, tenantID string, now time.Time) (int, error) {
	cutoff := now.Add(-c.cfg.CompanyRetention)
	total := 0
	for i := 0; i < maxLoopsPerCollection; i++ {
		n, err := c.db.Companies.DeleteStale(ctx, tenantID, cutoff, c.cfg.BatchLimit)
		if err != nil {
			return total, fmt.Errorf("gc: sweep companies: %w", err)
		}
		total += n
		if n < c.cfg.BatchLimit {
			break
		}
	}
	return total, nil
}

// sweepRuns deletes run ledger entries older than RunRetention, excluding
// the GC run's own still-in-flight entry.
func (c *Collector) sweepRuns(ctx context.Context, tenantID, selfRunID string, now time.Time) (int, error) {
	_ = selfRunID // the GC run itself is still `running`, never matched by the age cutoff
	cutoffMs := now.Add(-c.cfg.RunRetention).UnixMilli()
	total := 0
	for i := 0; i < maxLoopsPerCollection; i++ {
		n, err := c.db.Runs.DeleteStale(ctx, tenantID, cutoffMs, c.cfg.BatchLimit)
		if err != nil {
			return total, fmt.Errorf("gc: sweep runs: %w", err)
		}
		total += n
		if n < c.cfg.BatchLimit {
			break
		}
	}
	return total, nil
}

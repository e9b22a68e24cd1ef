package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/feed"
	"github.com/akash-ramasani/job-watch/internal/filter"
	infraerrors "github.com/akash-ramasani/job-watch/internal/infra/errors"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/normalize"
	"github.com/akash-ramasani/job-watch/internal/store"
	"github.com/akash-ramasani/job-watch/internal/upsert"
)

// ProcessorConfig holds the per-tenant worker's runtime settings (C5,
// SPEC_FULL.md §4.5).
type ProcessorConfig struct {
	// Window is the ingestion recency window (default 60 minutes).
	Window time.Duration

	// FeedConcurrency bounds concurrent feed fetches per run (FEED_CONCURRENCY).
	FeedConcurrency int

	// WriteConcurrency bounds concurrent store writes per run (JOB_WRITE_CONCURRENCY).
	WriteConcurrency int

	// HeartbeatInterval is how often the run doc's counters are persisted
	// while the run is in progress.
	HeartbeatInterval time.Duration

	// FetchTimeout is the per-feed fetch+process budget.
	FetchTimeout time.Duration

	// FetchRetryBaseDelay is the base delay for the feed fetch retry backoff.
	FetchRetryBaseDelay time.Duration

	// EnableRunLock gates the skipped_lock_active concurrent-run guard (§9).
	EnableRunLock bool

	// RunLockLeaseWindow bounds how far back an in-progress run still
	// counts as "active" for the lock check; should cover the dispatcher's
	// visibility timeout (≥ 540s).
	RunLockLeaseWindow time.Duration

	// ResetSavedOnIngest mirrors the upsert engine's same-named flag (§9).
	ResetSavedOnIngest bool
}

// DefaultProcessorConfig returns the spec's documented defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Window:              60 * time.Minute,
		FeedConcurrency:     DefaultPoolSize,
		WriteConcurrency:    store.DefaultWriteConcurrency,
		HeartbeatInterval:   10 * time.Second,
		FetchTimeout:        DefaultJobTimeout,
		FetchRetryBaseDelay: 500 * time.Millisecond,
		EnableRunLock:       true,
		RunLockLeaseWindow:  9 * time.Minute,
		ResetSavedOnIngest:  false,
	}
}

// Processor runs the per-tenant worker's sequence (C5) for one run: advance
// to running, heartbeat, fan out over active feeds with bounded concurrency,
// close the bulk writer, persist terminal status.
type Processor struct {
	cfg          ProcessorConfig
	db           *store.DB
	fetcher      feed.HTTPFetcher
	filterPolicy *domain.FilterPolicy
	logger       infralogger.Logger

	// activePool holds the feed pool fanOut is currently driving, if any,
	// so heartbeat can report its BusyWorkers/IdleWorkers/State alongside
	// the run's counters. nil between runs and while fanOut is setting up.
	activePool atomic.Pointer[Pool]
}

// NewProcessor builds a Processor bound to db, fetching feeds via fetcher
// and filtering against policy.
func NewProcessor(db *store.DB, fetcher feed.HTTPFetcher, policy *domain.FilterPolicy, cfg ProcessorConfig, logger infralogger.Logger) *Processor {
	return &Processor{cfg: cfg, db: db, fetcher: fetcher, filterPolicy: policy, logger: logger}
}

// Run executes one run to completion, writing every status transition to
// the run ledger along the way. It is idempotent with respect to the
// ledger: redelivery of an already-terminal runID is a no-op (§4.6).
func (p *Processor) Run(ctx context.Context, tenantID, runID string) error {
	run, err := p.db.Runs.Get(ctx, tenantID, runID)
	if err != nil {
		return infraerrors.WrapWithContextf(err, "worker: load run %s", runID)
	}
	if run.Status.IsTerminal() {
		return nil
	}

	if p.cfg.EnableRunLock {
		skipped, lockErr := p.applyLock(ctx, tenantID, run)
		if lockErr != nil {
			return lockErr
		}
		if skipped {
			return nil
		}
	}

	if startErr := p.start(ctx, tenantID, run); startErr != nil {
		return startErr
	}

	var mu sync.Mutex
	hbCtx, hbCancel := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go p.heartbeat(hbCtx, hbDone, run, &mu)

	fatalErr := p.fanOut(ctx, tenantID, run, &mu)

	hbCancel()
	<-hbDone

	p.finish(ctx, run, &mu, fatalErr)
	return fatalErr
}

// applyLock checks for another active run within the lease window and, if
// found, transitions this run to skipped_lock_active instead of starting it.
func (p *Processor) applyLock(ctx context.Context, tenantID string, run *domain.Run) (bool, error) {
	active, lockErr := p.db.Runs.FindActiveRun(ctx, tenantID, run.ID, p.cfg.RunLockLeaseWindow)
	if lockErr != nil {
		if errors.Is(lockErr, store.ErrNotFound) {
			return false, nil
		}
		return false, infraerrors.WrapWithContext(lockErr, "worker: lock check")
	}

	run.Status = domain.RunSkippedLockActive
	run.SkipReason = fmt.Sprintf("run %s is already active for this tenant", active.ID)
	run.UpdatedAt = time.Now()
	if mergeErr := p.db.Runs.Merge(ctx, run); mergeErr != nil {
		return false, fmt.Errorf("worker: persist skipped_lock_active: %w", mergeErr)
	}
	return true, nil
}

// start advances the run to running and persists the starting counters
// (sequence step 1).
func (p *Processor) start(ctx context.Context, tenantID string, run *domain.Run) error {
	feeds, listErr := p.db.Feeds.ListActive(ctx, tenantID)
	if listErr != nil {
		return fmt.Errorf("worker: list active feeds: %w", listErr)
	}

	now := time.Now()
	run.Status = domain.RunRunning
	run.StartedAt = &now
	run.UpdatedAt = now
	run.Counters.FeedsCount = len(feeds)

	if mergeErr := p.db.Runs.Merge(ctx, run); mergeErr != nil {
		return fmt.Errorf("worker: persist running status: %w", mergeErr)
	}
	return nil
}

// heartbeat persists the run's current counters every HeartbeatInterval
// until ctx is cancelled (sequence step 2), and logs the feed pool's
// BusyWorkers/IdleWorkers/State alongside it once fanOut has one running.
// Stopping is guaranteed by the caller cancelling ctx and waiting on done,
// on every exit path including a panic recovered in fanOut.
func (p *Processor) heartbeat(ctx context.Context, done chan<- struct{}, run *domain.Run, mu *sync.Mutex) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			run.UpdatedAt = time.Now()
			snapshot := *run
			mu.Unlock()

			if err := p.db.Runs.Merge(context.WithoutCancel(ctx), &snapshot); err != nil {
				p.logger.Warn("worker: heartbeat persist failed",
					infralogger.String("run_id", run.ID),
					infralogger.String("error", err.Error()),
				)
			}

			if pool := p.activePool.Load(); pool != nil {
				stats := pool.Stats()
				p.logger.Info("worker: pool health",
					infralogger.String("run_id", run.ID),
					infralogger.String("state", stats.State.String()),
					infralogger.Int("busy_workers", stats.BusyWorkers),
					infralogger.Int("idle_workers", stats.IdleWorkers),
				)
			}
		}
	}
}

// fanOut loads active feeds and processes them with bounded concurrency
// (sequence steps 3-5). A non-nil return is a fatal-run error (§7); per-feed
// failures never reach here, they are captured into run's error samples.
func (p *Processor) fanOut(ctx context.Context, tenantID string, run *domain.Run, mu *sync.Mutex) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: panic processing run %s: %v", run.ID, r)
		}
	}()

	feeds, listErr := p.db.Feeds.ListActive(ctx, tenantID)
	if listErr != nil {
		return fmt.Errorf("worker: list active feeds: %w", listErr)
	}

	writer := p.db.Jobs.NewBulkWriterWithConcurrency(p.cfg.WriteConcurrency)
	engine := upsert.New(p.db.Jobs, p.cfg.ResetSavedOnIngest)

	// Per-feed-host circuit breaker: a feed's own retry loop
	// (feed.FetchWithRetry) already absorbs transient failures, so this
	// guards against a host that's down for the whole run rather than a
	// single flaky request.
	poolCfg := DefaultConfig()
	poolCfg.PoolSize = p.cfg.FeedConcurrency
	poolCfg.JobTimeout = p.cfg.FetchTimeout
	poolCfg.EnableCircuitBreaker = true

	pool, poolErr := NewPool(poolCfg, func(feedCtx context.Context, f *domain.Feed) error {
		return p.processFeed(feedCtx, tenantID, f, run, mu, writer, engine)
	}, p.logger)
	if poolErr != nil {
		return fmt.Errorf("worker: build feed pool: %w", poolErr)
	}
	if startErr := pool.Start(); startErr != nil {
		return fmt.Errorf("worker: start feed pool: %w", startErr)
	}
	p.activePool.Store(pool)
	defer p.activePool.Store(nil)

	for _, f := range feeds {
		if f.Excluded() {
			continue
		}
		if submitErr := pool.Submit(ctx, f); submitErr != nil {
			mu.Lock()
			run.AddErrorSample(f.URL, submitErr.Error())
			mu.Unlock()
		}
	}
	pool.Wait()
	_ = pool.Stop(ctx)

	if _, flushErr := writer.Close(ctx); flushErr != nil {
		mu.Lock()
		run.AddErrorSample("", fmt.Sprintf("bulk writer flush: %s", flushErr))
		mu.Unlock()
	}

	return nil
}

// processFeed runs one feed through fetch -> adapt -> filter -> normalize
// -> upsert -> company upsert (sequence step 4a-4d). Every failure is
// recovered locally into run's error samples and the feed's auto-disable
// state; it never aborts the run.
func (p *Processor) processFeed(ctx context.Context, tenantID string, f *domain.Feed, run *domain.Run, mu *sync.Mutex, writer *store.BulkWriter, engine *upsert.Engine) error {
	source := f.Source
	if source == "" {
		source = feed.DetectSource(f.URL)
	}

	resp, fetchErr := feed.FetchWithRetry(ctx, p.fetcher, f.URL, nil, nil, p.cfg.FetchRetryBaseDelay)
	if fetchErr != nil {
		pollErr := feed.ClassifyFetchError(fetchErr, f.URL)
		p.recordFeedError(ctx, f, run, mu, pollErr)
		return pollErr
	}
	if resp.StatusCode == http.StatusNotModified {
		return nil
	}

	raw, extractErr := feed.ExtractPostings(source, []byte(resp.Body))
	if extractErr != nil {
		pollErr := feed.ClassifyParseError(extractErr, f.URL)
		p.recordFeedError(ctx, f, run, mu, pollErr)
		return pollErr
	}

	companyKey := feed.CompanyKey(f.URL, f.ID, source)
	now := time.Now()

	candidates, found, skippedOld, noTimestamp := p.buildCandidates(raw, tenantID, companyKey, source, now)

	mu.Lock()
	run.Counters.Found += len(raw)
	run.Counters.Candidates += found
	run.Counters.SkippedOld += skippedOld
	run.Counters.NoTimestamp += noTimestamp
	mu.Unlock()

	if len(candidates) > 0 {
		if upsertErr := p.upsertCandidates(ctx, tenantID, candidates, writer, engine, run, mu); upsertErr != nil {
			pollErr := &feed.PollError{Type: feed.ErrTypeUpstream, URL: f.URL, Cause: upsertErr}
			p.recordFeedError(ctx, f, run, mu, pollErr)
			return pollErr
		}
	}

	companyName := f.CompanyName
	if companyName == "" {
		companyName = companyKey
	}
	if companyErr := p.db.Companies.Upsert(ctx, &domain.Company{
		TenantID:    tenantID,
		CompanyKey:  companyKey,
		CompanyName: companyName,
		URL:         f.URL,
		Source:      source,
		LastSeenAt:  now,
	}); companyErr != nil {
		pollErr := &feed.PollError{Type: feed.ErrTypeUpstream, URL: f.URL, Cause: companyErr}
		p.recordFeedError(ctx, f, run, mu, pollErr)
		return pollErr
	}

	p.clearFeedError(ctx, f)
	return nil
}

// buildCandidates routes raw postings through the adapter, filter and
// normalizer stages (C1-C3), returning the jobs that survive filtering plus
// the per-reason skip counts.
func (p *Processor) buildCandidates(raw []feed.RawPosting, tenantID, companyKey string, source feed.Source, now time.Time) (jobs []*domain.Job, found, skippedOld, noTimestamp int) {
	for _, r := range raw {
		posting := feed.ToPosting(r)
		uniform := feed.ToUniform(posting)
		result := filter.Apply(uniform, p.filterPolicy, now, p.cfg.Window)

		switch result.Reason {
		case filter.ReasonNoTimestamp:
			noTimestamp++
			continue
		case filter.ReasonTooOld:
			skippedOld++
			continue
		case filter.ReasonWrongLocation:
			continue
		}

		body := normalize.Body(posting.BodyRaw)
		metaRaw := make([]normalize.RawMetadataEntry, len(posting.MetadataRaw))
		for i, m := range posting.MetadataRaw {
			metaRaw[i] = normalize.RawMetadataEntry{Name: m.Name, Value: m.Value, ValueType: m.ValueType}
		}
		metaList, metaMap := normalize.Metadata(metaRaw)

		sourceUpdatedTS := time.UnixMilli(result.EffectiveMs).UTC()

		jobs = append(jobs, &domain.Job{
			TenantID:         tenantID,
			CompanyKey:       companyKey,
			UpstreamJobID:    posting.UpstreamJobID,
			Title:            posting.Title,
			CanonicalURL:     posting.CanonicalURL,
			ApplyURL:         posting.ApplyURL,
			LocationText:     posting.LocationText,
			StateCodes:       result.StateCodes,
			Remote:           posting.Remote,
			Source:           source,
			MetadataList:     metaList,
			Metadata:         metaMap,
			Body:             body,
			SourceUpdatedISO: sourceUpdatedTS.Format(time.RFC3339),
			SourceUpdatedTS:  sourceUpdatedTS,
			SourceUpdatedMs:  result.EffectiveMs,
			CreatedAt:        now,
			FirstSeenAt:      now,
			LastSeenAt:       now,
		})
		found++
	}
	return jobs, found, skippedOld, noTimestamp
}

// upsertCandidates runs the candidates through the upsert engine (C4) and
// folds the per-identity outcomes into the run's counters.
func (p *Processor) upsertCandidates(ctx context.Context, tenantID string, candidates []*domain.Job, writer *store.BulkWriter, engine *upsert.Engine, run *domain.Run, mu *sync.Mutex) error {
	outcomes, err := engine.Upsert(ctx, tenantID, candidates, writer)
	if err != nil {
		return err
	}

	var added, updated, unchanged int
	for _, o := range outcomes {
		switch o {
		case upsert.OutcomeAdded:
			added++
		case upsert.OutcomeUpdated:
			updated++
		case upsert.OutcomeSkippedUnchanged:
			unchanged++
		}
	}

	mu.Lock()
	run.Counters.Added += added
	run.Counters.Updated += updated
	run.Counters.SkippedUnchanged += unchanged
	run.Counters.Writes += added + updated
	mu.Unlock()
	return nil
}

// recordFeedError captures a classified poll error into the run's bounded
// error-sample buffer and applies the feed's auto-disable bookkeeping (§7).
func (p *Processor) recordFeedError(ctx context.Context, f *domain.Feed, run *domain.Run, mu *sync.Mutex, pollErr *feed.PollError) {
	mu.Lock()
	run.AddErrorSample(f.URL, pollErr.Error())
	mu.Unlock()

	if f.ErrorCounts == nil {
		f.ErrorCounts = make(map[string]int)
	}
	key := string(pollErr.Type)
	f.ErrorCounts[key]++
	f.LastError = pollErr.Error()

	if threshold, disableEligible := feed.DisableThreshold(pollErr.Type); disableEligible && f.ErrorCounts[key] >= threshold {
		f.Active = false
		p.logger.Warn("worker: auto-disabling feed",
			infralogger.String("feed_id", f.ID),
			infralogger.String("error_type", key),
			infralogger.Int("consecutive_errors", f.ErrorCounts[key]),
		)
	}

	if upsertErr := p.db.Feeds.Upsert(ctx, f); upsertErr != nil {
		p.logger.Error("worker: persist feed error state failed",
			infralogger.String("feed_id", f.ID),
			infralogger.String("error", upsertErr.Error()),
		)
	}
}

// clearFeedError resets a feed's consecutive-error bookkeeping after a
// successful poll.
func (p *Processor) clearFeedError(ctx context.Context, f *domain.Feed) {
	if f.LastError == "" && len(f.ErrorCounts) == 0 {
		return
	}
	f.LastError = ""
	f.ErrorCounts = nil
	if err := p.db.Feeds.Upsert(ctx, f); err != nil {
		p.logger.Error("worker: clear feed error state failed",
			infralogger.String("feed_id", f.ID),
			infralogger.String("error", err.Error()),
		)
	}
}

// finish persists the run's terminal status (sequence step 6): done,
// done_with_errors, or failed if fatalErr is non-nil (the fatal-run
// guard, §7).
func (p *Processor) finish(ctx context.Context, run *domain.Run, mu *sync.Mutex, fatalErr error) {
	mu.Lock()
	defer mu.Unlock()

	finished := time.Now()
	run.FinishedAt = &finished
	run.UpdatedAt = finished
	if run.StartedAt != nil {
		run.DurationMs = finished.Sub(*run.StartedAt).Milliseconds()
	}

	switch {
	case fatalErr != nil:
		run.Status = domain.RunFailed
		run.Error = fatalErr.Error()
	case run.Counters.ErrorsCount > 0:
		run.Status = domain.RunDoneWithErrors
	default:
		run.Status = domain.RunDone
	}

	if mergeErr := p.db.Runs.Merge(ctx, run); mergeErr != nil {
		p.logger.Error("worker: persist terminal run status failed",
			infralogger.String("run_id", run.ID),
			infralogger.String("error", mergeErr.Error()),
		)
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/infra/circuitbreaker"
	"github.com/akash-ramasani/job-watch/internal/infra/retry"
)

// maxMultiGetChunk caps a single multi-get statement's key-list size
// (SPEC_FULL.md §4.4 step 2).
const maxMultiGetChunk = 450

// DefaultWriteConcurrency bounds how many pending writes a BulkWriter
// commits simultaneously (JOB_WRITE_CONCURRENCY, SPEC_FULL.md §4.4 step 4 / §5).
const DefaultWriteConcurrency = 25

// JobStore is the jobs collection binding.
type JobStore struct {
	db *sqlx.DB
}

type jobRow struct {
	Data            []byte `db:"data"`
	SourceUpdatedMs int64  `db:"source_updated_ms"`
}

// MultiGetSourceUpdatedMs performs the single batched multi-read the upsert
// engine uses to decide add-vs-update-vs-skip without a per-document read.
// Keys are job identities ("companyKey__upstreamJobId"); the result maps
// identity -> stored sourceUpdatedMs for rows that exist.
func (s *JobStore) MultiGetSourceUpdatedMs(ctx context.Context, tenantID string, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))

	for start := 0; start < len(ids); start += maxMultiGetChunk {
		end := start + maxMultiGetChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		rows, err := s.db.QueryxContext(ctx, //nolint:sqlclosecheck // closed via defer below
			`SELECT id, source_updated_ms FROM jobs WHERE tenant_id = $1 AND id = ANY($2)`,
			tenantID, chunk,
		)
		if err != nil {
			return nil, fmt.Errorf("store: jobs multi-get: %w", err)
		}
		for rows.Next() {
			var id string
			var ms int64
			if scanErr := rows.Scan(&id, &ms); scanErr != nil {
				rows.Close()
				return nil, fmt.Errorf("store: jobs multi-get scan: %w", scanErr)
			}
			out[id] = ms
		}
		closeErr := rows.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("store: jobs multi-get rows: %w", closeErr)
		}
	}

	return out, nil
}

// Create inserts a brand-new job row. Returns ErrAlreadyExists on a unique
// violation so the caller can fall back to Merge (the create-race path).
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("store: marshal job: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (tenant_id, id, company_key, upstream_job_id, data, source_updated_ms, created_at, last_seen_at, saved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.TenantID, job.Identity(), job.CompanyKey, job.UpstreamJobID, data, job.SourceUpdatedMs, job.CreatedAt, job.LastSeenAt, job.Saved)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: create job: %w", err)
	}
	return nil
}

// Merge performs the compare-and-merge write: the incoming job replaces the
// stored data/source_updated_ms/last_seen_at, preserving `saved` unless
// resetSaved is set (Config.ResetSavedOnIngest, SPEC_FULL.md §9).
func (s *JobStore) Merge(ctx context.Context, job *domain.Job, resetSaved bool) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("store: marshal job: %w", err)
	}

	query := `
		INSERT INTO jobs (tenant_id, id, company_key, upstream_job_id, data, source_updated_ms, created_at, last_seen_at, saved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			data = EXCLUDED.data,
			source_updated_ms = EXCLUDED.source_updated_ms,
			last_seen_at = EXCLUDED.last_seen_at`
	if resetSaved {
		query += `, saved = EXCLUDED.saved`
	}

	_, err = s.db.ExecContext(ctx, query,
		job.TenantID, job.Identity(), job.CompanyKey, job.UpstreamJobID,
		data, job.SourceUpdatedMs, job.CreatedAt, job.LastSeenAt, job.Saved)
	if err != nil {
		return fmt.Errorf("store: merge job: %w", err)
	}
	return nil
}

// Get fetches one job by identity, decoding its jsonb payload via
// mapstructure the way the teacher's Elasticsearch binding decodes _source.
func (s *JobStore) Get(ctx context.Context, tenantID, id string) (*domain.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT data, source_updated_ms FROM jobs WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get job: %w", err)
	}

	var job domain.Job
	if decodeErr := decodeJSONB(row.Data, &job); decodeErr != nil {
		return nil, decodeErr
	}
	return &job, nil
}

// DeleteStale deletes up to limit jobs with sourceUpdatedTs older than
// cutoffMs for the garbage collector (C9, SPEC_FULL.md §4.9). Returns the
// number of rows deleted.
func (s *JobStore) DeleteStale(ctx context.Context, tenantID string, cutoffMs int64, limit int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE (tenant_id, id) IN (
			SELECT tenant_id, id FROM jobs
			WHERE tenant_id = $1 AND source_updated_ms < $2
			LIMIT $3
		)`, tenantID, cutoffMs, limit)
	if err != nil {
		return 0, fmt.Errorf("store: delete stale jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete stale jobs rows affected: %w", err)
	}
	return int(n), nil
}

// pendingWrite is one queued job write awaiting the bulk writer's commit.
type pendingWrite struct {
	job        *domain.Job
	isCreate   bool
	resetSaved bool
}

// BulkWriter batches job writes and commits them under bounded concurrency
// (the second, write-side pool of SPEC_FULL.md §5), retrying only the
// transient SQLSTATE classes §7 names, up to 5 attempts with exponential
// backoff (SPEC_FULL.md §4.4 step 4). A shared circuit breaker guards the
// pool: once Postgres fails persistently across the batch, the breaker
// trips and the remaining writes fail fast instead of each burning through
// 5 retries against a connection pool that is already down (SPEC_FULL.md
// §7's transient-storage handling).
type BulkWriter struct {
	store       *JobStore
	concurrency int
	pending     []pendingWrite
	breaker     *circuitbreaker.Breaker
}

// NewBulkWriter creates a BulkWriter bound to this JobStore, flushing with
// DefaultWriteConcurrency.
func (s *JobStore) NewBulkWriter() *BulkWriter {
	return s.NewBulkWriterWithConcurrency(DefaultWriteConcurrency)
}

// NewBulkWriterWithConcurrency creates a BulkWriter with an explicit write
// concurrency bound (JOB_WRITE_CONCURRENCY).
func (s *JobStore) NewBulkWriterWithConcurrency(concurrency int) *BulkWriter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BulkWriter{
		store:       s,
		concurrency: concurrency,
		breaker:     circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// QueueCreate enqueues a create-or-fallback-to-merge write.
func (w *BulkWriter) QueueCreate(job *domain.Job) {
	w.pending = append(w.pending, pendingWrite{job: job, isCreate: true})
}

// QueueMerge enqueues a merge write.
func (w *BulkWriter) QueueMerge(job *domain.Job, resetSaved bool) {
	w.pending = append(w.pending, pendingWrite{job: job, resetSaved: resetSaved})
}

// Flush commits every pending write under a bounded-concurrency semaphore
// (at most w.concurrency writes in flight at once, per SPEC_FULL.md §5),
// returning the number successfully committed and the first unrecoverable
// error encountered (if any); flushing continues past individual write
// failures so one bad job doesn't block the rest of the batch.
func (w *BulkWriter) Flush(ctx context.Context) (int, error) {
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	var firstErr error

	for _, p := range w.pending {
		p := p
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			err := w.breaker.Execute(ctx, func() error {
				return retry.Retry(ctx, retryConfig(5), func() error {
					if p.isCreate {
						createErr := w.store.Create(ctx, p.job)
						if errors.Is(createErr, ErrAlreadyExists) {
							return w.store.Merge(ctx, p.job, p.resetSaved)
						}
						return createErr
					}
					return w.store.Merge(ctx, p.job, p.resetSaved)
				})
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			committed++
		}()
	}
	wg.Wait()

	w.pending = nil
	return committed, firstErr
}

// Close flushes any remaining pending writes. It must be called before a
// run's terminal status is persisted so counters reflect actual commits.
func (w *BulkWriter) Close(ctx context.Context) (int, error) {
	return w.Flush(ctx)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

// RunStore is the append-only run-ledger collection binding (C8).
type RunStore struct {
	db *sqlx.DB
}

type runRow struct {
	Data []byte `db:"data"`
}

// Create appends a new run in its initial `enqueued` status.
func (s *RunStore) Create(ctx context.Context, run *domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("store: marshal run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fetch_runs (tenant_id, id, data, run_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.TenantID, run.ID, data, run.Type, run.Status, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create run: %w", err)
	}
	return nil
}

// Get fetches one run by id.
func (s *RunStore) Get(ctx context.Context, tenantID, id string) (*domain.Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT data FROM fetch_runs WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return decodeRun(row.Data)
}

// Merge writes the run's current state (counters, status, timestamps). It is
// a no-op guarded against regressing a terminal status: once a run doc's
// stored status IsTerminal, a later merge may not overwrite it with a
// non-terminal status (heartbeats racing the final-status write, §5).
func (s *RunStore) Merge(ctx context.Context, run *domain.Run) error {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT data FROM fetch_runs WHERE tenant_id = $1 AND id = $2`, run.TenantID, run.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.Create(ctx, run)
		}
		return fmt.Errorf("store: merge run read: %w", err)
	}

	stored, decodeErr := decodeRun(row.Data)
	if decodeErr != nil {
		return decodeErr
	}
	if stored.Status.IsTerminal() && !run.Status.IsTerminal() {
		return nil
	}

	data, marshalErr := json.Marshal(run)
	if marshalErr != nil {
		return fmt.Errorf("store: marshal run: %w", marshalErr)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE fetch_runs SET data = $1, status = $2 WHERE tenant_id = $3 AND id = $4
	`, data, run.Status, run.TenantID, run.ID)
	if err != nil {
		return fmt.Errorf("store: merge run: %w", err)
	}
	return nil
}

// FindActiveRun returns another non-terminal run for the tenant started
// within the lease window, or ErrNotFound if none exists. Used by the
// optional concurrent-run guard (Config.EnableRunLock, SPEC_FULL.md §7/§9).
func (s *RunStore) FindActiveRun(ctx context.Context, tenantID, excludeRunID string, leaseWindow time.Duration) (*domain.Run, error) {
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT data FROM fetch_runs
		WHERE tenant_id = $1 AND id != $2 AND status = $3
		  AND created_at > $4
		ORDER BY created_at DESC LIMIT 1
	`, tenantID, excludeRunID, domain.RunRunning, time.Now().Add(-leaseWindow))
	if err != nil {
		return nil, fmt.Errorf("store: find active run: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return decodeRun(rows[0].Data)
}

// ListRecent returns the most recent N runs for a tenant ordered by
// createdAt descending, for the admin CLI/HTTP surface (§6/§10.3).
func (s *RunStore) ListRecent(ctx context.Context, tenantID string, limit int) ([]*domain.Run, error) {
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT data FROM fetch_runs WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recent runs: %w", err)
	}
	runs := make([]*domain.Run, 0, len(rows))
	for _, row := range rows {
		run, decodeErr := decodeRun(row.Data)
		if decodeErr != nil {
			return nil, decodeErr
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// DeleteStale deletes up to limit runs created before cutoff (C9, run
// retention default 14 days).
func (s *RunStore) DeleteStale(ctx context.Context, tenantID string, cutoffUnixMs int64, limit int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM fetch_runs WHERE (tenant_id, id) IN (
			SELECT tenant_id, id FROM fetch_runs
			WHERE tenant_id = $1 AND created_at < to_timestamp($2 / 1000.0)
			LIMIT $3
		)`, tenantID, cutoffUnixMs, limit)
	if err != nil {
		return 0, fmt.Errorf("store: delete stale runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete stale runs rows affected: %w", err)
	}
	return int(n), nil
}

func decodeRun(raw []byte) (*domain.Run, error) {
	var run domain.Run
	if err := decodeJSONB(raw, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

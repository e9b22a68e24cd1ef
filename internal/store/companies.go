package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

// CompanyStore is the companies collection binding.
type CompanyStore struct {
	db *sqlx.DB
}

// Upsert creates or merges a company doc, refreshing LastSeenAt. CompanyKey
// is a pure function of the owning feed (SPEC_FULL.md §3), so this is
// always idempotent per tenant.
func (s *CompanyStore) Upsert(ctx context.Context, c *domain.Company) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("store: marshal company: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO companies (tenant_id, company_key, data, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, company_key) DO UPDATE SET
			data = EXCLUDED.data,
			last_seen_at = EXCLUDED.last_seen_at
	`, c.TenantID, c.CompanyKey, data, c.LastSeenAt)
	if err != nil {
		return fmt.Errorf("store: upsert company: %w", err)
	}
	return nil
}

// DeleteStale deletes up to limit companies not seen since cutoff
// (C9, company retention default 30 days).
func (s *CompanyStore) DeleteStale(ctx context.Context, tenantID string, cutoff time.Time, limit int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM companies WHERE (tenant_id, company_key) IN (
			SELECT tenant_id, company_key FROM companies
			WHERE tenant_id = $1 AND last_seen_at < $2
			LIMIT $3
		)`, tenantID, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("store: delete stale companies: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete stale companies rows affected: %w", err)
	}
	return int(n), nil
}

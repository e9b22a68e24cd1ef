package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

// FeedStore is the feeds collection binding.
type FeedStore struct {
	db *sqlx.DB
}

type feedRow struct {
	Data []byte `db:"data"`
}

// ListActive returns every non-archived, active feed for a tenant — the
// set the per-tenant worker (C5) processes a run over.
func (s *FeedStore) ListActive(ctx context.Context, tenantID string) ([]*domain.Feed, error) {
	var rows []feedRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT data FROM feeds WHERE tenant_id = $1 AND active = true AND archived_at IS NULL`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("store: list active feeds: %w", err)
	}

	feeds := make([]*domain.Feed, 0, len(rows))
	for _, row := range rows {
		var f domain.Feed
		if decodeErr := decodeJSONB(row.Data, &f); decodeErr != nil {
			return nil, decodeErr
		}
		feeds = append(feeds, &f)
	}
	return feeds, nil
}

// Get fetches one feed by id.
func (s *FeedStore) Get(ctx context.Context, tenantID, id string) (*domain.Feed, error) {
	var row feedRow
	err := s.db.GetContext(ctx, &row, `SELECT data FROM feeds WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get feed: %w", err)
	}
	var f domain.Feed
	if decodeErr := decodeJSONB(row.Data, &f); decodeErr != nil {
		return nil, decodeErr
	}
	return &f, nil
}

// Upsert creates or replaces a feed row, including its auto-disable error
// classification state (C1/§7).
func (s *FeedStore) Upsert(ctx context.Context, f *domain.Feed) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("store: marshal feed: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feeds (tenant_id, id, data, active, archived_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			data = EXCLUDED.data,
			active = EXCLUDED.active,
			archived_at = EXCLUDED.archived_at
	`, f.TenantID, f.ID, data, f.Active, f.ArchivedAt)
	if err != nil {
		return fmt.Errorf("store: upsert feed: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TenantStore answers "which tenants exist" for the scheduler's fanout
// (C7, SPEC_FULL.md §4.7). Tenants have no dedicated collection — this
// service only ever sees the opaque ID an upstream identity provider owns
// — so tenant existence is derived from whichever tenant has at least one
// feed registered.
type TenantStore struct {
	db *sqlx.DB
}

// ListAll returns every distinct tenant ID with at least one feed.
func (s *TenantStore) ListAll(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT DISTINCT tenant_id FROM feeds ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list tenants: %w", err)
	}
	return ids, nil
}

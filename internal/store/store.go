// Package store is the Postgres+JSONB binding for the document-store
// abstraction described in SPEC_FULL.md §6: one table per collection, keyed
// (tenant_id, id), with a data jsonb column and indexed plain columns,
// written alongside the jsonb payload, for the fields the compound queries
// filter or order on.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/akash-ramasani/job-watch/internal/infra/retry"
)

// DB wraps a sqlx connection pool with the collection-specific repositories.
type DB struct {
	Feeds     *FeedStore
	Companies *CompanyStore
	Jobs      *JobStore
	Runs      *RunStore
	Tenants   *TenantStore

	conn *sqlx.DB
}

// Open connects to Postgres via lib/pq and wires up each collection's
// repository against the shared pool.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(30 * time.Minute)

	return &DB{
		conn:      conn,
		Feeds:     &FeedStore{db: conn},
		Companies: &CompanyStore{db: conn},
		Jobs:      &JobStore{db: conn},
		Runs:      &RunStore{db: conn},
		Tenants:   &TenantStore{db: conn},
	}, nil
}

// OpenWithConn wires up each collection's repository against an
// already-established connection, bypassing Open's DSN dial. Used by
// worker/gc/scheduler tests to inject a sqlmock-backed *sqlx.DB.
func OpenWithConn(conn *sqlx.DB) *DB {
	return &DB{
		conn:      conn,
		Feeds:     &FeedStore{db: conn},
		Companies: &CompanyStore{db: conn},
		Jobs:      &JobStore{db: conn},
		Runs:      &RunStore{db: conn},
		Tenants:   &TenantStore{db: conn},
	}
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the connection pool can still reach Postgres, for the
// readiness probe (SPEC_FULL.md §6).
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Migrate creates every collection table if it does not already exist. It is
// intended for local/dev bootstrap; production deployments apply the same
// schema through an external migration tool.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// retryConfig is the shared transient-SQLSTATE retry policy for writes
// (SPEC_FULL.md §4.4 step 4 / §7): deadline-exceeded, resource-exhausted,
// aborted, internal, unavailable map onto Postgres connection/serialization
// failure classes.
func retryConfig(maxAttempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  isTransientSQLError,
	}
}

package store

// schemaStatements creates the four collections SPEC_FULL.md §6 names.
// Each carries a jsonb data column plus the plain indexed columns the
// compound queries (multi-get, retention sweeps, run-history listing)
// actually filter or order on.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS feeds (
		tenant_id   text NOT NULL,
		id          text NOT NULL,
		data        jsonb NOT NULL,
		active      boolean NOT NULL DEFAULT true,
		archived_at timestamptz,
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feeds_active ON feeds (tenant_id, active) WHERE archived_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS companies (
		tenant_id    text NOT NULL,
		company_key  text NOT NULL,
		data         jsonb NOT NULL,
		last_seen_at timestamptz NOT NULL,
		PRIMARY KEY (tenant_id, company_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_companies_last_seen ON companies (tenant_id, last_seen_at)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		tenant_id        text NOT NULL,
		id               text NOT NULL,
		company_key      text NOT NULL,
		upstream_job_id  text NOT NULL,
		data             jsonb NOT NULL,
		source_updated_ms bigint NOT NULL,
		created_at       timestamptz NOT NULL,
		last_seen_at     timestamptz NOT NULL,
		saved            boolean NOT NULL DEFAULT false,
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_source_updated ON jobs (tenant_id, source_updated_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_last_seen ON jobs (tenant_id, last_seen_at)`,

	`CREATE TABLE IF NOT EXISTS fetch_runs (
		tenant_id  text NOT NULL,
		id         text NOT NULL,
		data       jsonb NOT NULL,
		run_type   text NOT NULL,
		status     text NOT NULL,
		created_at timestamptz NOT NULL,
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON fetch_runs (tenant_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_active_lock ON fetch_runs (tenant_id, status, created_at DESC)`,
}

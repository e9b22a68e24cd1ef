package gc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/gc"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/store"
)

var errSweepFailed = errors.New("sweep failed")

func newTestDB(t *testing.T) (*store.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return store.OpenWithConn(sqlx.NewDb(conn, "postgres")), mock
}

func runRow(t *testing.T, run *domain.Run) *sqlmock.Rows {
	t.Helper()
	data, err := json.Marshal(run)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"data"}).AddRow(data)
}

func TestCollector_Run_TerminalRunIsNoOp(t *testing.T) {
	db, mock := newTestDB(t)
	run := &domain.Run{ID: "gc-1", TenantID: "tenant-1", Status: domain.RunDone}
	mock.ExpectQuery("SELECT data FROM fetch_runs").WillReturnRows(runRow(t, run))

	c := gc.New(db, gc.DefaultConfig(), infralogger.NewNop())

	err := c.Run(context.Background(), "tenant-1", "gc-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollector_Run_SweepsEachCollectionAndFinishesDone(t *testing.T) {
	db, mock := newTestDB(t)
	run := &domain.Run{ID: "gc-2", TenantID: "tenant-1", Status: domain.RunEnqueued}

	mock.ExpectQuery("SELECT data FROM fetch_runs").WillReturnRows(runRow(t, run))
	mock.ExpectQuery("SELECT data FROM fetch_runs").WillReturnRows(runRow(t, run))
	mock.ExpectExec("UPDATE fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("DELETE FROM jobs").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM companies").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("SELECT data FROM fetch_runs").WillReturnRows(runRow(t, run))
	mock.ExpectExec("UPDATE fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := gc.DefaultConfig()
	cfg.BatchLimit = 10
	c := gc.New(db, cfg, infralogger.NewNop())

	err := c.Run(context.Background(), "tenant-1", "gc-2")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollector_Run_AllSweepsFailMarksRunFailed(t *testing.T) {
	db, mock := newTestDB(t)
	run := &domain.Run{ID: "gc-3", TenantID: "tenant-1", Status: domain.RunEnqueued}

	mock.ExpectQuery("SELECT data FROM fetch_runs").WillReturnRows(runRow(t, run))
	mock.ExpectQuery("SELECT data FROM fetch_runs").WillReturnRows(runRow(t, run))
	mock.ExpectExec("UPDATE fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("DELETE FROM jobs").WillReturnError(errSweepFailed)
	mock.ExpectExec("DELETE FROM companies").WillReturnError(errSweepFailed)
	mock.ExpectExec("DELETE FROM fetch_runs").WillReturnError(errSweepFailed)

	mock.ExpectQuery("SELECT data FROM fetch_runs").WillReturnRows(runRow(t, run))
	mock.ExpectExec("UPDATE fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	c := gc.New(db, gc.DefaultConfig(), infralogger.NewNop())

	err := c.Run(context.Background(), "tenant-1", "gc-3")

	assert.NoError(t, err) // Run's own error is persisted into the ledger, not returned
	assert.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/infra/circuitbreaker"
)

func newMockJobStore(t *testing.T) (*JobStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &JobStore{db: sqlx.NewDb(db, "postgres")}, mock
}

func sampleJob() *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		TenantID:        "tenant-1",
		CompanyKey:      "acme",
		UpstreamJobID:   "job-42",
		Title:           "Staff Engineer",
		SourceUpdatedMs: now.UnixMilli(),
		CreatedAt:       now,
		LastSeenAt:      now,
	}
}

func TestJobStore_Create_Success(t *testing.T) {
	js, mock := newMockJobStore(t)
	job := sampleJob()

	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(1, 1))

	err := js.Create(context.Background(), job)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Create_UniqueViolationReturnsAlreadyExists(t *testing.T) {
	js, mock := newMockJobStore(t)
	job := sampleJob()

	mock.ExpectExec("INSERT INTO jobs").
		WillReturnError(&pq.Error{Code: "23505"})

	err := js.Create(context.Background(), job)

	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Get_NotFound(t *testing.T) {
	js, mock := newMockJobStore(t)

	mock.ExpectQuery("SELECT data, source_updated_ms FROM jobs").
		WillReturnError(sql.ErrNoRows)

	_, err := js.Get(context.Background(), "tenant-1", "acme__job-42")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Merge_ResetSavedAddsColumn(t *testing.T) {
	js, mock := newMockJobStore(t)
	job := sampleJob()
	job.Saved = true

	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(0, 1))

	err := js.Merge(context.Background(), job, true)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkWriter_Flush_CreateFallsBackToMergeOnConflict(t *testing.T) {
	js, mock := newMockJobStore(t)
	job := sampleJob()

	mock.ExpectExec("INSERT INTO jobs").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(0, 1))

	writer := js.NewBulkWriter()
	writer.QueueCreate(job)

	committed, err := writer.Flush(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, committed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkWriter_Flush_CountsFailuresSeparately(t *testing.T) {
	js, mock := newMockJobStore(t)
	good := sampleJob()
	bad := sampleJob()
	bad.UpstreamJobID = "job-43"

	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO jobs").WillReturnError(sql.ErrConnDone)

	writer := js.NewBulkWriterWithConcurrency(1)
	writer.QueueCreate(good)
	writer.QueueCreate(bad)

	committed, err := writer.Flush(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, committed)
}

func TestBulkWriter_Flush_CircuitBreakerTripsAfterRepeatedFailures(t *testing.T) {
	js, mock := newMockJobStore(t)
	writer := js.NewBulkWriterWithConcurrency(1)

	mock.MatchExpectationsInOrder(false)
	for i := 0; i < circuitbreaker.DefaultConfig().FailureThreshold; i++ {
		mock.ExpectExec("INSERT INTO jobs").WillReturnError(sql.ErrConnDone)
	}

	for i := 0; i < circuitbreaker.DefaultConfig().FailureThreshold; i++ {
		job := sampleJob()
		job.UpstreamJobID = job.UpstreamJobID + string(rune('a'+i))
		writer.QueueCreate(job)
		_, err := writer.Flush(context.Background())
		assert.Error(t, err)
	}

	assert.Equal(t, circuitbreaker.StateOpen, writer.breaker.State())

	// The circuit is now open: a further write fails fast without hitting
	// the database at all.
	writer.QueueCreate(sampleJob())
	_, err := writer.Flush(context.Background())
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akash-ramasani/job-watch/internal/domain"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/queue"
	"github.com/akash-ramasani/job-watch/internal/store"
)

func newTestScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	db := store.OpenWithConn(sqlx.NewDb(conn, "postgres"))

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	streams := queue.NewStreamsClientFromRedis(rc, "jobwatch-test")
	producer := queue.NewProducer(streams, queue.ProducerConfig{})

	return New(db, producer, DefaultConfig(), infralogger.NewNop()), mock
}

func TestScheduler_RunFanout_EnqueuesOneRunPerTenant(t *testing.T) {
	s, mock := newTestScheduler(t)

	mock.ExpectQuery("SELECT DISTINCT tenant_id FROM feeds").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("tenant-1").AddRow("tenant-2"))
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec("INSERT INTO fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	s.runFanout(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_RunGCFanout_EnqueuesGCRunType(t *testing.T) {
	s, mock := newTestScheduler(t)

	mock.ExpectQuery("SELECT DISTINCT tenant_id FROM feeds").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("tenant-1"))
	mock.ExpectExec("INSERT INTO fetch_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	s.runGCFanout(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_EnqueueOne_CreateFailureNeverSubmitsToQueue(t *testing.T) {
	s, mock := newTestScheduler(t)

	mock.ExpectExec("INSERT INTO fetch_runs").WillReturnError(errors.New("connection failed"))

	// enqueueOne has no return value to assert on; ExpectationsWereMet
	// confirms it stopped after the failed Create and never reached
	// producer.Enqueue or the enqueue_failed Merge.
	s.enqueueOne(context.Background(), "tenant-1", domain.RunTypeScheduled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	ischeduler "github.com/akash-ramasani/job-watch/internal/scheduler"
)

func TestRun_StopsCleanlyOnContextCancellation(t *testing.T) {
	s := ischeduler.New(nil, nil, ischeduler.DefaultConfig(), infralogger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, s, infralogger.NewNop())

	assert.NoError(t, err)
}

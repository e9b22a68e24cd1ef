// Package scheduler implements the scheduler daemon (C7): a thin wrapper
// that starts internal/scheduler.Scheduler and blocks until a shutdown
// signal, adapted from the teacher's cron-daemon command shape.
package scheduler

import (
	"context"

	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	ischeduler "github.com/akash-ramasani/job-watch/internal/scheduler"
)

// Run starts the scheduler and blocks until ctx is cancelled, then stops it
// cleanly so any in-flight tenant fanout finishes enqueueing.
func Run(ctx context.Context, s *ischeduler.Scheduler, logger infralogger.Logger) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("scheduler: shutdown signal received")
	s.Stop()
	return nil
}

// Package worker implements the worker-fleet daemon: it drains the
// dispatcher's streams and dispatches each task to the per-tenant worker
// (C5) or the garbage collector (C9) depending on its run type.
package worker

import (
	"context"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/gc"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/queue"
	ingestworker "github.com/akash-ramasani/job-watch/internal/worker"
)

// readErrorBackoff bounds how fast the daemon retries after a failed read
// from the dispatcher, so a persistent Redis outage doesn't spin.
const readErrorBackoff = 2 * time.Second

// Deps holds the worker fleet daemon's wired dependencies.
type Deps struct {
	Consumer  *queue.Consumer
	Processor *ingestworker.Processor
	Collector *gc.Collector
	Logger    infralogger.Logger
}

// Run drains the dispatcher's streams until ctx is cancelled. Every task —
// whether freshly delivered or reclaimed past its visibility timeout — is
// acknowledged after processing regardless of outcome: the run ledger, not
// stream redelivery, is the source of truth for what still needs retrying
// (SPEC_FULL.md §4.6's idempotent-worker requirement).
func Run(ctx context.Context, deps Deps) error {
	if err := deps.Consumer.Initialize(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tasks, err := deps.Consumer.Read(ctx)
		if err != nil {
			deps.Logger.Error("worker: read failed", infralogger.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		for _, task := range tasks {
			deps.dispatch(ctx, task)
		}
	}
}

// dispatch routes one consumed task to the worker or the collector and
// acknowledges it once that call returns, whatever its outcome.
func (d Deps) dispatch(ctx context.Context, task *queue.ConsumedTask) {
	var runErr error
	switch task.RunType {
	case domain.RunTypeGC:
		runErr = d.Collector.Run(ctx, task.Task.TenantID, task.Task.RunID)
	default:
		runErr = d.Processor.Run(ctx, task.Task.TenantID, task.Task.RunID)
	}

	if runErr != nil {
		d.Logger.Error("worker: run failed",
			infralogger.String("tenant_id", task.Task.TenantID),
			infralogger.String("run_id", task.Task.RunID),
			infralogger.String("run_type", string(task.RunType)),
			infralogger.Error(runErr),
		)
	}

	if ackErr := d.Consumer.Acknowledge(ctx, task); ackErr != nil {
		d.Logger.Error("worker: acknowledge failed",
			infralogger.String("run_id", task.Task.RunID),
			infralogger.Error(ackErr),
		)
	}
}

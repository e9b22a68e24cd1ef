package httpd

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/akash-ramasani/job-watch/internal/domain"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/queue"
)

// pollNowRequest carries the tenant to enqueue a manual run for, accepted
// either as a query parameter or a JSON body.
type pollNowRequest struct {
	TenantID string `json:"tenantId" form:"tenantId"`
}

// pollNowResponse is returned immediately after the run is accepted by the
// dispatcher; the caller polls the run ledger for completion.
type pollNowResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// pollNowHandler enqueues a manual run for a tenant and returns right away
// (SPEC_FULL.md §6's pollNow RPC).
func pollNowHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := resolveTenantID(c)
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
			return
		}

		ctx := c.Request.Context()
		now := time.Now()
		run := &domain.Run{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Type:      domain.RunTypeManual,
			Status:    domain.RunEnqueued,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := deps.DB.Runs.Create(ctx, run); err != nil {
			deps.Logger.Error("pollNow: create run failed",
				infralogger.String("tenant_id", tenantID), infralogger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create run"})
			return
		}

		task := &queue.Task{TenantID: tenantID, RunID: run.ID, RunType: domain.RunTypeManual}
		if _, err := deps.Producer.Enqueue(ctx, task); err != nil {
			deps.Logger.Error("pollNow: enqueue failed",
				infralogger.String("run_id", run.ID), infralogger.Error(err))

			run.Status = domain.RunEnqueueFailed
			run.Error = err.Error()
			run.UpdatedAt = time.Now()
			if mergeErr := deps.DB.Runs.Merge(ctx, run); mergeErr != nil {
				deps.Logger.Error("pollNow: persist enqueue_failed status failed",
					infralogger.String("run_id", run.ID), infralogger.Error(mergeErr))
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue run"})
			return
		}

		c.JSON(http.StatusOK, pollNowResponse{RunID: run.ID, Status: string(run.Status)})
	}
}

// runSyncNowHandler forces an inline run for a tenant, bypassing the
// dispatcher, and responds with the completed run document (SPEC_FULL.md
// §6's runSyncNow internal RPC).
func runSyncNowHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Query("tenantId")
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
			return
		}

		ctx := c.Request.Context()
		now := time.Now()
		run := &domain.Run{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Type:      domain.RunTypeManual,
			Status:    domain.RunEnqueued,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := deps.DB.Runs.Create(ctx, run); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create run"})
			return
		}

		if err := deps.Processor.Run(ctx, tenantID, run.ID); err != nil {
			deps.Logger.Error("runSyncNow: run failed",
				infralogger.String("run_id", run.ID), infralogger.Error(err))
		}

		final, err := deps.DB.Runs.Get(ctx, tenantID, run.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "run completed but summary unavailable"})
			return
		}
		c.JSON(http.StatusOK, final)
	}
}

// resolveTenantID reads tenantId from the query string first, then falls
// back to a JSON body so pollNow works as both a simple RPC and a form post.
func resolveTenantID(c *gin.Context) string {
	if tenantID := c.Query("tenantId"); tenantID != "" {
		return tenantID
	}

	var req pollNowRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.TenantID
	}
	return ""
}

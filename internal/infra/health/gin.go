package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 5 * time.Second

// GinReadinessHandler reports /readyz: 200 with per-dependency results when
// every registered check passes, 503 otherwise.
func GinReadinessHandler(checker *Checker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), checkTimeout)
		defer cancel()

		status, results := checker.Check(checkCtx)

		statusCode := http.StatusOK
		if status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		ctx.JSON(statusCode, gin.H{
			"status":    status,
			"checks":    results,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// GinLivenessHandler reports /healthz: the process is up and serving
// requests, independent of any downstream dependency.
func GinLivenessHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

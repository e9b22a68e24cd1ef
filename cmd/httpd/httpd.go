// Package httpd implements the admin HTTP server (SPEC_FULL.md §6):
// pollNow, runSyncNow, and the liveness/readiness probes.
package httpd

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akash-ramasani/job-watch/internal/gc"
	"github.com/akash-ramasani/job-watch/internal/infra/health"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	"github.com/akash-ramasani/job-watch/internal/infra/server"
	"github.com/akash-ramasani/job-watch/internal/queue"
	"github.com/akash-ramasani/job-watch/internal/store"
	"github.com/akash-ramasani/job-watch/internal/worker"
)

// Deps holds the admin server's wired dependencies.
type Deps struct {
	DB        *store.DB
	Queue     *queue.StreamsClient
	Producer  *queue.Producer
	Processor *worker.Processor
	Collector *gc.Collector
	Logger    infralogger.Logger
	Address   string
}

// readinessTimeout bounds how long the readiness probe's dependency checks
// may take before the endpoint reports unhealthy.
const readinessTimeout = 5 * time.Second

// Run builds the gin router, starts the HTTP server via the shared graceful
// shutdown helper, and blocks until the server stops.
func Run(ctx context.Context, deps Deps) error {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogMiddleware(deps.Logger))

	checker := health.NewChecker()
	checker.RegisterFunc("database", func(checkCtx context.Context) error {
		return deps.DB.Ping(checkCtx)
	})
	checker.RegisterFunc("queue", func(checkCtx context.Context) error {
		return deps.Queue.Ping(checkCtx)
	})

	router.GET("/healthz", health.GinLivenessHandler())
	router.GET("/readyz", health.GinReadinessHandler(checker))

	admin := router.Group("/admin")
	admin.POST("/pollNow", pollNowHandler(deps))
	admin.POST("/runSyncNow", runSyncNowHandler(deps))

	srv := server.New(server.Config{Address: deps.Address}, router)
	return server.RunWithGracefulShutdown(ctx, srv, deps.Logger)
}

// requestLogMiddleware logs each request's method, path, status and
// latency, adapted from the teacher's gin logger middleware idiom.
func requestLogMiddleware(log infralogger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http request",
			infralogger.String("method", c.Request.Method),
			infralogger.String("path", c.Request.URL.Path),
			infralogger.Int("status", c.Writer.Status()),
			infralogger.Duration("latency", time.Since(start)),
		)
	}
}

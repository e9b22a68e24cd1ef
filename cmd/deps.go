package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/akash-ramasani/job-watch/internal/config"
	"github.com/akash-ramasani/job-watch/internal/feed"
	"github.com/akash-ramasani/job-watch/internal/filter"
	"github.com/akash-ramasani/job-watch/internal/gc"
	infraconfig "github.com/akash-ramasani/job-watch/internal/infra/config"
	infralogger "github.com/akash-ramasani/job-watch/internal/infra/logger"
	infraredis "github.com/akash-ramasani/job-watch/internal/infra/redis"
	"github.com/akash-ramasani/job-watch/internal/queue"
	"github.com/akash-ramasani/job-watch/internal/scheduler"
	"github.com/akash-ramasani/job-watch/internal/store"
	"github.com/akash-ramasani/job-watch/internal/worker"
)

// fetchHTTPTimeout bounds a single conditional GET against an upstream feed.
const fetchHTTPTimeout = 60 * time.Second

// newLogger builds the process logger from the bound viper keys.
func newLogger() (infralogger.Logger, error) {
	return infralogger.New(infralogger.Config{
		Level:       viper.GetString("logger.level"),
		Format:      viper.GetString("logger.format"),
		Development: viper.GetBool("app.debug"),
	})
}

// databaseConfig reads the bound database.* viper keys into a DatabaseConfig.
func databaseConfig() infraconfig.DatabaseConfig {
	cfg := infraconfig.DatabaseConfig{
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		Database: viper.GetString("database.database"),
		SSLMode:  viper.GetString("database.sslmode"),
	}
	cfg.SetDefaults()
	return cfg
}

// openStore connects to Postgres using the bound database.* viper keys.
func openStore(ctx context.Context) (*store.DB, error) {
	dbCfg := databaseConfig()
	return store.Open(ctx, dbCfg.DSN())
}

// openQueue connects to Redis using the bound redis.* viper keys and wraps
// it as the dispatcher's streams client.
func openQueue() (*queue.StreamsClient, error) {
	client, err := infraredis.NewClient(infraredis.Config{
		Address:  viper.GetString("redis.address"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	prefix := viper.GetString("queue.stream_prefix")
	return queue.NewStreamsClientFromRedis(client, prefix), nil
}

// loadRuntimeConfig loads the structured worker/scheduler/gc tunables from
// the --runtime-config path (or its default location).
func loadRuntimeConfig() (config.RuntimeConfig, error) {
	return config.LoadRuntimeConfig(viper.GetString("runtime_config"))
}

// newProcessor builds the per-tenant worker (C5) against the given store.
func newProcessor(db *store.DB, rc config.RuntimeConfig, logger infralogger.Logger) *worker.Processor {
	httpClient := &http.Client{Timeout: fetchHTTPTimeout}
	fetcher := feed.NewHTTPFetcher(httpClient, rc.UserAgent)
	return worker.NewProcessor(db, fetcher, filter.DefaultPolicy(), rc.ProcessorConfig(), logger)
}

// newCollector builds the garbage collector (C9) against the given store.
func newCollector(db *store.DB, rc config.RuntimeConfig, logger infralogger.Logger) *gc.Collector {
	return gc.New(db, rc.GCConfig(), logger)
}

// newScheduler builds the tenant-fanout/GC cron (C7) against the given
// store and dispatcher producer.
func newScheduler(db *store.DB, producer *queue.Producer, rc config.RuntimeConfig, logger infralogger.Logger) *scheduler.Scheduler {
	return scheduler.New(db, producer, rc.SchedulerConfig(), logger)
}

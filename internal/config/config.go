// Package config composes the ambient per-process settings (app identity,
// database, redis, logging, HTTP server — bound through viper/cobra in
// cmd/root.go) with the structured runtime tunables the worker, scheduler
// and garbage collector read through the generic YAML+env loader.
package config

import (
	"os"
	"time"

	"github.com/akash-ramasani/job-watch/internal/gc"
	infraconfig "github.com/akash-ramasani/job-watch/internal/infra/config"
	"github.com/akash-ramasani/job-watch/internal/scheduler"
	"github.com/akash-ramasani/job-watch/internal/worker"
)

// RuntimeConfig holds the structured tunables for the worker, scheduler and
// garbage collector: concurrency caps, retention windows and cron
// expressions. It is loaded once at process start via LoadRuntimeConfig and
// handed to whichever daemon command needs it.
type RuntimeConfig struct {
	IngestWindow        time.Duration `yaml:"ingest_window"          env:"INGEST_WINDOW"`
	FeedConcurrency     int           `yaml:"feed_concurrency"       env:"FEED_CONCURRENCY"`
	WriteConcurrency    int           `yaml:"write_concurrency"      env:"JOB_WRITE_CONCURRENCY"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"     env:"HEARTBEAT_INTERVAL"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout"          env:"FETCH_TIMEOUT"`
	FetchRetryBaseDelay time.Duration `yaml:"fetch_retry_base_delay" env:"FETCH_RETRY_BASE_DELAY"`
	EnableRunLock       bool          `yaml:"enable_run_lock"        env:"ENABLE_RUN_LOCK"`
	RunLockLeaseWindow  time.Duration `yaml:"run_lock_lease_window"  env:"RUN_LOCK_LEASE_WINDOW"`
	ResetSavedOnIngest  bool          `yaml:"reset_saved_on_ingest"  env:"RESET_SAVED_ON_INGEST"`
	ConsumerGroup       string        `yaml:"consumer_group"         env:"WORKER_CONSUMER_GROUP"`

	FanoutCron         string `yaml:"fanout_cron"         env:"SCHEDULER_FANOUT_CRON"`
	GCCron             string `yaml:"gc_cron"             env:"SCHEDULER_GC_CRON"`
	EnqueueConcurrency int    `yaml:"enqueue_concurrency" env:"SCHEDULER_ENQUEUE_CONCURRENCY"`

	JobRetention     time.Duration `yaml:"job_retention"     env:"GC_JOB_RETENTION"`
	RunRetention     time.Duration `yaml:"run_retention"     env:"GC_RUN_RETENTION"`
	CompanyRetention time.Duration `yaml:"company_retention" env:"GC_COMPANY_RETENTION"`
	GCBatchLimit     int           `yaml:"gc_batch_limit"    env:"GC_BATCH_LIMIT"`

	UserAgent string `yaml:"user_agent" env:"FEED_USER_AGENT"`

	StreamPrefix string `yaml:"stream_prefix" env:"QUEUE_STREAM_PREFIX"`
}

// DefaultUserAgent is the conditional-fetch header sent to upstream feeds
// when no override is configured (SPEC_FULL.md §6).
const DefaultUserAgent = "job-watch/1.0"

// DefaultConsumerGroup is the Redis Streams consumer group shared by the
// worker fleet (SPEC_FULL.md §11.1).
const DefaultConsumerGroup = "worker-fleet"

// DefaultStreamPrefix namespaces the dispatcher's stream keys.
const DefaultStreamPrefix = "jobwatch"

// DefaultRuntimeConfig seeds RuntimeConfig from each owning package's own
// defaults, so a deployment that ships no YAML file still gets the spec's
// documented values.
func DefaultRuntimeConfig() RuntimeConfig {
	wc := worker.DefaultProcessorConfig()
	sc := scheduler.DefaultConfig()
	gcc := gc.DefaultConfig()

	return RuntimeConfig{
		IngestWindow:        wc.Window,
		FeedConcurrency:     wc.FeedConcurrency,
		WriteConcurrency:    wc.WriteConcurrency,
		HeartbeatInterval:   wc.HeartbeatInterval,
		FetchTimeout:        wc.FetchTimeout,
		FetchRetryBaseDelay: wc.FetchRetryBaseDelay,
		EnableRunLock:       wc.EnableRunLock,
		RunLockLeaseWindow:  wc.RunLockLeaseWindow,
		ResetSavedOnIngest:  wc.ResetSavedOnIngest,
		ConsumerGroup:       DefaultConsumerGroup,

		FanoutCron:         sc.FanoutCron,
		GCCron:             sc.GCCron,
		EnqueueConcurrency: sc.EnqueueConcurrency,

		JobRetention:     gcc.JobRetention,
		RunRetention:     gcc.RunRetention,
		CompanyRetention: gcc.CompanyRetention,
		GCBatchLimit:     gcc.BatchLimit,

		UserAgent:    DefaultUserAgent,
		StreamPrefix: DefaultStreamPrefix,
	}
}

// applyDefaults fills every zero-valued field of c from d, leaving fields
// already set (by YAML or a prior env pass) untouched.
func (c *RuntimeConfig) applyDefaults(d RuntimeConfig) {
	if c.IngestWindow == 0 {
		c.IngestWindow = d.IngestWindow
	}
	if c.FeedConcurrency == 0 {
		c.FeedConcurrency = d.FeedConcurrency
	}
	if c.WriteConcurrency == 0 {
		c.WriteConcurrency = d.WriteConcurrency
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.FetchRetryBaseDelay == 0 {
		c.FetchRetryBaseDelay = d.FetchRetryBaseDelay
	}
	if c.RunLockLeaseWindow == 0 {
		c.RunLockLeaseWindow = d.RunLockLeaseWindow
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = d.ConsumerGroup
	}
	if c.FanoutCron == "" {
		c.FanoutCron = d.FanoutCron
	}
	if c.GCCron == "" {
		c.GCCron = d.GCCron
	}
	if c.EnqueueConcurrency == 0 {
		c.EnqueueConcurrency = d.EnqueueConcurrency
	}
	if c.JobRetention == 0 {
		c.JobRetention = d.JobRetention
	}
	if c.RunRetention == 0 {
		c.RunRetention = d.RunRetention
	}
	if c.CompanyRetention == 0 {
		c.CompanyRetention = d.CompanyRetention
	}
	if c.GCBatchLimit == 0 {
		c.GCBatchLimit = d.GCBatchLimit
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.StreamPrefix == "" {
		c.StreamPrefix = d.StreamPrefix
	}
	// EnableRunLock/ResetSavedOnIngest default true/false respectively and a
	// YAML-absent bool is indistinguishable from an explicit false, so they
	// are only defaulted when no config file was read at all (see
	// LoadRuntimeConfig).
}

// LoadRuntimeConfig loads RuntimeConfig from a YAML file at path, falling
// back to DefaultRuntimeConfig when the file does not exist — a deployment
// with no config file still runs with the spec's documented defaults.
// Environment variable overrides are applied only when a file is loaded;
// with no file, the defaults are returned unchanged.
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	defaults := DefaultRuntimeConfig()

	if path == "" {
		path = infraconfig.GetConfigPath("config/runtime.yaml")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return defaults, nil
	}

	loaded, err := infraconfig.LoadWithDefaults(path, func(c *RuntimeConfig) {
		c.applyDefaults(defaults)
	})
	if err != nil {
		return RuntimeConfig{}, err
	}
	return *loaded, nil
}

// ProcessorConfig converts the runtime tunables into worker.ProcessorConfig.
func (c RuntimeConfig) ProcessorConfig() worker.ProcessorConfig {
	return worker.ProcessorConfig{
		Window:              c.IngestWindow,
		FeedConcurrency:     c.FeedConcurrency,
		WriteConcurrency:    c.WriteConcurrency,
		HeartbeatInterval:   c.HeartbeatInterval,
		FetchTimeout:        c.FetchTimeout,
		FetchRetryBaseDelay: c.FetchRetryBaseDelay,
		EnableRunLock:       c.EnableRunLock,
		RunLockLeaseWindow:  c.RunLockLeaseWindow,
		ResetSavedOnIngest:  c.ResetSavedOnIngest,
	}
}

// SchedulerConfig converts the runtime tunables into scheduler.Config.
func (c RuntimeConfig) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		FanoutCron:         c.FanoutCron,
		GCCron:             c.GCCron,
		EnqueueConcurrency: c.EnqueueConcurrency,
	}
}

// GCConfig converts the runtime tunables into gc.Config.
func (c RuntimeConfig) GCConfig() gc.Config {
	return gc.Config{
		JobRetention:     c.JobRetention,
		RunRetention:     c.RunRetention,
		CompanyRetention: c.CompanyRetention,
		BatchLimit:       c.GCBatchLimit,
	}
}

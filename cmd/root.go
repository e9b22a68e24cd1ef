// Package cmd implements the command-line interface for the job-watch
// ingestion service: the HTTP admin server, the worker fleet, the
// scheduler, the manual poll trigger, and the run-ledger inspection
// commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdhttpd "github.com/akash-ramasani/job-watch/cmd/httpd"
	cmdruns "github.com/akash-ramasani/job-watch/cmd/runs"
	cmdscheduler "github.com/akash-ramasani/job-watch/cmd/scheduler"
	cmdworker "github.com/akash-ramasani/job-watch/cmd/worker"
	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/queue"

	"github.com/google/uuid"
)

// Exit codes for any CLI wrapper around this binary (SPEC_FULL.md §6).
const (
	ExitSuccess       = 0
	ExitBadInput      = 2
	ExitUpstreamError = 3
	ExitStorageError  = 4
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug-level logging for all commands.
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "job-watch",
		Short: "Multi-tenant job-feed ingestion service",
		Long:  "Polls per-tenant job board feeds, filters and normalizes postings, and upserts them into the job store.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("runtime-config", "", "path to the worker/scheduler/gc runtime config YAML")
	_ = viper.BindPFlag("runtime_config", rootCmd.PersistentFlags().Lookup("runtime-config"))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("job-watch version 1.0.0")
		},
	})

	rootCmd.AddCommand(httpdCommand())
	rootCmd.AddCommand(workerCommand())
	rootCmd.AddCommand(schedulerCommand())
	rootCmd.AddCommand(pollNowCommand())
	rootCmd.AddCommand(cmdruns.Command(openStore))
}

// initConfig reads the config file and environment variables, with flags
// and defaults as the other two legs of viper's precedence (SPEC_FULL.md
// §10's ambient-stack configuration pattern, adapted from the teacher's
// cmd/root.go).
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "config file not found, using defaults and environment variables: %v\n", err)
	}

	if err := bindEnvVars(); err != nil {
		return err
	}

	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("bind debug flag: %w", err)
	}
	Debug = Debug || viper.GetBool("app.debug")
	if Debug {
		viper.Set("logger.level", "debug")
	}

	return nil
}

// bindEnvVars maps the environment variables named across SPEC_FULL.md's
// ambient and domain stack sections onto their viper keys.
func bindEnvVars() error {
	bindings := map[string][]string{
		"app.environment":     {"APP_ENV"},
		"app.debug":           {"APP_DEBUG"},
		"logger.level":        {"LOG_LEVEL"},
		"logger.format":       {"LOG_FORMAT"},
		"server.address":      {"SERVER_ADDRESS"},
		"database.host":       {"DATABASE_HOST", "PGHOST"},
		"database.port":       {"DATABASE_PORT", "PGPORT"},
		"database.user":       {"DATABASE_USER", "PGUSER"},
		"database.password":   {"DATABASE_PASSWORD", "PGPASSWORD"},
		"database.database":   {"DATABASE_NAME", "PGDATABASE"},
		"database.sslmode":    {"DATABASE_SSLMODE", "PGSSLMODE"},
		"redis.address":       {"REDIS_ADDRESS", "REDIS_URL"},
		"redis.password":      {"REDIS_PASSWORD"},
		"redis.db":            {"REDIS_DB"},
		"queue.stream_prefix": {"QUEUE_STREAM_PREFIX"},
	}

	for key, envVars := range bindings {
		if err := viper.BindEnv(append([]string{key}, envVars...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults seeds viper with production-safe defaults for every ambient
// section; domain-specific (worker/scheduler/gc) tunables are defaulted
// separately by internal/config.DefaultRuntimeConfig.
func setDefaults() {
	viper.SetDefault("app", map[string]any{
		"name":        "job-watch",
		"environment": "production",
		"debug":       false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":  "info",
		"format": "json",
	})

	viper.SetDefault("server", map[string]any{
		"address": ":8080",
	})

	viper.SetDefault("database", map[string]any{
		"host":     "localhost",
		"port":     5432,
		"user":     "job_watch",
		"password": "",
		"database": "job_watch",
		"sslmode":  "disable",
	})

	viper.SetDefault("redis", map[string]any{
		"address":  "localhost:6379",
		"password": "",
		"db":       0,
	})

	viper.SetDefault("queue", map[string]any{
		"stream_prefix": "jobwatch",
	})
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, for the
// non-HTTP daemon commands (worker, scheduler) that don't go through
// internal/infra/server's graceful shutdown helper.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// httpdCommand runs the admin HTTP server (pollNow, runSyncNow, health).
func httpdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the admin HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			logger, err := newLogger()
			if err != nil {
				return err
			}

			db, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer db.Close()

			streams, err := openQueue()
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer streams.Close()

			rc, err := loadRuntimeConfig()
			if err != nil {
				return err
			}

			deps := cmdhttpd.Deps{
				DB:        db,
				Queue:     streams,
				Producer:  queue.NewProducer(streams, queue.ProducerConfig{}),
				Processor: newProcessor(db, rc, logger),
				Collector: newCollector(db, rc, logger),
				Logger:    logger,
				Address:   viper.GetString("server.address"),
			}
			return cmdhttpd.Run(ctx, deps)
		},
	}
}

// workerCommand runs the worker fleet daemon that drains the dispatcher.
func workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the worker fleet (consumes scheduled/manual/gc runs)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			logger, err := newLogger()
			if err != nil {
				return err
			}

			db, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer db.Close()

			streams, err := openQueue()
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer streams.Close()

			rc, err := loadRuntimeConfig()
			if err != nil {
				return err
			}

			consumer, err := queue.NewConsumer(streams, queue.ConsumerConfig{
				ConsumerGroup: rc.ConsumerGroup,
				ConsumerID:    "worker-" + uuid.NewString(),
			})
			if err != nil {
				return err
			}

			return cmdworker.Run(ctx, cmdworker.Deps{
				Consumer:  consumer,
				Processor: newProcessor(db, rc, logger),
				Collector: newCollector(db, rc, logger),
				Logger:    logger,
			})
		},
	}
}

// schedulerCommand runs the cron-driven tenant fanout and GC trigger.
func schedulerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the scheduler (tenant fanout + GC cron)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			logger, err := newLogger()
			if err != nil {
				return err
			}

			db, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer db.Close()

			streams, err := openQueue()
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer streams.Close()

			rc, err := loadRuntimeConfig()
			if err != nil {
				return err
			}

			producer := queue.NewProducer(streams, queue.ProducerConfig{})
			s := newScheduler(db, producer, rc, logger)
			return cmdscheduler.Run(ctx, s, logger)
		},
	}
}

// pollNowCommand enqueues a single manual run for a tenant and exits
// (SPEC_FULL.md §6's pollNow, as a cobra subcommand).
func pollNowCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "pollNow",
		Short: "Enqueue a manual ingestion run for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID == "" {
				return fmt.Errorf("%w: --tenant is required", errBadInput)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			db, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer db.Close()

			streams, err := openQueue()
			if err != nil {
				return fmt.Errorf("%w: %w", errStorage, err)
			}
			defer streams.Close()

			now := time.Now()
			run := &domain.Run{
				ID:        uuid.NewString(),
				TenantID:  tenantID,
				Type:      domain.RunTypeManual,
				Status:    domain.RunEnqueued,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if createErr := db.Runs.Create(ctx, run); createErr != nil {
				return fmt.Errorf("%w: %w", errStorage, createErr)
			}

			producer := queue.NewProducer(streams, queue.ProducerConfig{})
			task := &queue.Task{TenantID: tenantID, RunID: run.ID, RunType: domain.RunTypeManual}
			if _, enqueueErr := producer.Enqueue(ctx, task); enqueueErr != nil {
				run.Status = domain.RunEnqueueFailed
				run.Error = enqueueErr.Error()
				run.UpdatedAt = time.Now()
				_ = db.Runs.Merge(ctx, run)
				return fmt.Errorf("%w: %w", errUpstream, enqueueErr)
			}

			fmt.Printf(`{"runId":%q,"status":%q}`+"\n", run.ID, run.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID to enqueue a run for")
	return cmd
}

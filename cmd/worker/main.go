package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	internalworker "github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging/redis"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

// workerConfig is environment-driven: the worker runs as a sidecar container
// and takes no config file.
type workerConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	RedisURL          string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	RedisMaxRetries   int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	RedisRetryBackoff time.Duration `envconfig:"REDIS_RETRY_BACKOFF" default:"1s"`
	RedisPoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	RedisMinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`

	OutboxBatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxPollInterval  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	OutboxRetryAttempts int           `envconfig:"OUTBOX_RETRY_ATTEMPTS" default:"3"`
	OutboxRetryDelay    time.Duration `envconfig:"OUTBOX_RETRY_DELAY" default:"5s"`

	RetentionDays     int           `envconfig:"OUTBOX_RETENTION_DAYS" default:"7"`
	RetentionInterval time.Duration `envconfig:"OUTBOX_RETENTION_INTERVAL" default:"1h"`

	HealthAddr string `envconfig:"HEALTH_ADDR" default:":8081"`
}

func setupHealthCheck(addr string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	var cfg workerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.RedisURL,
		MaxRetries:   cfg.RedisMaxRetries,
		RetryBackoff: cfg.RedisRetryBackoff,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	}, &log.Logger)
	if err != nil {
		appLogger.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.OutboxBatchSize,
			PollInterval:  cfg.OutboxPollInterval,
			RetryAttempts: cfg.OutboxRetryAttempts,
			RetryDelay:    cfg.OutboxRetryDelay,
		},
		appLogger,
		metrics.New("booking_worker"),
	)

	retention := internalworker.NewOutboxRetentionWorker(
		outboxRepo,
		cfg.RetentionDays,
		cfg.RetentionInterval,
		appLogger.ZL,
	)

	setupHealthCheck(cfg.HealthAddr, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("received signal, shutting down")
		cancel()
	}()

	go retention.Start(ctx)
	processor.Start(ctx)
}

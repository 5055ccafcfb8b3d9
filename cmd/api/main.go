package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/config"
	appointmentHandler "github.com/jwalitptl/booking-api/internal/handler/appointment"
	doctorHandler "github.com/jwalitptl/booking-api/internal/handler/doctor"
	healthHandler "github.com/jwalitptl/booking-api/internal/handler/health"
	userHandler "github.com/jwalitptl/booking-api/internal/handler/user"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/router"
	eventService "github.com/jwalitptl/booking-api/internal/service/event"
	identityService "github.com/jwalitptl/booking-api/internal/service/identity"
	schedulingService "github.com/jwalitptl/booking-api/internal/service/scheduling"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Logger.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.New("booking_api")
	emitter := eventService.NewEmitter(outboxRepo, appLogger.ZL)

	schedulingSvc := schedulingService.NewService(
		userRepo,
		doctorRepo,
		appointmentRepo,
		emitter,
		m,
		appLogger.ZL,
		schedulingService.Options{
			IncludeCancelledInConflict: cfg.Scheduling.IncludeCancelledInConflict,
			CompletionGrace:            cfg.Scheduling.CompletionGrace,
		},
	)
	identitySvc := identityService.NewService(userRepo, doctorRepo, appLogger.ZL)

	r := router.New(
		appLogger.ZL,
		router.Config{
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig:     middleware.DefaultCORSConfig(),
			MetricsPrefix:  "booking_api",
		},
		appointmentHandler.NewHandler(schedulingSvc),
		userHandler.NewHandler(identitySvc),
		doctorHandler.NewHandler(identitySvc),
		healthHandler.NewHandler(db),
	)
	r.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.NewCompletionSweeper(schedulingSvc, cfg.Scheduling.SweepInterval, appLogger.ZL)
	go sweeper.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal(err, "server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}

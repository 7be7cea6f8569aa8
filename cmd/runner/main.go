// Command runner is the chang task runner: it opens the database pool,
// wires the task store, seals a registry of handlers, and starts the
// supervisor's worker pool alongside the admin API and metrics server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chang-tasks/chang-go/config"
	"github.com/chang-tasks/chang-go/internal/admin"
	"github.com/chang-tasks/chang-go/internal/admin/email"
	"github.com/chang-tasks/chang-go/internal/admin/handler"
	"github.com/chang-tasks/chang-go/internal/admin/usecase"
	"github.com/chang-tasks/chang-go/internal/events"
	"github.com/chang-tasks/chang-go/internal/handlers"
	"github.com/chang-tasks/chang-go/internal/health"
	ctxlog "github.com/chang-tasks/chang-go/internal/log"
	"github.com/chang-tasks/chang-go/internal/metrics"
	"github.com/chang-tasks/chang-go/internal/postgres"
	"github.com/chang-tasks/chang-go/internal/registry"
	"github.com/chang-tasks/chang-go/internal/scheduler"
	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	taskStore := postgres.New(pool)

	reg := registry.New()
	handlers.Register(reg, logger)
	reg.Register(scheduler.PeriodicKind, scheduler.SchedulePeriodicTaskHandler(logger))
	reg.Seal()

	base := taskctx.New()
	taskctx.Put(base, registry.DB{Pool: pool})
	taskctx.Put(base, registry.Store{TaskStore: taskStore})
	taskctx.Put(base, periodicJobs())

	queue := task.NewQueue(
		task.WithQueueName(cfg.RunnerQueue),
		task.WithStrategy(task.SchedulingStrategy(cfg.RunnerQueueStrategy)),
		task.WithLimit(cfg.RunnerQueueLimit),
		task.WithInterval(time.Duration(cfg.RunnerQueueIntervalMS)*time.Millisecond),
	)

	sup := scheduler.NewSupervisor(taskStore, reg, base, queue, cfg.RunnerConcurrency, cfg.RunnerLabel, logger)

	collector := events.New(events.NewPostgresExporter(pool), 10*time.Second, logger)
	go collector.Start(ctx)

	operators := postgres.NewOperatorRepository(pool)
	emailSender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	authUsecase := usecase.NewAuthUsecase(operators, emailSender, []byte(cfg.JWTSecret), cfg.MagicLinkBase)
	taskUsecase := usecase.NewTaskUsecase(taskStore, collector)

	authHandler := handler.NewAuthHandler(authUsecase, logger)
	taskHandler := handler.NewTaskHandler(taskUsecase, logger)
	router := admin.NewRouter(taskHandler, authHandler, checker, []byte(cfg.JWTSecret), logger)

	adminSrv := &http.Server{Addr: ":" + cfg.AdminPort, Handler: router}
	go func() {
		logger.Info("admin server started", "port", cfg.AdminPort)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server", "error", err)
		}
	}()

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	supervisorDone := make(chan error, 1)
	go func() { supervisorDone <- sup.Start(ctx) }()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	if err := <-supervisorDone; err != nil {
		logger.Error("supervisor exited with error", "error", err)
	}

	logger.Info("runner shut down")
}

// periodicJobs lists the cron-scheduled task kinds this runner expands every
// hour. Each kind must also have a registered handler, or claimed instances
// of it will fail with registry.ErrHandlerNotFound.
func periodicJobs() scheduler.PeriodicJobs {
	return scheduler.PeriodicJobs{}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lokapos/lokapos/internal/app"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/platform/cache"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/reporting"
	"github.com/lokapos/lokapos/internal/tenancy"
	"github.com/lokapos/lokapos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	primary, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer primary.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Warn("connect redis, warmup writes nothing", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	provisioner := tenancy.NewProvisioner(logger, cfg.AdminURL(), cfg.DatabaseURL, cfg.TenantProvisionRetry(), nil)
	tenantService := tenancy.NewService(logger, tenancy.NewRepository(primary), provisioner, cfg.TrialDays)
	manager := tenancy.NewManager(logger, primary, tenancy.NewResolver(), provisioner, cfg.TenantAutoProvision, cfg.TenantPoolMaxConns, nil)
	defer manager.Close()

	ledgerService := ledger.NewService(logger, ledger.NewRepository(manager), nil)
	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(logger, reporting.NewRepository(manager), ledgerService, reportCache)

	sweepJob := jobs.NewSubscriptionSweepJob(tenantService, logger, nil)
	warmupJob := jobs.NewReportWarmupJob(tenantService, manager, reportingService, logger, nil)

	warmupTask, err := jobs.NewReportWarmupTask(jobs.ReportWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	// Cron specs run in UTC. 17:05 UTC is 00:05 WIB, right after the
	// Jakarta business day closes; 22:00 UTC is 05:00 WIB, before shops
	// open on warm caches.
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSubscriptionSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskReportWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "5 17 * * *", Task: jobs.NewSubscriptionSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 22 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lokapos/lokapos/cmd/lokapos/cli"
	"github.com/lokapos/lokapos/internal/app"
	"github.com/lokapos/lokapos/internal/hr"
	"github.com/lokapos/lokapos/internal/integration"
	"github.com/lokapos/lokapos/internal/inventory"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/observability"
	"github.com/lokapos/lokapos/internal/platform/cache"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/pos"
	"github.com/lokapos/lokapos/internal/procurement"
	"github.com/lokapos/lokapos/internal/reporting"
	"github.com/lokapos/lokapos/internal/servicedesk"
	"github.com/lokapos/lokapos/internal/shared"
	"github.com/lokapos/lokapos/internal/tenancy"
	"github.com/lokapos/lokapos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		os.Exit(runCommand(ctx, cfg, logger, os.Args[1], os.Args[2:]))
	}

	primary, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer primary.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Warn("connect redis, reports run uncached", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	provisioner := tenancy.NewProvisioner(logger, cfg.AdminURL(), cfg.DatabaseURL, cfg.TenantProvisionRetry(), metrics)
	tenantRepo := tenancy.NewRepository(primary)
	tenantService := tenancy.NewService(logger, tenantRepo, provisioner, cfg.TrialDays)
	manager := tenancy.NewManager(logger, primary, tenancy.NewResolver(), provisioner, cfg.TenantAutoProvision, cfg.TenantPoolMaxConns, metrics)
	defer manager.Close()
	tenantMiddleware := tenancy.NewMiddleware(logger, cfg.BaseDomain, tenantService, manager)

	auditLogger := shared.NewAuditLogger(manager)

	ledgerService := ledger.NewService(logger, ledger.NewRepository(manager), metrics)
	hooks := integration.NewHooks(logger, ledgerService)
	stock := inventory.NewStore(cfg.AllowNegativeStock)

	masterdataService := masterdata.NewService(masterdata.NewRepository(manager))
	inventoryService := inventory.NewService(logger, inventory.NewRepository(manager), stock, manager)
	posService := pos.NewService(logger, pos.NewRepository(manager), stock, ledgerService, hooks, auditLogger)
	servicedeskService := servicedesk.NewService(logger, servicedesk.NewRepository(manager), stock, ledgerService, hooks, auditLogger)
	procurementService := procurement.NewService(logger, procurement.NewRepository(manager), stock, ledgerService, hooks, auditLogger)
	hrService := hr.NewService(logger, hr.NewRepository(manager), ledgerService, hooks, auditLogger)

	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(logger, reporting.NewRepository(manager), ledgerService, reportCache)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		TenancyHandler:     tenancy.NewHandler(logger, tenantService),
		LedgerHandler:      ledger.NewHandler(logger, ledgerService),
		MasterDataHandler:  masterdata.NewHandler(logger, masterdataService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		POSHandler:         pos.NewHandler(logger, posService),
		ServiceHandler:     servicedesk.NewHandler(logger, servicedeskService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		HRHandler:          hr.NewHandler(logger, hrService),
		ReportsHandler:     reporting.NewHandler(logger, reportingService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		TenantMiddleware:   tenantMiddleware.Handler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand dispatches the admin subcommands. They connect to the
// primary database only; tenant databases are reached through the
// service layer.
func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, command string, args []string) int {
	switch command {
	case "tenants":
		return runTenantsCommand(ctx, cfg, logger, args)
	case "jobs":
		return runJobsCommand(ctx, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, tenants or jobs)\n", command)
		return 2
	}
}

func runTenantsCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lokapos tenants <list|status|activate|suspend|provision> [flags]")
		return 2
	}

	primary, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		return 1
	}
	defer primary.Close()

	metrics := observability.NewMetrics()
	provisioner := tenancy.NewProvisioner(logger, cfg.AdminURL(), cfg.DatabaseURL, cfg.TenantProvisionRetry(), metrics)
	service := tenancy.NewService(logger, tenancy.NewRepository(primary), provisioner, cfg.TrialDays)

	ops, err := cli.NewTenantOpsCLI(service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tenants: %v\n", err)
		return 1
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("tenants list", flag.ContinueOnError)
		page := fs.Int("page", 1, "page number")
		perPage := fs.Int("per-page", 20, "rows per page")
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.ListCommand(ctx, cli.TenantListOptions{Page: *page, PerPage: *perPage, JSONOutput: *jsonOut})
	case "status":
		fs := flag.NewFlagSet("tenants status", flag.ContinueOnError)
		tenant := fs.String("tenant", "", "tenant subdomain")
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.StatusCommand(ctx, cli.TenantStatusOptions{Subdomain: *tenant, JSONOutput: *jsonOut})
	case "activate":
		fs := flag.NewFlagSet("tenants activate", flag.ContinueOnError)
		tenant := fs.String("tenant", "", "tenant subdomain")
		plan := fs.String("plan", "standard", "subscription plan")
		amount := fs.Float64("amount", 0, "payment amount")
		months := fs.Int("months", 1, "subscription length in months")
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.ActivateCommand(ctx, cli.TenantActivateOptions{
			Subdomain:  *tenant,
			Plan:       *plan,
			Amount:     *amount,
			Months:     *months,
			JSONOutput: *jsonOut,
		})
	case "suspend":
		fs := flag.NewFlagSet("tenants suspend", flag.ContinueOnError)
		tenant := fs.String("tenant", "", "tenant subdomain")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.SuspendCommand(ctx, cli.TenantSuspendOptions{Subdomain: *tenant})
	case "provision":
		fs := flag.NewFlagSet("tenants provision", flag.ContinueOnError)
		tenant := fs.String("tenant", "", "tenant subdomain")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return ops.ProvisionCommand(ctx, cli.TenantProvisionOptions{Subdomain: *tenant})
	default:
		fmt.Fprintf(os.Stderr, "unknown tenants subcommand %q\n", args[0])
		return 2
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lokapos jobs <trigger|queue> [flags]")
		return 2
	}

	ops, err := cli.NewJobsCLI(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() {
		if err := ops.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "jobs: close: %v\n", err)
		}
	}()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		name := fs.String("name", "", "task type to enqueue")
		tenant := fs.String("tenant", "", "limit warmup to one tenant")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		info, err := ops.Trigger(ctx, *name, *tenant)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s as %s\n", info.Type, info.ID)
		return 0
	case "queue":
		stats, err := ops.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs queue: %v\n", err)
			return 1
		}
		fmt.Printf("queue %s: pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs subcommand %q\n", args[0])
		return 2
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/sitecost/cmd/sitecost/cli"
	"github.com/odyssey-erp/sitecost/internal/app"
	"github.com/odyssey-erp/sitecost/internal/costs"
	costhttp "github.com/odyssey-erp/sitecost/internal/costs/http"
	"github.com/odyssey-erp/sitecost/internal/observability"
	"github.com/odyssey-erp/sitecost/internal/platform/cache"
	"github.com/odyssey-erp/sitecost/internal/platform/db"
	"github.com/odyssey-erp/sitecost/internal/rbac"
	"github.com/odyssey-erp/sitecost/internal/shared"
	"github.com/odyssey-erp/sitecost/jobs"
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, cfg, os.Args[2:]))
	}

	logger := app.NewLogger(cfg)

	var pool *pgxpool.Pool
	if cfg.StoreDriver == app.StoreDriverPostgres {
		pool, err = db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	components, err := app.BuildComponents(ctx, cfg, app.Infra{
		Pool:       pool,
		Redis:      redisClient,
		Registerer: metrics.Registerer(),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("build components", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("close partitions", slog.Any("error", err))
		}
	}()

	if err := components.Cache.ListenForInvalidation(ctx, costs.BumpChannel); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL)
	for _, name := range []string{"root", "meera"} {
		a, ok := components.Demo[name]
		if !ok {
			continue
		}
		token, err := sessionManager.Issue(ctx, shared.Caller{ID: a.ID, Username: a.Username, Role: a.Role, Tenant: a.Tenant})
		if err != nil {
			logger.Warn("issue demo session", slog.String("actor", name), slog.Any("error", err))
			continue
		}
		logger.Info("demo session issued",
			slog.String("actor", name),
			slog.String("role", a.Role),
			slog.String("token", token))
	}
	costHandler := costhttp.NewHandler(logger, components.Service)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Sessions:       sessionManager,
		RBACMiddleware: rbac.Middleware{Logger: logger},
		CostHandler:    costHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// runJobs handles `sitecost jobs warm|queue`.
func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: sitecost jobs warm [--site S --company C] [--json] | queue [--json]")
		return 2
	}
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts)
	defer func() { _ = client.Close() }()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()
	jobsCLI := cli.NewJobsCLI(client, inspector)

	fs := flag.NewFlagSet("jobs "+args[0], flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "print JSON output")
	switch args[0] {
	case "warm":
		site := fs.String("site", "", "site to warm (default all tenants)")
		company := fs.String("company", "", "company of the site")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return jobsCLI.WarmCommand(ctx, cli.WarmOptions{Site: *site, Company: *company, JSONOutput: *jsonOutput})
	case "queue":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return jobsCLI.QueueCommand(ctx, *jsonOutput, nil, nil)
	default:
		fmt.Fprintf(os.Stderr, "jobs: unknown command %q\n", args[0])
		return 2
	}
}

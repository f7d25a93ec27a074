package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/toolroom-erp/toolroom/internal/app"
	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/observability"
	"github.com/toolroom-erp/toolroom/internal/procurement"
	"github.com/toolroom-erp/toolroom/internal/rbac"
	"github.com/toolroom-erp/toolroom/jobs"
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

	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	redisClient, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		if cfg.LockDriver == "redis" {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("redis unavailable, job triggers disabled", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var lockClient redis.UniversalClient
	if redisClient != nil {
		lockClient = redisClient
	}
	locker, err := app.NewLocker(cfg, lockClient)
	if err != nil {
		logger.Error("init locker", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	services := app.NewServices(cfg, st, locker, metrics)
	rbacMiddleware := rbac.Middleware{Policy: services.Policy, Logger: logger}

	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		inspector := asynq.NewInspector(redisOpts)
		defer inspector.Close()
		jobClient := jobs.NewClient(redisOpts)
		defer jobClient.Close()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		ProcurementHandler: procurement.NewHandler(logger, services.Procurement, rbacMiddleware),
		InventoryHandler:   inventory.NewHandler(logger, services.Inventory, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(services.Policy, rbacMiddleware),
		JobHandler:         jobHandler,
		Metrics:            metrics,
		Ready:              st.Ping,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver), slog.String("lock", cfg.LockDriver))
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

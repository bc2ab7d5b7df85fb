// Package application wires the pipeline together and runs its long-lived
// modules.
package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"catalog_sync/internal/config"
	"catalog_sync/internal/domain/service/listing"
	"catalog_sync/internal/domain/service/pricing"
	"catalog_sync/internal/domain/service/reconcile"
	"catalog_sync/internal/fx"
	"catalog_sync/internal/infrastructure/marketplace"
	"catalog_sync/internal/infrastructure/persistence"
	"catalog_sync/internal/infrastructure/supplier"
	"catalog_sync/internal/infrastructure/tokenstore"
	"catalog_sync/internal/metrics"
	"catalog_sync/internal/server"
	"catalog_sync/internal/worker"
	"catalog_sync/pkg/application/connectors"
	"catalog_sync/pkg/application/modules"
	"catalog_sync/pkg/logx"
	"catalog_sync/pkg/middlewarex"
	"catalog_sync/pkg/retryx"
)

const httpReadHeaderTimeout = 5 * time.Second

func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	postgres := &connectors.Postgres{
		DSN:             cfg.Postgres.DSN,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
	db := postgres.Client(ctx)
	defer postgres.Close(ctx)

	redis := &connectors.Redis{
		Username:           cfg.Redis.Username,
		Password:           cfg.Redis.Password,
		Address:            cfg.Redis.Address,
		DatabaseNumber:     cfg.Redis.DatabaseNumber,
		PoolSize:           cfg.Redis.PoolSize,
		MinIdleConnections: cfg.Redis.MinIdleConnections,
		MaxIdleConnections: cfg.Redis.MaxIdleConnections,
	}
	redisClient := redis.Client(ctx)
	defer redis.Close(ctx)

	recordRepo := persistence.NewRecordRepository(db)
	jobRepo := persistence.NewJobRepository(db)
	activityRepo := persistence.NewActivityRepository(db)

	settings := config.NewSettingsProvider(redisClient, cfg.Pipeline)
	defaults := cfg.Pipeline.DefaultSettings()

	supplierExecutor := retryx.New(
		retryx.WithMaxAttempts(defaults.MaxRetries+1),
		retryx.WithBaseDelay(time.Duration(defaults.BaseDelayMs)*time.Millisecond),
		retryx.WithObserver(metrics.RetryObserver("supplier")),
	)
	marketplaceExecutor := retryx.New(
		retryx.WithMaxAttempts(defaults.MaxRetries+1),
		retryx.WithBaseDelay(time.Duration(defaults.BaseDelayMs)*time.Millisecond),
		retryx.WithObserver(metrics.RetryObserver("marketplace")),
	)

	supplierClient := supplier.NewClient(cfg.Supplier, supplierExecutor)
	tokens := tokenstore.NewStore(redisClient, cfg.Marketplace.TokenKey)
	marketplaceClient := marketplace.NewClient(cfg.Marketplace, tokens, marketplaceExecutor)

	rates := fx.NewRedisProvider(redisClient, cfg.Pipeline.FXRateKey, fx.NewStaticProvider(cfg.Pipeline.FXRate))

	reconciler := reconcile.NewReconciler(
		recordRepo,
		supplierClient,
		marketplaceClient,
		rates,
		activityRepo,
		pricing.NewEngine(pricing.DefaultConfig()),
		listing.NewBuilder(),
		reconcile.Config{
			GuardWindow:     cfg.Pipeline.GuardWindow,
			MinPrice:        cfg.Marketplace.MinPrice,
			MaxPrice:        cfg.Marketplace.MaxPrice,
			OutlierMin:      cfg.Pipeline.PriceOutlierMin,
			OutlierMax:      cfg.Pipeline.PriceOutlierMax,
			RegionAllowlist: cfg.Pipeline.RegionAllowlist,
		},
	)

	registry := worker.NewRegistry(redisClient)
	orchestrator := worker.NewOrchestrator(reconciler, jobRepo, recordRepo, settings, registry, cfg.Pipeline)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DatabaseNumber,
	})
	defer asynqClient.Close()

	launcher := worker.NewLauncher(registry, jobRepo, asynqClient)

	router := chi.NewRouter()
	masker := logx.NewSensitiveDataMasker()
	router.Use(
		middlewarex.TraceID,
		middlewarex.Logger,
		middlewarex.RequestLogging(masker, cfg.HTTP.LogFieldMaxLen),
		middlewarex.ResponseLogging(masker, cfg.HTTP.LogFieldMaxLen),
		middlewarex.Recovery,
	)
	server.NewServer(server.NewSyncServer(launcher, jobRepo, recordRepo)).RegisterRoutes(router)

	//nolint:exhaustruct
	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: httpReadHeaderTimeout,
	}

	modules.HTTPServer{
		ShutdownTimeout: time.Duration(cfg.HTTP.ShutdownTimeout) * time.Second,
	}.Run(ctx, g, httpServer)

	modules.AsynqServer{
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisAddress:  cfg.Redis.Address,
		RedisDB:       cfg.Redis.DatabaseNumber,
	}.Run(ctx, g,
		modules.AsynqQueues{"default": 1},
		modules.AsynqHandler{Pattern: worker.SyncJobType, Handle: orchestrator.HandleSyncTask},
	)

	modules.ProbeServer{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		ListenAddress: cfg.App.ProbeAddress,
	}.Run(ctx, g)

	modules.MetricServer{
		ListenAddress: cfg.App.MetricAddress,
	}.Run(ctx, g)

	return g.Wait()
}

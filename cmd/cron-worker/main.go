package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	cartsvc "github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/internal/cron"
	"github.com/grubsquad/grubsquad-backend/internal/directory"
	"github.com/grubsquad/grubsquad-backend/internal/providersync"
	"github.com/grubsquad/grubsquad-backend/pkg/config"
	"github.com/grubsquad/grubsquad-backend/pkg/db"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
	"github.com/grubsquad/grubsquad-backend/pkg/metrics"
	"github.com/grubsquad/grubsquad-backend/pkg/migrate"
	"github.com/grubsquad/grubsquad-backend/pkg/provider"
	gsredis "github.com/grubsquad/grubsquad-backend/pkg/redis"
	"github.com/grubsquad/grubsquad-backend/pkg/square"
)

const lockKeyFormat = "gs:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := gsredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	repo := cartsvc.NewRepository(dbClient.DB())

	lifecycleJob, err := cron.NewCartLifecycleJob(cron.CartLifecycleJobParams{
		Logger:     logg,
		Repository: repo,
		GraceHours: cfg.Cron.AbandonGraceHours,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart lifecycle job", err)
		os.Exit(1)
	}

	jobs := []cron.Job{lifecycleJob}
	if cfg.FeatureFlags.ProviderMirror {
		reconciler, err := buildReconciler(cfg, logg, repo)
		if err != nil {
			logg.Error(context.Background(), "failed to create provider mirror", err)
			os.Exit(1)
		}
		reconcileJob, err := cron.NewRemoteReconcileJob(cron.RemoteReconcileJobParams{
			Logger:     logg,
			Repository: repo,
			Reconciler: reconciler,
			Attempts:   cfg.Cron.ReconcileAttempts,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create remote reconcile job", err)
			os.Exit(1)
		}
		jobs = append(jobs, reconcileJob)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildReconciler(cfg *config.Config, logg *logger.Logger, repo *cartsvc.Repository) (*providersync.Adapter, error) {
	clients := map[enums.ProviderType]providersync.RemoteCartClient{}

	if cfg.Provider.BaseURL != "" {
		proxyClient, err := provider.NewClient(cfg.Provider, logg)
		if err != nil {
			return nil, err
		}
		partner, err := providersync.NewPartnerClient(proxyClient)
		if err != nil {
			return nil, err
		}
		clients[enums.ProviderTypePartner] = partner
	}

	if cfg.Square.AccessToken != "" && cfg.Square.LocationID != "" {
		squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		sq, err := providersync.NewSquareClient(squareClient)
		if err != nil {
			return nil, err
		}
		clients[enums.ProviderTypeSquare] = sq
	}

	var restaurants cartsvc.RestaurantLoader = directory.NewStatic()
	dirClient, err := directory.NewClient(cfg.Directory, logg)
	if err != nil {
		return nil, err
	}
	if dirClient != nil {
		restaurants = dirClient
	}

	return providersync.NewAdapter(repo, restaurants, clients, logg)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

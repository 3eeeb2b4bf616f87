package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/grubsquad/grubsquad-backend/api/routes"
	cartsvc "github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/internal/directory"
	"github.com/grubsquad/grubsquad-backend/internal/providersync"
	"github.com/grubsquad/grubsquad-backend/pkg/config"
	"github.com/grubsquad/grubsquad-backend/pkg/db"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
	"github.com/grubsquad/grubsquad-backend/pkg/migrate"
	"github.com/grubsquad/grubsquad-backend/pkg/provider"
	gsredis "github.com/grubsquad/grubsquad-backend/pkg/redis"
	"github.com/grubsquad/grubsquad-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	var restaurants cartsvc.RestaurantLoader = directory.NewStatic()
	var roster cartsvc.RosterLoader = directory.NewStatic()
	dirClient, err := directory.NewClient(cfg.Directory, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create directory client", err)
		os.Exit(1)
	}
	if dirClient != nil {
		restaurants = dirClient
		roster = dirClient
	} else {
		logg.Warn(context.Background(), "directory service not configured, using static placeholders")
	}

	var mirror cartsvc.Mirror
	if cfg.FeatureFlags.ProviderMirror {
		adapter, err := buildMirror(cfg, logg, repo, restaurants)
		if err != nil {
			logg.Error(context.Background(), "failed to create provider mirror", err)
			os.Exit(1)
		}
		mirror = adapter
	}

	var bus cartsvc.Bus
	if cfg.FeatureFlags.RealtimeUpdates {
		bus = cartsvc.NewRedisBus(redisClient, logg)
	}

	cartService, err := cartsvc.NewService(repo, dbClient, restaurants, roster, mirror, bus, logg, cfg.Provider.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, cartService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildMirror(cfg *config.Config, logg *logger.Logger, repo *cartsvc.Repository, restaurants cartsvc.RestaurantLoader) (*providersync.Adapter, error) {
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

	return providersync.NewAdapter(repo, restaurants, clients, logg)
}

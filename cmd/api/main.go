package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vidrelay/vidrelay-backend/api/controllers"
	"github.com/vidrelay/vidrelay-backend/api/routes"
	"github.com/vidrelay/vidrelay-backend/internal/download"
	"github.com/vidrelay/vidrelay-backend/internal/editing"
	"github.com/vidrelay/vidrelay-backend/internal/events"
	"github.com/vidrelay/vidrelay-backend/internal/ledger"
	"github.com/vidrelay/vidrelay-backend/internal/platformauth"
	"github.com/vidrelay/vidrelay-backend/internal/selection"
	"github.com/vidrelay/vidrelay-backend/internal/transport"
	"github.com/vidrelay/vidrelay-backend/internal/upload"
	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/db"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
	"github.com/vidrelay/vidrelay-backend/pkg/metrics"
	"github.com/vidrelay/vidrelay-backend/pkg/migrate"
	"github.com/vidrelay/vidrelay-backend/pkg/pubsub"
	"github.com/vidrelay/vidrelay-backend/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	publisher := events.NewNoopPublisher()
	var pubsubClient *pubsub.Client
	if cfg.PubSub.Enabled() {
		pubsubClient, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer pubsubClient.Close()

		publisher, err = events.NewPublisher(pubsubClient.FrontendPublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create event publisher", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "frontend topic not configured, events disabled")
	}

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	authenticator, err := platformauth.New(cfg.Platforms, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create platform authenticator", err)
		os.Exit(1)
	}

	transports := func(platform enums.Platform) (transport.Transport, error) {
		return transport.ForPlatform(platform, transport.Deps{
			Platforms: cfg.Platforms,
			Logger:    logg,
		})
	}

	auditWriter := ledger.NewAuditWriter(cfg.Ledger)
	defer auditWriter.Close()

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), auditWriter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	mediaService, err := download.NewService(
		download.NewRepository(dbClient.DB()),
		transports,
		ledgerService,
		publisher,
		pipelineMetrics,
		cfg.Download,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create download service", err)
		os.Exit(1)
	}

	editor, err := editing.NewFFmpegEditor(cfg.Editing, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create editor", err)
		os.Exit(1)
	}

	selections := selection.NewStore()

	uploader, err := upload.NewOrchestrator(
		mediaService,
		selections,
		transports,
		authenticator,
		ledgerService,
		publisher,
		pipelineMetrics,
		cfg.Upload,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create upload orchestrator", err)
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
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			Redis:        redisClient,
			DBPinger:     dbClient,
			PubSubPinger: pubsubPingerFor(pubsubClient),
			Media:        mediaService,
			Editor:       editor,
			Selections:   selections,
			Uploader:     uploader,
			Ledger:       ledgerService,
			Publisher:    publisher,
		}),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func pubsubPingerFor(client *pubsub.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}

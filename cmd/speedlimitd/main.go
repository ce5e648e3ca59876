package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/taisau/ha-road-speed-limits/internal/adapter/cache"
	"github.com/taisau/ha-road-speed-limits/internal/adapter/here"
	httpadapter "github.com/taisau/ha-road-speed-limits/internal/adapter/http"
	kafkaadapter "github.com/taisau/ha-road-speed-limits/internal/adapter/kafka"
	"github.com/taisau/ha-road-speed-limits/internal/adapter/overpass"
	"github.com/taisau/ha-road-speed-limits/internal/adapter/tomtom"
	"github.com/taisau/ha-road-speed-limits/internal/config"
	"github.com/taisau/ha-road-speed-limits/internal/domain"
	"github.com/taisau/ha-road-speed-limits/internal/observability"
	"github.com/taisau/ha-road-speed-limits/internal/poller"
	"github.com/taisau/ha-road-speed-limits/internal/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	store := secrets.NewStore(cfg.SecretsFile, cfg.TomTomAPIKey, cfg.HereAPIKey, logger)

	primary, err := cfg.Provider()
	if err != nil {
		logger.Error("invalid provider configuration", "error", err)
		os.Exit(1)
	}

	providers := map[domain.ProviderKind]domain.Provider{
		domain.ProviderOpenStreetMap: cache.Wrap(
			overpass.NewClient(cfg.OverpassURL, cfg.ProviderTimeout, cfg.UnitPreference, metrics, logger),
			cfg.CacheSize, metrics),
		domain.ProviderTomTom: cache.Wrap(
			tomtom.NewClient(store.TomTomKey, cfg.ProviderTimeout, metrics, logger),
			cfg.CacheSize, metrics),
		domain.ProviderHere: cache.Wrap(
			here.NewClient(store.HereKey, cfg.ProviderTimeout, metrics, logger),
			cfg.CacheSize, metrics),
	}

	resolver := domain.NewResolver(providers, primary, cfg.SearchRadius, logger)

	locations := poller.NewLocationStore()
	if cfg.StaticLocation != "" {
		if err := locations.Set(&domain.LocationSnapshot{State: cfg.StaticLocation}, nil); err != nil {
			logger.Error("invalid static location", "error", err)
			os.Exit(1)
		}
		logger.Info("seeded static location", "location", cfg.StaticLocation)
	}

	var publisher poller.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled() {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaPublisher
		logger.Info("kafka outcome publishing enabled", "topic", cfg.KafkaTopic)
	}

	p := poller.New(
		resolver,
		locations,
		poller.NewStateStore(),
		publisher,
		cfg.PollInterval,
		cfg.UnitPreference,
		clockwork.NewRealClock(),
		logger,
		metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sportsbook-ev-analyzer/internal/alerts"
	"sportsbook-ev-analyzer/internal/cache"
	"sportsbook-ev-analyzer/internal/config"
	"sportsbook-ev-analyzer/internal/cyclelog"
	"sportsbook-ev-analyzer/internal/ev"
	"sportsbook-ev-analyzer/internal/ingest"
	"sportsbook-ev-analyzer/internal/logger"
	"sportsbook-ev-analyzer/internal/metrics"
	"sportsbook-ev-analyzer/internal/oddsapi"
	"sportsbook-ev-analyzer/internal/storage"
)

func main() {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.OddsAPIKey == "" {
		log.Fatal("ODDS_API_KEY is required")
	}

	zlog, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer zlog.Sync()

	store, err := storage.Connect(cfg.PostgresDSN)
	if err != nil {
		zlog.Fatal("connecting to postgres", zap.Error(err))
	}
	defer store.Close()

	pipeline := &ingest.Pipeline{
		Fetcher: oddsapi.NewClient(cfg.BaseURL, cfg.OddsAPIKey, cfg.Sport, cfg.Regions,
			30, 15*time.Second),
		Engine: ev.New(ev.Config{
			AllowedBookmakers:  cfg.AllowedBookmakers,
			SharpWeights:       cfg.SharpWeights,
			EVThresholdPercent: cfg.EVThresholdPercent,
		}),
		Store:           store,
		Metrics:         metrics.NewPipeline(),
		Log:             zlog,
		PollInterval:    cfg.PollInterval,
		CleanupInterval: cfg.CleanupInterval,
		Retention:       cfg.Retention,
	}

	rdb, err := cache.Connect(cfg.RedisAddr)
	if err != nil {
		zlog.Warn("redis unavailable, cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		pipeline.Cache = cache.New(rdb, cfg.CacheTTL)
	}

	if cfg.KafkaBrokers != "" {
		publisher := alerts.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.AlertCooldown)
		defer publisher.Close()
		pipeline.Alerts = publisher
	} else {
		zlog.Info("KAFKA_BROKERS unset, alert publishing disabled")
	}

	cycleLog, err := cyclelog.New(cfg.CycleLogPath)
	if err != nil {
		zlog.Warn("cycle log unavailable", zap.Error(err))
	} else {
		defer cycleLog.Close()
		pipeline.CycleLog = cycleLog
	}

	metricsSrv := metrics.StartServer(cfg.MetricsPort, store.Ping)
	defer metricsSrv.Close()
	zlog.Info("metrics server listening", zap.String("port", cfg.MetricsPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Fatal("pipeline exited", zap.Error(err))
	}
	zlog.Info("shutdown complete")
}

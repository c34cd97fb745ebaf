package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sportsbook-ev-analyzer/internal/cache"
	"sportsbook-ev-analyzer/internal/config"
	"sportsbook-ev-analyzer/internal/httpapi"
	"sportsbook-ev-analyzer/internal/logger"
	"sportsbook-ev-analyzer/internal/storage"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New("odds-query-api", cfg.Env)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer zlog.Sync()

	store, err := storage.Connect(cfg.PostgresDSN)
	if err != nil {
		zlog.Fatal("connecting to postgres", zap.Error(err))
	}
	defer store.Close()

	var recordCache httpapi.RecordCache
	if rdb, err := cache.Connect(cfg.RedisAddr); err != nil {
		zlog.Warn("redis unavailable, cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		recordCache = cache.New(rdb, cfg.CacheTTL)
	}

	api := httpapi.New(store, recordCache, zlog)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zlog.Info("query api listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}

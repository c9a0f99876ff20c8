package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bazar-store/bazar/internal/adapter/handler"
	"github.com/bazar-store/bazar/internal/adapter/storage"
	"github.com/bazar-store/bazar/internal/config"
	"github.com/bazar-store/bazar/internal/core/service"
	"github.com/bazar-store/bazar/internal/logging"
	"github.com/bazar-store/bazar/internal/metrics"
	"github.com/bazar-store/bazar/internal/port"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalLog := logging.New("catalog", "info")
		fatalLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New("catalog", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo port.CatalogRepository
	switch cfg.Catalog.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Catalog.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Catalog.RedisAddr).Msg("failed to connect redis")
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.Catalog.RedisAddr).Msg("connected to redis")
		repo = storage.NewRedisCatalog(rdb)
	case "memory", "":
		repo = storage.NewMemoryCatalog()
	default:
		log.Fatal().Str("backend", cfg.Catalog.Backend).Msg("unknown catalog backend")
	}

	catalog := service.NewCatalogService(repo, log)
	if err := catalog.SeedFromCSV(ctx, cfg.Catalog.SeedFile); err != nil {
		log.Fatal().Err(err).Msg("failed to seed catalog")
	}

	mux := http.NewServeMux()
	handler.NewCatalogHandler(catalog, log).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{Addr: cfg.Catalog.HTTPAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.Catalog.HTTPAddr).Msg("catalog service listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("stopped")
}

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bazar-store/bazar/internal/adapter/handler"
	"github.com/bazar-store/bazar/internal/config"
	"github.com/bazar-store/bazar/internal/logging"
	"github.com/bazar-store/bazar/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalLog := logging.New("gateway", "info")
		fatalLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New("gateway", cfg.LogLevel)

	mux := http.NewServeMux()
	handler.NewGatewayHandler(cfg.Gateway.CatalogURL, cfg.Gateway.OrderURL, log).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{Addr: cfg.Gateway.HTTPAddr, Handler: mux}
	go func() {
		log.Info().
			Str("addr", cfg.Gateway.HTTPAddr).
			Str("catalog", cfg.Gateway.CatalogURL).
			Str("order", cfg.Gateway.OrderURL).
			Msg("gateway listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("stopped")
}

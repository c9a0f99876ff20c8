package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bazar-store/bazar/internal/adapter/client"
	"github.com/bazar-store/bazar/internal/adapter/events"
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
		fatalLog := logging.New("order", "info")
		fatalLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New("order", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orders, idem, cleanup := buildStores(ctx, cfg, log)
	defer cleanup()

	var publisher port.EventPublisher
	if cfg.Kafka.Enabled {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.ReconciliationTopic, log)
		defer kp.Close()
		publisher = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka publisher enabled")
	}

	catalog := client.NewCatalogClient(cfg.Order.CatalogURL, log)
	coordinator := service.NewPurchaseCoordinator(catalog, orders, idem, publisher, log)

	mux := http.NewServeMux()
	handler.NewOrderHandler(coordinator, log).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{Addr: cfg.Order.HTTPAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.Order.HTTPAddr).Msg("order service listening")
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

func buildStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (port.OrderRepository, port.IdempotencyStore, func()) {
	var (
		orders   port.OrderRepository
		idem     port.IdempotencyStore
		cleanups []func()
	)

	switch cfg.Order.Backend {
	case "mysql":
		db, err := sql.Open("mysql", cfg.Order.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open mysql")
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping mysql")
		}
		cleanups = append(cleanups, func() { db.Close() })
		log.Info().Msg("connected to mysql")

		store := storage.NewMySQLOrderStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure mysql schema")
		}
		orders = store
		if cfg.Order.IdempotencyBackend == "mysql" || cfg.Order.IdempotencyBackend == "" {
			idem = storage.NewMySQLIdempotency(db)
		}
	case "memory", "":
		orders = storage.NewMemoryOrderStore()
	default:
		log.Fatal().Str("backend", cfg.Order.Backend).Msg("unknown order backend")
	}

	if idem == nil {
		switch cfg.Order.IdempotencyBackend {
		case "redis":
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Order.RedisAddr})
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Fatal().Err(err).Str("addr", cfg.Order.RedisAddr).Msg("failed to connect redis")
			}
			cleanups = append(cleanups, func() { rdb.Close() })
			idem = storage.NewRedisIdempotency(rdb)
		default:
			idem = storage.NewMemoryIdempotency()
		}
	}

	return orders, idem, func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

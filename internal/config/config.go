package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is shared by all three binaries; each reads the section it needs.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Catalog CatalogConfig `yaml:"catalog"`
	Order   OrderConfig   `yaml:"order"`
	Gateway GatewayConfig `yaml:"gateway"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

type CatalogConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// Backend selects the item store: "memory" or "redis".
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	// SeedFile is a CSV of item_number,title,topic,stock,cost loaded when
	// the store is empty.
	SeedFile string `yaml:"seed_file"`
}

type OrderConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// Backend selects the order store: "memory" or "mysql".
	Backend    string `yaml:"backend"`
	MySQLDSN   string `yaml:"mysql_dsn"`
	CatalogURL string `yaml:"catalog_url"`
	// IdempotencyBackend: "memory", "mysql" or "redis".
	IdempotencyBackend string `yaml:"idempotency_backend"`
	RedisAddr          string `yaml:"redis_addr"`
}

type GatewayConfig struct {
	HTTPAddr   string `yaml:"http_addr"`
	CatalogURL string `yaml:"catalog_url"`
	OrderURL   string `yaml:"order_url"`
}

type KafkaConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Brokers             []string `yaml:"brokers"`
	OrderTopic          string   `yaml:"order_topic"`
	ReconciliationTopic string   `yaml:"reconciliation_topic"`
}

// Load reads the YAML file at path (optional) and applies environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Catalog: CatalogConfig{
			HTTPAddr:  ":7001",
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			SeedFile:  "catalog.csv",
		},
		Order: OrderConfig{
			HTTPAddr:           ":7002",
			Backend:            "memory",
			MySQLDSN:           "root:root@tcp(localhost:3306)/bazar?parseTime=true",
			CatalogURL:         "http://localhost:7001",
			IdempotencyBackend: "memory",
			RedisAddr:          "localhost:6379",
		},
		Gateway: GatewayConfig{
			HTTPAddr:   ":7000",
			CatalogURL: "http://localhost:7001",
			OrderURL:   "http://localhost:7002",
		},
		Kafka: KafkaConfig{
			Brokers:             []string{"localhost:9092"},
			OrderTopic:          "bazar.orders",
			ReconciliationTopic: "bazar.reconciliation",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.LogLevel, "LOG_LEVEL")

	setEnv(&cfg.Catalog.HTTPAddr, "CATALOG_HTTP_ADDR")
	setEnv(&cfg.Catalog.Backend, "CATALOG_BACKEND")
	setEnv(&cfg.Catalog.RedisAddr, "CATALOG_REDIS_ADDR")
	setEnv(&cfg.Catalog.SeedFile, "CATALOG_SEED_FILE")

	setEnv(&cfg.Order.HTTPAddr, "ORDER_HTTP_ADDR")
	setEnv(&cfg.Order.Backend, "ORDER_BACKEND")
	setEnv(&cfg.Order.MySQLDSN, "ORDER_MYSQL_DSN")
	setEnv(&cfg.Order.CatalogURL, "CATALOG_SERVICE_URL")
	setEnv(&cfg.Order.IdempotencyBackend, "ORDER_IDEMPOTENCY_BACKEND")
	setEnv(&cfg.Order.RedisAddr, "ORDER_REDIS_ADDR")

	setEnv(&cfg.Gateway.HTTPAddr, "GATEWAY_HTTP_ADDR")
	setEnv(&cfg.Gateway.CatalogURL, "CATALOG_SERVICE_URL")
	setEnv(&cfg.Gateway.OrderURL, "ORDER_SERVICE_URL")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
}

func setEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

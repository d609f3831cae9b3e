// Package config defines the pricewatch service configuration.
package config

import (
	"time"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/correlator"
	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/executor"
	"github.com/raulshma/tech-ticker-sub007/internal/history"
	infraconfig "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/config"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	infraredis "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/redis"
	"github.com/raulshma/tech-ticker-sub007/internal/normalizer"
	"github.com/raulshma/tech-ticker-sub007/internal/scheduler"
	"github.com/raulshma/tech-ticker-sub007/internal/throttle"
)

// Default configuration values.
const (
	defaultServiceName    = "pricewatch"
	defaultServiceVersion = "0.1.0"
	defaultServerPort     = 8095
	defaultDBHost         = "localhost"
	defaultDBPort         = 5432
	defaultDBName         = "pricewatch"
	defaultDBUser         = "postgres"
	defaultDBSSLMode      = "disable"
	defaultRedisAddress   = "localhost:6379"
	defaultMetricsPath    = "/metrics"

	defaultPrefetch        = 10
	defaultBlockTimeout    = 5 * time.Second
	defaultMaxDeliveries   = 5
	defaultClaimMinIdle    = 5 * time.Minute
	defaultReclaimInterval = 30 * time.Second
)

// Config holds the application configuration.
type Config struct {
	Service    ServiceConfig     `yaml:"service"`
	Logging    logger.Config     `yaml:"logging"`
	Database   database.Config   `yaml:"database"`
	Redis      infraredis.Config `yaml:"redis"`
	Streams    StreamsConfig     `yaml:"streams"`
	Scheduler  scheduler.Config  `yaml:"scheduler"`
	Throttle   throttle.Config   `yaml:"throttle"`
	Executor   executor.Config   `yaml:"executor"`
	Correlator correlator.Config `yaml:"correlator"`
	Normalizer normalizer.Config `yaml:"normalizer"`
	History    history.Config    `yaml:"history"`
	Server     ServerConfig      `yaml:"server"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Debug   bool   `env:"APP_DEBUG" yaml:"debug"`
}

// StreamsConfig tunes the Redis Streams consumers shared by every stage.
type StreamsConfig struct {
	Prefetch        int64         `env:"STREAMS_PREFETCH"         yaml:"prefetch"`
	BlockTimeout    time.Duration `env:"STREAMS_BLOCK_TIMEOUT"    yaml:"block_timeout"`
	MaxDeliveries   int64         `env:"STREAMS_MAX_DELIVERIES"   yaml:"max_deliveries"`
	ClaimMinIdle    time.Duration `env:"STREAMS_CLAIM_MIN_IDLE"   yaml:"claim_min_idle"`
	ReclaimInterval time.Duration `env:"STREAMS_RECLAIM_INTERVAL" yaml:"reclaim_interval"`
	MaxStreamLen    int64         `env:"STREAMS_MAX_LEN"          yaml:"max_len"`
}

// Consumer returns the consumer settings for one stage.
func (s StreamsConfig) Consumer(stream, group, consumerID string, concurrency int) bus.ConsumerConfig {
	return bus.ConsumerConfig{
		Stream:          stream,
		Group:           group,
		ConsumerID:      consumerID,
		Prefetch:        s.Prefetch,
		Concurrency:     concurrency,
		BlockTimeout:    s.BlockTimeout,
		MaxDeliveries:   s.MaxDeliveries,
		ClaimMinIdle:    s.ClaimMinIdle,
		ReclaimInterval: s.ReclaimInterval,
	}
}

// ServerConfig holds the read API settings.
type ServerConfig struct {
	Port            int           `env:"PRICEWATCH_PORT"       yaml:"port"`
	JWTSecret       string        `env:"AUTH_JWT_SECRET"       yaml:"jwt_secret"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `env:"API_SHUTDOWN_TIMEOUT"  yaml:"shutdown_timeout"`
}

// TelemetryConfig holds metrics settings.
type TelemetryConfig struct {
	MetricsPath string `env:"METRICS_PATH" yaml:"metrics_path"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	cfg.Logging.SetDefaults()
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setStreamsDefaults(&cfg.Streams)
	cfg.Scheduler.SetDefaults()
	cfg.Throttle.SetDefaults()
	cfg.Executor.SetDefaults()
	cfg.Correlator.DefaultFrequency = cfg.Scheduler.DefaultFrequency
	cfg.Correlator.SetDefaults()
	cfg.Normalizer.SetDefaults()
	cfg.History.SetDefaults()
	setServerDefaults(&cfg.Server)
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = defaultMetricsPath
	}
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultServiceVersion
	}
}

func setDatabaseDefaults(db *database.Config) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.DBName == "" {
		db.DBName = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRedisDefaults(r *infraredis.Config) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
}

func setStreamsDefaults(s *StreamsConfig) {
	if s.Prefetch <= 0 {
		s.Prefetch = defaultPrefetch
	}
	if s.BlockTimeout <= 0 {
		s.BlockTimeout = defaultBlockTimeout
	}
	if s.MaxDeliveries <= 0 {
		s.MaxDeliveries = defaultMaxDeliveries
	}
	if s.ClaimMinIdle <= 0 {
		s.ClaimMinIdle = defaultClaimMinIdle
	}
	if s.ReclaimInterval <= 0 {
		s.ReclaimInterval = defaultReclaimInterval
	}
	if s.MaxStreamLen <= 0 {
		s.MaxStreamLen = bus.DefaultMaxStreamLen
	}
}

func setServerDefaults(s *ServerConfig) {
	if s.Port == 0 {
		s.Port = defaultServerPort
	}
}

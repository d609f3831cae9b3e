package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/config"
	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	infraredis "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/redis"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

// Deps holds the configuration and logger shared by every role.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewDeps loads and validates the configuration and creates the logger.
func NewDeps(configPath string) (*Deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Service.Debug {
		cfg.Logging.Development = true
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(
		logger.String("service", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
	)

	return &Deps{Config: cfg, Logger: log}, nil
}

// Infra holds the connections shared by the roles of one process.
type Infra struct {
	DB        *sqlx.DB
	Redis     *redis.Client
	Publisher *bus.Publisher
	Metrics   *observability.Metrics
}

// SetupInfra connects to Redis and, when a role needs it, PostgreSQL.
func SetupInfra(ctx context.Context, deps *Deps, roles []Role) (*Infra, error) {
	cfg := deps.Config
	infra := &Infra{Metrics: observability.NewMetrics(nil)}

	client, err := infraredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	infra.Redis = client
	infra.Publisher = bus.NewPublisher(client, bus.PublisherConfig{MaxStreamLen: cfg.Streams.MaxStreamLen}, infra.Metrics)
	deps.Logger.Info("Connected to Redis", logger.String("address", cfg.Redis.Address))

	if needsDatabase(roles) {
		db, dbErr := database.NewPostgresConnection(ctx, cfg.Database)
		if dbErr != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to database: %w", dbErr)
		}
		infra.DB = db
		deps.Logger.Info("Connected to PostgreSQL",
			logger.String("host", cfg.Database.Host),
			logger.String("database", cfg.Database.DBName),
		)
	}

	return infra, nil
}

// Close releases the connections.
func (i *Infra) Close(log logger.Logger) {
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			log.Error("Failed to close database", logger.Error(err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			log.Error("Failed to close redis", logger.Error(err))
		}
	}
}

// consumerID names this process within a consumer group.
func consumerID(role Role) string {
	return fmt.Sprintf("%s-%s", role, uuid.NewString()[:8])
}

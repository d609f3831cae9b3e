package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raulshma/tech-ticker-sub007/internal/api"
	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/correlator"
	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/executor"
	"github.com/raulshma/tech-ticker-sub007/internal/history"
	infragin "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/gin"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/normalizer"
	"github.com/raulshma/tech-ticker-sub007/internal/scheduler"
	"github.com/raulshma/tech-ticker-sub007/internal/throttle"
)

func buildRole(ctx context.Context, role Role, deps *Deps, infra *Infra) (Runner, error) {
	switch role {
	case RoleScheduler:
		return buildScheduler(deps, infra), nil
	case RoleExecutor:
		return buildExecutor(ctx, deps, infra)
	case RoleCorrelator:
		return buildCorrelator(ctx, deps, infra)
	case RoleNormalizer:
		return buildNormalizer(ctx, deps, infra)
	case RoleRecorder:
		return buildRecorder(ctx, deps, infra)
	case RoleAPI:
		return buildAPI(deps, infra), nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

func newThrottleRegistry(deps *Deps, infra *Infra) *throttle.Registry {
	return throttle.NewRegistry(
		database.NewDomainProfileRepository(infra.DB),
		deps.Config.Throttle,
		deps.Logger,
		throttle.WithMetrics(infra.Metrics),
	)
}

func buildScheduler(deps *Deps, infra *Infra) Runner {
	s := scheduler.New(
		database.NewMappingRepository(infra.DB),
		newThrottleRegistry(deps, infra),
		infra.Publisher,
		deps.Config.Scheduler,
		deps.Logger,
		scheduler.WithMetrics(infra.Metrics),
	)
	return s.Run
}

// consume creates the group and returns a runner consuming stream with handler.
func consume(
	ctx context.Context,
	role Role,
	deps *Deps,
	infra *Infra,
	stream, group string,
	workers int,
	handler bus.Handler,
) (Runner, error) {
	if err := bus.EnsureGroup(ctx, infra.Redis, stream, group); err != nil {
		return nil, err
	}

	cfg := deps.Config.Streams.Consumer(stream, group, consumerID(role), workers)
	consumer, err := bus.NewConsumer(infra.Redis, cfg, handler, deps.Logger, infra.Metrics)
	if err != nil {
		return nil, err
	}
	return consumer.Run, nil
}

func buildExecutor(ctx context.Context, deps *Deps, infra *Infra) (Runner, error) {
	cfg := deps.Config.Executor
	exec := executor.New(cfg, infra.Publisher, deps.Logger,
		executor.WithMetrics(infra.Metrics),
		executor.WithDeduper(executor.NewRedisDeduper(infra.Redis, cfg.DedupeTTL)),
	)
	return consume(ctx, RoleExecutor, deps, infra, bus.StreamCommands, bus.GroupExecutor, cfg.Workers, exec.HandleMessage)
}

func buildCorrelator(ctx context.Context, deps *Deps, infra *Infra) (Runner, error) {
	c := correlator.New(
		database.NewMappingRepository(infra.DB),
		newThrottleRegistry(deps, infra),
		deps.Config.Correlator,
		deps.Logger,
		correlator.WithMetrics(infra.Metrics),
	)
	return consume(ctx, RoleCorrelator, deps, infra, bus.StreamOutcomes, bus.GroupCorrelator, 0, c.HandleMessage)
}

func buildNormalizer(ctx context.Context, deps *Deps, infra *Infra) (Runner, error) {
	cfg := deps.Config.Normalizer
	n := normalizer.New(cfg, infra.Publisher, deps.Logger, normalizer.WithMetrics(infra.Metrics))
	return consume(ctx, RoleNormalizer, deps, infra, bus.StreamRaw, bus.GroupNormalizer, cfg.Workers, n.HandleMessage)
}

func buildRecorder(ctx context.Context, deps *Deps, infra *Infra) (Runner, error) {
	cfg := deps.Config.History
	opts := []history.Option{history.WithMetrics(infra.Metrics)}

	if cfg.Search.Enabled {
		client, err := history.NewSearchClient(ctx, cfg.Search, deps.Logger)
		if err != nil {
			return nil, err
		}
		projection := history.NewSearchProjection(client, cfg.Search, deps.Logger)
		if err = projection.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, history.WithProjection(projection))
	}

	rec := history.NewRecorder(database.NewPriceHistoryRepository(infra.DB), deps.Logger, opts...)
	return consume(ctx, RoleRecorder, deps, infra, bus.StreamNormalized, bus.GroupRecorder, cfg.Workers, rec.HandleMessage)
}

func buildAPI(deps *Deps, infra *Infra) Runner {
	cfg := deps.Config
	recorder := history.NewRecorder(database.NewPriceHistoryRepository(infra.DB), deps.Logger)
	handler := api.NewHandler(recorder, database.NewMappingRepository(infra.DB), cfg.Scheduler.StalenessThreshold, deps.Logger)

	server := infragin.NewServerBuilder(cfg.Service.Name, cfg.Server.Port).
		WithConfig(infragin.Config{
			ServiceName:     cfg.Service.Name,
			ServiceVersion:  cfg.Service.Version,
			Port:            cfg.Server.Port,
			Debug:           cfg.Service.Debug,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}).
		WithLogger(deps.Logger).
		WithHealthCheck("database", infragin.PingChecker(infra.DB.PingContext)).
		WithHealthCheck("redis", infragin.PingChecker(func(ctx context.Context) error {
			return infra.Redis.Ping(ctx).Err()
		})).
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, handler, prometheus.DefaultGatherer, cfg.Telemetry.MetricsPath, cfg.Server.JWTSecret)
		}).
		Build()

	if cfg.Server.JWTSecret == "" {
		deps.Logger.Warn("API running without JWT verification")
	}
	deps.Logger.Info("API configured", logger.Int("port", cfg.Server.Port))
	return server.Run
}

// Package bootstrap handles initialization and lifecycle of the pipeline
// roles.
//
// The bootstrap process follows these phases:
//   - Phase 1: Config & Logger - Load and validate configuration, create logger
//   - Phase 2: Infrastructure - Connect to PostgreSQL and Redis as the roles require
//   - Phase 3: Components - Build one runner per requested role
//   - Phase 4: Run - Run every role until a signal arrives or one of them fails
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
)

// Runner runs one role until ctx is cancelled.
type Runner func(ctx context.Context) error

// Start runs roles until SIGINT or SIGTERM. With more than one role the
// process hosts the whole pipeline; a failing role stops the others.
func Start(configPath string, roles ...Role) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, configPath, roles...)
}

// Run is Start with a caller-supplied context.
func Run(ctx context.Context, configPath string, roles ...Role) error {
	if len(roles) == 0 {
		return ErrNoRoles
	}

	// Phase 1: Config and logger
	deps, err := NewDeps(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Logger.Sync() }()

	// Phase 2: Infrastructure
	infra, err := SetupInfra(ctx, deps, roles)
	if err != nil {
		return fmt.Errorf("setup infrastructure: %w", err)
	}
	defer infra.Close(deps.Logger)

	// Phase 3: Components
	runners := make(map[Role]Runner, len(roles))
	for _, role := range roles {
		runner, buildErr := buildRole(ctx, role, deps, infra)
		if buildErr != nil {
			return fmt.Errorf("build %s: %w", role, buildErr)
		}
		runners[role] = runner
	}

	// Phase 4: Run
	return runAll(ctx, deps.Logger, runners)
}

func runAll(ctx context.Context, log logger.Logger, runners map[Role]Runner) error {
	g, gctx := errgroup.WithContext(ctx)
	for role, run := range runners {
		g.Go(func() error {
			log.Info("Starting role", logger.String("role", string(role)))
			if err := run(gctx); err != nil {
				log.Error("Role stopped with error", logger.String("role", string(role)), logger.Error(err))
				return fmt.Errorf("%s: %w", role, err)
			}
			log.Info("Role stopped", logger.String("role", string(role)))
			return nil
		})
	}
	return g.Wait()
}

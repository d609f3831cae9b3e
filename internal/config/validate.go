package config

import (
	"fmt"
	"time"

	infraconfig "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/config"
	"github.com/robfig/cron/v3"
)

// Validate returns the first invalid setting.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateService,
		c.validateScheduler,
		c.validateThrottle,
		c.validateExecutor,
		c.validateCorrelator,
		c.validateNormalizer,
		c.validateDelivery,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateService() error {
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("database.host", c.Database.Host); err != nil {
		return err
	}
	if err := infraconfig.ValidatePort("database.port", c.Database.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
		return err
	}
	return infraconfig.ValidatePort("server.port", c.Server.Port)
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if err := infraconfig.ValidateDuration("scheduler.tick_interval", s.TickInterval); err != nil {
		return err
	}
	if err := infraconfig.ValidatePositive("scheduler.batch_size", s.BatchSize); err != nil {
		return err
	}
	if err := infraconfig.ValidateDuration("scheduler.default_frequency", s.DefaultFrequency); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(s.MaintenanceSchedule); err != nil {
		return &infraconfig.ValidationError{
			Field:   "scheduler.maintenance_schedule",
			Message: fmt.Sprintf("invalid schedule: %v", err),
		}
	}
	return nil
}

func (c *Config) validateThrottle() error {
	t := c.Throttle
	if err := infraconfig.ValidateDurationRange("throttle.default_min_delay", t.DefaultMinDelay, t.DefaultMaxDelay); err != nil {
		return err
	}
	if t.BlockedMultiplier < 1 {
		return &infraconfig.ValidationError{Field: "throttle.blocked_multiplier", Message: "must be at least 1"}
	}
	for i, id := range t.DefaultIdentities {
		if id.UserAgent == "" {
			return &infraconfig.ValidationError{
				Field:   fmt.Sprintf("throttle.default_identities[%d].user_agent", i),
				Message: "is required",
			}
		}
	}
	return nil
}

func (c *Config) validateExecutor() error {
	e := c.Executor
	if err := infraconfig.ValidatePositive("executor.workers", e.Workers); err != nil {
		return err
	}
	if err := infraconfig.ValidateDuration("executor.command_timeout", e.CommandTimeout); err != nil {
		return err
	}
	if e.RequestTimeout > e.CommandTimeout {
		return &infraconfig.ValidationError{
			Field:   "executor.request_timeout",
			Message: "must not exceed executor.command_timeout",
		}
	}
	if err := infraconfig.ValidatePositive("executor.retry.max_attempts", e.Retry.MaxAttempts); err != nil {
		return err
	}
	if err := infraconfig.ValidateDurationRange("executor.retry.initial_delay", e.Retry.InitialDelay, e.Retry.MaxDelay); err != nil {
		return err
	}
	for _, status := range e.Retry.RetryableStatuses {
		if status < 400 || status > 599 {
			return &infraconfig.ValidationError{
				Field:   "executor.retry.retryable_statuses",
				Message: fmt.Sprintf("%d is not an HTTP error status", status),
			}
		}
	}
	if err := infraconfig.ValidatePositive("executor.breaker.failure_threshold", e.Breaker.FailureThreshold); err != nil {
		return err
	}
	if err := infraconfig.ValidateRatio("executor.breaker.failure_ratio", e.Breaker.FailureRatio); err != nil {
		return err
	}
	if err := infraconfig.ValidateDuration("executor.breaker.sampling_window", e.Breaker.SamplingWindow); err != nil {
		return err
	}
	return infraconfig.ValidateDuration("executor.breaker.cool_down", e.Breaker.CoolDown)
}

func (c *Config) validateCorrelator() error {
	if c.Correlator.BackoffFactor < 1 {
		return &infraconfig.ValidationError{Field: "correlator.backoff_factor", Message: "must be at least 1"}
	}
	return infraconfig.ValidateDuration("correlator.max_backoff", c.Correlator.MaxBackoff)
}

func (c *Config) validateNormalizer() error {
	n := c.Normalizer
	if n.MinPrice <= 0 || n.MaxPrice < n.MinPrice {
		return &infraconfig.ValidationError{
			Field:   "normalizer.min_price",
			Message: fmt.Sprintf("invalid price bounds [%.2f, %.2f]", n.MinPrice, n.MaxPrice),
		}
	}
	return nil
}

// executorBatchWindow is the longest an executor may hold a read command
// before finishing it: Prefetch entries are read at once and run Workers at
// a time, each bounded by CommandTimeout.
func (c *Config) executorBatchWindow() time.Duration {
	workers := int64(max(c.Executor.Workers, 1))
	rounds := (max(c.Streams.Prefetch, 1) + workers - 1) / workers
	return time.Duration(rounds) * c.Executor.CommandTimeout
}

// validateDelivery keeps a running command from being reclaimed by another
// executor or released by the scheduler maintenance job.
func (c *Config) validateDelivery() error {
	window := c.executorBatchWindow()
	if c.Streams.ClaimMinIdle <= window {
		return &infraconfig.ValidationError{
			Field:   "streams.claim_min_idle",
			Message: fmt.Sprintf("must exceed the executor batch window of %s", window),
		}
	}
	if lease := c.Streams.ClaimMinIdle + window; c.Scheduler.InFlightLease <= lease {
		return &infraconfig.ValidationError{
			Field:   "scheduler.in_flight_lease",
			Message: fmt.Sprintf("must exceed streams.claim_min_idle plus the executor batch window (%s)", lease),
		}
	}
	return nil
}

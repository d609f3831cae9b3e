package scheduler

import "time"

// Default values.
const (
	DefaultTickInterval        = 5 * time.Second
	DefaultBatchSize           = 100
	DefaultPerDomainLimit      = 5
	DefaultFrequency           = 6 * time.Hour
	DefaultInFlightLease       = 15 * time.Minute
	DefaultStalenessThreshold  = 48 * time.Hour
	DefaultMaintenanceSchedule = "@every 1m"
)

// Config holds scheduler settings.
type Config struct {
	TickInterval        time.Duration `yaml:"tick_interval"        env:"SCHEDULER_TICK_INTERVAL"`
	BatchSize           int           `yaml:"batch_size"           env:"SCHEDULER_BATCH_SIZE"`
	PerDomainLimit      int           `yaml:"per_domain_limit"     env:"SCHEDULER_PER_DOMAIN_LIMIT"`
	DefaultFrequency    time.Duration `yaml:"default_frequency"    env:"SCHEDULER_DEFAULT_FREQUENCY"`
	InFlightLease       time.Duration `yaml:"in_flight_lease"      env:"SCHEDULER_IN_FLIGHT_LEASE"`
	StalenessThreshold  time.Duration `yaml:"staleness_threshold"  env:"SCHEDULER_STALENESS_THRESHOLD"`
	MaintenanceSchedule string        `yaml:"maintenance_schedule" env:"SCHEDULER_MAINTENANCE_SCHEDULE"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PerDomainLimit <= 0 {
		c.PerDomainLimit = DefaultPerDomainLimit
	}
	if c.DefaultFrequency <= 0 {
		c.DefaultFrequency = DefaultFrequency
	}
	if c.InFlightLease <= 0 {
		c.InFlightLease = DefaultInFlightLease
	}
	if c.StalenessThreshold <= 0 {
		c.StalenessThreshold = DefaultStalenessThreshold
	}
	if c.MaintenanceSchedule == "" {
		c.MaintenanceSchedule = DefaultMaintenanceSchedule
	}
}

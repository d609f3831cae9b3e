package executor

import (
	"time"

	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/circuitbreaker"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/retry"
)

// Default values.
const (
	DefaultWorkers        = 8
	DefaultCommandTimeout = 60 * time.Second
	DefaultRequestTimeout = 20 * time.Second
	DefaultMaxBodyBytes   = 10 * 1024 * 1024 // 10 MB
	DefaultDedupeTTL      = 24 * time.Hour
	DefaultRequestsPerSec = 5.0
	DefaultBurst          = 5
)

// DefaultRetryableStatuses are retried as transient failures.
var DefaultRetryableStatuses = []int{408, 500, 502, 503, 504}

// DefaultCaptchaMarkers identify challenge pages in response bodies.
var DefaultCaptchaMarkers = []string{
	"g-recaptcha",
	"h-captcha",
	"cf-challenge",
	"captcha-delivery",
	"are you a robot",
	"verify you are human",
	"unusual traffic",
}

// Config holds executor settings.
type Config struct {
	Workers        int           `yaml:"workers"         env:"EXECUTOR_WORKERS"`
	CommandTimeout time.Duration `yaml:"command_timeout" env:"EXECUTOR_COMMAND_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"EXECUTOR_REQUEST_TIMEOUT"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"  env:"EXECUTOR_MAX_BODY_BYTES"`
	DedupeTTL      time.Duration `yaml:"dedupe_ttl"      env:"EXECUTOR_DEDUPE_TTL"`
	CaptchaMarkers []string      `yaml:"captcha_markers" env:"EXECUTOR_CAPTCHA_MARKERS"`

	Retry     RetryConfig     `yaml:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RetryConfig holds the backoff policy for transient failures.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"       env:"EXECUTOR_RETRY_MAX_ATTEMPTS"`
	InitialDelay      time.Duration `yaml:"initial_delay"      env:"EXECUTOR_RETRY_INITIAL_DELAY"`
	MaxDelay          time.Duration `yaml:"max_delay"          env:"EXECUTOR_RETRY_MAX_DELAY"`
	Multiplier        float64       `yaml:"multiplier"         env:"EXECUTOR_RETRY_MULTIPLIER"`
	Jitter            *bool         `yaml:"jitter"`
	RetryableStatuses []int         `yaml:"retryable_statuses" env:"EXECUTOR_RETRY_RETRYABLE_STATUSES"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold"  env:"EXECUTOR_BREAKER_FAILURE_THRESHOLD"`
	FailureRatio      float64       `yaml:"failure_ratio"      env:"EXECUTOR_BREAKER_FAILURE_RATIO"`
	MinimumThroughput int           `yaml:"minimum_throughput" env:"EXECUTOR_BREAKER_MINIMUM_THROUGHPUT"`
	SamplingWindow    time.Duration `yaml:"sampling_window"    env:"EXECUTOR_BREAKER_SAMPLING_WINDOW"`
	CoolDown          time.Duration `yaml:"cool_down"          env:"EXECUTOR_BREAKER_COOL_DOWN"`
}

// RateLimitConfig caps outbound requests per process.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"EXECUTOR_RATE_LIMIT_RPS"`
	Burst             int     `yaml:"burst"               env:"EXECUTOR_RATE_LIMIT_BURST"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = DefaultDedupeTTL
	}
	if len(c.CaptchaMarkers) == 0 {
		c.CaptchaMarkers = DefaultCaptchaMarkers
	}
	c.Retry.setDefaults()
	c.Breaker.setDefaults()
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = DefaultRequestsPerSec
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultBurst
	}
}

func (c *RetryConfig) setDefaults() {
	d := retry.DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.Jitter == nil {
		jitter := d.Jitter
		c.Jitter = &jitter
	}
	if len(c.RetryableStatuses) == 0 {
		c.RetryableStatuses = DefaultRetryableStatuses
	}
}

func (c *BreakerConfig) setDefaults() {
	d := circuitbreaker.DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = d.FailureRatio
	}
	if c.MinimumThroughput <= 0 {
		c.MinimumThroughput = d.MinimumThroughput
	}
	if c.SamplingWindow <= 0 {
		c.SamplingWindow = d.SamplingWindow
	}
	if c.CoolDown <= 0 {
		c.CoolDown = d.CoolDown
	}
}

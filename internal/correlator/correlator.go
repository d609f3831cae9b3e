// Package correlator applies scrape outcomes to the schedule: it clears the
// in-flight flag, picks the next scrape time, and feeds abuse signals back
// to the throttle registry.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

// ErrNotInFlight means the outcome does not match the mapping's current
// command: it was already applied, or its lease was released.
var ErrNotInFlight = errors.New("mapping not in flight for command")

// Default values.
const (
	DefaultBackoffFactor = 2.0
	DefaultMaxBackoff    = 24 * time.Hour
)

// Config holds correlator settings.
type Config struct {
	BackoffFactor float64       `yaml:"backoff_factor" env:"CORRELATOR_BACKOFF_FACTOR"`
	MaxBackoff    time.Duration `yaml:"max_backoff"    env:"CORRELATOR_MAX_BACKOFF"`
	// DefaultFrequency applies when neither the mapping nor its site
	// config sets one.
	DefaultFrequency time.Duration `yaml:"-"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.BackoffFactor < 1 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.DefaultFrequency <= 0 {
		c.DefaultFrequency = 6 * time.Hour
	}
}

// MappingStore reads and completes mappings.
type MappingStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Mapping, error)
	Complete(ctx context.Context, c database.Completion) (bool, error)
}

// ThrottleFeedback receives per-domain outcome signals.
type ThrottleFeedback interface {
	AdjustOnFailure(ctx context.Context, domainKey string, kind domain.FailureKind) (time.Duration, error)
	RecordSuccess(ctx context.Context, domainKey string) error
}

// Decision is the schedule change applied for one outcome.
type Decision struct {
	MappingID           int64
	NextScrapeAt        time.Time
	Delay               time.Duration
	ConsecutiveFailures int
	Penalty             time.Duration
}

// Correlator applies outcome events.
type Correlator struct {
	store    MappingStore
	throttle ThrottleFeedback
	cfg      Config
	log      logger.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	now      func() time.Time
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Correlator) { c.metrics = m }
}

// New creates a new correlator.
func New(store MappingStore, feedback ThrottleFeedback, cfg Config, log logger.Logger, opts ...Option) *Correlator {
	cfg.SetDefaults()
	c := &Correlator{
		store:    store,
		throttle: feedback,
		cfg:      cfg,
		log:      log.With(logger.Component("correlator")),
		tracer:   observability.NewTracer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply moves the mapping for ev back to idle and reschedules it. The next
// scrape time derives only from the current time and stored state, so a
// duplicate outcome is rejected with ErrNotInFlight and changes nothing.
func (c *Correlator) Apply(ctx context.Context, ev domain.OutcomeEvent) (*Decision, error) {
	ctx, span := c.tracer.CorrelateSpan(ctx, ev.CommandID, ev.MappingID)
	defer span.End()

	m, err := c.store.GetByID(ctx, ev.MappingID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if !m.InFlight || m.CurrentCommandID == nil || *m.CurrentCommandID != ev.CommandID {
		c.observe("duplicate", ev)
		return nil, ErrNotInFlight
	}

	now := c.now().UTC()
	freq := m.EffectiveFrequency(c.cfg.DefaultFrequency)
	decision := &Decision{MappingID: m.ID}

	completion := database.Completion{
		MappingID: m.ID,
		CommandID: ev.CommandID,
		Succeeded: ev.WasSuccessful,
		AttemptAt: now,
	}
	if ev.WasSuccessful {
		decision.Delay = freq
	} else {
		decision.ConsecutiveFailures = m.ConsecutiveFailures + 1
		decision.Delay = Backoff(freq, c.cfg.BackoffFactor, decision.ConsecutiveFailures, c.cfg.MaxBackoff)
		code := ev.ErrorCode
		if code == "" {
			code = string(failureKind(ev))
		}
		completion.ErrorCode = &code
	}
	decision.NextScrapeAt = now.Add(decision.Delay)
	completion.NextScrapeAt = decision.NextScrapeAt
	completion.ConsecutiveFailures = decision.ConsecutiveFailures

	applied, err := c.store.Complete(ctx, completion)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if !applied {
		c.observe("duplicate", ev)
		return nil, ErrNotInFlight
	}

	decision.Penalty = c.feedback(ctx, m, ev)
	c.observe("applied", ev)
	if c.metrics != nil {
		c.metrics.CorrelatorBackoff.Observe(decision.Delay.Seconds())
	}
	return decision, nil
}

// feedback reports the outcome to the throttle registry. Failures are
// logged only: the schedule change is already committed.
func (c *Correlator) feedback(ctx context.Context, m *domain.Mapping, ev domain.OutcomeEvent) time.Duration {
	if c.throttle == nil {
		return 0
	}
	domainKey, err := m.Domain()
	if err != nil {
		return 0
	}

	log := c.log.With(logger.MappingID(m.ID), logger.CommandID(ev.CommandID), logger.Domain(domainKey))
	if ev.WasSuccessful {
		if err = c.throttle.RecordSuccess(ctx, domainKey); err != nil {
			log.Warn("Record success on domain failed", logger.Error(err))
		}
		return 0
	}

	kind := failureKind(ev)
	if !kind.EscalatesThrottle() {
		return 0
	}
	penalty, err := c.throttle.AdjustOnFailure(ctx, domainKey, kind)
	if err != nil {
		log.Error("Domain penalty failed", logger.Error(err))
		return 0
	}
	return penalty
}

func (c *Correlator) observe(result string, ev domain.OutcomeEvent) {
	if c.metrics != nil {
		c.metrics.CorrelatorOutcomes.WithLabelValues(result, string(failureKind(ev))).Inc()
	}
}

func failureKind(ev domain.OutcomeEvent) domain.FailureKind {
	if ev.WasSuccessful {
		return domain.FailureNone
	}
	if ev.FailureKind == domain.FailureNone || !ev.FailureKind.Valid() {
		return domain.FailureTransient
	}
	return ev.FailureKind
}

// Backoff returns freq * factor^failures, capped at maxBackoff.
func Backoff(freq time.Duration, factor float64, failures int, maxBackoff time.Duration) time.Duration {
	d := float64(freq) * math.Pow(factor, float64(failures))
	if d > float64(maxBackoff) || math.IsInf(d, 0) {
		return maxBackoff
	}
	return time.Duration(d)
}

// HandleMessage is the bus handler for the outcome stream.
func (c *Correlator) HandleMessage(ctx context.Context, msg bus.Message) error {
	ev, err := bus.Decode[domain.OutcomeEvent](msg)
	if err != nil {
		return err
	}
	if ev.CommandID == "" || ev.MappingID <= 0 {
		return bus.Permanent(fmt.Errorf("%w: outcome without command or mapping id", bus.ErrMalformed))
	}

	log := c.log.With(logger.MappingID(ev.MappingID), logger.CommandID(ev.CommandID))

	decision, err := c.Apply(ctx, ev)
	switch {
	case errors.Is(err, ErrNotInFlight):
		log.Debug("Ignoring duplicate or stale outcome")
		return nil
	case errors.Is(err, database.ErrMappingNotFound):
		log.Warn("Outcome for unknown mapping")
		return nil
	case err != nil:
		return fmt.Errorf("apply outcome: %w", err)
	}

	fields := []logger.Field{
		logger.Bool("success", ev.WasSuccessful),
		logger.Time("next_scrape_at", decision.NextScrapeAt),
		logger.Int("consecutive_failures", decision.ConsecutiveFailures),
	}
	if ev.WasSuccessful {
		log.Debug("Outcome applied", fields...)
		return nil
	}
	fields = append(fields,
		logger.String("failure_kind", string(failureKind(ev))),
		logger.String("error_code", ev.ErrorCode),
		logger.Duration("domain_penalty", decision.Penalty),
	)
	log.Info("Failed outcome applied", fields...)
	return nil
}

// Package scheduler finds due product mappings and dispatches scrape
// commands for them, respecting per-domain politeness.
package scheduler

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . MappingStore,SlotReserver,CommandPublisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
	"github.com/raulshma/tech-ticker-sub007/internal/throttle"
)

// MappingStore is the scheduler's view of mapping persistence.
type MappingStore interface {
	ListDue(ctx context.Context, now time.Time, limit, perDomain int) ([]domain.Mapping, error)
	Dispatch(ctx context.Context, mappingID int64, commandID string, at time.Time, publish func(ctx context.Context) error) error
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
	ScheduleHealth(ctx context.Context, now, staleBefore time.Time) (*database.ScheduleHealth, error)
}

// SlotReserver grants per-domain request slots.
type SlotReserver interface {
	ReserveSlot(ctx context.Context, domainKey string) (*throttle.Reservation, error)
}

// CommandPublisher publishes messages to a stream.
type CommandPublisher interface {
	Publish(ctx context.Context, stream, msgType string, v any) (string, error)
}

// TickResult summarizes one tick.
type TickResult struct {
	Candidates int
	Dispatched int
	Throttled  int
	Contended  int
	Invalid    int
	Failed     int
}

// Scheduler dispatches scrape commands for due mappings. Several schedulers
// may share one store; the dispatch compare-and-swap keeps at most one
// command in flight per mapping.
type Scheduler struct {
	store     MappingStore
	throttle  SlotReserver
	publisher CommandPublisher
	cfg       Config
	log       logger.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithCommandIDs overrides command ID generation.
func WithCommandIDs(newID func() string) Option {
	return func(s *Scheduler) { s.newID = newID }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTracer overrides the tick tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// New creates a new scheduler.
func New(
	store MappingStore,
	reserver SlotReserver,
	publisher CommandPublisher,
	cfg Config,
	log logger.Logger,
	opts ...Option,
) *Scheduler {
	cfg.SetDefaults()
	s := &Scheduler{
		store:     store,
		throttle:  reserver,
		publisher: publisher,
		cfg:       cfg,
		log:       log.With(logger.Component("scheduler")),
		tracer:    observability.NewTracer(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick dispatches commands for up to BatchSize due mappings, oldest first,
// taking at most PerDomainLimit of them from any one domain. Mappings whose
// domain is cooling down are left untouched for a later tick; once a domain
// answers not eligible, its remaining candidates skip the reservation.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var result TickResult
	start := s.now()

	ctx, span := s.tracer.TickSpan(ctx, s.cfg.BatchSize)
	defer span.End()

	due, err := s.store.ListDue(ctx, start, s.cfg.BatchSize, s.cfg.PerDomainLimit)
	if err != nil {
		observability.RecordError(span, err)
		return result, fmt.Errorf("list due mappings: %w", err)
	}
	result.Candidates = len(due)

	cooling := make(map[string]struct{})
	for i := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.dispatchOne(ctx, &due[i], cooling, &result)
	}

	if s.metrics != nil {
		s.metrics.SchedulerTicks.Inc()
		s.metrics.SchedulerTickDuration.Observe(s.now().Sub(start).Seconds())
		s.metrics.SchedulerDispatched.Add(float64(result.Dispatched))
		s.metrics.SchedulerSkipped.WithLabelValues("throttled").Add(float64(result.Throttled))
		s.metrics.SchedulerSkipped.WithLabelValues("contended").Add(float64(result.Contended))
		s.metrics.SchedulerSkipped.WithLabelValues("invalid").Add(float64(result.Invalid))
		s.metrics.SchedulerSkipped.WithLabelValues("failed").Add(float64(result.Failed))
	}

	if result.Candidates > 0 {
		s.log.Debug("Tick complete",
			logger.Int("candidates", result.Candidates),
			logger.Int("dispatched", result.Dispatched),
			logger.Int("throttled", result.Throttled),
			logger.Int("contended", result.Contended),
			logger.Int("invalid", result.Invalid),
			logger.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func (s *Scheduler) dispatchOne(ctx context.Context, m *domain.Mapping, cooling map[string]struct{}, result *TickResult) {
	log := s.log.With(logger.MappingID(m.ID))

	domainKey, err := m.Domain()
	if err != nil {
		result.Invalid++
		log.Warn("Mapping has an unusable URL", logger.String("url", m.URL), logger.Error(err))
		return
	}
	if _, ok := cooling[domainKey]; ok {
		result.Throttled++
		return
	}

	reservation, err := s.throttle.ReserveSlot(ctx, domainKey)
	if err != nil {
		if errors.Is(err, throttle.ErrDomainNotEligible) {
			cooling[domainKey] = struct{}{}
			result.Throttled++
			return
		}
		result.Failed++
		log.Error("Reserve slot failed", logger.Domain(domainKey), logger.Error(err))
		return
	}

	cmd := domain.ScrapeCommand{
		CommandID:          s.newID(),
		MappingID:          m.ID,
		CanonicalProductID: m.CanonicalProductID,
		SellerName:         m.SellerName,
		URL:                m.URL,
		Selectors:          m.Selectors,
		Profile:            reservation.Identity,
		ScheduledAt:        reservation.ReservedAt,
	}

	err = s.store.Dispatch(ctx, m.ID, cmd.CommandID, reservation.ReservedAt, func(ctx context.Context) error {
		_, pubErr := s.publisher.Publish(ctx, bus.StreamCommands, bus.TypeScrapeCommand, cmd)
		return pubErr
	})
	switch {
	case err == nil:
		result.Dispatched++
		log.Debug("Command dispatched", logger.CommandID(cmd.CommandID), logger.Domain(domainKey))
	case errors.Is(err, database.ErrAlreadyInFlight):
		result.Contended++
	default:
		result.Failed++
		log.Error("Dispatch failed", logger.CommandID(cmd.CommandID), logger.Error(err))
	}
}

// Run ticks immediately and then every TickInterval until ctx is
// cancelled. The maintenance job runs alongside on its cron schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.MaintenanceSchedule, func() { s.runMaintenance(ctx) }); err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", s.cfg.MaintenanceSchedule, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	s.log.Info("Scheduler started",
		logger.Duration("tick_interval", s.cfg.TickInterval),
		logger.Int("batch_size", s.cfg.BatchSize),
		logger.String("maintenance_schedule", s.cfg.MaintenanceSchedule),
	)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Tick failed", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runMaintenance(ctx context.Context) {
	if _, err := s.Maintain(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("Maintenance failed", logger.Error(err))
	}
}

// Maintain releases mappings whose in-flight lease expired and refreshes
// the schedule gauges.
func (s *Scheduler) Maintain(ctx context.Context) (*database.ScheduleHealth, error) {
	now := s.now()

	released, err := s.store.ReleaseStale(ctx, now.Add(-s.cfg.InFlightLease))
	if err != nil {
		return nil, err
	}
	if released > 0 {
		s.log.Warn("Released mappings with expired in-flight lease", logger.Int64("count", released))
		if s.metrics != nil {
			s.metrics.SchedulerReleased.Add(float64(released))
		}
	}

	health, err := s.store.ScheduleHealth(ctx, now, now.Add(-s.cfg.StalenessThreshold))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.MappingsStale.Set(float64(health.Stale))
		s.metrics.MappingsInFlight.Set(float64(health.InFlight))
		s.metrics.MappingsDue.Set(float64(health.Due))
	}
	if health.Stale > 0 {
		s.log.Warn("Stale mappings detected",
			logger.Int64("stale", health.Stale),
			logger.Duration("threshold", s.cfg.StalenessThreshold),
		)
	}
	return health, nil
}

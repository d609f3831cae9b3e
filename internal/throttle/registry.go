// Package throttle owns per-domain politeness state: identity rotation, the
// randomized delay window, and penalties for rate limiting and blocking.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

// ErrDomainNotEligible is matched by NotEligibleError.
var ErrDomainNotEligible = errors.New("domain not eligible")

// errUnchanged aborts an Update without writing.
var errUnchanged = errors.New("profile unchanged")

// NotEligibleError reports that a domain's next allowed request time has
// not been reached.
type NotEligibleError struct {
	Domain        string
	NextAllowedAt time.Time
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("domain %s not eligible until %s", e.Domain, e.NextAllowedAt.Format(time.RFC3339Nano))
}

// Is matches ErrDomainNotEligible.
func (e *NotEligibleError) Is(target error) bool {
	return target == ErrDomainNotEligible
}

// ProfileStore serializes read-modify-write access to one domain profile.
// Update creates the profile from defaults when missing.
type ProfileStore interface {
	Update(ctx context.Context, defaults domain.DomainProfile, mutate func(p *domain.DomainProfile) error) (*domain.DomainProfile, error)
}

// Reservation is a granted request slot.
type Reservation struct {
	Domain        string
	Identity      domain.Identity
	ReservedAt    time.Time
	NextAllowedAt time.Time
}

// Config holds registry defaults and penalty tuning.
type Config struct {
	DefaultMinDelay   time.Duration     `yaml:"default_min_delay"   env:"THROTTLE_DEFAULT_MIN_DELAY"`
	DefaultMaxDelay   time.Duration     `yaml:"default_max_delay"   env:"THROTTLE_DEFAULT_MAX_DELAY"`
	DefaultIdentities []domain.Identity `yaml:"default_identities"`
	PenaltyBase       time.Duration     `yaml:"penalty_base"        env:"THROTTLE_PENALTY_BASE"`
	BlockedMultiplier float64           `yaml:"blocked_multiplier"  env:"THROTTLE_BLOCKED_MULTIPLIER"`
	MaxPenalty        time.Duration     `yaml:"max_penalty"         env:"THROTTLE_MAX_PENALTY"`
}

// Default values.
const (
	DefaultMinDelay          = time.Second
	DefaultMaxDelay          = 5 * time.Second
	DefaultPenaltyBase       = 30 * time.Second
	DefaultBlockedMultiplier = 4.0
	DefaultMaxPenalty        = time.Hour
)

// DefaultUserAgent is used when no identities are configured.
const DefaultUserAgent = "Mozilla/5.0 (compatible; pricewatch/1.0)"

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.DefaultMinDelay == 0 {
		c.DefaultMinDelay = DefaultMinDelay
	}
	if c.DefaultMaxDelay == 0 {
		c.DefaultMaxDelay = DefaultMaxDelay
	}
	if c.PenaltyBase == 0 {
		c.PenaltyBase = DefaultPenaltyBase
	}
	if c.BlockedMultiplier == 0 {
		c.BlockedMultiplier = DefaultBlockedMultiplier
	}
	if c.MaxPenalty == 0 {
		c.MaxPenalty = DefaultMaxPenalty
	}
	if len(c.DefaultIdentities) == 0 {
		c.DefaultIdentities = []domain.Identity{{UserAgent: DefaultUserAgent}}
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRand overrides the random source used for delays and rotation.
func WithRand(rnd *rand.Rand) Option {
	return func(r *Registry) { r.rnd = rnd }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry grants domain request slots. All state lives in the store, so
// any number of registries may share one store.
type Registry struct {
	store   ProfileStore
	cfg     Config
	log     logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
	rnd     *rand.Rand
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store ProfileStore, cfg Config, log logger.Logger, opts ...Option) *Registry {
	cfg.SetDefaults()
	r := &Registry{
		store: store,
		cfg:   cfg,
		log:   log.With(logger.Component("throttle")),
		now:   time.Now,
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // jitter, not security
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) defaults(domainKey string) domain.DomainProfile {
	return domain.DomainProfile{
		Domain:            domainKey,
		Identities:        domain.Identities(r.cfg.DefaultIdentities),
		MinDelayMs:        r.cfg.DefaultMinDelay.Milliseconds(),
		MaxDelayMs:        r.cfg.DefaultMaxDelay.Milliseconds(),
		LastIdentityIndex: -1,
	}
}

// ReserveSlot atomically claims the next request slot for domainKey. When
// the domain is still cooling down it returns a *NotEligibleError.
func (r *Registry) ReserveSlot(ctx context.Context, domainKey string) (*Reservation, error) {
	domainKey = strings.ToLower(domainKey)
	now := r.now()
	var res Reservation

	_, err := r.store.Update(ctx, r.defaults(domainKey), func(p *domain.DomainProfile) error {
		if now.Before(p.NextAllowedAt) {
			return &NotEligibleError{Domain: domainKey, NextAllowedAt: p.NextAllowedAt}
		}

		idx := r.pickIdentity(len(p.Identities), p.LastIdentityIndex)
		identity := domain.Identity{UserAgent: DefaultUserAgent}
		if idx >= 0 {
			identity = p.Identities[idx]
		}

		reservedAt := now
		p.LastRequestAt = &reservedAt
		p.NextAllowedAt = now.Add(r.delay(p.MinDelay(), p.MaxDelay()))
		p.LastIdentityIndex = idx
		p.Reservations++

		res = Reservation{
			Domain:        domainKey,
			Identity:      identity,
			ReservedAt:    now,
			NextAllowedAt: p.NextAllowedAt,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDomainNotEligible) {
			r.observeReservation("not_eligible")
			return nil, err
		}
		return nil, fmt.Errorf("reserve slot for %s: %w", domainKey, err)
	}

	r.observeReservation("granted")
	return &res, nil
}

// AdjustOnFailure pushes the domain's next allowed time out by an
// escalating penalty. Only rate limiting and blocking are penalized; the
// returned duration is zero for other kinds.
func (r *Registry) AdjustOnFailure(ctx context.Context, domainKey string, kind domain.FailureKind) (time.Duration, error) {
	if !kind.EscalatesThrottle() {
		return 0, nil
	}
	domainKey = strings.ToLower(domainKey)
	now := r.now()
	var penalty time.Duration

	profile, err := r.store.Update(ctx, r.defaults(domainKey), func(p *domain.DomainProfile) error {
		penalty = r.penalty(p, kind)
		base := p.NextAllowedAt
		if base.Before(now) {
			base = now
		}
		p.NextAllowedAt = base.Add(penalty)
		p.PenaltyStrikes++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("adjust %s on failure: %w", domainKey, err)
	}

	if r.metrics != nil {
		r.metrics.ThrottlePenalties.WithLabelValues(string(kind)).Inc()
	}
	r.log.Warn("Domain penalized",
		logger.Domain(domainKey),
		logger.String("failure_kind", string(kind)),
		logger.Duration("penalty", penalty),
		logger.Int("strikes", profile.PenaltyStrikes),
		logger.Time("next_allowed_at", profile.NextAllowedAt),
	)
	return penalty, nil
}

// RecordSuccess clears the penalty strikes for domainKey.
func (r *Registry) RecordSuccess(ctx context.Context, domainKey string) error {
	domainKey = strings.ToLower(domainKey)
	_, err := r.store.Update(ctx, r.defaults(domainKey), func(p *domain.DomainProfile) error {
		if p.PenaltyStrikes == 0 {
			return errUnchanged
		}
		p.PenaltyStrikes = 0
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return fmt.Errorf("record success for %s: %w", domainKey, err)
	}
	return nil
}

// Reconfigure replaces the delay window and identities. It also clamps the
// next allowed time to the new window, which may move it backwards.
func (r *Registry) Reconfigure(
	ctx context.Context,
	domainKey string,
	minDelay, maxDelay time.Duration,
	identities []domain.Identity,
) (*domain.DomainProfile, error) {
	if minDelay < 0 || maxDelay < minDelay {
		return nil, fmt.Errorf("invalid delay window [%s, %s]", minDelay, maxDelay)
	}
	domainKey = strings.ToLower(domainKey)

	profile, err := r.store.Update(ctx, r.defaults(domainKey), func(p *domain.DomainProfile) error {
		p.MinDelayMs = minDelay.Milliseconds()
		p.MaxDelayMs = maxDelay.Milliseconds()
		if identities != nil {
			p.Identities = domain.Identities(identities)
			p.LastIdentityIndex = -1
		}
		p.PenaltyStrikes = 0
		if p.LastRequestAt != nil {
			limit := p.LastRequestAt.Add(maxDelay)
			if p.NextAllowedAt.After(limit) {
				p.NextAllowedAt = limit
			}
			if floor := p.LastRequestAt.Add(minDelay); p.NextAllowedAt.Before(floor) {
				p.NextAllowedAt = floor
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconfigure %s: %w", domainKey, err)
	}

	r.log.Info("Domain profile reconfigured",
		logger.Domain(domainKey),
		logger.Duration("min_delay", minDelay),
		logger.Duration("max_delay", maxDelay),
		logger.Int("identities", len(profile.Identities)),
	)
	return profile, nil
}

// pickIdentity returns an index in [0, n) different from last when n > 1,
// or -1 when there are no identities.
func (r *Registry) pickIdentity(n, last int) int {
	switch {
	case n <= 0:
		return -1
	case n == 1:
		return 0
	case last < 0 || last >= n:
		return r.rnd.IntN(n)
	}
	idx := r.rnd.IntN(n - 1)
	if idx >= last {
		idx++
	}
	return idx
}

// delay returns a uniform duration in [minDelay, maxDelay].
func (r *Registry) delay(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	return minDelay + time.Duration(r.rnd.Int64N(int64(maxDelay-minDelay)+1))
}

func (r *Registry) penalty(p *domain.DomainProfile, kind domain.FailureKind) time.Duration {
	strikes := min(p.PenaltyStrikes, 32)
	penalty := float64(r.cfg.PenaltyBase) * math.Pow(2, float64(strikes))
	if kind == domain.FailureBlocked {
		penalty *= r.cfg.BlockedMultiplier
	}
	if penalty > float64(r.cfg.MaxPenalty) {
		penalty = float64(r.cfg.MaxPenalty)
	}
	d := time.Duration(penalty)
	if floor := p.MaxDelay(); d < floor {
		d = floor
	}
	return d
}

func (r *Registry) observeReservation(result string) {
	if r.metrics != nil {
		r.metrics.ThrottleReservations.WithLabelValues(result).Inc()
	}
}

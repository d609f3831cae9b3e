package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

// ErrProfileNotFound is returned when a domain has no profile yet.
var ErrProfileNotFound = errors.New("domain profile not found")

const profileSelectColumns = `domain, identities, min_delay_ms, max_delay_ms,
	last_request_at, next_allowed_at, last_identity_index, penalty_strikes,
	reservations, created_at, updated_at`

// DomainProfileRepository persists per-domain politeness state. All
// mutations go through Update, which serializes callers on the row lock.
type DomainProfileRepository struct {
	db *sqlx.DB
}

// NewDomainProfileRepository creates a new domain profile repository.
func NewDomainProfileRepository(db *sqlx.DB) *DomainProfileRepository {
	return &DomainProfileRepository{db: db}
}

// Update lazily creates the profile from defaults, locks the row, and lets
// mutate change it in memory. The change is written back only when mutate
// returns nil; any error from mutate is returned unchanged after rollback.
func (r *DomainProfileRepository) Update(
	ctx context.Context,
	defaults domain.DomainProfile,
	mutate func(p *domain.DomainProfile) error,
) (*domain.DomainProfile, error) {
	insertQuery := `
		INSERT INTO domain_profiles (domain, identities, min_delay_ms, max_delay_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain) DO NOTHING`
	selectQuery := `SELECT ` + profileSelectColumns + ` FROM domain_profiles WHERE domain = $1 FOR UPDATE`
	updateQuery := `
		UPDATE domain_profiles
		SET identities = $2, min_delay_ms = $3, max_delay_ms = $4,
			last_request_at = $5, next_allowed_at = $6, last_identity_index = $7,
			penalty_strikes = $8, reservations = $9, updated_at = NOW()
		WHERE domain = $1`

	var profile domain.DomainProfile
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertQuery,
			defaults.Domain, defaults.Identities, defaults.MinDelayMs, defaults.MaxDelayMs,
		); err != nil {
			return fmt.Errorf("insert domain profile: %w", err)
		}

		if err := tx.GetContext(ctx, &profile, selectQuery, defaults.Domain); err != nil {
			return fmt.Errorf("lock domain profile: %w", err)
		}

		if err := mutate(&profile); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, updateQuery,
			profile.Domain, profile.Identities, profile.MinDelayMs, profile.MaxDelayMs,
			profile.LastRequestAt, profile.NextAllowedAt, profile.LastIdentityIndex,
			profile.PenaltyStrikes, profile.Reservations,
		)
		if err != nil {
			return fmt.Errorf("update domain profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Get returns the profile for domainKey without locking it.
func (r *DomainProfileRepository) Get(ctx context.Context, domainKey string) (*domain.DomainProfile, error) {
	query := `SELECT ` + profileSelectColumns + ` FROM domain_profiles WHERE domain = $1`

	var profile domain.DomainProfile
	if err := r.db.GetContext(ctx, &profile, query, domainKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get domain profile: %w", err)
	}
	return &profile, nil
}

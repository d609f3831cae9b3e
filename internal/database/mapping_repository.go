package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

var (
	// ErrMappingNotFound is returned when a mapping id does not exist.
	ErrMappingNotFound = errors.New("mapping not found")
	// ErrAlreadyInFlight is returned when the dispatch compare-and-swap loses:
	// the mapping is in flight, inactive, or was claimed by another scheduler.
	ErrAlreadyInFlight = errors.New("mapping already in flight or inactive")
)

// mappingSelect joins the site config so a mapping row carries its selectors.
const mappingSelect = `
	SELECT m.id, m.canonical_product_id, m.seller_name, m.url, m.active,
		m.site_config_id, m.frequency_seconds,
		s.default_frequency_seconds AS site_frequency_seconds,
		s.selector_product_name, s.selector_price, s.selector_stock, s.selector_seller,
		m.last_scraped_at, m.last_attempt_at, m.next_scrape_at, m.in_flight,
		m.current_command_id, m.dispatched_at, m.consecutive_failures, m.last_error_code
	FROM product_mappings m
	JOIN site_configs s ON s.id = m.site_config_id`

// MappingRepository owns the schedule fields of product mappings.
type MappingRepository struct {
	db *sqlx.DB
}

// NewMappingRepository creates a new mapping repository.
func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// dueRanked numbers due mappings per URL host, oldest first. Unparseable
// URLs share the NULL host partition.
const dueRanked = `
	WITH due AS (
		SELECT id, ROW_NUMBER() OVER (
			PARTITION BY lower(substring(url from '^[A-Za-z][A-Za-z0-9+.-]*://(?:[^@/?#]*@)?([^/:?#]+)'))
			ORDER BY next_scrape_at ASC, id ASC
		) AS domain_rank
		FROM product_mappings
		WHERE active AND NOT in_flight AND next_scrape_at <= $1
	)`

// ListDue returns active, idle mappings whose next scrape time has passed,
// oldest first, bounded by limit overall and by perDomain for each URL host.
func (r *MappingRepository) ListDue(ctx context.Context, now time.Time, limit, perDomain int) ([]domain.Mapping, error) {
	query := dueRanked + mappingSelect + `
	JOIN due d ON d.id = m.id
	WHERE d.domain_rank <= $3
	ORDER BY m.next_scrape_at ASC, m.id ASC
	LIMIT $2`

	var mappings []domain.Mapping
	if err := r.db.SelectContext(ctx, &mappings, query, now, limit, perDomain); err != nil {
		return nil, fmt.Errorf("list due mappings: %w", err)
	}
	return mappings, nil
}

// GetByID returns one mapping.
func (r *MappingRepository) GetByID(ctx context.Context, id int64) (*domain.Mapping, error) {
	query := mappingSelect + ` WHERE m.id = $1`

	var m domain.Mapping
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("get mapping %d: %w", id, err)
	}
	return &m, nil
}

// Dispatch flips the mapping to in-flight with a compare-and-swap, calls
// publish while the row is still locked, and commits only if publish
// succeeded. A failed publish rolls the flag back so the next tick retries.
func (r *MappingRepository) Dispatch(
	ctx context.Context,
	mappingID int64,
	commandID string,
	at time.Time,
	publish func(ctx context.Context) error,
) error {
	query := `
		UPDATE product_mappings
		SET in_flight = TRUE, current_command_id = $2, dispatched_at = $3, updated_at = NOW()
		WHERE id = $1 AND active AND NOT in_flight`

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, mappingID, commandID, at)
		if err = execRequireRows(result, err, ErrAlreadyInFlight); err != nil {
			return err
		}
		return publish(ctx)
	})
}

// Completion describes how an outcome moves a mapping back to idle.
type Completion struct {
	MappingID           int64
	CommandID           string
	Succeeded           bool
	AttemptAt           time.Time
	NextScrapeAt        time.Time
	ConsecutiveFailures int
	ErrorCode           *string
}

// Complete applies c only if the mapping is still in flight for c.CommandID.
// It reports false when the outcome is a duplicate or stale, which callers
// treat as a no-op.
func (r *MappingRepository) Complete(ctx context.Context, c Completion) (bool, error) {
	query := `
		UPDATE product_mappings
		SET in_flight = FALSE,
			current_command_id = NULL,
			dispatched_at = NULL,
			last_attempt_at = $3,
			last_scraped_at = CASE WHEN $4 THEN $3 ELSE last_scraped_at END,
			next_scrape_at = $5,
			consecutive_failures = $6,
			last_error_code = $7,
			updated_at = NOW()
		WHERE id = $1 AND in_flight AND current_command_id = $2`

	result, err := r.db.ExecContext(ctx, query,
		c.MappingID, c.CommandID, c.AttemptAt, c.Succeeded,
		c.NextScrapeAt, c.ConsecutiveFailures, c.ErrorCode,
	)
	if err != nil {
		return false, fmt.Errorf("complete mapping %d: %w", c.MappingID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete mapping %d: %w", c.MappingID, err)
	}
	return n > 0, nil
}

// ReleaseStale returns mappings dispatched before cutoff to idle so they are
// picked up again. Their commands are presumed lost.
func (r *MappingRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE product_mappings
		SET in_flight = FALSE, current_command_id = NULL, dispatched_at = NULL,
			last_error_code = 'LEASE_EXPIRED', updated_at = NOW()
		WHERE in_flight AND dispatched_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale mappings: %w", err)
	}
	return result.RowsAffected()
}

// ScheduleHealth summarizes schedule state for operational tooling.
type ScheduleHealth struct {
	Active   int64 `db:"active"    json:"active"`
	Due      int64 `db:"due"       json:"due"`
	InFlight int64 `db:"in_flight" json:"inFlight"`
	Stale    int64 `db:"stale"     json:"stale"`
	Failing  int64 `db:"failing"   json:"failing"`
}

// ScheduleHealth counts active mappings by schedule state. A mapping is stale
// when its last successful scrape is older than staleBefore, or it never
// succeeded and was created before staleBefore.
func (r *MappingRepository) ScheduleHealth(ctx context.Context, now, staleBefore time.Time) (*ScheduleHealth, error) {
	query := `
		SELECT
			COUNT(*) AS active,
			COUNT(*) FILTER (WHERE NOT in_flight AND next_scrape_at <= $1) AS due,
			COUNT(*) FILTER (WHERE in_flight) AS in_flight,
			COUNT(*) FILTER (WHERE COALESCE(last_scraped_at, created_at) < $2) AS stale,
			COUNT(*) FILTER (WHERE consecutive_failures > 0) AS failing
		FROM product_mappings
		WHERE active`

	var h ScheduleHealth
	if err := r.db.GetContext(ctx, &h, query, now, staleBefore); err != nil {
		return nil, fmt.Errorf("schedule health: %w", err)
	}
	return &h, nil
}

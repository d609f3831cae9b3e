package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

const priceSelectColumns = `command_id, canonical_product_id, seller_name, price,
	stock_status, original_stock_status, product_name, source_url, observed_at`

// HistoryFilter selects price points. Zero values are unconstrained.
type HistoryFilter struct {
	ProductID string
	Seller    string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// Normalize clamps Limit and Offset into their allowed ranges.
func (f *HistoryFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// PriceHistoryRepository is the append-only store of normalized price points.
type PriceHistoryRepository struct {
	db *sqlx.DB
}

// NewPriceHistoryRepository creates a new price history repository.
func NewPriceHistoryRepository(db *sqlx.DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// Append inserts p. It reports false, without error, when the point was
// already recorded under the same command id or observation key.
func (r *PriceHistoryRepository) Append(ctx context.Context, p *domain.NormalizedPricePoint) (bool, error) {
	query := `
		INSERT INTO price_history (
			command_id, canonical_product_id, seller_name, price, stock_status,
			original_stock_status, product_name, source_url, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
		RETURNING id`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		p.CommandID, p.CanonicalProductID, p.SellerName, p.Price, string(p.StockStatus),
		p.OriginalStockStatus, p.ProductName, p.SourceURL, p.Timestamp,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append price point: %w", err)
	}
	return true, nil
}

// Query returns one page of points, newest first, and the total match count.
func (r *PriceHistoryRepository) Query(
	ctx context.Context,
	filter HistoryFilter,
) ([]domain.NormalizedPricePoint, int64, error) {
	filter.Normalize()
	where, args := buildHistoryWhere(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM price_history` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count price history: %w", err)
	}

	n := len(args)
	listQuery := `SELECT ` + priceSelectColumns + ` FROM price_history` + where +
		` ORDER BY observed_at DESC, id DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, filter.Limit, filter.Offset)

	points := []domain.NormalizedPricePoint{}
	if err := r.db.SelectContext(ctx, &points, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("query price history: %w", err)
	}
	return points, total, nil
}

// Latest returns the newest point per seller for a product.
func (r *PriceHistoryRepository) Latest(ctx context.Context, productID string) ([]domain.NormalizedPricePoint, error) {
	query := `SELECT DISTINCT ON (seller_name) ` + priceSelectColumns + `
		FROM price_history
		WHERE canonical_product_id = $1
		ORDER BY seller_name, observed_at DESC`

	points := []domain.NormalizedPricePoint{}
	if err := r.db.SelectContext(ctx, &points, query, productID); err != nil {
		return nil, fmt.Errorf("latest prices for %s: %w", productID, err)
	}
	return points, nil
}

func buildHistoryWhere(f HistoryFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.ProductID != "" {
		add("canonical_product_id = $%d", f.ProductID)
	}
	if f.Seller != "" {
		add("seller_name = $%d", f.Seller)
	}
	if !f.From.IsZero() {
		add("observed_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("observed_at < $%d", f.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

var priceColumns = []string{
	"command_id", "canonical_product_id", "seller_name", "price",
	"stock_status", "original_stock_status", "product_name", "source_url", "observed_at",
}

func samplePoint(observed time.Time) *domain.NormalizedPricePoint {
	original := "In Stock - Ships Today"
	name := "Widget Pro"
	return &domain.NormalizedPricePoint{
		CommandID:           testCommandID,
		CanonicalProductID:  "prod-1",
		SellerName:          "Acme",
		Price:               999.99,
		StockStatus:         domain.StockInStock,
		OriginalStockStatus: &original,
		ProductName:         &name,
		SourceURL:           "https://shop.example/p/1",
		Timestamp:           observed,
	}
}

func TestPriceHistoryRepository_Append(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		want bool
	}{
		{name: "inserted", rows: sqlmock.NewRows([]string{"id"}).AddRow(11), want: true},
		{name: "duplicate ignored", rows: sqlmock.NewRows([]string{"id"}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewPriceHistoryRepository(db)
			observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			p := samplePoint(observed)

			mock.ExpectQuery(`INSERT INTO price_history .+ ON CONFLICT DO NOTHING RETURNING id`).
				WithArgs(testCommandID, "prod-1", "Acme", 999.99, "IN_STOCK",
					p.OriginalStockStatus, p.ProductName, "https://shop.example/p/1", observed).
				WillReturnRows(tt.rows)

			inserted, err := repo.Append(context.Background(), p)
			if err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if inserted != tt.want {
				t.Errorf("Append() = %v, want %v", inserted, tt.want)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestPriceHistoryRepository_Query(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPriceHistoryRepository(db)
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	observed := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM price_history WHERE canonical_product_id = \$1 AND seller_name = \$2 AND observed_at >= \$3`).
		WithArgs("prod-1", "Acme", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))
	mock.ExpectQuery(`SELECT .+ FROM price_history WHERE .+ ORDER BY observed_at DESC, id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("prod-1", "Acme", from, database.MaxHistoryLimit, 10).
		WillReturnRows(sqlmock.NewRows(priceColumns).AddRow(
			testCommandID, "prod-1", "Acme", "899.50", "OUT_OF_STOCK", "Sold out", nil,
			"https://shop.example/p/1", observed,
		))

	points, total, err := repo.Query(context.Background(), database.HistoryFilter{
		ProductID: "prod-1",
		Seller:    "Acme",
		From:      from,
		Limit:     10_000,
		Offset:    10,
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if total != 120 {
		t.Errorf("total = %d, want 120", total)
	}
	if len(points) != 1 || points[0].Price != 899.50 || points[0].StockStatus != domain.StockOutOfStock {
		t.Errorf("points = %+v", points)
	}
	if points[0].ProductName != nil {
		t.Errorf("ProductName = %v, want nil", points[0].ProductName)
	}
	expectationsMet(t, mock)
}

func TestPriceHistoryRepository_QueryUnfiltered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPriceHistoryRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM price_history$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT .+ FROM price_history ORDER BY observed_at DESC, id DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(database.DefaultHistoryLimit, 0).
		WillReturnRows(sqlmock.NewRows(priceColumns))

	points, total, err := repo.Query(context.Background(), database.HistoryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if total != 0 || len(points) != 0 || points == nil {
		t.Errorf("Query() = %v, %d; want empty non-nil page", points, total)
	}
	expectationsMet(t, mock)
}

func TestPriceHistoryRepository_Latest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPriceHistoryRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT DISTINCT ON \(seller_name\) .+ WHERE canonical_product_id = \$1`).
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows(priceColumns).
			AddRow(testCommandID, "prod-1", "Acme", "10.00", "IN_STOCK", nil, nil, "https://a.example", now).
			AddRow("0c8f7a0e-3b0b-4f38-a0b3-5fa1b5a7c0aa", "prod-1", "Bolt", "11.50", "LIMITED_STOCK", nil, nil, "https://b.example", now))

	points, err := repo.Latest(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(points) != 2 || points[1].SellerName != "Bolt" {
		t.Errorf("Latest() = %+v", points)
	}
	expectationsMet(t, mock)
}

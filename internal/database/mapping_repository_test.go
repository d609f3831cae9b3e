package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/raulshma/tech-ticker-sub007/internal/database"
)

var mappingColumns = []string{
	"id", "canonical_product_id", "seller_name", "url", "active",
	"site_config_id", "frequency_seconds", "site_frequency_seconds",
	"selector_product_name", "selector_price", "selector_stock", "selector_seller",
	"last_scraped_at", "last_attempt_at", "next_scrape_at", "in_flight",
	"current_command_id", "dispatched_at", "consecutive_failures", "last_error_code",
}

const testCommandID = "8f14e45f-ceea-4672-9b1a-0b2d5d2f4a11"

func TestMappingRepository_ListDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewMappingRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WITH due AS .+ROW_NUMBER\(\) OVER \(\s+PARTITION BY lower\(substring\(url .+WHERE active AND NOT in_flight AND next_scrape_at <= \$1.+FROM product_mappings m\s+JOIN site_configs s .+JOIN due d ON d.id = m.id\s+WHERE d.domain_rank <= \$3\s+ORDER BY m.next_scrape_at ASC`).
		WithArgs(now, 25, 5).
		WillReturnRows(sqlmock.NewRows(mappingColumns).
			AddRow(1, "prod-1", "Acme", "https://shop.example/p/1", true,
				3, nil, int64(3600),
				"h1.title", ".price", ".stock", "",
				nil, nil, now.Add(-time.Minute), false,
				nil, nil, 0, nil).
			AddRow(2, "prod-2", "Acme", "https://shop.example/p/2", true,
				3, int64(600), int64(3600),
				"h1.title", ".price", ".stock", ".seller",
				now.Add(-time.Hour), now.Add(-time.Hour), now, false,
				nil, nil, 2, "RATE_LIMITED"))

	mappings, err := repo.ListDue(context.Background(), now, 25, 5)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("ListDue() returned %d mappings, want 2", len(mappings))
	}
	if mappings[0].Price != ".price" || mappings[0].SiteFrequencySeconds == nil {
		t.Errorf("first mapping = %+v", mappings[0])
	}
	if mappings[1].LastErrorCode == nil || *mappings[1].LastErrorCode != "RATE_LIMITED" {
		t.Errorf("LastErrorCode = %v, want RATE_LIMITED", mappings[1].LastErrorCode)
	}
	if mappings[1].EffectiveFrequency(time.Hour) != 10*time.Minute {
		t.Errorf("EffectiveFrequency() = %s", mappings[1].EffectiveFrequency(time.Hour))
	}

	expectationsMet(t, mock)
}

func TestMappingRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewMappingRepository(db)

	mock.ExpectQuery(`SELECT .+ WHERE m.id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(mappingColumns))

	_, err := repo.GetByID(context.Background(), 99)
	if !errors.Is(err, database.ErrMappingNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrMappingNotFound", err)
	}
	expectationsMet(t, mock)
}

func TestMappingRepository_Dispatch_CommitsAfterPublish(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewMappingRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE product_mappings\s+SET in_flight = TRUE`).
		WithArgs(int64(1), testCommandID, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	published := false
	err := repo.Dispatch(context.Background(), 1, testCommandID, now, func(context.Context) error {
		published = true
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !published {
		t.Error("Dispatch() did not publish")
	}
	expectationsMet(t, mock)
}

func TestMappingRepository_Dispatch_LostCompareAndSwap(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewMappingRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE product_mappings`).
		WithArgs(int64(1), testCommandID, now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Dispatch(context.Background(), 1, testCommandID, now, func(context.Context) error {
		t.Error("publish must not run when the compare-and-swap fails")
		return nil
	})
	if !errors.Is(err, database.ErrAlreadyInFlight) {
		t.Fatalf("Dispatch() error = %v, want ErrAlreadyInFlight", err)
	}
	expectationsMet(t, mock)
}

func TestMappingRepository_Dispatch_PublishFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewMappingRepository(db)
	now := time.Now().UTC()
	errPublish := errors.New("redis unavailable")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE product_mappings`).
		WithArgs(int64(1), testCommandID, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := repo.Dispatch(context.Background(), 1, testCommandID, now, func(context.Context) error {
		return errPublish
	})
	if !errors.Is(err, errPublish) {
		t.Fatalf("Dispatch() error = %v, want publish error", err)
	}
	expectationsMet(t, mock)
}

func TestMappingRepository_Complete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "applied", affected: 1, want: true},
		{name: "duplicate outcome", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewMappingRepository(db)
			now := time.Now().UTC()
			code := "RATE_LIMITED"

			mock.ExpectExec(`UPDATE product_mappings\s+SET in_flight = FALSE.+WHERE id = \$1 AND in_flight AND current_command_id = \$2`).
				WithArgs(int64(5), testCommandID, now, false, now.Add(2*time.Hour), 1, &code).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			applied, err := repo.Complete(context.Background(), database.Completion{
				MappingID:           5,
				CommandID:           testCommandID,
				AttemptAt:           now,
				NextScrapeAt:        now.Add(2 * time.Hour),
				ConsecutiveFailures: 1,
				ErrorCode:           &code,
			})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if applied != tt.want {
				t.Errorf("Complete() applied = %v, want %v", applied, tt.want)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestMappingRepository_ReleaseStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewMappingRepository(db)
	cutoff := time.Now().Add(-15 * time.Minute)

	mock.ExpectExec(`UPDATE product_mappings.+LEASE_EXPIRED.+WHERE in_flight AND dispatched_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ReleaseStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ReleaseStale() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ReleaseStale() = %d, want 3", n)
	}
	expectationsMet(t, mock)
}

func TestMappingRepository_ScheduleHealth(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewMappingRepository(db)
	now := time.Now()
	staleBefore := now.Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\) AS active`).
		WithArgs(now, staleBefore).
		WillReturnRows(sqlmock.NewRows([]string{"active", "due", "in_flight", "stale", "failing"}).
			AddRow(40, 5, 3, 2, 1))

	h, err := repo.ScheduleHealth(context.Background(), now, staleBefore)
	if err != nil {
		t.Fatalf("ScheduleHealth() error = %v", err)
	}
	if h.Active != 40 || h.Due != 5 || h.InFlight != 3 || h.Stale != 2 || h.Failing != 1 {
		t.Errorf("ScheduleHealth() = %+v", h)
	}
	expectationsMet(t, mock)
}

package normalizer_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/normalizer"
)

var now = time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)

func raw() domain.RawPricePoint {
	return domain.RawPricePoint{
		CommandID:          "cmd-1",
		MappingID:          3,
		CanonicalProductID: "acme-laptop-15",
		SellerName:         "Example Shop",
		ScrapedPrice:       999.99,
		ScrapedStockStatus: "In Stock - Ships Today",
		ScrapedProductName: "Acme Laptop 15",
		SourceURL:          "https://shop.example/p/1",
		Timestamp:          now.Add(-time.Minute),
	}
}

func newNormalizer(strict bool, pub normalizer.Publisher) *normalizer.Normalizer {
	return normalizer.New(normalizer.Config{MinPrice: 0.01, MaxPrice: 50000, Strict: strict}, pub, logger.NewNop(),
		normalizer.WithClock(func() time.Time { return now }))
}

func TestNormalize_InStockPreservesOriginalText(t *testing.T) {
	t.Parallel()

	p, err := newNormalizer(true, nil).Normalize(raw())
	require.NoError(t, err)

	assert.InDelta(t, 999.99, p.Price, 0)
	assert.Equal(t, domain.StockInStock, p.StockStatus)
	require.NotNil(t, p.OriginalStockStatus)
	assert.Equal(t, "In Stock - Ships Today", *p.OriginalStockStatus)
	require.NotNil(t, p.ProductName)
	assert.Equal(t, "Acme Laptop 15", *p.ProductName)
	assert.Equal(t, "cmd-1", p.CommandID)
	assert.Equal(t, now.Add(-time.Minute), p.Timestamp)
}

func TestNormalize_PriceRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		price float64
		rule  string
		want  float64
	}{
		{"zero below min", 0.00, normalizer.RulePriceNotPositive, 0},
		{"negative", -5, normalizer.RulePriceNotPositive, 0},
		{"rounds to zero", 0.004, normalizer.RulePriceNotPositive, 0},
		{"nan", math.NaN(), normalizer.RulePriceNotFinite, 0},
		{"infinite", math.Inf(1), normalizer.RulePriceNotFinite, 0},
		{"above max", 50000.01, normalizer.RulePriceAboveMax, 0},
		{"at min", 0.01, "", 0.01},
		{"rounded", 19.999, "", 20},
		{"rounded down", 10.234, "", 10.23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := raw()
			r.ScrapedPrice = tt.price

			p, err := newNormalizer(false, nil).Normalize(r)
			if tt.rule == "" {
				require.NoError(t, err)
				assert.InDelta(t, tt.want, p.Price, 1e-9)
				return
			}

			var ve *normalizer.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.rule, ve.Rule)
			assert.ErrorIs(t, err, normalizer.ErrInvalidPrice)
			assert.Nil(t, p)
		})
	}
}

func TestNormalize_BelowConfiguredMinimum(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Config{MinPrice: 5}, nil, logger.NewNop())
	r := raw()
	r.ScrapedPrice = 4.99

	_, err := n.Normalize(r)
	var ve *normalizer.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, normalizer.RulePriceBelowMin, ve.Rule)
}

func TestNormalize_StrictRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*domain.RawPricePoint)
		rule   string
	}{
		{"empty name", func(r *domain.RawPricePoint) { r.ScrapedProductName = "   " }, normalizer.RuleEmptyProductName},
		{"blank stock", func(r *domain.RawPricePoint) { r.ScrapedStockStatus = "\t" }, normalizer.RuleBlankStockText},
		{"ftp url", func(r *domain.RawPricePoint) { r.SourceURL = "ftp://shop.example/p" }, normalizer.RuleInvalidSourceURL},
		{"relative url", func(r *domain.RawPricePoint) { r.SourceURL = "/p/1" }, normalizer.RuleInvalidSourceURL},
		{"zero timestamp", func(r *domain.RawPricePoint) { r.Timestamp = time.Time{} }, normalizer.RuleMissingTimestamp},
		{"future timestamp", func(r *domain.RawPricePoint) { r.Timestamp = now.Add(time.Hour) }, normalizer.RuleFutureTimestamp},
		{"missing seller", func(r *domain.RawPricePoint) { r.SellerName = "" }, normalizer.RuleMissingIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := raw()
			tt.mutate(&r)

			_, err := newNormalizer(true, nil).Normalize(r)
			var ve *normalizer.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.rule, ve.Rule)
			assert.ErrorIs(t, err, normalizer.ErrInvalidPoint)
		})
	}
}

func TestNormalize_LenientKeepsGoing(t *testing.T) {
	t.Parallel()

	r := raw()
	r.ScrapedProductName = "  "
	r.ScrapedStockStatus = ""
	r.SourceURL = " /p/1 "
	r.Timestamp = time.Time{}

	p, err := newNormalizer(false, nil).Normalize(r)
	require.NoError(t, err)
	assert.Nil(t, p.ProductName)
	assert.Nil(t, p.OriginalStockStatus)
	assert.Equal(t, domain.StockUnknown, p.StockStatus)
	assert.Equal(t, "/p/1", p.SourceURL)
	assert.Equal(t, now, p.Timestamp)
}

func TestMapStock(t *testing.T) {
	t.Parallel()

	tests := map[string]domain.StockStatus{
		"In Stock - Ships Today":          domain.StockInStock,
		"Usually ships in 2-3 days":       domain.StockInStock,
		"Add to Cart":                     domain.StockInStock,
		"Available":                       domain.StockInStock,
		"Currently unavailable":           domain.StockOutOfStock,
		"SOLD OUT":                        domain.StockOutOfStock,
		"Not in stock":                    domain.StockOutOfStock,
		"Only 3 left in stock":            domain.StockLimited,
		"Low stock":                       domain.StockLimited,
		"Limited stock available":         domain.StockLimited,
		"Limited quantities":              domain.StockLimited,
		"In Stock - Limited Edition":      domain.StockInStock,
		"In stock. Limited warranty":      domain.StockInStock,
		"Pre-order now, ships in March":   domain.StockPreOrder,
		"Coming soon":                     domain.StockPreOrder,
		"This item has been discontinued": domain.StockDiscontinued,
		"No longer available":             domain.StockDiscontinued,
		"":                                domain.StockUnknown,
		"Call for details":                domain.StockUnknown,
	}

	for text, want := range tests {
		assert.Equal(t, want, normalizer.MapStock(text), text)
	}
}

type capturePublisher struct {
	stream string
	point  *domain.NormalizedPricePoint
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, stream, _ string, v any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.stream = stream
	p.point = v.(*domain.NormalizedPricePoint)
	return "1-0", nil
}

func message(t *testing.T, r domain.RawPricePoint) bus.Message {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return bus.Message{ID: "1-0", Type: bus.TypeRawPricePoint, Payload: data}
}

func TestHandleMessage_ForwardsValidPoint(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	require.NoError(t, newNormalizer(true, pub).HandleMessage(context.Background(), message(t, raw())))

	assert.Equal(t, bus.StreamNormalized, pub.stream)
	require.NotNil(t, pub.point)
	assert.Equal(t, domain.StockInStock, pub.point.StockStatus)
}

func TestHandleMessage_DropsInvalidPoint(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	r := raw()
	r.ScrapedPrice = 0

	require.NoError(t, newNormalizer(true, pub).HandleMessage(context.Background(), message(t, r)))
	assert.Nil(t, pub.point, "invalid point must not be forwarded")
}

func TestHandleMessage_PublishErrorLeavesPending(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{err: errors.New("redis down")}
	err := newNormalizer(true, pub).HandleMessage(context.Background(), message(t, raw()))
	require.Error(t, err)
	assert.False(t, bus.IsPermanent(err))
}

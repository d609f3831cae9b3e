// Package normalizer validates raw price points and converts them into
// canonical normalized points.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

var (
	// ErrInvalidPrice is matched by price validation failures.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrInvalidPoint is matched by every other validation failure.
	ErrInvalidPoint = errors.New("invalid price point")
)

// Validation rules.
const (
	RuleMissingIdentity  = "missing_identity"
	RulePriceNotFinite   = "price_not_finite"
	RulePriceNotPositive = "price_not_positive"
	RulePriceBelowMin    = "price_below_min"
	RulePriceAboveMax    = "price_above_max"
	RuleEmptyProductName = "empty_product_name"
	RuleInvalidSourceURL = "invalid_source_url"
	RuleMissingTimestamp = "missing_timestamp"
	RuleFutureTimestamp  = "future_timestamp"
	RuleBlankStockText   = "blank_stock_text"
)

// ValidationError reports why a point was dropped.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if strings.HasPrefix(e.Rule, "price_") {
		return ErrInvalidPrice
	}
	return ErrInvalidPoint
}

func invalid(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// Default values.
const (
	DefaultMinPrice     = 0.01
	DefaultMaxPrice     = 1_000_000
	DefaultMaxClockSkew = 5 * time.Minute
)

// Config holds validation settings.
type Config struct {
	MinPrice     float64       `yaml:"min_price"      env:"NORMALIZER_MIN_PRICE"`
	MaxPrice     float64       `yaml:"max_price"      env:"NORMALIZER_MAX_PRICE"`
	Strict       bool          `yaml:"strict"         env:"NORMALIZER_STRICT"`
	MaxClockSkew time.Duration `yaml:"max_clock_skew" env:"NORMALIZER_MAX_CLOCK_SKEW"`
	Workers      int           `yaml:"workers"        env:"NORMALIZER_WORKERS"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MinPrice <= 0 {
		c.MinPrice = DefaultMinPrice
	}
	if c.MaxPrice <= 0 {
		c.MaxPrice = DefaultMaxPrice
	}
	if c.MaxClockSkew <= 0 {
		c.MaxClockSkew = DefaultMaxClockSkew
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Publisher publishes messages to a stream.
type Publisher interface {
	Publish(ctx context.Context, stream, msgType string, v any) (string, error)
}

// Normalizer converts raw points and forwards the valid ones.
type Normalizer struct {
	cfg       Config
	publisher Publisher
	log       logger.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// New creates a new normalizer.
func New(cfg Config, publisher Publisher, log logger.Logger, opts ...Option) *Normalizer {
	cfg.SetDefaults()
	n := &Normalizer{
		cfg:       cfg,
		publisher: publisher,
		log:       log.With(logger.Component("normalizer")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize validates raw and returns the canonical point, or a
// *ValidationError naming the first rule it broke.
func (n *Normalizer) Normalize(raw domain.RawPricePoint) (*domain.NormalizedPricePoint, error) {
	productID := strings.TrimSpace(raw.CanonicalProductID)
	seller := strings.TrimSpace(raw.SellerName)
	if productID == "" || seller == "" {
		return nil, invalid(RuleMissingIdentity, "canonical product id and seller are required")
	}

	price, err := n.validatePrice(raw.ScrapedPrice)
	if err != nil {
		return nil, err
	}

	name := strings.Join(strings.Fields(raw.ScrapedProductName), " ")
	stockText := strings.Join(strings.Fields(raw.ScrapedStockStatus), " ")
	sourceURL := strings.TrimSpace(raw.SourceURL)
	ts := raw.Timestamp

	if n.cfg.Strict {
		if err = n.validateStrict(name, stockText, sourceURL, ts); err != nil {
			return nil, err
		}
	} else if ts.IsZero() {
		ts = n.now()
	}

	point := &domain.NormalizedPricePoint{
		CommandID:          raw.CommandID,
		CanonicalProductID: productID,
		SellerName:         seller,
		Price:              price,
		StockStatus:        MapStock(stockText),
		SourceURL:          sourceURL,
		Timestamp:          ts.UTC(),
	}
	if stockText != "" {
		point.OriginalStockStatus = &stockText
	}
	if name != "" {
		point.ProductName = &name
	}
	return point, nil
}

func (n *Normalizer) validatePrice(p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, invalid(RulePriceNotFinite, "price %v is not a finite number", p)
	}
	rounded := math.Round(p*100) / 100
	switch {
	case rounded <= 0:
		return 0, invalid(RulePriceNotPositive, "price %.2f is not positive", rounded)
	case rounded < n.cfg.MinPrice:
		return 0, invalid(RulePriceBelowMin, "price %.2f below minimum %.2f", rounded, n.cfg.MinPrice)
	case rounded > n.cfg.MaxPrice:
		return 0, invalid(RulePriceAboveMax, "price %.2f above maximum %.2f", rounded, n.cfg.MaxPrice)
	}
	return rounded, nil
}

func (n *Normalizer) validateStrict(name, stockText, sourceURL string, ts time.Time) error {
	if name == "" {
		return invalid(RuleEmptyProductName, "product name is empty")
	}
	if stockText == "" {
		return invalid(RuleBlankStockText, "stock text is blank")
	}
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(RuleInvalidSourceURL, "source url %q is not an absolute http(s) url", sourceURL)
	}
	if ts.IsZero() {
		return invalid(RuleMissingTimestamp, "timestamp is missing")
	}
	if limit := n.now().Add(n.cfg.MaxClockSkew); ts.After(limit) {
		return invalid(RuleFutureTimestamp, "timestamp %s is in the future", ts.Format(time.RFC3339))
	}
	return nil
}

// HandleMessage is the bus handler for the raw stream. Invalid points are
// logged and acknowledged without being forwarded.
func (n *Normalizer) HandleMessage(ctx context.Context, msg bus.Message) error {
	raw, err := bus.Decode[domain.RawPricePoint](msg)
	if err != nil {
		return err
	}

	point, err := n.Normalize(raw)
	if err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		n.log.Warn("Dropping invalid price point",
			logger.CommandID(raw.CommandID),
			logger.MappingID(raw.MappingID),
			logger.String("rule", ve.Rule),
			logger.String("reason", ve.Message),
		)
		n.observe("dropped", ve.Rule)
		return nil
	}

	if _, err = n.publisher.Publish(ctx, bus.StreamNormalized, bus.TypeNormalizedPoint, point); err != nil {
		return err
	}
	n.observe("forwarded", "")
	return nil
}

func (n *Normalizer) observe(result, rule string) {
	if n.metrics != nil {
		n.metrics.NormalizerPoints.WithLabelValues(result, rule).Inc()
	}
}

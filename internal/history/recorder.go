// Package history records normalized price points append-only and serves
// queries over them.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

// ErrInvalidFilter is returned for a query whose window is inverted.
var ErrInvalidFilter = errors.New("invalid history filter")

// Store is the append-only price history.
type Store interface {
	Append(ctx context.Context, p *domain.NormalizedPricePoint) (bool, error)
	Query(ctx context.Context, filter database.HistoryFilter) ([]domain.NormalizedPricePoint, int64, error)
	Latest(ctx context.Context, productID string) ([]domain.NormalizedPricePoint, error)
}

// Projector receives every newly recorded point.
type Projector interface {
	Index(ctx context.Context, p *domain.NormalizedPricePoint) error
}

// Page is one page of query results.
type Page struct {
	Points []domain.NormalizedPricePoint `json:"points"`
	Total  int64                         `json:"total"`
	Limit  int                           `json:"limit"`
	Offset int                           `json:"offset"`
}

// Recorder appends normalized points and answers history queries.
type Recorder struct {
	store     Store
	projector Projector
	log       logger.Logger
	metrics   *observability.Metrics
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithProjection mirrors new points into p.
func WithProjection(p Projector) Option {
	return func(r *Recorder) { r.projector = p }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a new recorder.
func NewRecorder(store Store, log logger.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		log:   log.With(logger.Component("history")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends p. It reports false when p was already recorded. The
// projection is best effort: a failure is logged and counted.
func (r *Recorder) Record(ctx context.Context, p *domain.NormalizedPricePoint) (bool, error) {
	inserted, err := r.store.Append(ctx, p)
	if err != nil {
		r.observe("error")
		return false, err
	}
	if !inserted {
		r.observe("duplicate")
		r.log.Debug("Price point already recorded", logger.CommandID(p.CommandID))
		return false, nil
	}
	r.observe("inserted")

	if r.projector != nil {
		if err = r.projector.Index(ctx, p); err != nil {
			if r.metrics != nil {
				r.metrics.HistoryProjectionErrors.Inc()
			}
			r.log.Warn("Failed to project price point",
				logger.CommandID(p.CommandID),
				logger.Error(err),
			)
		}
	}
	return true, nil
}

// HandleMessage is the bus handler for the normalized stream.
func (r *Recorder) HandleMessage(ctx context.Context, msg bus.Message) error {
	point, err := bus.Decode[domain.NormalizedPricePoint](msg)
	if err != nil {
		return err
	}
	if point.CommandID == "" || point.CanonicalProductID == "" || point.SellerName == "" || point.Timestamp.IsZero() {
		return bus.Permanent(fmt.Errorf("%w: price point missing identity", bus.ErrMalformed))
	}

	_, err = r.Record(ctx, &point)
	return err
}

// Query returns one page of history, newest first.
func (r *Recorder) Query(ctx context.Context, filter database.HistoryFilter) (*Page, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidFilter)
	}
	filter.Normalize()

	points, total, err := r.store.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Page{Points: points, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Latest returns the newest point per seller for productID.
func (r *Recorder) Latest(ctx context.Context, productID string) ([]domain.NormalizedPricePoint, error) {
	return r.store.Latest(ctx, productID)
}

func (r *Recorder) observe(result string) {
	if r.metrics != nil {
		r.metrics.HistoryAppends.WithLabelValues(result).Inc()
	}
}

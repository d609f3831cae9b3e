// Package api serves the read-only HTTP surface: price history, latest
// prices and schedule health.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raulshma/tech-ticker-sub007/internal/database"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/history"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
)

// HistoryService answers price history queries.
type HistoryService interface {
	Query(ctx context.Context, filter database.HistoryFilter) (*history.Page, error)
	Latest(ctx context.Context, productID string) ([]domain.NormalizedPricePoint, error)
}

// ScheduleReader reports schedule health counts.
type ScheduleReader interface {
	ScheduleHealth(ctx context.Context, now, staleBefore time.Time) (*database.ScheduleHealth, error)
}

// historyQuery binds GET /api/v1/history parameters. Times are RFC 3339.
type historyQuery struct {
	ProductID string    `form:"product_id"`
	Seller    string    `form:"seller"`
	From      time.Time `form:"from"`
	To        time.Time `form:"to"`
	Limit     int       `form:"limit"  binding:"omitempty,min=1"`
	Offset    int       `form:"offset" binding:"omitempty,min=0"`
}

// Handler holds the API handlers.
type Handler struct {
	history   HistoryService
	schedule  ScheduleReader
	staleness time.Duration
	now       func() time.Time
	log       logger.Logger
}

// NewHandler creates the handlers. staleness is the age of last_scraped_at
// after which a mapping counts as stale.
func NewHandler(hist HistoryService, schedule ScheduleReader, staleness time.Duration, log logger.Logger) *Handler {
	return &Handler{
		history:   hist,
		schedule:  schedule,
		staleness: staleness,
		now:       time.Now,
		log:       log.With(logger.Component("api")),
	}
}

// History handles GET /api/v1/history.
func (h *Handler) History(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}

	page, err := h.history.Query(c.Request.Context(), database.HistoryFilter{
		ProductID: strings.TrimSpace(q.ProductID),
		Seller:    strings.TrimSpace(q.Seller),
		From:      q.From,
		To:        q.To,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if errors.Is(err, history.ErrInvalidFilter) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("Failed to query price history",
			logger.String("product_id", q.ProductID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query price history"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// Latest handles GET /api/v1/products/:id/latest.
func (h *Handler) Latest(c *gin.Context) {
	productID := c.Param("id")

	points, err := h.history.Latest(c.Request.Context(), productID)
	if err != nil {
		h.log.Error("Failed to load latest prices",
			logger.String("product_id", productID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load latest prices"})
		return
	}
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No prices recorded for product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"productId": productID,
		"prices":    points,
		"count":     len(points),
	})
}

// ScheduleHealth handles GET /api/v1/schedule/health.
func (h *Handler) ScheduleHealth(c *gin.Context) {
	now := h.now()
	health, err := h.schedule.ScheduleHealth(c.Request.Context(), now, now.Add(-h.staleness))
	if err != nil {
		h.log.Error("Failed to read schedule health", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read schedule health"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active":             health.Active,
		"due":                health.Due,
		"inFlight":           health.InFlight,
		"stale":              health.Stale,
		"failing":            health.Failing,
		"stalenessThreshold": h.staleness.String(),
		"checkedAt":          now.UTC(),
	})
}

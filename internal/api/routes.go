package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	infragin "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/gin"
)

// DefaultMetricsPath is where Prometheus metrics are served.
const DefaultMetricsPath = "/metrics"

// SetupRoutes registers the metrics endpoint and the /api/v1 group. The
// group is guarded by JWT verification when jwtSecret is set.
func SetupRoutes(router *gin.Engine, h *Handler, gatherer prometheus.Gatherer, metricsPath, jwtSecret string) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if metricsPath == "" {
		metricsPath = DefaultMetricsPath
	}
	router.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := infragin.ProtectedGroup(router, "/api/v1", jwtSecret)
	v1.GET("/history", h.History)
	v1.GET("/products/:id/latest", h.Latest)
	v1.GET("/schedule/health", h.ScheduleHealth)
}

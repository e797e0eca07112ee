package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/medsurat-api/internal/service"
)

const unmatchedRouteLabel = "unmatched"

// Metrics records latency and status per route template. Scrapes of the
// metrics endpoint itself are not counted, and unknown paths share one label
// so probing cannot grow the series set.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := map[string]struct{}{"/metrics": {}}
	for _, route := range skip {
		skipped[route] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRouteLabel
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

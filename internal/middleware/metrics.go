package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/retroboardhq/retroboard/pkg/metrics"
)

// Metrics observes per-request latency labelled by method, route, and status.
// The route label uses the registered route pattern, so /api/retros/:id stays
// one series no matter how many retros exist; requests that match no route
// collapse into a single "unmatched" label to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

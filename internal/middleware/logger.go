package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retroboardhq/retroboard/pkg/logger"
)

// quietPaths are monitoring probes polled every few seconds; one log line per
// hit would drown out the board traffic.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// Logger writes one structured access-log line per request. Monitoring probes
// are skipped, and websocket upgrades log like any other request once the
// connection ends.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if _, quiet := quietPaths[path]; quiet {
			return
		}

		logger.WithModule("http").Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

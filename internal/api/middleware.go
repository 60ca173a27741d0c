package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/metrics"
)

// ActorHeader names the acting user.
const ActorHeader = "X-Actor-ID"

const anonymousActor = "anonymous"

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("actor", actor(c)))
	}
}

// requestMetrics labels requests by route template, not raw path, so
// household ids do not explode cardinality.
func requestMetrics(c *metrics.Collector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.ObserveRequest(ctx.Request.Method, route, ctx.Writer.Status(), time.Since(start))
	}
}

func actor(c *gin.Context) string {
	if a := c.GetHeader(ActorHeader); a != "" {
		return a
	}
	return anonymousActor
}

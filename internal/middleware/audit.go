package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/villa-intake-api/pkg/middleware/requestid"
)

// IdempotencyHeader lets operators retry writes safely.
const IdempotencyHeader = "Idempotency-Key"

// OpsAudit writes one audit line per operator request, including failures.
func OpsAudit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		authenticated, _ := c.Get(ContextOperatorKey)
		fields := []zap.Field{
			zap.String("action", action),
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
			zap.Any("authenticated", authenticated),
		}
		for _, p := range c.Params {
			fields = append(fields, zap.String("param_"+p.Key, p.Value))
		}
		if key := c.GetHeader(IdempotencyHeader); key != "" {
			fields = append(fields, zap.String("idempotency_key", key))
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}

		if c.Writer.Status() >= 400 {
			logger.Warn("operator action failed", fields...)
			return
		}
		logger.Info("operator action", fields...)
	}
}

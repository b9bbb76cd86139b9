// README: Request logging middleware on the shared zap logger.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"petride/internal/logger"
)

func Logging(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if uid := Caller(c).UserID; uid != 0 {
			fields = append(fields, logger.Int64("user_id", uid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("http request", fields...)
		case c.Writer.Status() >= 400:
			log.Warning("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware logs one line per request with method, path, status and
// duration.
func LoggerMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}

		if len(c.Errors) > 0 {
			msgs := make([]string, len(c.Errors))
			for i, err := range c.Errors {
				msgs[i] = err.Err.Error()
			}
			attrs = append(attrs, "errors", strings.Join(msgs, "; "))
			log.Error("HTTP request with errors", attrs...)
			return
		}
		if strings.HasPrefix(path, "/healthz") {
			log.Debug("HTTP request", attrs...)
			return
		}
		log.Info("HTTP request", attrs...)
	}
}

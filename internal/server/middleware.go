package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Recovery logs panics with their stack and answers 500.
func Recovery(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "path", c.Request.URL.Path, "error", err, "stack", string(debug.Stack()))
				abort(c, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		c.Next()
	}
}

// RequestLogger logs method, path, status and latency of every request.
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", kv...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", kv...)
		default:
			logger.Info("request", kv...)
		}
	}
}

// RateLimit rejects requests beyond limit per second with the given burst. A limit of zero or
// less disables limiting.
func RateLimit(limit float64, burst int) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

package router

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// New builds the gin engine with recovery and slog request logging.
func New(logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), Logging(logger))
	r.RedirectTrailingSlash = true
	// Cluster identifiers are URIs and arrive path-escaped.
	r.UseRawPath = true
	r.UnescapePathValues = true
	return r
}

// Logging logs one line per request.
func Logging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			logger.Error("request", attrs...)
		case status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}

// NormalizePrefix turns a configured URL prefix into "" or "/x/y".
func NormalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

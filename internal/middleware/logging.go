// Package middleware provides Echo middleware for logging, security headers,
// CORS and metrics.
package middleware

import (
	"log/slog"
	"time"

	"github.com/cappuccinotm/slogx"
	"github.com/labstack/echo/v4"
)

// RequestLogger returns an Echo middleware that logs each request with slog.
// Handler errors are logged at warn level alongside the request line.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"route", c.Path(),
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			}
			if err != nil {
				logger.Warn("request", append(attrs, slogx.Error(err))...)
				return err
			}

			logger.Info("request", attrs...)
			return nil
		}
	}
}

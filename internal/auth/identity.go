// Package auth extracts the caller identity from cookies, gates routes that
// require it and clears admin cookies on logout.
package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"provider-gateway/internal/metrics"
)

const identityKey = "auth.identity"

// Extract returns the value of the named cookie. ok is false when the cookie
// is missing or blank.
func Extract(r *http.Request, cookie string) (string, bool) {
	c, err := r.Cookie(cookie)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// Identity returns the identity stored by Gate, or "" for anonymous routes.
func Identity(c echo.Context) string {
	v, _ := c.Get(identityKey).(string)
	return v
}

// Gate returns a middleware that rejects requests without the identity cookie
// with 401 before any upstream work happens. m may be nil.
func Gate(cookie string, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := Extract(c.Request(), cookie)
			if !ok {
				if m != nil {
					m.Outcomes.WithLabelValues(metrics.OutcomeUnauthorized).Inc()
				}
				return c.JSON(http.StatusUnauthorized, map[string]any{
					"ok":    false,
					"error": "unauthorized",
				})
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORS returns an Echo middleware for routes consumed by a single cross-origin
// site. The allow-origin is always the configured origin, never the request's.
// methods are the route's own methods; OPTIONS is appended.
func CORS(origin string, methods []string) echo.MiddlewareFunc {
	allow := strings.Join(append(append([]string(nil), methods...), http.MethodOptions), ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			h.Set(echo.HeaderAccessControlAllowMethods, allow)
			h.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type")
			h.Set(echo.HeaderAccessControlMaxAge, "86400")
			h.Add(echo.HeaderVary, echo.HeaderOrigin)

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"provider-gateway/internal/auth"
	"provider-gateway/internal/config"
	"provider-gateway/internal/metrics"
	"provider-gateway/internal/middleware"
	"provider-gateway/internal/route"
)

// Router bundles what RegisterRoutes needs to mount the gateway.
type Router struct {
	Config  *config.Config
	Metrics *metrics.Metrics // nil disables outcome counting on the gate
	Proxy   *ProxyHandler
	Health  *HealthHandler
	Logout  *auth.LogoutHandler
}

// RegisterRoutes wires the health endpoints, logout and every forwarding
// route of routes onto the Echo instance.
func RegisterRoutes(e *echo.Echo, r Router, routes []route.Route) error {
	if err := route.Validate(routes); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	e.GET("/healthz", r.Health.Healthz)
	e.GET("/gateway/status", r.Health.Status)

	e.GET("/api/admin/logout", r.Logout.Logout)
	e.POST("/api/admin/logout", r.Logout.Logout)

	gate := auth.Gate(r.Config.Auth.IdentityCookie, r.Metrics)
	cors := make(map[string]echo.MiddlewareFunc)
	for path, methods := range route.PublicMethods(routes) {
		cors[path] = middleware.CORS(r.Config.CORS.Origin, methods)
		e.OPTIONS(path, func(c echo.Context) error {
			return c.NoContent(http.StatusNoContent)
		}, cors[path])
	}

	for _, rt := range routes {
		var mws []echo.MiddlewareFunc
		if rt.Public {
			mws = append(mws, cors[rt.Path])
		}
		if rt.Auth {
			mws = append(mws, gate)
		}
		e.Add(rt.Method, rt.Path, r.Proxy.For(rt), mws...)
	}

	return nil
}

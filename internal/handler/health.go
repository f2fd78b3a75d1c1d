package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"provider-gateway/internal/route"
	"provider-gateway/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	service *service.ProxyService
	version Version
	routes  int
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(svc *service.ProxyService, v Version) *HealthHandler {
	return &HealthHandler{service: svc, version: v, routes: len(route.Table)}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      string(h.version),
		"upstream_url": h.service.BaseURL(),
		"routes":       h.routes,
	})
}

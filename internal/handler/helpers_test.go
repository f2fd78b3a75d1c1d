package handler

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"provider-gateway/internal/auth"
	"provider-gateway/internal/client"
	"provider-gateway/internal/config"
	"provider-gateway/internal/metrics"
	"provider-gateway/internal/route"
	"provider-gateway/internal/service"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "development"},
		Upstream: config.UpstreamConfig{BaseURL: baseURL, IdleConnections: 10},
		Auth: config.AuthConfig{
			IdentityCookie: "provider_id",
			AdminCookie:    "admin_token",
			AdminUICookie:  "admin_ui",
			LoginPath:      "/admin/login",
		},
		CORS: config.CORSConfig{Origin: "https://coaches.example.com"},
	}
}

type gateway struct {
	echo    *echo.Echo
	metrics *metrics.Metrics
	proxy   *ProxyHandler
}

// newGateway mounts the full route table against baseURL.
func newGateway(t *testing.T, baseURL string) *gateway {
	t.Helper()
	cfg := testConfig(baseURL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	svc, err := service.NewProxyService(client.NewUpstreamClient(cfg, logger, m), cfg, logger)
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}

	g := &gateway{echo: echo.New(), metrics: m, proxy: NewProxyHandler(svc, m, logger)}
	err = RegisterRoutes(g.echo, Router{
		Config:  cfg,
		Metrics: m,
		Proxy:   g.proxy,
		Health:  NewHealthHandler(svc, "test"),
		Logout:  auth.NewLogoutHandler(cfg, logger),
	}, route.Table)
	if err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	return g
}

// samplePath fills every ":param" segment of a route template with "v-<param>".
func samplePath(tmpl string) string {
	segs := strings.Split(tmpl, "/")
	for i, s := range segs {
		if name, ok := strings.CutPrefix(s, ":"); ok {
			segs[i] = "v-" + name
		}
	}
	return strings.Join(segs, "/")
}

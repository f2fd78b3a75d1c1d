package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newCORSEcho(called *bool) *echo.Echo {
	e := echo.New()
	mw := CORS("https://coaches.example.com", []string{http.MethodGet})
	handler := func(c echo.Context) error {
		*called = true
		return c.String(http.StatusOK, "ok")
	}
	e.GET("/api/public/coaches", handler, mw)
	e.OPTIONS("/api/public/coaches", handler, mw)
	return e
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	e := newCORSEcho(&called)

	req := httptest.NewRequest(http.MethodOptions, "/api/public/coaches", http.NoBody)
	req.Header.Set("Origin", "https://coaches.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://coaches.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://coaches.example.com")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, "GET, OPTIONS")
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want %q", got, "Origin")
	}
}

func TestCORS_ForeignOriginGetsConfiguredOrigin(t *testing.T) {
	called := false
	e := newCORSEcho(&called)

	req := httptest.NewRequest(http.MethodGet, "/api/public/coaches", http.NoBody)
	req.Header.Set("Origin", "https://evil.example.org")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !called {
		t.Error("GET should reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://coaches.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want configured origin", got)
	}
}

func TestCORS_DoesNotMutateMethods(t *testing.T) {
	methods := make([]string, 1, 4)
	methods[0] = http.MethodGet
	_ = CORS("https://a.example", methods)
	_ = CORS("https://b.example", methods)
	if len(methods) != 1 || methods[0] != http.MethodGet {
		t.Errorf("methods mutated: %v", methods)
	}
}

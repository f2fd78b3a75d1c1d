package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"provider-gateway/internal/config"
)

// LogoutHandler clears the admin session cookies.
type LogoutHandler struct {
	cookies   []adminCookie
	loginPath string
	secure    bool
	logger    *slog.Logger
}

type adminCookie struct {
	name     string
	httpOnly bool
}

// NewLogoutHandler creates a LogoutHandler from the auth settings.
// Cookies are marked Secure only in production.
func NewLogoutHandler(cfg *config.Config, logger *slog.Logger) *LogoutHandler {
	return &LogoutHandler{
		cookies: []adminCookie{
			{name: cfg.Auth.AdminCookie, httpOnly: true},
			{name: cfg.Auth.AdminUICookie, httpOnly: false}, // read by the admin UI
		},
		loginPath: cfg.Auth.LoginPath,
		secure:    cfg.App.Production(),
		logger:    logger.With("component", "logout_handler"),
	}
}

// Logout expires both admin cookies and answers 204, or redirects to the
// login page when the query carries redirect=1.
func (h *LogoutHandler) Logout(c echo.Context) error {
	for _, ck := range h.cookies {
		// Bare deletion, then an expiry carrying the attributes the cookie was set with.
		c.SetCookie(&http.Cookie{Name: ck.name, Path: "/", MaxAge: -1})
		c.SetCookie(&http.Cookie{
			Name:     ck.name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: ck.httpOnly,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	h.logger.Debug("admin session cleared", "remote_ip", c.RealIP())

	if c.QueryParam("redirect") == "1" {
		return c.Redirect(http.StatusSeeOther, h.loginPath)
	}
	return c.NoContent(http.StatusNoContent)
}

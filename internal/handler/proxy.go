package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/cappuccinotm/slogx"
	"github.com/labstack/echo/v4"

	"provider-gateway/internal/auth"
	"provider-gateway/internal/metrics"
	"provider-gateway/internal/model"
	"provider-gateway/internal/relay"
	"provider-gateway/internal/route"
	"provider-gateway/internal/service"
)

var errInvalidParam = errors.New("invalid path parameter")

// ProxyHandler forwards descriptor-driven routes to the backend API.
type ProxyHandler struct {
	service *service.ProxyService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler. m may be nil.
func NewProxyHandler(svc *service.ProxyService, m *metrics.Metrics, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		metrics: m,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// For returns the echo handler serving rt. Identity, when the route requires
// it, must already have been checked by auth.Gate.
func (h *ProxyHandler) For(rt route.Route) echo.HandlerFunc {
	names := rt.Params()

	return func(c echo.Context) error {
		req := c.Request()

		params, err := pathParams(c, names)
		if err != nil {
			return h.mapError(c, rt, err)
		}

		header := req.Header.Clone()
		if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
			header.Set(echo.HeaderXRequestID, rid)
		}

		pr := &model.ProxyRequest{
			Ctx:      req.Context(),
			Params:   params,
			RawQuery: req.URL.RawQuery,
			Header:   header,
			Identity: auth.Identity(c),
		}

		if rt.Body {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				// BodyLimit reports oversize bodies as *echo.HTTPError; let echo write it.
				var he *echo.HTTPError
				if errors.As(err, &he) {
					return he
				}
				return h.mapError(c, rt, service.ErrInvalidBody)
			}
			pr.Body = body
		}

		resp, err := h.service.Forward(rt, pr)
		if err != nil {
			return h.mapError(c, rt, err)
		}

		p, err := relay.Read(resp)
		if err != nil {
			return h.mapError(c, rt, err)
		}
		if p.Fallback {
			h.count(metrics.OutcomeInvalidUpstreamJSON)
			h.logger.Warn("upstream returned invalid JSON",
				"route", rt.String(),
				"status", p.Status,
			)
		}

		// Upstream entity headers do not describe a fallback body.
		if !p.Fallback {
			for key, vals := range resp.Header {
				if key == echo.HeaderContentType || key == echo.HeaderXRequestID {
					continue
				}
				for _, v := range vals {
					c.Response().Header().Add(key, v)
				}
			}
		}

		return writePayload(c, p)
	}
}

// pathParams returns the decoded values of the named path parameters.
// Echo matches on the escaped path whenever the request carries one, in which
// case the values are still percent-encoded.
func pathParams(c echo.Context, names []string) (map[string]string, error) {
	escaped := c.Request().URL.RawPath != ""
	params := make(map[string]string, len(names))
	for _, name := range names {
		v := c.Param(name)
		if escaped {
			var err error
			if v, err = url.PathUnescape(v); err != nil {
				return nil, fmt.Errorf("%w %q: %w", errInvalidParam, name, err)
			}
		}
		params[name] = v
	}
	return params, nil
}

func writePayload(c echo.Context, p relay.Payload) error {
	if len(p.Body) == 0 {
		if p.ContentType != "" {
			c.Response().Header().Set(echo.HeaderContentType, p.ContentType)
		}
		return c.NoContent(p.Status)
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(p.Status, contentType, p.Body)
}

// mapError converts a forwarding failure into the gateway's error response.
// It never returns the original error to echo.
func (h *ProxyHandler) mapError(c echo.Context, rt route.Route, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidBody):
		h.count(metrics.OutcomeInvalidBody)
		return c.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "invalid JSON body",
		})
	case errors.Is(err, errInvalidParam):
		h.count(metrics.OutcomeInvalidParam)
		return c.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "invalid path parameter",
		})
	case errors.Is(err, service.ErrMissingIdentity):
		h.count(metrics.OutcomeUnauthorized)
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"ok":    false,
			"error": "unauthorized",
		})
	}

	h.count(metrics.OutcomeBadGateway)
	h.logger.Error("proxy error",
		slogx.Error(err),
		"route", rt.String(),
		"path", c.Request().URL.Path,
	)

	return c.JSON(http.StatusBadGateway, map[string]any{
		"ok":     false,
		"error":  "bad gateway",
		"detail": describe(err),
	})
}

// describe returns a human-readable, non-empty explanation of a transport
// failure. The upstream URL is left out of the text.
func describe(err error) string {
	reason := "upstream request failed"
	detail := err.Error()

	var dnsErr *net.DNSError
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "upstream request timed out"
	case errors.Is(err, context.Canceled):
		reason = "client disconnected"
	case errors.As(err, &dnsErr):
		reason = "upstream host unreachable"
	case errors.Is(err, syscall.ECONNREFUSED):
		reason = "upstream connection refused"
	case errors.As(err, &urlErr) && urlErr.Timeout():
		reason = "upstream request timed out"
	case errors.As(err, &urlErr):
		reason = "upstream connection failed"
	}

	if errors.As(err, &urlErr) {
		detail = urlErr.Err.Error()
	}
	return reason + ": " + detail
}

func (h *ProxyHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Outcomes.WithLabelValues(outcome).Inc()
	}
}

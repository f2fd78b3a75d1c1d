// Package service implements the forwarding of one inbound call to the backend API.
package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"provider-gateway/internal/client"
	"provider-gateway/internal/config"
	"provider-gateway/internal/model"
	"provider-gateway/internal/route"
)

var (
	// ErrInvalidBody is returned when a route requires a JSON body and the
	// inbound body is empty or does not parse.
	ErrInvalidBody = errors.New("invalid JSON body")
	// ErrMissingIdentity is returned when an authenticated route is forwarded
	// without an identity.
	ErrMissingIdentity = errors.New("identity required")
)

// forwardableRequestHeaders are the only inbound headers forwarded upstream.
var forwardableRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"X-Request-Id",
}

// forwardableResponseHeaders are the only upstream headers relayed to the caller.
var forwardableResponseHeaders = map[string]bool{
	"Content-Type":     true,
	"Content-Language": true,
	"Location":         true,
	"Etag":             true,
	"Last-Modified":    true,
	"Retry-After":      true,
	"X-Request-Id":     true,
}

const userAgent = "provider-gateway/1.0"

// ProxyService builds and sends the upstream request for a route.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	baseURL string
}

// NewProxyService creates a ProxyService for the resolved backend base URL.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q must be absolute", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		baseURL: strings.TrimRight(cfg.Upstream.BaseURL, "/"),
	}, nil
}

// BaseURL returns the backend origin requests are forwarded to.
func (s *ProxyService) BaseURL() string {
	return s.baseURL
}

// Forward sends pr upstream according to rt and returns the response.
// Exactly one upstream call is made; nothing is retried.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(rt route.Route, pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if rt.Auth && pr.Identity == "" {
		return nil, ErrMissingIdentity
	}
	if rt.Body && !json.Valid(pr.Body) {
		return nil, ErrInvalidBody
	}

	target, err := s.buildUpstreamURL(rt, pr)
	if err != nil {
		return nil, err
	}

	header := s.buildRequestHeaders(rt, pr)

	var body io.Reader
	if rt.Body {
		body = bytes.NewReader(pr.Body)
	}

	s.logger.Debug("forwarding request",
		"route", rt.String(),
		"upstream", rt.Upstream,
	)

	resp, err := s.client.Send(pr.Ctx, rt.Method, target, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = s.filterResponseHeaders(resp.Header)
	return resp, nil
}

func (s *ProxyService) buildUpstreamURL(rt route.Route, pr *model.ProxyRequest) (string, error) {
	path, err := rt.Expand(pr.Params)
	if err != nil {
		return "", fmt.Errorf("build upstream url: %w", err)
	}

	target := s.baseURL + path
	if rt.Query && pr.RawQuery != "" {
		target += "?" + pr.RawQuery
	}
	return target, nil
}

func (s *ProxyService) buildRequestHeaders(rt route.Route, pr *model.ProxyRequest) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := pr.Header.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}

	dst.Set("User-Agent", userAgent)
	dst.Set("Cache-Control", "no-cache, no-store")
	dst.Set("Pragma", "no-cache")
	if rt.Body {
		dst.Set("Content-Type", "application/json")
	}
	if rt.Auth {
		dst.Set(model.HeaderProviderID, pr.Identity)
	}
	return dst
}

func (s *ProxyService) filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[key] = vals
		}
	}
	return dst
}

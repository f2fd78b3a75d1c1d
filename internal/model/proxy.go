// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// HeaderProviderID carries the caller's identity to the backend API.
const HeaderProviderID = "X-Provider-Id"

// ProxyRequest is one inbound call resolved against its route, ready to be
// forwarded upstream.
type ProxyRequest struct {
	Ctx      context.Context
	Params   map[string]string // path parameter values keyed by name
	RawQuery string            // inbound query string, without '?'
	Header   http.Header
	Identity string // empty when the route is anonymous
	Body     []byte // validated JSON, nil when the route forwards no body
}

// ProxyResponse represents the upstream response to be relayed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

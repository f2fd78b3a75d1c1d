package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"provider-gateway/internal/config"
	"provider-gateway/internal/metrics"
)

func newTestClient(timeout int, m *metrics.Metrics) *UpstreamClient {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  timeout,
			IdleConnections: 10,
		},
	}
	return NewUpstreamClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
}

func TestUpstreamClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Provider-Id") != "p-1" {
			t.Errorf("X-Provider-Id = %q, want %q", r.Header.Get("X-Provider-Id"), "p-1")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	m := metrics.New()
	c := newTestClient(10, m)

	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL+"/test", http.Header{"X-Provider-Id": {"p-1"}}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(body), `{"status":"ok"}`)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "provider_gateway_upstream_responses_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected provider_gateway_upstream_responses_total to be recorded")
	}
}

func TestUpstreamClient_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := newTestClient(10, nil).Send(context.Background(), http.MethodGet, srv.URL+"/x", http.Header{}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if resp.Header.Get("Location") != "/elsewhere" {
		t.Errorf("Location = %q, want %q", resp.Header.Get("Location"), "/elsewhere")
	}
}

func TestUpstreamClient_Send_Error(t *testing.T) {
	_, err := newTestClient(1, nil).Send(context.Background(), http.MethodGet, "http://127.0.0.1:1/nonexistent", http.Header{}, nil)
	if err == nil {
		t.Fatal("Send() expected error for unreachable host, got nil")
	}
}

func TestUpstreamClient_Send_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(0, nil).Send(ctx, http.MethodGet, srv.URL+"/slow", http.Header{}, nil)
	if err == nil {
		t.Fatal("Send() expected error for canceled context, got nil")
	}
}

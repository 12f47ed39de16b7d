package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/qchat-dispatch/internal/auth"
	"github.com/rickgao/qchat-dispatch/internal/connection"
	"github.com/rickgao/qchat-dispatch/internal/router"
)

type fakeSignals struct {
	connection atomic.Int64
	region     atomic.Int64
}

func (f *fakeSignals) OnConnectionChanged()    { f.connection.Add(1) }
func (f *fakeSignals) OnRegionProfileChanged() { f.region.Add(1) }

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestDeps(db pinger) (hostDeps, *fakeSignals) {
	bridge := connection.NewServer(connection.DefaultServerConfig(), nil)
	table := router.NewTableBuilder().Build()
	signals := &fakeSignals{}
	return hostDeps{
		WSPath:    "/ws",
		Bridge:    bridge,
		Router:    router.NewRouter(router.DefaultRouterConfig(), bridge.Messages(), table, router.Handlers{}, nil),
		Forwarder: router.NewForwarder(router.DefaultForwarderConfig(), bridge, nil),
		Auth:      signals,
		DB:        db,
	}, signals
}

func TestHealth_DegradedWithoutWebview(t *testing.T) {
	deps, _ := newTestDeps(nil)
	srv := httptest.NewServer(newHTTPHandler(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Components["webview"] != "waiting" {
		t.Errorf("webview = %v, want waiting", body.Components["webview"])
	}
	if _, ok := body.Components["postgres"]; ok {
		t.Error("postgres component reported without a database")
	}
}

func TestHealth_UnhealthyWhenDatabaseDown(t *testing.T) {
	deps, _ := newTestDeps(fakePinger{err: errors.New("connection refused")})
	srv := httptest.NewServer(newHTTPHandler(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestDebugStats(t *testing.T) {
	deps, _ := newTestDeps(fakePinger{})
	srv := httptest.NewServer(newHTTPHandler(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/stats")
	if err != nil {
		t.Fatalf("GET /debug/stats: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"bridge", "router", "forwarder"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %q in stats", key)
		}
	}
	if _, ok := body["telemetry_writer"]; ok {
		t.Error("telemetry_writer reported without a writer")
	}
}

func TestAuthHooks(t *testing.T) {
	deps, signals := newTestDeps(nil)
	srv := httptest.NewServer(newHTTPHandler(deps))
	defer srv.Close()

	for _, path := range []string{"/auth/connection-changed", "/auth/connection-changed", "/auth/region-changed"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("POST %s status = %d, want 202", path, resp.StatusCode)
		}
	}

	if got := signals.connection.Load(); got != 2 {
		t.Errorf("connection signals = %d, want 2", got)
	}
	if got := signals.region.Load(); got != 1 {
		t.Errorf("region signals = %d, want 1", got)
	}

	resp, err := http.Get(srv.URL + "/auth/region-changed")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}
}

func TestAuthHooks_RequireSignature(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	deps, signals := newTestDeps(nil)
	deps.HookAuth = auth.RequireSignature(&key.PublicKey, auth.DefaultMaxSkew)
	srv := httptest.NewServer(newHTTPHandler(deps))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/auth/connection-changed", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unsigned status = %d, want 401", resp.StatusCode)
	}

	creds := &auth.Credentials{KeyID: "ide", PrivateKey: key}
	headers, err := creds.SignRequest(http.MethodPost, "/auth/connection-changed")
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/connection-changed", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("signed POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("signed status = %d, want 202", resp.StatusCode)
	}
	if got := signals.connection.Load(); got != 1 {
		t.Errorf("connection signals = %d, want 1", got)
	}

	// Health stays open.
	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestWebviewSocket_RoundTrip(t *testing.T) {
	deps, _ := newTestDeps(nil)
	srv := httptest.NewServer(newHTTPHandler(deps))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := deps.Forwarder.Start(ctx); err != nil {
		t.Fatalf("forwarder start: %v", err)
	}
	defer deps.Forwarder.Stop(context.Background())

	probe := connection.NewProbe(connection.ProbeConfig{
		URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}, nil)
	if err := probe.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer probe.Close()

	if err := probe.Send([]byte(`{"command":"ui-is-ready"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case raw := <-deps.Bridge.Messages():
		if !strings.Contains(string(raw.Data), "ui-is-ready") {
			t.Errorf("inbound frame = %s", raw.Data)
		}
	case <-ctx.Done():
		t.Fatal("no inbound frame")
	}

	deps.Forwarder.SetUIReady()
	deps.Forwarder.Publish(map[string]any{"type": "authenticationUpdateMessage"})

	select {
	case msg := <-probe.Messages():
		if !strings.Contains(string(msg.Data), "authenticationUpdateMessage") {
			t.Errorf("outbound frame = %s", msg.Data)
		}
	case <-ctx.Done():
		t.Fatal("no outbound frame")
	}
}

package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/qchat-dispatch/internal/auth"
)

type staticSigner map[string]string

func (s staticSigner) SignRequest(method, path string) (map[string]string, error) {
	return s, nil
}

type failingSigner struct{}

func (failingSigner) SignRequest(method, path string) (map[string]string, error) {
	return nil, errors.New("no key")
}

func newTestClient(baseURL string, signer Signer, retries int) *Client {
	cfg := DefaultClientConfig(baseURL)
	cfg.MaxRetries = retries
	cfg.RetryBackoff = 10 * time.Millisecond
	return NewClient(cfg, signer, nil)
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		cfg         ClientConfig
		wantTimeout time.Duration
		wantRetries int
		wantBackoff time.Duration
	}{
		{
			name:        "zero config gets defaults except retries",
			cfg:         ClientConfig{BaseURL: "https://auth.example.com"},
			wantTimeout: 10 * time.Second,
			wantRetries: 0,
			wantBackoff: 250 * time.Millisecond,
		},
		{
			name:        "default config",
			cfg:         DefaultClientConfig("https://auth.example.com"),
			wantTimeout: 10 * time.Second,
			wantRetries: 3,
			wantBackoff: 250 * time.Millisecond,
		},
		{
			name:        "explicit values kept, negative retries clamped",
			cfg:         ClientConfig{BaseURL: "https://auth.example.com", Timeout: 2 * time.Second, MaxRetries: -4, RetryBackoff: time.Second},
			wantTimeout: 2 * time.Second,
			wantRetries: 0,
			wantBackoff: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg, nil, nil)
			if c.httpClient.Timeout != tt.wantTimeout {
				t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, tt.wantTimeout)
			}
			if c.cfg.MaxRetries != tt.wantRetries {
				t.Errorf("MaxRetries = %d, want %d", c.cfg.MaxRetries, tt.wantRetries)
			}
			if c.cfg.RetryBackoff != tt.wantBackoff {
				t.Errorf("RetryBackoff = %v, want %v", c.cfg.RetryBackoff, tt.wantBackoff)
			}
			if c.logger == nil {
				t.Error("logger should not be nil")
			}
		})
	}
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Not Found"}
	if err.Error() != "auth-state api error 404: Not Found" {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
		{499, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("signed request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			if r.Header.Get("X-Test") != "signed" {
				t.Errorf("X-Test header = %q, want signed", r.Header.Get("X-Test"))
			}
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := newTestClient(server.URL, staticSigner{"X-Test": "signed"}, 0)
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q", string(body))
		}
	})

	t.Run("signer failure", func(t *testing.T) {
		c := newTestClient("http://127.0.0.1:1", failingSigner{}, 0)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test")
		if err == nil || !strings.Contains(err.Error(), "sign request") {
			t.Errorf("err = %v, want sign request error", err)
		}
	})

	t.Run("4xx error returns APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "bad signature"}`))
		}))
		defer server.Close()

		c := newTestClient(server.URL, nil, 0)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test")

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 401 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 401)
		}
		if !strings.Contains(string(apiErr.Body), "bad signature") {
			t.Errorf("Body = %q", string(apiErr.Body))
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		c := newTestClient(server.URL, nil, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.doRequest(ctx, http.MethodGet, "/test")
		if err == nil || !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error should contain 'context canceled', got %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := newTestClient(server.URL, nil, 3)
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := newTestClient(server.URL, nil, 3)
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("does not retry on 4xx (except 429)", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		c := newTestClient(server.URL, nil, 3)
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test"); err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := newTestClient(server.URL, nil, 2)
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test")
		if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
		// 1 initial + 2 retries
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 5, RetryBackoff: 50 * time.Millisecond}, nil, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/test")
		if err == nil || !strings.Contains(err.Error(), "context") {
			t.Errorf("error should be context-related, got %v", err)
		}
	})
}

func TestGetChatAuthState(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	creds := &auth.Credentials{KeyID: "dispatcher", PrivateKey: key}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != AuthStatePath {
			t.Errorf("path = %q, want %q", r.URL.Path, AuthStatePath)
		}
		if got := r.Header.Get(auth.HeaderKeyID); got != "dispatcher" {
			t.Errorf("%s = %q, want dispatcher", auth.HeaderKeyID, got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "qchat-dispatch/") {
			t.Errorf("User-Agent = %q", got)
		}
		err := auth.Verify(&key.PublicKey, r.Method, r.URL.Path,
			r.Header.Get(auth.HeaderTimestamp), r.Header.Get(auth.HeaderSignature))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"amazonQ":"connected","codewhispererCore":"expired"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL+"/", creds, 0)
	state, err := c.GetChatAuthState(context.Background())
	if err != nil {
		t.Fatalf("GetChatAuthState failed: %v", err)
	}
	if !state.ChatConnected() {
		t.Errorf("AmazonQ = %q, want connected", state.AmazonQ)
	}
	if state.CodeWhispererCore != StateExpired {
		t.Errorf("CodeWhispererCore = %q, want expired", state.CodeWhispererCore)
	}
}

func TestGetChatAuthState_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil, 0)
	if _, err := c.GetChatAuthState(context.Background()); err == nil || !strings.Contains(err.Error(), "unmarshal response") {
		t.Errorf("err = %v, want unmarshal error", err)
	}
}

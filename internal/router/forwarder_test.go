package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport records frames and can be told to fail.
type fakeTransport struct {
	mu     sync.Mutex
	frames []string
	failOn string
	block  chan struct{}
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && string(data) == f.failOn {
		return errors.New("webview gone")
	}
	f.frames = append(f.frames, string(data))
	return nil
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

type testOutbound struct {
	Type  string `json:"type"`
	TabID string `json:"tabID"`
}

func (m testOutbound) OutboundCommand() string { return m.Type }

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stopForwarder(t *testing.T, f *Forwarder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestForwarder_HoldsUntilReady(t *testing.T) {
	tr := &fakeTransport{}
	f := NewForwarder(DefaultForwarderConfig(), tr, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stopForwarder(t, f)

	f.Publish(testOutbound{Type: "a"})
	f.Publish(testOutbound{Type: "b"})

	time.Sleep(50 * time.Millisecond)
	if got := len(tr.sent()); got != 0 {
		t.Fatalf("sent %d frames before ready, want 0", got)
	}

	f.SetUIReady()
	f.SetUIReady()
	waitUntil(t, "delivery", func() bool { return len(tr.sent()) == 2 })

	if !f.Stats().UIReady {
		t.Error("expected UIReady in stats")
	}
}

func TestForwarder_DeliversInOrder(t *testing.T) {
	tr := &fakeTransport{}
	f := NewForwarder(ForwarderConfig{QueueSize: 2}, tr, nil)
	f.SetUIReady()
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stopForwarder(t, f)

	const n = 50
	for i := 0; i < n; i++ {
		f.Publish(map[string]any{"type": "chat", "seq": i})
	}

	waitUntil(t, "delivery", func() bool { return len(tr.sent()) == n })

	for i, frame := range tr.sent() {
		var m map[string]any
		if err := json.Unmarshal([]byte(frame), &m); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if int(m["seq"].(float64)) != i {
			t.Fatalf("frame %d has seq %v", i, m["seq"])
		}
	}
}

func TestForwarder_FailureCountedNotRetried(t *testing.T) {
	bad, _ := json.Marshal(testOutbound{Type: "bad"})
	tr := &fakeTransport{failOn: string(bad)}
	f := NewForwarder(DefaultForwarderConfig(), tr, nil)
	f.SetUIReady()
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stopForwarder(t, f)

	f.Publish(testOutbound{Type: "bad"})
	f.Publish(testOutbound{Type: "good"})

	waitUntil(t, "outcomes", func() bool {
		st := f.Stats()
		return st.Delivered == 1 && st.Failed == 1
	})
	if got := tr.sent(); len(got) != 1 {
		t.Errorf("sent = %v, want only the good frame", got)
	}
}

func TestForwarder_PublishDoesNotBlock(t *testing.T) {
	tr := &fakeTransport{block: make(chan struct{})}
	f := NewForwarder(ForwarderConfig{QueueSize: 1, DeliveryTimeout: time.Second}, tr, nil)
	f.SetUIReady()
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			f.Publish(testOutbound{Type: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a stalled transport")
	}

	close(tr.block)
	waitUntil(t, "drain", func() bool { return f.Stats().Delivered == 100 })
	stopForwarder(t, f)
}

func TestForwarder_StopBeforeReady(t *testing.T) {
	tr := &fakeTransport{}
	f := NewForwarder(DefaultForwarderConfig(), tr, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.Publish(testOutbound{Type: "held"})
	stopForwarder(t, f)

	if got := len(tr.sent()); got != 0 {
		t.Errorf("sent %d frames, want 0", got)
	}
	if f.Publish(testOutbound{Type: "late"}) {
		t.Error("Publish after Stop should return false")
	}
}

func TestForwarder_NoTransport(t *testing.T) {
	f := NewForwarder(DefaultForwarderConfig(), nil, nil)
	f.SetUIReady()
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stopForwarder(t, f)

	f.Publish(testOutbound{Type: "x"})
	waitUntil(t, "failure", func() bool { return f.Stats().Failed == 1 })
}

func TestCommandOf(t *testing.T) {
	tests := []struct {
		msg  any
		want string
	}{
		{testOutbound{Type: "authenticationUpdateMessage"}, "authenticationUpdateMessage"},
		{map[string]any{"type": "chatMessage"}, "chatMessage"},
		{map[string]any{"command": "open"}, "open"},
		{42, "int"},
	}
	for _, tt := range tests {
		if got := commandOf(tt.msg); got != tt.want {
			t.Errorf("commandOf(%v) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestForwarder_StopDeliversAfterStartContextCancelled(t *testing.T) {
	tr := &fakeTransport{block: make(chan struct{})}
	f := NewForwarder(DefaultForwarderConfig(), tr, nil)
	f.SetUIReady()

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.Start(ctx); err != nil {
		t.Fatal(err)
	}

	for _, typ := range []string{"a", "b", "c"} {
		f.Publish(testOutbound{Type: typ})
	}
	cancel()
	close(tr.block)
	stopForwarder(t, f)

	sent := tr.sent()
	if len(sent) != 3 {
		t.Fatalf("sent %d frames, want 3 (stats %+v)", len(sent), f.Stats())
	}
	if f.Stats().Failed != 0 {
		t.Errorf("Failed = %d, want 0", f.Stats().Failed)
	}
}

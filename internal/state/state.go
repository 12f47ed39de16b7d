package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Keys written by the dispatcher.
const (
	KeyWelcomeChatShowCount = "aws.amazonq.welcomeChatShowCount"
)

// ErrNotFound is returned by Store.Get for missing keys.
var ErrNotFound = errors.New("state key not found")

// Store persists JSON-encoded values by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// TryGetInt returns the integer stored at key, or def when the key is
// missing, unreadable, or not an integer.
func TryGetInt(ctx context.Context, s Store, key string, def int) int {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// TryUpdate JSON-encodes value and stores it at key.
func TryUpdate(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

// Increment adds one to the counter at key (missing counts as zero) and
// returns the new value.
func Increment(ctx context.Context, s Store, key string) (int, error) {
	next := TryGetInt(ctx, s, key, 0) + 1
	if err := TryUpdate(ctx, s, key, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

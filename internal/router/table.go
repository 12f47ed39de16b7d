package router

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Errors
var (
	ErrDuplicateRoute = errors.New("routing key already registered")
	ErrTableBuilt     = errors.New("routing table already built")
	ErrEmptyRouteKey  = errors.New("routing key is empty")
)

// TableBuilder collects app registrations during startup. Build hands out
// the immutable Table the router reads.
type TableBuilder struct {
	mu     sync.Mutex
	routes map[string]*AppPublisher
	built  bool
}

// NewTableBuilder creates an empty builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{routes: make(map[string]*AppPublisher)}
}

// Register binds key to pub. Each key may be registered once.
func (b *TableBuilder) Register(key string, pub *AppPublisher) error {
	if key == "" {
		return ErrEmptyRouteKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built {
		return fmt.Errorf("register %q: %w", key, ErrTableBuilt)
	}
	if _, ok := b.routes[key]; ok {
		return fmt.Errorf("register %q: %w", key, ErrDuplicateRoute)
	}
	b.routes[key] = pub
	return nil
}

// Build freezes the builder and returns the table. Later Register calls fail.
func (b *TableBuilder) Build() *Table {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.built = true
	routes := make(map[string]*AppPublisher, len(b.routes))
	for k, v := range b.routes {
		routes[k] = v
	}
	return &Table{routes: routes}
}

// Table maps routing keys (tab types) to app inbound channels. It is never
// mutated after Build, so lookups need no locking.
type Table struct {
	routes map[string]*AppPublisher
}

// Lookup returns the publisher for key. Unknown keys return false.
func (t *Table) Lookup(key string) (*AppPublisher, bool) {
	if t == nil {
		return nil, false
	}
	pub, ok := t.routes[key]
	return pub, ok
}

// Keys returns the registered routing keys in sorted order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.routes))
	for k := range t.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

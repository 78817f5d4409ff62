package partition

import (
	"context"
	"fmt"
	"sync"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// Registry caches partition handles for the lifetime of the process.
type Registry struct {
	store Store

	mu      sync.Mutex
	handles map[Key]Handle
	ensured map[Key]struct{}
	closed  bool
}

// NewRegistry wraps store with a handle cache.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:   store,
		handles: make(map[Key]Handle),
		ensured: make(map[Key]struct{}),
	}
}

// Resolve returns the handle for the actor's partition, opening it on first
// use. Repeated calls with the same key return the same handle. The partition
// need not exist.
func (r *Registry) Resolve(ctx context.Context, tenant shared.Tenant, actor string) (Handle, error) {
	key := NewKey(tenant, actor)
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if h, ok := r.handles[key]; ok {
		return h, nil
	}
	h := r.store.Open(key)
	r.handles[key] = h
	return h, nil
}

// ResolveForWrite resolves the handle and makes sure the partition shell
// exists in the store.
func (r *Registry) ResolveForWrite(ctx context.Context, tenant shared.Tenant, actor string) (Handle, error) {
	h, err := r.Resolve(ctx, tenant, actor)
	if err != nil {
		return nil, err
	}
	key := h.Key()
	r.mu.Lock()
	_, done := r.ensured[key]
	r.mu.Unlock()
	if done {
		return h, nil
	}
	if err := r.store.Ensure(ctx, key); err != nil {
		return nil, fmt.Errorf("partition: ensure %s: %w", key, err)
	}
	r.mu.Lock()
	r.ensured[key] = struct{}{}
	r.mu.Unlock()
	return h, nil
}

// Len reports how many handles are cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close drains the handle cache and closes the store. Further resolutions
// fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.handles = make(map[Key]Handle)
	r.ensured = make(map[Key]struct{})
	r.mu.Unlock()
	return r.store.Close()
}

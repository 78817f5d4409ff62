package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// MemoryCatalog keeps catalogs in process memory.
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[shared.Tenant]map[string]Entry
	err     error
}

// NewMemoryCatalog constructs an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[shared.Tenant]map[string]Entry)}
}

// Upsert stores or replaces an entry.
func (c *MemoryCatalog) Upsert(ctx context.Context, tenant shared.Tenant, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[tenant]
	if !ok {
		m = make(map[string]Entry)
		c.entries[tenant] = m
	}
	m[e.MaterialName] = e
	return nil
}

// Fail makes reads return err.
func (c *MemoryCatalog) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Entries implements Source.
func (c *MemoryCatalog) Entries(ctx context.Context, tenant shared.Tenant) ([]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]Entry, 0, len(c.entries[tenant]))
	for _, e := range c.entries[tenant] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialName < out[j].MaterialName })
	return out, nil
}

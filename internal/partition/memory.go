package partition

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// MemoryStore keeps partitions in process memory. It backs tests and the
// "memory" store driver, and supports injecting per-partition faults.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[Key]*memoryPartition
	readErrs   map[Key]error
	delays     map[Key]time.Duration
	keysErr    error
	closed     bool
}

type memoryPartition struct {
	usage  []DailyUsageRecord
	prices []TotalPriceRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[Key]*memoryPartition),
		readErrs:   make(map[Key]error),
		delays:     make(map[Key]time.Duration),
	}
}

// FailReads makes every read of key return err. A nil err clears the fault.
func (s *MemoryStore) FailReads(key Key, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErrs, key)
		return
	}
	s.readErrs[key] = err
}

// DelayReads makes reads of key block for d or until the context ends.
func (s *MemoryStore) DelayReads(key Key, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[key] = d
}

// FailKeys makes partition enumeration fail with err.
func (s *MemoryStore) FailKeys(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keysErr = err
}

// Keys implements KeyLister.
func (s *MemoryStore) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	keys := make([]Key, 0, len(s.partitions))
	for k := range s.partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Open implements Store.
func (s *MemoryStore) Open(key Key) Handle {
	return &memoryHandle{store: s, key: key}
}

// Ensure implements Store.
func (s *MemoryStore) Ensure(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.ensureLocked(key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ensureLocked(key Key) *memoryPartition {
	p, ok := s.partitions[key]
	if !ok {
		p = &memoryPartition{}
		s.partitions[key] = p
	}
	return p
}

// waitRead applies injected faults and returns a snapshot of the partition.
func (s *MemoryStore) waitRead(ctx context.Context, key Key) (memoryPartition, error) {
	s.mu.RLock()
	delay := s.delays[key]
	s.mu.RUnlock()
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return memoryPartition{}, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return memoryPartition{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return memoryPartition{}, ErrClosed
	}
	if err := s.readErrs[key]; err != nil {
		return memoryPartition{}, err
	}
	p, ok := s.partitions[key]
	if !ok {
		return memoryPartition{}, nil
	}
	return memoryPartition{
		usage:  append([]DailyUsageRecord(nil), p.usage...),
		prices: append([]TotalPriceRecord(nil), p.prices...),
	}, nil
}

type memoryHandle struct {
	store *MemoryStore
	key   Key
}

func (h *memoryHandle) Key() Key { return h.key }

func (h *memoryHandle) TotalPrices(ctx context.Context, rng shared.DateRange) ([]TotalPriceRecord, error) {
	p, err := h.store.waitRead(ctx, h.key)
	if err != nil {
		return nil, err
	}
	out := make([]TotalPriceRecord, 0, len(p.prices))
	for _, rec := range p.prices {
		if rng.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (h *memoryHandle) DailyUsage(ctx context.Context, rng shared.DateRange) ([]DailyUsageRecord, error) {
	p, err := h.store.waitRead(ctx, h.key)
	if err != nil {
		return nil, err
	}
	out := make([]DailyUsageRecord, 0, len(p.usage))
	for _, rec := range p.usage {
		if rng.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (h *memoryHandle) Counts(ctx context.Context) (Counts, error) {
	p, err := h.store.waitRead(ctx, h.key)
	if err != nil {
		return Counts{}, err
	}
	return Counts{DailyUsage: int64(len(p.usage)), TotalPrices: int64(len(p.prices))}, nil
}

func (h *memoryHandle) AppendUsage(ctx context.Context, records ...DailyUsageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.store.closed {
		return ErrClosed
	}
	p, ok := h.store.partitions[h.key]
	if !ok {
		return fmt.Errorf("partition %s: %w", h.key, ErrNotEnsured)
	}
	p.usage = append(p.usage, records...)
	return nil
}

func (h *memoryHandle) AppendTotalPrices(ctx context.Context, records ...TotalPriceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.store.closed {
		return ErrClosed
	}
	p, ok := h.store.partitions[h.key]
	if !ok {
		return fmt.Errorf("partition %s: %w", h.key, ErrNotEnsured)
	}
	p.prices = append(p.prices, records...)
	return nil
}

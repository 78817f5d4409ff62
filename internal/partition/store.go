package partition

import (
	"context"
	"errors"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

var (
	// ErrClosed is returned once a Registry or Store has been closed.
	ErrClosed = errors.New("partition: closed")
	// ErrNotEnsured is returned when appending to a partition that was never
	// created.
	ErrNotEnsured = errors.New("partition: not created")
)

// Reader exposes the read side of a partition. Reading a partition that was
// never written returns empty results, not an error.
type Reader interface {
	TotalPrices(ctx context.Context, rng shared.DateRange) ([]TotalPriceRecord, error)
	DailyUsage(ctx context.Context, rng shared.DateRange) ([]DailyUsageRecord, error)
	Counts(ctx context.Context) (Counts, error)
}

// Writer appends records. The partition must exist: obtain write handles
// through Registry.ResolveForWrite, which ensures it first.
type Writer interface {
	AppendUsage(ctx context.Context, records ...DailyUsageRecord) error
	AppendTotalPrices(ctx context.Context, records ...TotalPriceRecord) error
}

// Handle is a live reference to one partition, safe for concurrent reads.
type Handle interface {
	Reader
	Writer
	Key() Key
}

// KeyLister enumerates every partition present in a store.
type KeyLister interface {
	Keys(ctx context.Context) ([]Key, error)
}

// Store is a physical backend for partitions.
type Store interface {
	KeyLister
	// Open returns a handle without touching the backend.
	Open(key Key) Handle
	// Ensure creates the partition shell when missing.
	Ensure(ctx context.Context, key Key) error
	Close() error
}

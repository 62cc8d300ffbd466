// Package kv is the persistence adapter the ledgers sit on: a flat
// key-value cell space with atomic batch commits and a storage lease that
// mutating callers renew.
package kv

import (
	"context"
	"time"
)

// Store is a synchronous key-value cell space.
//
// Apply is the only write path: an operation collects every cell it wants
// to change into a Batch and commits it in one call. A batch is applied
// atomically; no reader ever observes some of its puts without the others.
type Store interface {
	// Get returns the cell value and whether the cell exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Has reports whether the cell exists without reading it.
	Has(ctx context.Context, key string) (bool, error)

	// Apply commits every put in the batch as one atomic unit.
	Apply(ctx context.Context, b *Batch) error

	// ExtendLease renews the retention budget of the stored state.
	// Callers invoke it after every successful mutating operation.
	ExtendLease(ctx context.Context, ttl time.Duration) error

	Close() error
}

type put struct {
	key   string
	value []byte
}

// Batch is an ordered set of cell writes collected by a single operation.
type Batch struct {
	puts []put
}

// Put schedules a cell write. Later puts to the same key win.
func (b *Batch) Put(key string, value []byte) {
	b.puts = append(b.puts, put{key: key, value: value})
}

// Len returns the number of scheduled writes.
func (b *Batch) Len() int {
	return len(b.puts)
}

// Package membudget bounds the total bytes held in memory across all
// concurrent transfers with a single weighted semaphore.
package membudget

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// Budget is a counting semaphore over bytes. Every Acquire must be paired
// with exactly one Release on all exit paths; no task may begin network I/O
// before its reservation succeeds.
type Budget struct {
	limit    int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// New creates a budget of limit bytes.
func New(limit int64) *Budget {
	return &Budget{limit: limit, sem: semaphore.NewWeighted(limit)}
}

// Acquire blocks until n bytes fit under the limit, then reserves them.
// A reservation larger than the whole budget can never be satisfied and is
// rejected immediately as a resource error rather than blocking forever.
func (b *Budget) Acquire(ctx context.Context, n int64) error {
	if n <= 0 {
		return fmt.Errorf("memory budget: invalid reservation %d", n)
	}
	if n > b.limit {
		return types.Resource(fmt.Errorf("%w: need %d, budget %d", types.ErrSizeExceedsBudget, n, b.limit))
	}
	if err := b.sem.Acquire(ctx, n); err != nil {
		return types.Cancelled(fmt.Errorf("memory budget: %w", err))
	}
	b.inFlight.Add(n)
	return nil
}

// Release returns n previously reserved bytes.
func (b *Budget) Release(n int64) {
	if n <= 0 {
		return
	}
	b.inFlight.Add(-n)
	b.sem.Release(n)
}

// InFlight returns the bytes currently reserved.
func (b *Budget) InFlight() int64 {
	return b.inFlight.Load()
}

// Limit returns the configured cap.
func (b *Budget) Limit() int64 {
	return b.limit
}

package lifecycle

import (
	"context"
	"sync"
	"time"

	dErrors "citepay/pkg/domain-errors"
)

// StoreTx is the transactional boundary for engine operations. Every
// multi-entity mutation runs inside fn; if fn returns an error nothing it
// did may remain observable. The PostgreSQL implementation wraps a
// database transaction; the in-memory implementation is a coarse lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a single engine transaction.
const defaultTxTimeout = 5 * time.Second

// memoryTx serializes operations under one mutex. The in-memory stores
// cannot roll back, so the engine's operations are written validate-first:
// by the time anything mutates, nothing can fail but storage itself.
type memoryTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewMemoryTx returns a lock-based StoreTx for tests and local runs.
func NewMemoryTx() StoreTx {
	return &memoryTx{}
}

func (t *memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

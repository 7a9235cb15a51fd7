package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amourflorals/wishsync/internal/upstream"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

const maxRetries = 3

// retryBaseDelay scales linearly with the attempt number: attempt n waits
// n times this long. Variable so tests can shrink it.
var retryBaseDelay = time.Second

// queuedOp is a deferred mutation waiting for the mutation slot.
type queuedOp struct {
	id         string
	key        string // pending-set key; held until the op finally resolves
	opType     string
	productID  string
	priority   int
	retryCount int
	enqueuedAt time.Time
	token      string
	fn         func(ctx context.Context) error
}

// FailedOperation is a queued operation that exhausted its retries. It stays
// listed until the shopper retries it or the session ends; operations are
// never dropped silently.
type FailedOperation struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ProductID string    `json:"product_id,omitempty"`
	Error     string    `json:"error"`
	Retries   int       `json:"retries"`
	FailedAt  time.Time `json:"failed_at"`

	op *queuedOp
}

// opQueue is a priority queue of deferred operations plus the failed list.
type opQueue struct {
	mu       sync.Mutex
	ops      []*queuedOp
	failed   []*FailedOperation
	draining atomic.Bool
}

func newOpQueue() *opQueue {
	return &opQueue{}
}

// push inserts by priority; equal priorities keep FIFO order.
func (q *opQueue) push(op *queuedOp) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := len(q.ops)
	for i := range q.ops {
		if q.ops[i].priority < op.priority {
			idx = i
			break
		}
	}
	q.ops = append(q.ops, nil)
	copy(q.ops[idx+1:], q.ops[idx:])
	q.ops[idx] = op
	queueDepth.Set(float64(len(q.ops)))
}

// pushFront puts a retrying operation ahead of everything else so it resolves
// before newer work touches the same state.
func (q *opQueue) pushFront(op *queuedOp) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append([]*queuedOp{op}, q.ops...)
	queueDepth.Set(float64(len(q.ops)))
}

func (q *opQueue) pop() *queuedOp {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return nil
	}
	op := q.ops[0]
	q.ops = q.ops[1:]
	queueDepth.Set(float64(len(q.ops)))
	return op
}

func (q *opQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

func (q *opQueue) addFailed(op *queuedOp, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.failed = append(q.failed, &FailedOperation{
		ID:        op.id,
		Type:      op.opType,
		ProductID: op.productID,
		Error:     cause.Error(),
		Retries:   op.retryCount,
		FailedAt:  time.Now().UTC(),
		op:        op,
	})
}

func (q *opQueue) listFailed() []FailedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]FailedOperation, len(q.failed))
	for i, f := range q.failed {
		out[i] = *f
		out[i].op = nil
	}
	return out
}

// takeFailed removes and returns the failed operation with the given ID.
func (q *opQueue) takeFailed(id string) *queuedOp {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, f := range q.failed {
		if f.ID == id {
			q.failed = append(q.failed[:i], q.failed[i+1:]...)
			return f.op
		}
	}
	return nil
}

// enqueue defers a mutation until the slot frees up. The shopper's token is
// captured now because the originating request context will be gone by the
// time the operation runs.
func (e *Engine) enqueue(key, opType, productID string, priority int, token string, fn func(ctx context.Context) error) {
	op := &queuedOp{
		id:         uuid.New().String(),
		key:        key,
		opType:     opType,
		productID:  productID,
		priority:   priority,
		enqueuedAt: time.Now().UTC(),
		token:      token,
		fn:         fn,
	}
	e.queue.push(op)
	e.logger.Info("operation queued",
		slog.String("operation", opType),
		slog.String("product_id", productID),
		slog.Int("depth", e.queue.depth()))
	e.drain()
}

// drain processes queued operations one at a time in priority order. Only
// one drain loop runs per engine; concurrent callers return immediately.
func (e *Engine) drain() {
	if !e.queue.draining.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer e.queue.draining.Store(false)

		for {
			op := e.queue.pop()
			if op == nil {
				return
			}

			if err := e.op.Acquire(e.base, 1); err != nil {
				// Agent is shutting down; remaining work is abandoned
				// with the rest of the session.
				return
			}
			ctx := upstream.WithToken(e.base, op.token)
			err := op.fn(ctx)
			e.op.Release(1)

			if err == nil {
				e.clearPending(op.key)
				continue
			}

			// The pending key stays marked across retries so a duplicate
			// of the same logical operation cannot slip in during the
			// backoff window.
			if op.retryCount < maxRetries {
				op.retryCount++
				queueRetriesTotal.Inc()
				e.logger.Warn("queued operation failed, will retry",
					slog.String("operation", op.opType),
					slog.String("product_id", op.productID),
					slog.Int("attempt", op.retryCount),
					slog.String("error", err.Error()))

				select {
				case <-time.After(time.Duration(op.retryCount) * retryBaseDelay):
				case <-e.base.Done():
					return
				}
				e.queue.pushFront(op)
				continue
			}

			e.queue.addFailed(op, err)
			e.clearPending(op.key)
			queueAbandonedTotal.Inc()
			operationsTotal.WithLabelValues(op.opType, "failed").Inc()
			e.logger.Error("queued operation failed permanently",
				slog.String("operation", op.opType),
				slog.String("product_id", op.productID),
				slog.Int("retries", op.retryCount),
				slog.String("error", err.Error()))
		}
	}()
}

// FailedOperations lists operations that exhausted their retries.
func (e *Engine) FailedOperations() []FailedOperation {
	return e.queue.listFailed()
}

// RetryFailedOperation re-queues a previously failed operation with a fresh
// retry budget. The caller's current token replaces the one captured at the
// original enqueue so the retry does not run with expired credentials.
func (e *Engine) RetryFailedOperation(ctx context.Context, id string) error {
	if err := e.requireAuth(ctx); err != nil {
		return err
	}

	op := e.queue.takeFailed(id)
	if op == nil {
		return apperrors.NotFound("failed operation", id)
	}

	op.retryCount = 0
	op.token = upstream.TokenFromContext(ctx)
	e.markPending(op.key)
	e.queue.push(op)
	e.logger.Info("failed operation re-queued",
		slog.String("operation", op.opType),
		slog.String("product_id", op.productID))
	e.drain()
	return nil
}
